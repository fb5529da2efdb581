package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"reporag/config"
	"reporag/internal/adapter/embedding"
	"reporag/internal/adapter/store"
	"reporag/internal/domain"
	"reporag/internal/usecase"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding the reporag config and store")
	collection := flag.String("c", "", "Collection to query")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	if *query == "" || *collection == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -c owner_repo_collection -q \"query\"")
		fmt.Println("\nReports retrieval quality for one query without calling the language model:")
		fmt.Println("  1. Embedding infrastructure (model connection, vector store)")
		fmt.Println("  2. Semantic similarity (query vs results)")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.OpenBolt(cfg.StorePath(*dir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Semantic search not available: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	count, err := st.Count(ctx, *collection)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Collection: %s (%d documents)\n", *collection, count)
	fmt.Printf("Store: %s\n", st.Path())
	fmt.Printf("Model: %s (%s", embedder.ModelName(), cfg.Embedding.Provider)
	if dim := embedder.Dimension(); dim > 0 {
		fmt.Printf(", %d dims", dim)
	}
	fmt.Println(")")
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	start := time.Now()
	results, err := usecase.NewRetrieveUseCase(embedder, st, 0, nil).Retrieve(ctx, *collection, *query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Retrieved in %s\n\n", time.Since(start).Round(time.Millisecond))

	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}
	fmt.Printf("Top %d semantic matches:\n\n", len(results))

	totalScore := 0.0
	for i, r := range results {
		totalScore += r.Score
		fmt.Printf("%d. [%s %.3f] %s:L%d-%d\n", i+1, rating(r.Score), r.Score, r.Document.SourcePath, r.Document.StartLine, r.Document.EndLine)
		fmt.Printf("   %s\n\n", preview(r.Document))
	}

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Score)

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - semantic search working well")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need better embeddings or re-ingestion")
	}
}

func rating(score float64) string {
	switch {
	case score > 0.7:
		return "HIGH"
	case score > 0.5:
		return "GOOD"
	case score > 0.3:
		return "OK"
	default:
		return "LOW"
	}
}

func preview(doc domain.EmbeddedDocument) string {
	text := []rune(doc.Text)
	if len(text) > 150 {
		text = append(text[:150], []rune("...")...)
	}
	return strings.ReplaceAll(string(text), "\n", " ")
}
