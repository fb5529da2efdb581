package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query <collection> <question...>",
	Short: "Answer a question about an ingested repository",
	Long: `Retrieve the pieces of the collection most similar to the question and
ask the language model to answer from them.

Examples:
  reporag query owner_repo_collection "Where is the HTTP server started?"
  reporag query owner_repo_collection how are errors logged -k 10 --json`,
	Args: cobra.MinimumNArgs(2),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of documents to retrieve (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	topK := cfg.Retrieve.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}
	collection := args[0]
	question := strings.Join(args[1:], " ")

	p, err := buildPipeline(cfg, GetRootDir(), buildOptions{}, mtr, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	answer, err := p.service.QueryTopK(cmd.Context(), collection, question, topK)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if queryJSON {
		for i := range answer.ContextDocuments {
			answer.ContextDocuments[i].Vector = nil
		}
		output, _ := json.MarshalIndent(answer, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}

	fmt.Fprintln(out, answer.Text)
	if len(answer.ContextDocuments) == 0 {
		fmt.Fprintln(out, "\n(no repository context was found for this question)")
		return nil
	}

	fmt.Fprintf(out, "\nSources:\n")
	for i, d := range answer.ContextDocuments {
		fmt.Fprintf(out, "  [%d] %s:L%d-%d\n", i+1, d.SourcePath, d.StartLine, d.EndLine)
	}
	return nil
}
