package store

import (
	"math"
	"sort"

	"reporag/internal/domain"
)

// CosineSimilarity calculates the cosine similarity between two vectors.
// Vectors of different length or zero norm score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Ranker collects scored documents and keeps the best k. Equal scores are
// ordered by document ID so results are stable across runs.
type Ranker struct {
	k       int
	limit   int
	results []domain.RetrievalResult
}

const rankerSlack = 64

func NewRanker(k int) *Ranker {
	if k < 0 {
		k = 0
	}
	// Compact once the buffer is well past k; a k too large for that simply
	// never compacts before Results.
	limit := math.MaxInt
	if k <= (math.MaxInt-rankerSlack)/4 {
		limit = 4*k + rankerSlack
	}
	return &Ranker{k: k, limit: limit}
}

func (r *Ranker) Add(doc domain.EmbeddedDocument, score float64) {
	r.results = append(r.results, domain.RetrievalResult{Document: doc, Score: score})
	if len(r.results) >= r.limit {
		r.compact()
	}
}

func (r *Ranker) Results() []domain.RetrievalResult {
	r.compact()
	return r.results
}

func (r *Ranker) compact() {
	sort.Slice(r.results, func(i, j int) bool {
		return Less(r.results[i], r.results[j])
	})
	if len(r.results) > r.k {
		r.results = r.results[:r.k]
	}
}

// Less reports whether a ranks ahead of b.
func Less(a, b domain.RetrievalResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Document.ID < b.Document.ID
}
