package port

import "reporag/internal/domain"

// Normalizer splits a file into chunks that concatenate back to its content.
type Normalizer interface {
	Normalize(record domain.RawFileRecord) []domain.Chunk
}
