package embedding

import (
	"fmt"

	"reporag/config"
	"reporag/internal/port"
)

// Provider is an embedding backend that can describe itself.
type Provider interface {
	port.EmbeddingProvider
	ModelName() string
	// Dimension is the enforced vector size, 0 when the model decides.
	Dimension() int
}

// New builds the embedder named by cfg.Provider.
func New(cfg config.EmbeddingConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		e, err := NewOpenAIEmbedder(cfg.APIKeyEnv, cfg.Model, cfg.BaseURL, cfg.Dimension)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		return e, nil
	case "hash":
		return NewHashEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
