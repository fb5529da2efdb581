package port

import "context"

// LanguageModel generates a completion for a single prompt.
type LanguageModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
