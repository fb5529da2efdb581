package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultSystemPrompt = "You are a helpful assistant."

// Options tunes an OpenAIClient. Zero values fall back to sensible defaults.
type Options struct {
	BaseURL      string
	Temperature  float32
	MaxTokens    int
	MaxRetries   int
	RetryBackoff time.Duration
	SystemPrompt string

	// OnRetry is called before each retry with the attempt number (1-based)
	// and the error that caused it.
	OnRetry func(attempt int, err error)
}

// OpenAIClient generates completions through the chat completions API.
// Transient failures (rate limiting, 5xx, network errors) are retried with
// exponential backoff; anything else is returned at once.
type OpenAIClient struct {
	client *openai.Client
	model  string
	opts   Options
}

func NewOpenAIClient(apiKeyEnv, model string, opts Options) (*OpenAIClient, error) {
	key := os.Getenv(apiKeyEnv)
	if key == "" && opts.BaseURL == "" {
		return nil, fmt.Errorf("%s environment variable not set", apiKeyEnv)
	}

	cfg := openai.DefaultConfig(key)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		opts:   opts,
	}, nil
}

func (c *OpenAIClient) ModelName() string {
	return c.model
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.opts.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	}

	var lastErr error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if c.opts.OnRetry != nil {
				c.opts.OnRetry(attempt, lastErr)
			}
			delay := c.opts.RetryBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", errors.New("no choices returned from API")
			}
			return resp.Choices[0].Message.Content, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isTransient(err) {
			return "", fmt.Errorf("chat completion failed: %w", err)
		}
	}

	return "", fmt.Errorf("chat completion failed after %d attempts: %w", c.opts.MaxRetries+1, lastErr)
}

// isTransient reports whether a failed call is worth repeating.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	// Transport-level failures carry no status code.
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
