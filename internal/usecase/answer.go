package usecase

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"reporag/internal/adapter/analyzer"
	"reporag/internal/domain"
	"reporag/internal/logging"
	"reporag/internal/port"
)

//go:embed templates/*.txt
var promptTemplates embed.FS

var prompts = template.Must(template.New("prompts").Funcs(template.FuncMap{
	"formatDocuments": formatDocuments,
}).ParseFS(promptTemplates, "templates/*.txt"))

// PromptData is the input of the answer templates.
type PromptData struct {
	Query     string
	Documents []domain.EmbeddedDocument
}

// AnswerUseCase builds a grounded prompt from retrieved documents and asks
// the language model to answer it.
type AnswerUseCase struct {
	llm       port.LanguageModel
	tokenizer port.Tokenizer
	budget    int // context token budget, 0 = unlimited
	logger    *zap.Logger
}

func NewAnswerUseCase(llm port.LanguageModel, tokenizer port.Tokenizer, budget int, logger *zap.Logger) *AnswerUseCase {
	if tokenizer == nil {
		tokenizer = analyzer.NewTokenizer()
	}
	return &AnswerUseCase{
		llm:       llm,
		tokenizer: tokenizer,
		budget:    budget,
		logger:    logging.OrNop(logger),
	}
}

// Answer asks the model about query using retrieved as context, in the
// order given. Documents that would overflow the token budget are left out;
// only those actually placed in the prompt are returned as context.
func (u *AnswerUseCase) Answer(ctx context.Context, query string, retrieved []domain.RetrievalResult) (*domain.Answer, error) {
	docs := u.fitBudget(retrieved)

	prompt, err := u.BuildPrompt(query, docs)
	if err != nil {
		return nil, domain.NewError(domain.ErrGeneration, "build prompt", err)
	}

	text, err := u.llm.Generate(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.NewError(domain.ErrGeneration, "generate answer", err)
	}

	u.logger.Debug("generated answer",
		zap.Int("retrieved", len(retrieved)),
		zap.Int("context_documents", len(docs)),
		zap.Int("prompt_tokens", u.tokenizer.CountTokens(prompt)))

	return &domain.Answer{
		Query:            query,
		ContextDocuments: docs,
		Text:             text,
	}, nil
}

// BuildPrompt renders the prompt for query and docs.
func (u *AnswerUseCase) BuildPrompt(query string, docs []domain.EmbeddedDocument) (string, error) {
	name := "answer.txt"
	if len(docs) == 0 {
		name = "answer_no_context.txt"
	}

	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, PromptData{Query: query, Documents: docs}); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (u *AnswerUseCase) fitBudget(retrieved []domain.RetrievalResult) []domain.EmbeddedDocument {
	docs := make([]domain.EmbeddedDocument, 0, len(retrieved))
	used := 0
	for _, r := range retrieved {
		if u.budget > 0 {
			tokens := u.tokenizer.CountTokens(formatDocument(len(docs)+1, r.Document))
			if used+tokens > u.budget {
				continue // Skip if it would exceed budget
			}
			used += tokens
		}
		docs = append(docs, r.Document)
	}
	return docs
}

func formatDocuments(docs []domain.EmbeddedDocument) string {
	var b strings.Builder
	for i, d := range docs {
		b.WriteString(formatDocument(i+1, d))
	}
	return b.String()
}

func formatDocument(n int, d domain.EmbeddedDocument) string {
	fence := "```"
	for strings.Contains(d.Text, fence) {
		fence += "`"
	}
	text := strings.TrimRight(d.Text, "\n")
	return fmt.Sprintf("### [%d] %s (lines %d-%d)\n%s\n%s\n%s\n\n", n, d.SourcePath, d.StartLine, d.EndLine, fence, text, fence)
}
