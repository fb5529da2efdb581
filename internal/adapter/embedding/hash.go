package embedding

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"

	"reporag/internal/adapter/analyzer"
)

// HashEmbedder maps text into a fixed-size vector by feature hashing word
// tokens and character trigrams. It needs no network access, so it serves
// offline use and tests; similarity reflects shared vocabulary only.
type HashEmbedder struct {
	dimension int
	tokenizer *analyzer.Tokenizer
}

func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashEmbedder{
		dimension: dimension,
		tokenizer: analyzer.NewTokenizer(),
	}
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, errors.New("cannot embed empty text")
	}

	v := make([]float32, e.dimension)
	for _, tok := range e.tokenizer.Tokenize(text) {
		e.add(v, "w:"+tok, 1)
	}

	runes := []rune(strings.ToLower(strings.Join(strings.Fields(text), " ")))
	for i := 0; i+3 <= len(runes); i++ {
		e.add(v, "c:"+string(runes[i:i+3]), 0.5)
	}
	if len(runes) < 3 {
		e.add(v, "c:"+string(runes), 0.5)
	}

	l2normalize(v)
	return v, nil
}

func (e *HashEmbedder) add(v []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(e.dimension))
	if sum>>63 == 1 {
		weight = -weight
	}
	v[idx] += weight
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) ModelName() string {
	return "hash"
}
