package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenizer splits text into lowercase word tokens and estimates LLM token
// counts for prompt budgeting.
type Tokenizer struct {
	stopwords map[string]struct{}
}

func NewTokenizer() *Tokenizer {
	return &Tokenizer{stopwords: defaultStopwords()}
}

// Tokenize splits text into tokens. Identifiers are additionally broken at
// camelCase and snake_case boundaries so that "parseRepoRef" also yields
// "parse", "repo" and "ref".
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	add := func(w string) {
		w = strings.ToLower(w)
		if len(w) < 2 {
			return
		}
		if _, isStop := t.stopwords[w]; isStop {
			return
		}
		tokens = append(tokens, w)
	}

	for _, word := range words {
		add(word)
		parts := splitIdentifier(word)
		if len(parts) > 1 {
			for _, p := range parts {
				add(p)
			}
		}
	}

	return tokens
}

// CountTokens returns an approximate token count for LLM budget estimation.
// Prose averages ~1.3 tokens per word; code and symbols push closer to one
// token per 4 characters, so the larger of the two estimates is used.
func (t *Tokenizer) CountTokens(text string) int {
	words := len(splitWords(text))
	if words == 0 && strings.TrimSpace(text) == "" {
		return 0
	}
	byWords := int(float64(words) * 1.3)
	byChars := (utf8.RuneCountInString(text) + 3) / 4
	if byChars > byWords {
		return byChars
	}
	return byWords
}

// splitWords splits text into words using unicode word boundaries.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

func splitIdentifier(word string) []string {
	var parts []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			parts = append(parts, string(current))
			current = current[:0]
		}
	}

	runes := []rune(word)
	for i, r := range runes {
		switch {
		case r == '_':
			flush()
			continue
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
		case unicode.IsUpper(r) && i > 0 && i+1 < len(runes) && unicode.IsUpper(runes[i-1]) && unicode.IsLower(runes[i+1]):
			flush()
		}
		current = append(current, r)
	}
	flush()

	return parts
}

// defaultStopwords returns a set of common English stopwords.
func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other",
		"some", "such", "than", "too", "very", "just", "also",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
