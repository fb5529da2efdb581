package chunker

import (
	"strings"
	"unicode/utf8"

	"reporag/internal/domain"
)

const DefaultMaxChunkSize = 1500

// LineChunker cuts file content into pieces of at most maxChars characters.
// A cut lands just after the last newline inside the window when there is
// one, otherwise exactly at the limit. Nothing is trimmed or rewritten, so
// the chunks of a file concatenate back to its content.
type LineChunker struct {
	maxChars int
}

func NewLineChunker(maxChars int) *LineChunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkSize
	}
	return &LineChunker{maxChars: maxChars}
}

func (c *LineChunker) Normalize(record domain.RawFileRecord) []domain.Chunk {
	content := record.Content
	if strings.TrimSpace(content) == "" {
		return nil
	}

	offsets := charOffsets(content)
	total := len(offsets) - 1

	var chunks []domain.Chunk
	line := 1
	for start := 0; start < total; {
		end := start + c.maxChars
		if end >= total {
			end = total
		} else if nl := lastNewline(content, offsets, start, end); nl >= 0 {
			end = nl + 1
		}

		text := content[offsets[start]:offsets[end]]
		chunks = append(chunks, domain.Chunk{
			SourcePath: record.Path,
			Index:      len(chunks),
			Text:       text,
			StartLine:  line,
			EndLine:    line + strings.Count(strings.TrimSuffix(text, "\n"), "\n"),
		})

		line += strings.Count(text, "\n")
		start = end
	}

	return chunks
}

// charOffsets returns the byte offset of every character plus len(s). An
// invalid UTF-8 byte counts as one character so no input byte is lost.
func charOffsets(s string) []int {
	offsets := make([]int, 0, len(s)+1)
	for i := 0; i < len(s); {
		offsets = append(offsets, i)
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return append(offsets, len(s))
}

// lastNewline finds the last '\n' among characters [start, end).
func lastNewline(s string, offsets []int, start, end int) int {
	for i := end - 1; i >= start; i-- {
		if s[offsets[i]] == '\n' {
			return i
		}
	}
	return -1
}
