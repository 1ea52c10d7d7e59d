// Package chunker splits extracted text into bounded, whitespace-aligned segments.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultTargetSize is the segment length, in characters, at which a chunk is closed.
const DefaultTargetSize = 500

// Chunk splits text into segments of whole words.
//
// Words are accumulated in order; each word adds its character (rune) count plus one
// for the separating space. Once the running length reaches targetSize the segment is
// closed. The final partial segment is always kept. Words are never split, so a
// single word longer than targetSize forms its own segment. Whitespace is
// normalized: words inside a segment are joined by single spaces.
//
// Empty or whitespace-only text yields nil. A non-positive targetSize falls back
// to DefaultTargetSize.
func Chunk(text string, targetSize int) []string {
	if targetSize <= 0 {
		targetSize = DefaultTargetSize
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	start, length := 0, 0
	for i, word := range words {
		length += utf8.RuneCountInString(word) + 1
		if length >= targetSize {
			chunks = append(chunks, strings.Join(words[start:i+1], " "))
			start, length = i+1, 0
		}
	}
	if start < len(words) {
		chunks = append(chunks, strings.Join(words[start:], " "))
	}
	return chunks
}
