// Package retrieval implements the document corpus: page-level extraction,
// fixed-size overlapping chunking, embedding, and in-memory nearest-neighbor
// search. The index is built once at startup and is read-only afterwards,
// safe for concurrent use by all sessions.
package retrieval

import "strings"

// Chunk is an immutable slice of a source document.
type Chunk struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Page   int    `json:"page"`
}

// Splitter produces fixed-size overlapping chunks from page text.
type Splitter struct {
	chunkSize int
	overlap   int
}

// NewSplitter creates a splitter. chunkSize is raised to at least 1 and
// overlap is clamped into [0, chunkSize) so Split always advances.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}
}

// Split cuts text into chunks of at most chunkSize runes, each overlapping
// the previous by overlap runes. Whitespace-only chunks are dropped.
func (s *Splitter) Split(text, source string, page int) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.chunkSize - s.overlap
	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, Chunk{Text: piece, Source: source, Page: page})
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
