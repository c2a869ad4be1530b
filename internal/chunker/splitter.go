// Package chunker splits a document into fixed-size overlapping windows.
package chunker

import (
	"strings"

	"github.com/sha1n/vraagbaak/internal/domain"
)

const (
	// DefaultChunkSize is the default number of runes per chunk.
	DefaultChunkSize = 500

	// DefaultChunkOverlap is the default number of runes shared by adjacent chunks.
	DefaultChunkOverlap = 50
)

// Splitter cuts document text into windows of at most chunkSize runes.
// Adjacent windows share exactly overlap runes.
type Splitter struct {
	chunkSize int
	overlap   int
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithChunkSize sets the chunk size in runes.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between adjacent chunks in runes.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// NewSplitter creates a splitter with the given options.
func NewSplitter(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(s)
	}

	// The window must advance
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}

	return s
}

// ChunkSize returns the configured chunk size in runes.
func (s *Splitter) ChunkSize() int {
	return s.chunkSize
}

// Overlap returns the configured overlap in runes.
func (s *Splitter) Overlap() int {
	return s.overlap
}

// Split cuts the document into chunks in document order.
// Every chunk except the last is exactly ChunkSize runes long. The last chunk
// ends at the end of the document and is never contained in its predecessor.
// Blank documents produce no chunks.
func (s *Splitter) Split(doc domain.Document) []domain.Chunk {
	if strings.TrimSpace(doc.Content) == "" {
		return nil
	}

	runes := []rune(doc.Content)
	n := len(runes)
	step := s.chunkSize - s.overlap

	chunks := make([]domain.Chunk, 0, n/step+1)
	for start := 0; ; start += step {
		end := min(start+s.chunkSize, n)
		chunks = append(chunks, domain.Chunk{
			Ordinal: len(chunks),
			Source:  doc.Source,
			Text:    string(runes[start:end]),
			Start:   start,
		})
		if end == n {
			break
		}
	}

	return chunks
}
