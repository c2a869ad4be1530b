package domain

import "fmt"

// Document is the single source text the index is built from.
type Document struct {
	// Source is the path the document was read from.
	Source string `json:"source"`

	// Content is the full document text.
	Content string `json:"content"`
}

// Chunk is a contiguous window of a Document.
// It is the unit that gets embedded, stored in the index and retrieved as context.
type Chunk struct {
	// Ordinal is the position of the chunk in document order, starting at 0.
	Ordinal int `json:"ordinal"`

	// Source is the path of the document the chunk was cut from.
	Source string `json:"source"`

	// Text is the chunk content.
	Text string `json:"text"`

	// Start is the offset of the chunk in the document, in runes.
	Start int `json:"start"`
}

// ID returns the stable document ID of the chunk in the chunk store.
func (c Chunk) ID() string {
	return ChunkID(c.Ordinal)
}

// ChunkID formats the chunk store document ID for an ordinal.
// Zero padding keeps lexical and document order aligned.
func ChunkID(ordinal int) string {
	return fmt.Sprintf("chunk-%08d", ordinal)
}

// SearchResult is a retrieved chunk with its similarity to the query.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}

// Bleve field name constants for consistent field references in queries and mappings.
const (
	ChunkFieldOrdinal = "ordinal"
	ChunkFieldSource  = "source"
	ChunkFieldText    = "text"
	ChunkFieldStart   = "start"
)
