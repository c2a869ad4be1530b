package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashDimensions is the vector size of the hash embedder.
const DefaultHashDimensions = 256

// HashEmbedder generates embeddings by hashing word tokens into buckets.
// It needs no network and no model, and is deterministic, but only captures
// lexical overlap.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a hash embedder producing vectors of the given size.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultHashDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the vector for a single text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.Vector(text), nil
}

// EmbedBatch returns one vector per text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = e.Vector(text)
	}
	return vectors, nil
}

// Vector computes the embedding of text. Texts without any word token map to
// a fixed unit vector so every vector stays comparable under cosine similarity.
func (e *HashEmbedder) Vector(text string) []float32 {
	vector := make([]float32, e.dimensions)

	tokens := tokenize(text)
	if len(tokens) == 0 {
		vector[0] = 1
		return vector
	}

	for _, token := range tokens {
		vector[bucket(token, e.dimensions)]++
	}

	normalize(vector)
	return vector
}

// ModelName identifies the embedder and its vector size.
func (e *HashEmbedder) ModelName() string {
	return fmt.Sprintf("local/hash-%d", e.dimensions)
}

// tokenize lower-cases text and splits it on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func bucket(token string, dimensions int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return int(h.Sum32() % uint32(dimensions))
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
