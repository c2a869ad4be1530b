package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(64)

	a, err := e.Embed(context.Background(), "Wat is de hoofdstad van Nederland?")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "Wat is de hoofdstad van Nederland?")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestHashEmbedder_UnitLength(t *testing.T) {
	e := NewHashEmbedder(0)

	for _, text := range []string{"Amsterdam", "", "!!!", "een twee drie een"} {
		v := e.Vector(text)
		require.Len(t, v, DefaultHashDimensions)

		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, sum, 1e-5, "text %q", text)
	}
}

func TestHashEmbedder_LexicalSimilarity(t *testing.T) {
	e := NewHashEmbedder(256)
	q := e.Vector("Wat is de hoofdstad van Nederland?")
	related := e.Vector("Amsterdam is de hoofdstad van Nederland.")
	unrelated := e.Vector("Tulpen bloeien in april.")

	assert.Greater(t, cosine(q, related), cosine(q, unrelated))
}

func TestHashEmbedder_CaseAndPunctuationInsensitive(t *testing.T) {
	e := NewHashEmbedder(128)

	assert.Equal(t, e.Vector("Hoofdstad, Nederland!"), e.Vector("hoofdstad nederland"))
}

func TestHashEmbedder_EmbedBatch(t *testing.T) {
	e := NewHashEmbedder(32)
	texts := []string{"een", "twee", "drie"}

	vectors, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i, text := range texts {
		assert.Equal(t, e.Vector(text), vectors[i])
	}
}

func TestHashEmbedder_CancelledContext(t *testing.T) {
	e := NewHashEmbedder(32)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Embed(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = e.EmbedBatch(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHashEmbedder_ModelName(t *testing.T) {
	assert.Equal(t, "local/hash-64", NewHashEmbedder(64).ModelName())
}
