package vectorindex

import (
	"errors"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sha1n/vraagbaak/internal/domain"
)

func entry(ordinal int, text string, vec ...float32) Entry {
	return Entry{
		Chunk:  domain.Chunk{Ordinal: ordinal, Source: "voorbeeld.txt", Text: text, Start: ordinal * 450},
		Vector: vec,
	}
}

func testInfo() BuildInfo {
	return BuildInfo{
		Source:         "voorbeeld.txt",
		SourceSHA256:   "abc",
		EmbeddingModel: "test",
		ChunkSize:      500,
		ChunkOverlap:   50,
	}
}

func persistAndLoad(t *testing.T, entries []Entry) (*Index, string) {
	t.Helper()

	snap, err := Build(entries)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "vector_index")
	_, err = snap.Persist(dir, testInfo())
	require.NoError(t, err)

	ix, err := Load(dir)
	require.NoError(t, err)
	t.Cleanup(func() { closeIndex(t, ix) })
	return ix, dir
}

func closeIndex(t *testing.T, ix *Index) {
	t.Helper()
	assert.NoError(t, ix.Close(), "failed to close index")
}

func TestBuild_Validation(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		wantErr error
	}{
		{"dimension mismatch", []Entry{entry(0, "a", 1, 0), entry(1, "b", 1, 0, 0)}, ErrDimensionMismatch},
		{"empty vector", []Entry{entry(0, "a")}, ErrDimensionMismatch},
		{"zero vector", []Entry{entry(0, "a", 0, 0)}, ErrZeroVector},
		{"out of order", []Entry{entry(1, "a", 1, 0)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.entries)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestBuild_Empty(t *testing.T) {
	snap, err := Build(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
	assert.Equal(t, 0, snap.Dimensions())
}

func TestPersistLoad_RoundTrip(t *testing.T) {
	entries := []Entry{
		entry(0, "Amsterdam is de hoofdstad van Nederland.", 1, 0, 0),
		entry(1, "Rotterdam heeft de grootste haven.", 0, 1, 0),
		entry(2, "Utrecht ligt in het midden.", 0, 0, 1),
	}
	ix, dir := persistAndLoad(t, entries)

	m := ix.Manifest()
	assert.Equal(t, ManifestVersion, m.Version)
	assert.NotEmpty(t, m.BuildID)
	assert.Equal(t, 3, m.ChunkCount)
	assert.Equal(t, 3, m.Dimensions)
	assert.Equal(t, "test", m.EmbeddingModel)
	assert.Equal(t, 500, m.ChunkSize)
	assert.Equal(t, 50, m.ChunkOverlap)
	assert.Equal(t, dir, ix.Dir())
	assert.Equal(t, 3, ix.Len())

	results, err := ix.Search([]float32{0, 2, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, entries[1].Chunk, results[0].Chunk)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestPersist_LeavesNoTempDirectories(t *testing.T) {
	snap, err := Build([]Entry{entry(0, "a", 1, 0)})
	require.NoError(t, err)

	parent := t.TempDir()
	dir := filepath.Join(parent, "idx")
	_, err = snap.Persist(dir, testInfo())
	require.NoError(t, err)

	names := listDir(t, parent)
	assert.Equal(t, []string{"idx"}, names)
	assert.True(t, Exists(dir))
}

func TestPersist_UnwritableParentLeavesNothing(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	snap, err := Build([]Entry{entry(0, "a", 1, 0)})
	require.NoError(t, err)

	parent := t.TempDir()
	require.NoError(t, os.Chmod(parent, 0555))
	t.Cleanup(func() { _ = os.Chmod(parent, 0755) })

	dir := filepath.Join(parent, "idx")
	_, err = snap.Persist(dir, testInfo())
	require.Error(t, err)

	assert.Empty(t, listDir(t, parent))
	assert.False(t, Exists(dir))
}

func TestReplaceDir_RestoresPreviousOnFailure(t *testing.T) {
	parent := t.TempDir()
	dst := filepath.Join(parent, "idx")
	require.NoError(t, os.MkdirAll(dst, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dst, ManifestFilename), []byte("{}"), 0644))

	err := replaceDir(filepath.Join(parent, "missing-src"), dst)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dst, ManifestFilename))
	assert.NoError(t, statErr, "previous index must be back in place")
	assert.Equal(t, []string{"idx"}, listDir(t, parent))
}

func TestPersist_ParentIsFile(t *testing.T) {
	snap, err := Build([]Entry{entry(0, "a", 1, 0)})
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err = snap.Persist(filepath.Join(file, "idx"), testInfo())
	assert.Error(t, err)
}

func TestPersist_Overwrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")

	first, err := Build([]Entry{entry(0, "oud", 1, 0)})
	require.NoError(t, err)
	m1, err := first.Persist(dir, testInfo())
	require.NoError(t, err)

	second, err := Build([]Entry{entry(0, "nieuw", 0, 1), entry(1, "meer", 1, 1)})
	require.NoError(t, err)
	m2, err := second.Persist(dir, testInfo())
	require.NoError(t, err)

	assert.NotEqual(t, m1.BuildID, m2.BuildID)

	ix, err := Load(dir)
	require.NoError(t, err)
	defer closeIndex(t, ix)

	assert.Equal(t, m2.BuildID, ix.Manifest().BuildID)
	results, err := ix.Search([]float32{0, 1}, 3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "nieuw", results[0].Chunk.Text)
	assert.Equal(t, []string{"idx"}, listDir(t, filepath.Dir(dir)))
}

func TestPersistLoad_EmptyIndex(t *testing.T) {
	ix, _ := persistAndLoad(t, nil)

	results, err := ix.Search([]float32{1, 2, 3}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_OrderingAndBounds(t *testing.T) {
	entries := []Entry{
		entry(0, "c0", 1, 0),
		entry(1, "c1", 0.6, 0.8),
		entry(2, "c2", 0, 1),
		entry(3, "c3", -1, 0),
		entry(4, "c4", 0.8, 0.6),
	}
	ix, _ := persistAndLoad(t, entries)

	results, err := ix.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "c0", results[0].Chunk.Text)
	assert.Equal(t, "c4", results[1].Chunk.Text)
	assert.Equal(t, "c1", results[2].Chunk.Text)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}

	all, err := ix.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, all, 5, "k larger than the index returns everything")

	none, err := ix.Search([]float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearch_TiesKeepDocumentOrder(t *testing.T) {
	entries := []Entry{
		entry(0, "anders", 0, 1),
		entry(1, "eerste", 1, 0),
		entry(2, "tweede", 2, 0),
		entry(3, "derde", 3, 0),
	}
	ix, _ := persistAndLoad(t, entries)

	results, err := ix.Search([]float32{5, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{results[0].Chunk.Ordinal, results[1].Chunk.Ordinal, results[2].Chunk.Ordinal})
}

func TestSearch_QueryValidation(t *testing.T) {
	ix, _ := persistAndLoad(t, []Entry{entry(0, "a", 1, 0)})

	_, err := ix.Search([]float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = ix.Search([]float32{0, 0}, 1)
	assert.ErrorIs(t, err, ErrZeroVector)
}

func TestSearch_GraphPathMatchesExactScan(t *testing.T) {
	const n = 300
	entries := make([]Entry, n)
	for i := 0; i < n; i++ {
		x := float32(i%17) + 1
		y := float32(i%13) + 1
		z := float32(i%7) + 1
		entries[i] = entry(i, "c", x, y, z)
	}
	ix, _ := persistAndLoad(t, entries)

	query := []float32{3, 1, 2}
	exact, err := ix.Search(query, 3)
	require.NoError(t, err)

	ix.exactLimit = 0
	approx, err := ix.Search(query, 3)
	require.NoError(t, err)

	require.Len(t, approx, 3)
	assert.InDelta(t, exact[0].Score, approx[0].Score, 1e-6)
}

func TestSearch_GraphPathTiesKeepDocumentOrder(t *testing.T) {
	const n, dims = 300, 8
	rng := rand.New(rand.NewPCG(1, 2))

	entries := make([]Entry, n)
	for i := range n {
		vec := make([]float32, dims)
		if i%15 == 0 {
			vec[0] = 1
		} else {
			for d := range vec {
				vec[d] = rng.Float32()*2 - 1
			}
		}
		entries[i] = entry(i, "c", vec...)
	}
	ix, _ := persistAndLoad(t, entries)
	ix.exactLimit = 0

	query := make([]float32, dims)
	query[0] = 1
	results, err := ix.Search(query, 3)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, []int{0, 15, 30}, []int{results[0].Chunk.Ordinal, results[1].Chunk.Ordinal, results[2].Chunk.Ordinal})
	for _, r := range results {
		assert.InDelta(t, 1.0, r.Score, 1e-6)
	}
}

func TestRank(t *testing.T) {
	s := []scored{{ordinal: 4, score: 0.5}, {ordinal: 2, score: 0.9}, {ordinal: 1, score: 0.5}, {ordinal: 3, score: 0.9}}
	rank(s)
	assert.Equal(t, []scored{{2, 0.9}, {3, 0.9}, {1, 0.5}, {4, 0.5}}, s)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, fs.ErrNotExist))
	})

	t.Run("corrupt manifest", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFilename), []byte("{"), 0644))
		_, err := Load(dir)
		assert.Error(t, err)
	})

	t.Run("missing graph", func(t *testing.T) {
		_, dir := persistAndLoad(t, []Entry{entry(0, "a", 1, 0)})
		require.NoError(t, os.Remove(filepath.Join(dir, GraphFilename)))
		_, err := Load(dir)
		assert.Error(t, err)
	})

	t.Run("wrong version", func(t *testing.T) {
		dir := t.TempDir()
		m := &Manifest{Version: 99, BuildID: "x"}
		require.NoError(t, m.Save(filepath.Join(dir, ManifestFilename)))
		_, err := Load(dir)
		assert.ErrorIs(t, err, ErrManifestVersion)
	})
}

func TestExistsAndRemove(t *testing.T) {
	_, dir := persistAndLoad(t, []Entry{entry(0, "a", 1, 0)})

	assert.True(t, Exists(dir))
	require.NoError(t, Remove(dir))
	assert.False(t, Exists(dir))
	assert.False(t, Exists(filepath.Join(t.TempDir(), "never")))
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".lock") {
			names = append(names, e.Name())
		}
	}
	return names
}
