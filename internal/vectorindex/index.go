// Package vectorindex stores embedded chunks on disk and answers
// nearest-neighbour queries over them.
//
// An index directory holds a manifest, an HNSW graph of the chunk vectors and
// a bleve store of the chunk text. Directories are only ever written whole:
// Persist builds a sibling directory and renames it into place.
package vectorindex

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/google/uuid"
	"github.com/sha1n/vraagbaak/internal/domain"
)

const (
	// ExactSearchLimit is the index size up to which searches scan every vector.
	ExactSearchLimit = 2048

	// CandidateFactor widens graph searches on larger indexes before exact re-scoring.
	CandidateFactor = 8

	// MinCandidates is the smallest candidate set fetched from the graph.
	MinCandidates = 64
)

var (
	// ErrDimensionMismatch indicates vectors of differing sizes.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrZeroVector indicates a vector with no direction.
	ErrZeroVector = errors.New("zero vector")
)

// Entry pairs a chunk with its embedding.
type Entry struct {
	Chunk  domain.Chunk
	Vector []float32
}

// BuildInfo carries provenance recorded in the manifest.
type BuildInfo struct {
	Source         string
	SourceSHA256   string
	EmbeddingModel string
	ChunkSize      int
	ChunkOverlap   int
}

// Snapshot is a built, not yet persisted index.
type Snapshot struct {
	chunks     []domain.Chunk
	graph      *hnsw.Graph[uint64]
	dimensions int
}

// Build validates the entries and builds the vector graph.
// Entries must be in document order with ordinals 0..n-1.
func Build(entries []Entry) (*Snapshot, error) {
	s := &Snapshot{
		chunks: make([]domain.Chunk, len(entries)),
		graph:  newGraph(),
	}

	for i, e := range entries {
		if e.Chunk.Ordinal != i {
			return nil, fmt.Errorf("entry %d has ordinal %d", i, e.Chunk.Ordinal)
		}
		if i == 0 {
			s.dimensions = len(e.Vector)
		}
		if len(e.Vector) == 0 || len(e.Vector) != s.dimensions {
			return nil, fmt.Errorf("%w: entry %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(e.Vector), s.dimensions)
		}

		vec, ok := normalized(e.Vector)
		if !ok {
			return nil, fmt.Errorf("%w at entry %d", ErrZeroVector, i)
		}

		s.chunks[i] = e.Chunk
		s.graph.Add(hnsw.MakeNode(uint64(i), vec))
	}

	return s, nil
}

// Len returns the number of chunks in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.chunks)
}

// Dimensions returns the vector size, 0 for an empty snapshot.
func (s *Snapshot) Dimensions() int {
	return s.dimensions
}

// Persist writes the snapshot to dir, replacing any index already there.
// Nothing is left behind under dir's parent when it fails.
func (s *Snapshot) Persist(dir string, info BuildInfo) (manifest *Manifest, err error) {
	dir = filepath.Clean(dir)
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index parent directory: %w", err)
	}

	buildID := uuid.NewString()
	tmp := filepath.Join(parent, "."+filepath.Base(dir)+".build-"+buildID)
	if err := os.Mkdir(tmp, 0755); err != nil {
		return nil, fmt.Errorf("failed to create build directory: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(tmp)
		}
	}()

	if err := writeDocstore(filepath.Join(tmp, DocstoreDirname), s.chunks); err != nil {
		return nil, err
	}

	if s.Len() > 0 {
		if err := exportGraph(s.graph, filepath.Join(tmp, GraphFilename)); err != nil {
			return nil, err
		}
	}

	manifest = &Manifest{
		Version:        ManifestVersion,
		BuildID:        buildID,
		BuiltAt:        time.Now().UTC(),
		Source:         info.Source,
		SourceSHA256:   info.SourceSHA256,
		EmbeddingModel: info.EmbeddingModel,
		Dimensions:     s.dimensions,
		ChunkCount:     s.Len(),
		ChunkSize:      info.ChunkSize,
		ChunkOverlap:   info.ChunkOverlap,
	}
	if err := manifest.Save(filepath.Join(tmp, ManifestFilename)); err != nil {
		return nil, err
	}

	if err := replaceDir(tmp, dir); err != nil {
		return nil, err
	}

	return manifest, nil
}

// replaceDir moves src to dst, swapping out an existing dst.
func replaceDir(src, dst string) error {
	old := src + ".old"
	hadOld := false

	if _, err := os.Stat(dst); err == nil {
		if err := os.Rename(dst, old); err != nil {
			return fmt.Errorf("failed to move previous index aside: %w", err)
		}
		hadOld = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat index directory: %w", err)
	}

	if err := os.Rename(src, dst); err != nil {
		if hadOld {
			_ = os.Rename(old, dst)
		}
		return fmt.Errorf("failed to move index into place: %w", err)
	}

	if hadOld {
		_ = os.RemoveAll(old)
	}
	return nil
}

// Exists reports whether dir holds a complete index.
func Exists(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ManifestFilename))
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes the index in dir.
func Remove(dir string) error {
	return os.RemoveAll(dir)
}

// Index is a loaded, read-only index.
// It is safe for concurrent use.
type Index struct {
	dir        string
	manifest   Manifest
	docs       *docstore
	exactLimit int

	mu    sync.Mutex
	graph *hnsw.Graph[uint64]
}

// Load opens the index in dir.
func Load(dir string) (*Index, error) {
	manifest, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}

	graph := newGraph()
	if manifest.ChunkCount > 0 {
		graph, err = importGraph(filepath.Join(dir, GraphFilename))
		if err != nil {
			return nil, err
		}
	}
	if graph.Len() != manifest.ChunkCount {
		return nil, fmt.Errorf("graph holds %d vectors, manifest lists %d chunks", graph.Len(), manifest.ChunkCount)
	}

	docs, err := openDocstore(filepath.Join(dir, DocstoreDirname))
	if err != nil {
		return nil, err
	}

	count, err := docs.count()
	if err != nil {
		_ = docs.close()
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	if count != uint64(manifest.ChunkCount) {
		_ = docs.close()
		return nil, fmt.Errorf("chunk store holds %d chunks, manifest lists %d", count, manifest.ChunkCount)
	}

	return &Index{
		dir:        dir,
		manifest:   *manifest,
		docs:       docs,
		exactLimit: ExactSearchLimit,
		graph:      graph,
	}, nil
}

// Manifest returns the manifest the index was loaded with.
func (ix *Index) Manifest() Manifest {
	return ix.manifest
}

// Dir returns the directory the index was loaded from.
func (ix *Index) Dir() string {
	return ix.dir
}

// Len returns the number of chunks in the index.
func (ix *Index) Len() int {
	return ix.manifest.ChunkCount
}

type scored struct {
	ordinal int
	score   float64
}

// Search returns up to k chunks most similar to query by cosine similarity,
// highest score first. Equal scores keep document order.
func (ix *Index) Search(query []float32, k int) ([]domain.SearchResult, error) {
	if k <= 0 || ix.Len() == 0 {
		return []domain.SearchResult{}, nil
	}
	if len(query) != ix.manifest.Dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), ix.manifest.Dimensions)
	}

	q, ok := normalized(query)
	if !ok {
		return nil, ErrZeroVector
	}

	candidates, err := ix.candidates(q, k)
	if err != nil {
		return nil, err
	}
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	ordinals := make([]int, len(candidates))
	for i, c := range candidates {
		ordinals[i] = c.ordinal
	}
	chunks, err := ix.docs.fetch(ordinals)
	if err != nil {
		return nil, err
	}

	results := make([]domain.SearchResult, len(candidates))
	for i, c := range candidates {
		results[i] = domain.SearchResult{Chunk: chunks[c.ordinal], Score: float32(c.score)}
	}
	return results, nil
}

// candidates returns scored vectors ranked by score, then ordinal. Small
// indexes are scanned in full. Large ones score a widened graph neighbourhood,
// falling back to a full scan when a tie straddles the top k, since the graph
// returns an arbitrary subset of equally close vectors.
func (ix *Index) candidates(q []float32, k int) ([]scored, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	n := ix.graph.Len()
	if n <= ix.exactLimit {
		return ix.scan(q, n)
	}

	want := min(max(k*CandidateFactor, MinCandidates), n)
	ix.graph.EfSearch = max(want, graphEfSearch)
	nodes := ix.graph.Search(q, want)

	out := make([]scored, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, scored{ordinal: int(node.Key), score: dot(q, node.Value)})
	}
	rank(out)

	if len(out) > k && out[k-1].score == out[k].score {
		return ix.scan(q, n)
	}
	return out, nil
}

// scan scores all n vectors. The caller holds ix.mu.
func (ix *Index) scan(q []float32, n int) ([]scored, error) {
	out := make([]scored, 0, n)
	for ordinal := 0; ordinal < n; ordinal++ {
		vec, ok := ix.graph.Lookup(uint64(ordinal))
		if !ok {
			return nil, fmt.Errorf("vector %d missing from graph", ordinal)
		}
		out = append(out, scored{ordinal: ordinal, score: dot(q, vec)})
	}
	rank(out)
	return out, nil
}

// rank orders by score descending, then ordinal ascending.
func rank(s []scored) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].score != s[j].score {
			return s[i].score > s[j].score
		}
		return s[i].ordinal < s[j].ordinal
	})
}

// Close releases the chunk store.
func (ix *Index) Close() error {
	return ix.docs.close()
}
