package vectorindex

import (
	"bufio"
	"fmt"
	"math"
	"os"

	"github.com/coder/hnsw"
)

// GraphFilename is the exported HNSW graph inside an index directory.
const GraphFilename = "vectors.hnsw"

// HNSW parameters
const (
	graphM        = 16
	graphEfSearch = 20
	graphMl       = 0.25
)

// newGraph creates an empty cosine graph keyed by chunk ordinal.
func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = graphM
	g.EfSearch = graphEfSearch
	g.Ml = graphMl
	return g
}

// exportGraph writes the graph to path.
func exportGraph(g *hnsw.Graph[uint64], path string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create graph file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close graph file: %w", cerr)
		}
	}()

	w := bufio.NewWriter(file)
	if err := g.Export(w); err != nil {
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush graph: %w", err)
	}
	return file.Sync()
}

// importGraph reads a graph written by exportGraph.
func importGraph(path string) (*hnsw.Graph[uint64], error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph file: %w", err)
	}
	defer func() { _ = file.Close() }()

	g := newGraph()
	// Import needs an io.ByteReader
	if err := g.Import(bufio.NewReader(file)); err != nil {
		return nil, fmt.Errorf("failed to import graph: %w", err)
	}
	return g, nil
}

// normalized returns a unit-length copy of v, or false for a zero vector.
func normalized(v []float32) ([]float32, bool) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, false
	}

	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, true
}

// dot is the cosine similarity of two unit vectors.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
