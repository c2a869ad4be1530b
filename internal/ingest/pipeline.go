// Package ingest builds the vector index from the source document.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/sha1n/vraagbaak/internal/chunker"
	"github.com/sha1n/vraagbaak/internal/domain"
	"github.com/sha1n/vraagbaak/internal/embedding"
	"github.com/sha1n/vraagbaak/internal/vectorindex"
)

// DefaultBatchSize is the number of chunks sent per embedding request.
const DefaultBatchSize = 16

// Config configures a Pipeline.
type Config struct {
	SourcePath string
	IndexDir   string
	Splitter   *chunker.Splitter
	Embedder   embedding.Embedder
	BatchSize  int
}

// Pipeline reads the source document, chunks and embeds it, and persists the index.
type Pipeline struct {
	sourcePath string
	indexDir   string
	splitter   *chunker.Splitter
	embedder   embedding.Embedder
	batchSize  int
}

// Result summarises a completed build.
type Result struct {
	Manifest *vectorindex.Manifest
	Chunks   int
	Duration time.Duration
}

// NewPipeline creates a pipeline. A nil splitter uses the default chunk size and overlap.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.SourcePath == "" {
		return nil, errors.New("source path cannot be empty")
	}
	if cfg.IndexDir == "" {
		return nil, errors.New("index directory cannot be empty")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("embedder cannot be nil")
	}

	splitter := cfg.Splitter
	if splitter == nil {
		splitter = chunker.NewSplitter()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Pipeline{
		sourcePath: cfg.SourcePath,
		indexDir:   cfg.IndexDir,
		splitter:   splitter,
		embedder:   cfg.Embedder,
		batchSize:  batchSize,
	}, nil
}

// IndexDir returns the directory the pipeline writes to.
func (p *Pipeline) IndexDir() string {
	return p.indexDir
}

// Run builds the index, replacing any existing one. On failure the previous
// index, if any, is left untouched and no partial index is written.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	doc, digest, err := p.load()
	if err != nil {
		return nil, err
	}

	chunks := p.splitter.Split(doc)
	slog.Info("Building index", "source", p.sourcePath, "chunks", len(chunks), "model", p.embedder.ModelName())

	entries, err := p.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}

	snapshot, err := vectorindex.Build(entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
	}

	manifest, err := snapshot.Persist(p.indexDir, vectorindex.BuildInfo{
		Source:         p.sourcePath,
		SourceSHA256:   digest,
		EmbeddingModel: p.embedder.ModelName(),
		ChunkSize:      p.splitter.ChunkSize(),
		ChunkOverlap:   p.splitter.Overlap(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}

	result := &Result{
		Manifest: manifest,
		Chunks:   len(chunks),
		Duration: time.Since(start),
	}
	slog.Info("Index built", "dir", p.indexDir, "build_id", manifest.BuildID, "chunks", result.Chunks, "duration", result.Duration)

	return result, nil
}

// load reads the source document and its digest.
func (p *Pipeline) load() (domain.Document, string, error) {
	data, err := os.ReadFile(p.sourcePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Document{}, "", fmt.Errorf("%w: %s", domain.ErrSourceNotFound, p.sourcePath)
		}
		return domain.Document{}, "", fmt.Errorf("%w: %w", domain.ErrSourceNotFound, err)
	}

	sum := sha256.Sum256(data)
	return domain.Document{Source: p.sourcePath, Content: string(data)}, hex.EncodeToString(sum[:]), nil
}

// embed embeds chunks in batches, pairing every chunk with its vector.
func (p *Pipeline) embed(ctx context.Context, chunks []domain.Chunk) ([]vectorindex.Entry, error) {
	entries := make([]vectorindex.Entry, 0, len(chunks))

	for start := 0; start < len(chunks); start += p.batchSize {
		end := min(start+p.batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("%w: expected %d vectors, got %d", domain.ErrEmbeddingService, len(batch), len(vectors))
		}

		for i, c := range batch {
			if len(vectors[i]) == 0 {
				return nil, fmt.Errorf("%w: empty vector for chunk %d", domain.ErrEmbeddingService, c.Ordinal)
			}
			entries = append(entries, vectorindex.Entry{Chunk: c, Vector: vectors[i]})
		}
	}

	return entries, nil
}
