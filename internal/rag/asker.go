// Package rag answers questions over the document: it makes sure the index
// exists, retrieves the closest chunks and asks the chat model.
package rag

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sha1n/vraagbaak/internal/domain"
	"github.com/sha1n/vraagbaak/internal/embedding"
	"github.com/sha1n/vraagbaak/internal/ingest"
	"github.com/sha1n/vraagbaak/internal/llm"
	"github.com/sha1n/vraagbaak/internal/vectorindex"
)

const (
	// TopK is the number of chunks placed in the prompt.
	TopK = 3

	// DefaultBuildTimeout bounds a single index build.
	DefaultBuildTimeout = 10 * time.Minute

	// DefaultBuildLockTimeout bounds the wait for another process's build.
	DefaultBuildLockTimeout = 10 * time.Minute

	// LockSuffix is appended to the index directory to name the build lock file.
	LockSuffix = ".lock"
)

// Builder builds the index. *ingest.Pipeline implements it.
type Builder interface {
	Run(ctx context.Context) (*ingest.Result, error)
}

// Config configures an Asker.
type Config struct {
	IndexDir  string
	Builder   Builder
	Embedder  embedding.Embedder
	Completer llm.Completer

	// QueryCacheSize caches question embeddings; 0 disables the cache.
	QueryCacheSize   int
	BuildTimeout     time.Duration
	BuildLockTimeout time.Duration
}

// Answer is the outcome of one question.
type Answer struct {
	Text    string
	Sources []domain.SearchResult

	// IndexBuilt is set when answering the question required building the index.
	IndexBuilt bool
}

// Asker runs the question pipeline. It is safe for concurrent use.
type Asker struct {
	indexDir     string
	lockPath     string
	builder      Builder
	embedder     embedding.Embedder
	completer    llm.Completer
	buildTimeout time.Duration
	lockTimeout  time.Duration

	flights singleflight.Group
	builds  atomic.Int64

	mu    sync.RWMutex
	index *vectorindex.Index
}

// NewAsker creates an Asker. The index is not touched until the first question
// or an explicit Prepare.
func NewAsker(cfg Config) (*Asker, error) {
	if cfg.IndexDir == "" {
		return nil, errors.New("index directory cannot be empty")
	}
	if cfg.Builder == nil {
		return nil, errors.New("builder cannot be nil")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("embedder cannot be nil")
	}
	if cfg.Completer == nil {
		return nil, errors.New("completer cannot be nil")
	}

	embedder := cfg.Embedder
	if cfg.QueryCacheSize > 0 {
		embedder = embedding.NewCachedEmbedder(embedder, cfg.QueryCacheSize)
	}

	buildTimeout := cfg.BuildTimeout
	if buildTimeout <= 0 {
		buildTimeout = DefaultBuildTimeout
	}
	lockTimeout := cfg.BuildLockTimeout
	if lockTimeout <= 0 {
		lockTimeout = DefaultBuildLockTimeout
	}

	dir := filepath.Clean(cfg.IndexDir)
	return &Asker{
		indexDir:     dir,
		lockPath:     dir + LockSuffix,
		builder:      cfg.Builder,
		embedder:     embedder,
		completer:    cfg.Completer,
		buildTimeout: buildTimeout,
		lockTimeout:  lockTimeout,
	}, nil
}

// Ask answers a question from the indexed document.
// The index is built first when it does not exist yet.
func (a *Asker) Ask(ctx context.Context, question string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyQuestion
	}

	built, err := a.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}

	results, err := a.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	text, err := a.completer.Complete(ctx, BuildPrompt(question, results), llm.DefaultTemperature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}

	return &Answer{Text: text, Sources: results, IndexBuilt: built}, nil
}

// Prepare makes sure the index exists and is loaded, building it if needed.
func (a *Asker) Prepare(ctx context.Context) error {
	_, err := a.ensureIndex(ctx)
	return err
}

// Rebuild builds the index even when one exists and loads the result.
func (a *Asker) Rebuild(ctx context.Context) error {
	_, err := a.await(ctx, true)
	return err
}

// Builds returns the number of index builds performed by this Asker.
func (a *Asker) Builds() int64 {
	return a.builds.Load()
}

// Manifest returns the manifest of the loaded index.
func (a *Asker) Manifest() (vectorindex.Manifest, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.index == nil {
		return vectorindex.Manifest{}, false
	}
	return a.index.Manifest(), true
}

// Close releases the loaded index.
func (a *Asker) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.index == nil {
		return nil
	}
	err := a.index.Close()
	a.index = nil
	return err
}

// ensureIndex reuses the loaded index while its build id matches the one on
// disk, and otherwise builds or reloads it. It reports whether it built.
func (a *Asker) ensureIndex(ctx context.Context) (bool, error) {
	manifest, err := vectorindex.ReadManifest(a.indexDir)
	switch {
	case err == nil:
		if manifest.BuildID == a.loadedBuildID() {
			return false, nil
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return false, fmt.Errorf("%w: %w", domain.ErrIndexLoad, err)
	}

	return a.await(ctx, false)
}

// await joins or starts the refresh flight and waits for it or for ctx.
// The flight itself is detached from ctx so one impatient caller cannot
// abort a build others are waiting on.
func (a *Asker) await(ctx context.Context, force bool) (bool, error) {
	key := "load"
	if force {
		key = "rebuild"
	}

	ch := a.flights.DoChan(key, func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.buildTimeout)
		defer cancel()
		return a.refresh(buildCtx, force)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		return res.Val.(bool), nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// refresh builds the index when it is missing (or when forced) under the
// cross-process build lock, then loads whatever is on disk.
func (a *Asker) refresh(ctx context.Context, force bool) (bool, error) {
	built := false

	if force || !vectorindex.Exists(a.indexDir) {
		lock := NewFileLock(a.lockPath)
		if err := lock.LockWithContext(ctx, a.lockTimeout); err != nil {
			return false, fmt.Errorf("%w: failed to acquire build lock: %w", domain.ErrStorageWrite, err)
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				slog.Error("Failed to release build lock", "path", a.lockPath, "error", err)
			}
		}()

		// Another process may have finished a build while we waited.
		if force || !vectorindex.Exists(a.indexDir) {
			if _, err := a.builder.Run(ctx); err != nil {
				return false, err
			}
			a.builds.Add(1)
			built = true
		}
	}

	if err := a.load(); err != nil {
		return false, err
	}
	return built, nil
}

// load swaps in the index on disk unless it is already the loaded one.
func (a *Asker) load() error {
	manifest, err := vectorindex.ReadManifest(a.indexDir)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndexLoad, err)
	}
	if manifest.BuildID == a.loadedBuildID() {
		return nil
	}

	ix, err := vectorindex.Load(a.indexDir)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndexLoad, err)
	}

	a.mu.Lock()
	old := a.index
	a.index = ix
	a.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			slog.Warn("Failed to close previous index", "build_id", old.Manifest().BuildID, "error", err)
		}
	}

	m := ix.Manifest()
	slog.Info("Index loaded", "dir", a.indexDir, "build_id", m.BuildID, "chunks", m.ChunkCount, "model", m.EmbeddingModel)
	return nil
}

func (a *Asker) loadedBuildID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.index == nil {
		return ""
	}
	return a.index.Manifest().BuildID
}

// retrieve embeds the question and returns the TopK closest chunks.
func (a *Asker) retrieve(ctx context.Context, question string) ([]domain.SearchResult, error) {
	vec, err := a.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed question: %w", domain.ErrRetrieval, err)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.index == nil {
		return nil, fmt.Errorf("%w: index not loaded", domain.ErrIndexLoad)
	}
	results, err := a.index.Search(vec, TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrieval, err)
	}
	return results, nil
}
