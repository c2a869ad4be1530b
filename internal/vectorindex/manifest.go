package vectorindex

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// ManifestVersion is the current on-disk schema version
	ManifestVersion = 1

	// ManifestFilename is the manifest filename inside an index directory.
	// It is written last, so its presence marks a complete index.
	ManifestFilename = "manifest.json"
)

// ErrManifestVersion indicates an index written by an incompatible version.
var ErrManifestVersion = errors.New("unsupported index manifest version")

// Manifest describes a persisted index.
type Manifest struct {
	Version        int       `json:"version"`
	BuildID        string    `json:"build_id"`
	BuiltAt        time.Time `json:"built_at"`
	Source         string    `json:"source"`
	SourceSHA256   string    `json:"source_sha256"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimensions     int       `json:"dimensions"`
	ChunkCount     int       `json:"chunk_count"`
	ChunkSize      int       `json:"chunk_size"`
	ChunkOverlap   int       `json:"chunk_overlap"`
}

// LoadManifest reads a manifest from disk.
// A missing file yields an error matching fs.ErrNotExist.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if manifest.Version != ManifestVersion {
		return nil, fmt.Errorf("%w: %d", ErrManifestVersion, manifest.Version)
	}
	if manifest.BuildID == "" {
		return nil, errors.New("manifest has no build id")
	}
	if manifest.ChunkCount < 0 || (manifest.ChunkCount > 0 && manifest.Dimensions <= 0) {
		return nil, fmt.Errorf("manifest is inconsistent: %d chunks, %d dimensions", manifest.ChunkCount, manifest.Dimensions)
	}

	return &manifest, nil
}

// ReadManifest reads the manifest of the index in dir.
func ReadManifest(dir string) (*Manifest, error) {
	return LoadManifest(filepath.Join(dir, ManifestFilename))
}

// Save writes the manifest to disk atomically.
// Uses write-to-temp + rename pattern to prevent corruption.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	// Write to temporary file first
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest temp file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, path); err != nil {
		// Clean up temp file on error
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename manifest file: %w", err)
	}

	return nil
}
