package vectorindex

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/sha1n/vraagbaak/internal/domain"
)

const (
	// DocstoreDirname is the bleve index holding chunk text.
	DocstoreDirname = "chunks.bleve"

	// MaxBatchSize is the maximum number of chunks per bleve batch
	MaxBatchSize = 100
)

// CreateIndexMapping creates the Bleve index mapping for chunks.
func CreateIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	// Text - analyzed, stored for retrieval
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = true
	docMapping.AddFieldMappingsAt(domain.ChunkFieldText, textField)

	// Source - keyword, stored
	sourceField := bleve.NewTextFieldMapping()
	sourceField.Analyzer = keyword.Name
	sourceField.Store = true
	docMapping.AddFieldMappingsAt(domain.ChunkFieldSource, sourceField)

	ordinalField := bleve.NewNumericFieldMapping()
	ordinalField.Store = true
	docMapping.AddFieldMappingsAt(domain.ChunkFieldOrdinal, ordinalField)

	// Start - stored but not indexed
	startField := bleve.NewNumericFieldMapping()
	startField.Index = false
	startField.Store = true
	docMapping.AddFieldMappingsAt(domain.ChunkFieldStart, startField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

// writeDocstore creates a new chunk store at path and indexes all chunks.
func writeDocstore(path string, chunks []domain.Chunk) (err error) {
	index, err := bleve.New(path, CreateIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to create chunk store: %w", err)
	}
	defer func() {
		if cerr := index.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close chunk store: %w", cerr)
		}
	}()

	batch := index.NewBatch()
	for _, chunk := range chunks {
		if err := batch.Index(chunk.ID(), chunk); err != nil {
			return fmt.Errorf("failed to index chunk %d: %w", chunk.Ordinal, err)
		}

		if batch.Size() >= MaxBatchSize {
			if err := index.Batch(batch); err != nil {
				return fmt.Errorf("batch index failed: %w", err)
			}
			batch = index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("final batch index failed: %w", err)
		}
	}

	return nil
}

// docstore reads chunks back from a persisted chunk store.
type docstore struct {
	index bleve.Index
}

// openDocstore opens an existing chunk store read-only.
func openDocstore(path string) (*docstore, error) {
	index, err := bleve.OpenUsing(path, map[string]interface{}{"read_only": true})
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk store: %w", err)
	}
	return &docstore{index: index}, nil
}

// count returns the number of stored chunks.
func (d *docstore) count() (uint64, error) {
	return d.index.DocCount()
}

// fetch returns the chunks with the given ordinals, keyed by ordinal.
func (d *docstore) fetch(ordinals []int) (map[int]domain.Chunk, error) {
	if len(ordinals) == 0 {
		return map[int]domain.Chunk{}, nil
	}

	ids := make([]string, len(ordinals))
	byID := make(map[string]int, len(ordinals))
	for i, ordinal := range ordinals {
		ids[i] = domain.ChunkID(ordinal)
		byID[ids[i]] = ordinal
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery(ids), len(ids), 0, false)
	req.Fields = []string{domain.ChunkFieldText, domain.ChunkFieldSource, domain.ChunkFieldStart}

	res, err := d.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("chunk lookup failed: %w", err)
	}

	chunks := make(map[int]domain.Chunk, len(res.Hits))
	for _, hit := range res.Hits {
		ordinal, ok := byID[hit.ID]
		if !ok {
			continue
		}
		chunk := domain.Chunk{Ordinal: ordinal}
		chunk.Text, _ = hit.Fields[domain.ChunkFieldText].(string)
		chunk.Source, _ = hit.Fields[domain.ChunkFieldSource].(string)
		if start, ok := hit.Fields[domain.ChunkFieldStart].(float64); ok {
			chunk.Start = int(start)
		}
		chunks[ordinal] = chunk
	}

	for _, ordinal := range ordinals {
		if _, ok := chunks[ordinal]; !ok {
			return nil, fmt.Errorf("chunk %d missing from chunk store", ordinal)
		}
	}

	return chunks, nil
}

func (d *docstore) close() error {
	return d.index.Close()
}
