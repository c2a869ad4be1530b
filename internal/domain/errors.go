package domain

import "errors"

// Failure kinds of the ask pipeline. Stages wrap their cause with one of these
// so callers can tell them apart with errors.Is.
var (
	// ErrSourceNotFound indicates the source document is missing or unreadable.
	ErrSourceNotFound = errors.New("source document not found")

	// ErrEmbeddingService indicates the embedding service failed while building the index.
	ErrEmbeddingService = errors.New("embedding service failed")

	// ErrStorageWrite indicates the index could not be persisted.
	ErrStorageWrite = errors.New("failed to write index")

	// ErrIndexLoad indicates the persisted index is absent, corrupt or unreadable.
	ErrIndexLoad = errors.New("failed to load index")

	// ErrRetrieval indicates the question could not be embedded or searched.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeneration indicates the chat model failed to produce an answer.
	ErrGeneration = errors.New("answer generation failed")

	// ErrEmptyQuestion indicates a missing or blank question.
	ErrEmptyQuestion = errors.New("question cannot be empty")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrEmptyQuestion, "empty_question"},
	{ErrSourceNotFound, "source_not_found"},
	{ErrEmbeddingService, "embedding_service"},
	{ErrStorageWrite, "storage_write"},
	{ErrIndexLoad, "index_load"},
	{ErrRetrieval, "retrieval"},
	{ErrGeneration, "generation"},
}

// ErrorKind returns a short label for the failure kind carried by err,
// "unknown" when err carries none, or "" for a nil error.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "unknown"
}
