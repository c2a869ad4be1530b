package azureopenai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// FakeServer is an in-process stand-in for an Azure OpenAI resource.
// This is exported for use in integration tests.
type FakeServer struct {
	*httptest.Server

	// APIKey is the key requests must carry.
	APIKey string

	embed  func(text string) []float32
	answer func(prompt string) string

	mu             sync.Mutex
	embeddingCalls int
	embeddedTexts  int
	prompts        []string
	temperatures   []float64
	failEmbeddings bool
	failChat       bool
}

// NewFakeServer starts a fake resource. embed produces the vector for a text;
// answer produces the chat reply for a prompt.
func NewFakeServer(t testing.TB, embed func(string) []float32, answer func(string) string) *FakeServer {
	t.Helper()

	f := &FakeServer{
		APIKey: "test-key",
		embed:  embed,
		answer: answer,
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)

	return f
}

// Config returns a client configuration pointing at the fake.
func (f *FakeServer) Config() Config {
	return Config{
		Endpoint:   f.URL,
		APIKey:     f.APIKey,
		APIVersion: DefaultAPIVersion,
	}
}

// FailEmbeddings makes every embeddings call fail with status 500.
func (f *FakeServer) FailEmbeddings(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failEmbeddings = fail
}

// FailChat makes every chat completions call fail with status 500.
func (f *FakeServer) FailChat(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failChat = fail
}

// EmbeddingCalls returns the number of embeddings requests served.
func (f *FakeServer) EmbeddingCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embeddingCalls
}

// EmbeddedTexts returns the total number of inputs embedded.
func (f *FakeServer) EmbeddedTexts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embeddedTexts
}

// Prompts returns the prompts received by the chat endpoint.
func (f *FakeServer) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// Temperatures returns the temperatures received by the chat endpoint.
func (f *FakeServer) Temperatures() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.temperatures...)
}

func (f *FakeServer) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("api-key") != f.APIKey {
		writeFakeError(w, http.StatusUnauthorized, "401", "Access denied due to invalid subscription key.")
		return
	}
	if r.URL.Query().Get("api-version") == "" {
		writeFakeError(w, http.StatusBadRequest, "404", "Missing api-version.")
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/embeddings"):
		f.serveEmbeddings(w, r)
	case strings.HasSuffix(r.URL.Path, "/chat/completions"):
		f.serveChat(w, r)
	default:
		writeFakeError(w, http.StatusNotFound, "404", "Resource not found")
	}
}

func (f *FakeServer) serveEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req embeddingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFakeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	f.mu.Lock()
	f.embeddingCalls++
	fail := f.failEmbeddings
	if !fail {
		f.embeddedTexts += len(req.Input)
	}
	f.mu.Unlock()

	if fail {
		writeFakeError(w, http.StatusInternalServerError, "server_error", "embeddings unavailable")
		return
	}

	type item struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	}
	data := make([]item, len(req.Input))
	// Reverse order to exercise index-based reordering in the client.
	for i := range req.Input {
		j := len(req.Input) - 1 - i
		data[i] = item{Object: "embedding", Index: j, Embedding: f.embed(req.Input[j])}
	}

	writeFakeJSON(w, map[string]any{"object": "list", "data": data})
}

func (f *FakeServer) serveChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFakeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var prompt string
	if len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].Content
	}

	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.temperatures = append(f.temperatures, req.Temperature)
	fail := f.failChat
	f.mu.Unlock()

	if fail {
		writeFakeError(w, http.StatusInternalServerError, "server_error", "chat unavailable")
		return
	}

	writeFakeJSON(w, map[string]any{
		"object": "chat.completion",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       Message{Role: "assistant", Content: f.answer(prompt)},
		}},
	})
}

func writeFakeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeFakeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
