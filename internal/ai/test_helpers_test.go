package ai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// noBackoff removes the wait between retries for the duration of a test.
func noBackoff(t *testing.T) {
	t.Helper()

	saved := backoffFor
	backoffFor = func(error, int) time.Duration { return 0 }
	t.Cleanup(func() { backoffFor = saved })
}

// newJSONServer starts a test server that answers every request with the
// given status and JSON body, counting calls.
func newJSONServer(t *testing.T, status int, body interface{}) (*httptest.Server, *int32) {
	t.Helper()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// verifyOllamaGenerateRequest decodes an Ollama generate request and checks
// the fields every call must carry.
func verifyOllamaGenerateRequest(t *testing.T, r *http.Request, w http.ResponseWriter) *ollamaGenerateRequest {
	t.Helper()

	if r.URL.Path != "/api/generate" {
		t.Errorf("path = %s, want /api/generate", r.URL.Path)
	}

	var req ollamaGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Errorf("failed to decode request: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return nil
	}

	if req.Model == "" {
		t.Error("model is empty")
	}
	if req.Stream {
		t.Error("stream should be false")
	}
	return &req
}

// verifySummarizerErrorKind checks err is a *SummarizerError of the given kind.
func verifySummarizerErrorKind(t *testing.T, err error, want ErrorKind) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := ErrorKindOf(err); got != want {
		t.Errorf("error kind = %s, want %s (err: %v)", got, want, err)
	}
}
