package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestInvoke_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "llama3" {
			t.Errorf("model = %q, want llama3", req.Model)
		}
		if req.Stream {
			t.Error("stream must be disabled")
		}
		_ = json.NewEncoder(w).Encode(generateResponse{Response: `{"severity": 4}`})
	}))
	defer srv.Close()

	c := New(srv.URL, "llama3", time.Second)
	got, err := c.Invoke(context.Background(), "score this")
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if got != `{"severity": 4}` {
		t.Errorf("response = %q", got)
	}
}

func TestInvoke_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "llama3", time.Second)
	_, err := c.Invoke(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %v, want status code in message", err)
	}
}

func TestInvoke_MalformedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := New(srv.URL, "llama3", time.Second)
	if _, err := c.Invoke(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for malformed body")
	}
}
