package openrouter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestNewClientRequiresKey(t *testing.T) {
	t.Parallel()

	if c := NewClient(Config{APIKey: "  "}); c != nil {
		t.Fatal("expected nil client without api key")
	}
}

func TestPreflight(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		paths   []string
		headers []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		headers = append(headers, r.Header.Get("X-Title"))
		mu.Unlock()

		if strings.HasSuffix(r.URL.Path, "/missing") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"message":"model not found"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"openai/gpt-4o-mini","object":"model","created":1,"owned_by":"openai"}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL + "/", SiteName: "travel"})
	if client == nil {
		t.Fatal("expected client")
	}

	if err := Preflight(context.Background(), client, "gpt-4o-mini", "gpt-4o-mini", ""); err != nil {
		t.Fatalf("Preflight() error = %v", err)
	}
	mu.Lock()
	if len(paths) != 1 || paths[0] != "/models/gpt-4o-mini" {
		t.Fatalf("expected one deduplicated lookup, got %v", paths)
	}
	if headers[0] != "travel" {
		t.Fatalf("expected X-Title header, got %q", headers[0])
	}
	mu.Unlock()

	if err := Preflight(context.Background(), client, "missing"); err == nil {
		t.Fatal("expected error for unknown model")
	}
}

func TestPreflightNilClient(t *testing.T) {
	t.Parallel()

	if err := Preflight(context.Background(), nil, "m"); err == nil {
		t.Fatal("expected error for nil client")
	}
}
