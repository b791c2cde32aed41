package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

type authLog struct {
	mu      sync.Mutex
	headers []string
}

func (a *authLog) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.headers = append(a.headers, r.Header.Get("Authorization"))
		a.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (a *authLog) all() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.headers...)
}

func newTravelServer() *server.MCPServer {
	s := server.NewMCPServer("travel", "1.0",
		server.WithToolCapabilities(false),
		server.WithPaginationLimit(1),
	)
	s.AddTool(
		mcpgo.NewTool("discover_places",
			mcpgo.WithDescription("Find places"),
			mcpgo.WithString("query", mcpgo.Required()),
		),
		func(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
			return mcpgo.NewToolResultText("places for " + req.GetString("query", "")), nil
		},
	)
	s.AddTool(
		mcpgo.NewTool("transfer_to_hotel_agent", mcpgo.WithDescription("Hand off to hotels")),
		func(context.Context, mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
			return mcpgo.NewToolResultText(`{"goto":"hotel_agent"}`), nil
		},
	)
	s.AddTool(
		mcpgo.NewTool("broken"),
		func(context.Context, mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
			return mcpgo.NewToolResultError("boom"), nil
		},
	)
	return s
}

func newTestClient(t *testing.T) (*Client, *httptest.Server, *authLog) {
	t.Helper()
	auth := &authLog{}
	srv := httptest.NewServer(auth.wrap(server.NewStreamableHTTPServer(newTravelServer())))
	t.Cleanup(srv.Close)

	client, err := Dial(context.Background(), Config{ServerBaseURL: srv.URL, AuthToken: "secret"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, srv, auth
}

func TestConfigEndpoint(t *testing.T) {
	t.Parallel()

	cfg := Config{ServerBaseURL: "http://localhost:8080/"}
	if got := cfg.Endpoint(); got != "http://localhost:8080/mcp/" {
		t.Fatalf("Endpoint() = %q", got)
	}
}

func TestDialSendsBearerToken(t *testing.T) {
	t.Parallel()

	_, _, auth := newTestClient(t)
	headers := auth.all()
	if len(headers) == 0 {
		t.Fatal("no requests reached the server")
	}
	for _, h := range headers {
		if h != "Bearer secret" {
			t.Fatalf("Authorization = %q, want Bearer secret", h)
		}
	}
}

func TestDialUnreachableServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := Dial(context.Background(), Config{ServerBaseURL: url}, zerolog.Nop()); err == nil {
		t.Fatal("Dial() error = nil for a closed server")
	}
}

func TestListToolsPagesAndCaches(t *testing.T) {
	t.Parallel()

	client, srv, _ := newTestClient(t)
	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	if len(names) != 3 || names[0] != "broken" || names[1] != "discover_places" || names[2] != "transfer_to_hotel_agent" {
		t.Fatalf("tools = %v", names)
	}
	for _, tool := range tools {
		if tool.Name != "discover_places" {
			continue
		}
		props, _ := tool.InputSchema["properties"].(map[string]any)
		if tool.Description != "Find places" || props["query"] == nil {
			t.Fatalf("discover_places definition = %+v", tool)
		}
	}

	srv.Close()
	again, err := client.ListTools(context.Background())
	if err != nil || len(again) != 3 {
		t.Fatalf("cached ListTools() = %d tools, %v", len(again), err)
	}
}

func TestCallToolReturnsText(t *testing.T) {
	t.Parallel()

	client, _, _ := newTestClient(t)
	out, err := client.CallTool(context.Background(), "discover_places", map[string]any{"query": "ramen"})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if out.IsError || out.Text != "places for ramen" {
		t.Fatalf("out = %+v", out)
	}

	out, err = client.CallTool(context.Background(), "transfer_to_hotel_agent", nil)
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if out.Text != `{"goto":"hotel_agent"}` {
		t.Fatalf("out = %+v", out)
	}
}

func TestCallToolReportsToolError(t *testing.T) {
	t.Parallel()

	client, _, _ := newTestClient(t)
	out, err := client.CallTool(context.Background(), "broken", nil)
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if !out.IsError || out.Text != "boom" {
		t.Fatalf("out = %+v", out)
	}
}

func TestCallUnknownToolFails(t *testing.T) {
	t.Parallel()

	client, _, _ := newTestClient(t)
	if _, err := client.CallTool(context.Background(), "book_flight", nil); err == nil {
		t.Fatal("CallTool() error = nil for an unknown tool")
	}
}

func TestExtractText(t *testing.T) {
	t.Parallel()

	got := extractText([]mcpgo.Content{
		mcpgo.NewTextContent("a"),
		mcpgo.NewImageContent("aGk=", "image/png"),
		mcpgo.NewTextContent("b"),
	})
	if got != "a\n[image]\nb" {
		t.Fatalf("extractText() = %q", got)
	}
}
