// Package mcp adapts a Model Context Protocol client over streamable HTTP
// to the router: tool discovery for partitioning and flattened tool calls.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

const (
	clientName    = "chative-travel-router"
	clientVersion = "0.1.0"
)

type Config struct {
	ServerBaseURL string        `envconfig:"SERVER_BASE_URL" split_words:"true" default:"http://localhost:8080"`
	AuthToken     string        `envconfig:"AUTH_TOKEN" split_words:"true"`
	Timeout       time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
}

// Endpoint is the streamable HTTP endpoint under the server base URL.
func (c Config) Endpoint() string {
	return strings.TrimRight(strings.TrimSpace(c.ServerBaseURL), "/") + "/mcp/"
}

func (c Config) options() []transport.StreamableHTTPCOption {
	var opts []transport.StreamableHTTPCOption
	if token := strings.TrimSpace(c.AuthToken); token != "" {
		opts = append(opts, transport.WithHTTPHeaders(map[string]string{"Authorization": "Bearer " + token}))
	}
	if c.Timeout > 0 {
		opts = append(opts, transport.WithHTTPTimeout(c.Timeout))
	}
	return opts
}

type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolOutput is the flattened result of tools/call. IsError marks a failure
// reported by the tool itself rather than by the protocol.
type ToolOutput struct {
	Text    string
	IsError bool
}

type Client struct {
	conn   *client.Client
	logger zerolog.Logger

	mu    sync.RWMutex
	tools []ToolDefinition
}

// Dial connects to the server in cfg and performs the initialize handshake.
func Dial(ctx context.Context, cfg Config, logger zerolog.Logger) (*Client, error) {
	conn, err := client.NewStreamableHttpClient(cfg.Endpoint(), cfg.options()...)
	if err != nil {
		return nil, fmt.Errorf("create mcp client: %w", err)
	}
	c := &Client{conn: conn, logger: logger}
	if err := c.initialize(ctx); err != nil {
		return nil, errors.Join(err, conn.Close())
	}
	return c, nil
}

func (c *Client) initialize(ctx context.Context) error {
	if err := c.conn.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	req := mcpgo.InitializeRequest{}
	req.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcpgo.Implementation{Name: clientName, Version: clientVersion}
	res, err := c.conn.Initialize(ctx, req)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	c.logger.Info().
		Str("server_name", res.ServerInfo.Name).
		Str("server_version", res.ServerInfo.Version).
		Str("protocol_version", res.ProtocolVersion).
		Msg("mcp server initialized")
	return nil
}

// ListTools pages through tools/list once and caches the result.
func (c *Client) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	c.mu.RLock()
	if c.tools != nil {
		defer c.mu.RUnlock()
		return c.tools, nil
	}
	c.mu.RUnlock()

	tools := make([]ToolDefinition, 0, 32)
	var cursor mcpgo.Cursor
	for {
		req := mcpgo.ListToolsRequest{}
		req.Params.Cursor = cursor
		res, err := c.conn.ListTools(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("tools/list: %w", err)
		}
		for _, tool := range res.Tools {
			def, err := toDefinition(tool)
			if err != nil {
				return nil, err
			}
			tools = append(tools, def)
		}
		if res.NextCursor == "" || res.NextCursor == cursor {
			break
		}
		cursor = res.NextCursor
	}

	c.mu.Lock()
	c.tools = tools
	c.mu.Unlock()

	c.logger.Info().Int("count", len(tools)).Msg("discovered mcp tools")
	return tools, nil
}

func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (ToolOutput, error) {
	if args == nil {
		args = map[string]any{}
	}
	req := mcpgo.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := c.conn.CallTool(ctx, req)
	if err != nil {
		return ToolOutput{}, fmt.Errorf("tools/call %s: %w", name, err)
	}
	return ToolOutput{Text: extractText(res.Content), IsError: res.IsError}, nil
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// toDefinition keeps the wire form of the input schema, raw or structured.
func toDefinition(tool mcpgo.Tool) (ToolDefinition, error) {
	raw, err := json.Marshal(tool)
	if err != nil {
		return ToolDefinition{}, fmt.Errorf("marshal tool %s: %w", tool.Name, err)
	}
	var def ToolDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return ToolDefinition{}, fmt.Errorf("decode tool %s: %w", tool.Name, err)
	}
	return def, nil
}

func extractText(contents []mcpgo.Content) string {
	parts := make([]string, 0, len(contents))
	for _, content := range contents {
		if text, ok := mcpgo.AsTextContent(content); ok {
			parts = append(parts, text.Text)
			continue
		}
		if _, ok := mcpgo.AsImageContent(content); ok {
			parts = append(parts, "[image]")
			continue
		}
		if _, ok := mcpgo.AsEmbeddedResource(content); ok {
			parts = append(parts, "[resource]")
			continue
		}
		parts = append(parts, "[content]")
	}
	return strings.Join(parts, "\n")
}
