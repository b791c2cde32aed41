package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
	"github.com/tanpawarit/Chative-Travel-Router/agent/routing"
	logx "github.com/tanpawarit/Chative-Travel-Router/pkg/logger"
	mcpx "github.com/tanpawarit/Chative-Travel-Router/pkg/mcp"
)

// Caller is the part of the MCP client the gateway needs.
type Caller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (mcpx.ToolOutput, error)
}

// Gateway executes worker tool calls against the MCP backend. Calls outside
// the worker's partition and failures reported by a tool come back as
// results with Error set; transport failures are returned as errors.
type Gateway struct {
	caller  Caller
	catalog *Catalog
	logger  zerolog.Logger
}

var _ contractx.ToolGateway = (*Gateway)(nil)

func NewGateway(caller Caller, catalog *Catalog) *Gateway {
	return &Gateway{
		caller:  caller,
		catalog: catalog,
		logger:  logx.Component("tool_gateway"),
	}
}

func (g *Gateway) Execute(ctx context.Context, worker string, reqs []contractx.ToolRequest) ([]contractx.ToolResult, error) {
	state, known := routing.ParseState(worker)
	results := make([]contractx.ToolResult, 0, len(reqs))
	for _, req := range reqs {
		name := strings.TrimSpace(req.Tool)
		res := contractx.ToolResult{CallID: req.CallID, Tool: name}

		if !known || !g.catalog.Allowed(state, name) {
			res.Error = fmt.Sprintf("tool=%s is unavailable for worker=%s", name, worker)
			g.logger.Warn().Str("worker", worker).Str("tool", name).Msg("tool call outside worker partition")
			results = append(results, res)
			continue
		}

		out, err := g.caller.CallTool(ctx, name, req.Args)
		if err != nil {
			return nil, fmt.Errorf("%w: tool=%s worker=%s: %v", contractx.ErrToolInvoke, name, worker, err)
		}
		if out.IsError {
			res.Error = out.Text
		} else {
			res.Content = out.Text
		}
		g.logger.Debug().Str("worker", worker).Str("tool", name).Bool("tool_error", out.IsError).Msg("tool executed")
		results = append(results, res)
	}
	return results, nil
}
