package worker

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
)

const summaryPreamble = "Summary of the earlier conversation:\n"

// toModelHistory converts stored history into model input. System and
// transient messages are never replayed; summaries become system context.
func toModelHistory(history []contractx.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		if m.Transient {
			continue
		}
		if m.Summary != nil {
			out = append(out, schema.SystemMessage(summaryPreamble+m.Content))
			continue
		}
		switch m.Role {
		case contractx.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case contractx.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, toSchemaToolCalls(m.ToolCalls)))
		case contractx.RoleTool:
			out = append(out, schema.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}

func toSchemaToolCalls(calls []contractx.ToolCall) []schema.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]schema.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, schema.ToolCall{
			ID:   c.ID,
			Type: "function",
			Function: schema.FunctionCall{
				Name:      c.Name,
				Arguments: c.Arguments,
			},
		})
	}
	return out
}

func fromModelMessage(msg *schema.Message, worker string, now time.Time) contractx.Message {
	out := contractx.Message{
		Role:      contractx.RoleAssistant,
		Content:   strings.TrimSpace(msg.Content),
		Worker:    worker,
		CreatedAt: now,
	}
	for _, c := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, contractx.ToolCall{
			ID:        c.ID,
			Name:      strings.TrimSpace(c.Function.Name),
			Arguments: c.Function.Arguments,
		})
	}
	return out
}

func toToolRequests(calls []contractx.ToolCall) ([]contractx.ToolRequest, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	reqs := make([]contractx.ToolRequest, 0, len(calls))
	for _, call := range calls {
		if call.Name == "" {
			return nil, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
		}

		args := map[string]any{}
		if raw := strings.TrimSpace(call.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("%w: invalid tool args for tool=%s: %v", contractx.ErrSchemaViolation, call.Name, err)
			}
		}

		reqs = append(reqs, contractx.ToolRequest{
			CallID: call.ID,
			Tool:   call.Name,
			Args:   args,
		})
	}
	return reqs, nil
}

// toolMessage is what the model reads back for a result. Tool errors are
// surfaced as text so the model can recover.
func toolMessage(res contractx.ToolResult, worker string, now time.Time) contractx.Message {
	content := res.Content
	if res.Error != "" {
		content = "error: " + res.Error
	}
	return contractx.Message{
		Role:       contractx.RoleTool,
		Content:    content,
		Worker:     worker,
		ToolCallID: res.CallID,
		ToolName:   res.Tool,
		CreatedAt:  now,
	}
}
