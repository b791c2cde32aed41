package contract

import (
	"fmt"
	"strings"
	"time"

	statex "github.com/tanpawarit/Chative-Travel-Router/agent/state"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type Message struct {
	Role       Role         `json:"role"`
	Content    string       `json:"content,omitempty"`
	Worker     string       `json:"worker,omitempty"`
	ToolCalls  []ToolCall   `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
	ToolName   string       `json:"tool_name,omitempty"`
	Seq        int64        `json:"seq,omitempty"`
	Summary    *SummarySpan `json:"summary,omitempty"`
	Transient  bool         `json:"transient,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Ledgered reports whether the message belongs in the message ledger.
// User input and assistant text count, including text that accompanies tool
// calls. Tool results and bare tool calls do not.
func (m Message) Ledgered() bool {
	if m.Transient {
		return false
	}
	switch m.Role {
	case RoleUser, RoleAssistant:
		return strings.TrimSpace(m.Content) != ""
	default:
		return false
	}
}

type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// SummarySpan is the inclusive ledger range a summary replaced.
type SummarySpan struct {
	From       int64 `json:"from"`
	To         int64 `json:"to"`
	SummarySeq int64 `json:"summary_seq,omitempty"`
}

func (s SummarySpan) Empty() bool {
	return s.From == 0 && s.To == 0
}

type ToolRequest struct {
	CallID string         `json:"call_id,omitempty"`
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args,omitempty"`
}

type ToolResult struct {
	CallID  string `json:"call_id,omitempty"`
	Tool    string `json:"tool"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ContextNote carries the identifiers a worker must forward to tools. It is
// injected per invocation and never persisted.
type ContextNote struct {
	TenantID  string
	UserID    string
	SessionID string
}

func NoteFor(key statex.Key) ContextNote {
	return ContextNote{TenantID: key.TenantID, UserID: key.UserID, SessionID: key.SessionID}
}

func (n ContextNote) Render() string {
	return fmt.Sprintf(
		"If tool to be called requires tenantId='%s', userId='%s', session_id='%s', include these in the JSON parameters when invoking the tool. Do not ask the user for them.",
		n.TenantID, n.UserID, n.SessionID,
	)
}

type WorkerRequest struct {
	Key     statex.Key  `json:"key"`
	History []Message   `json:"history"`
	Note    ContextNote `json:"-"`
}

type WorkerResponse struct {
	Messages    []Message    `json:"messages"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// FinalText returns the content of the last assistant message without tool calls.
func (r WorkerResponse) FinalText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		m := r.Messages[i]
		if m.Role == RoleAssistant && len(m.ToolCalls) == 0 && strings.TrimSpace(m.Content) != "" {
			return strings.TrimSpace(m.Content)
		}
	}
	return ""
}
