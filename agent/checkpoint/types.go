// Package checkpoint persists an immutable snapshot of the conversation and
// the router position after every executed step.
package checkpoint

import (
	"time"

	"github.com/google/uuid"

	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
	"github.com/tanpawarit/Chative-Travel-Router/agent/routing"
)

// Record is one step's snapshot. Seq increases by one per session.
type Record struct {
	ID           uuid.UUID           `json:"id"`
	TenantID     string              `json:"tenant_id"`
	UserID       string              `json:"user_id"`
	SessionID    string              `json:"session_id"`
	Seq          int64               `json:"seq"`
	Step         string              `json:"step"`
	Next         string              `json:"next"`
	ActiveWorker string              `json:"active_worker,omitempty"`
	Messages     []contractx.Message `json:"messages,omitempty"`
	ByteSize     int64               `json:"byte_size"`
	MessageCount int                 `json:"message_count"`
	CreatedAt    time.Time           `json:"created_at"`
}

// Halted reports whether the router stopped for user input after this step.
func (r *Record) Halted() bool {
	return r.Next == routing.StateAwaitInput.String()
}

type snapshot struct {
	Messages []contractx.Message `json:"messages"`
}
