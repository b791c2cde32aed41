// Package routernode holds the steps of the router's turn graph.
package routernode

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
	"github.com/tanpawarit/Chative-Travel-Router/agent/routing"
	statex "github.com/tanpawarit/Chative-Travel-Router/agent/state"
)

var ErrNothingToResume = errors.New("no paused turn to resume")

type TurnInput struct {
	Key  statex.Key
	Text string
}

// TurnOutput is what a driver gets back from one Step. Halted is true when
// the router reached AwaitInput; false means the step limit paused it and
// an empty Step continues from State.
type TurnOutput struct {
	Messages     []contractx.Message `json:"messages"`
	Halted       bool                `json:"halted"`
	State        string              `json:"state"`
	ActiveWorker string              `json:"active_worker,omitempty"`
}

type TurnState struct {
	Key    statex.Key
	Text   string
	Now    time.Time
	Resume bool

	Session      *statex.Session
	Conversation *contractx.Conversation

	Start   routing.State
	Current routing.State
	Next    routing.State
	Steps   int

	// Output holds the user-visible messages produced this turn.
	Output []contractx.Message
	Halted bool
	Paused bool
}

// ValidateRequest checks the key and message. Empty text asks to resume a
// paused turn.
func ValidateRequest(in TurnInput, nowFn func() time.Time) (*TurnState, error) {
	key := statex.NewKey(in.Key.TenantID, in.Key.UserID, in.Key.SessionID)
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	}

	text := strings.TrimSpace(in.Text)
	return &TurnState{
		Key:    key,
		Text:   text,
		Now:    nowFn().UTC(),
		Resume: text == "",
		Start:  routing.StateEntry,
	}, nil
}
