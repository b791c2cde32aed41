package routernode

import (
	"fmt"

	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
	"github.com/tanpawarit/Chative-Travel-Router/agent/routing"
)

// AwaitInput is the halt state: the turn ends and the next user message
// starts again at Entry.
func AwaitInput(in *TurnState) (*TurnState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
	}
	in.Halted = true
	in.Paused = false
	in.Next = routing.StateAwaitInput
	return in, nil
}
