package routernode

import (
	"context"
	"errors"
	"fmt"

	"github.com/tanpawarit/Chative-Travel-Router/agent/checkpoint"
	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
	"github.com/tanpawarit/Chative-Travel-Router/agent/routing"
)

// RestoreConversation loads the newest checkpoint. A new message starts at
// Entry; an empty one resumes at the checkpointed Next when the previous
// turn was paused rather than halted.
func RestoreConversation(
	ctx context.Context,
	in *TurnState,
	checkpoints checkpoint.Store,
) (*TurnState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
	}

	rec, err := checkpoints.Latest(ctx, in.Key.SessionID)
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		rec = nil
	case err != nil:
		return nil, fmt.Errorf("%w: load checkpoint: %w", contractx.ErrTurnFailed, err)
	}

	if rec != nil && (rec.TenantID != in.Key.TenantID || rec.UserID != in.Key.UserID) {
		return nil, fmt.Errorf("%w: session=%s belongs to another user", contractx.ErrValidation, in.Key.SessionID)
	}

	if rec == nil {
		in.Conversation = contractx.NewConversation()
	} else {
		in.Conversation = contractx.NewConversation(rec.Messages...)
	}

	if !in.Resume {
		in.Start = routing.StateEntry
		return in, nil
	}
	if rec == nil || rec.Halted() {
		return nil, ErrNothingToResume
	}
	next, ok := routing.ParseState(rec.Next)
	if !ok || !next.IsWorker() {
		return nil, fmt.Errorf("%w: checkpoint next=%q is not a worker", ErrNothingToResume, rec.Next)
	}
	in.Start = next
	return in, nil
}
