package routernode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
)

// RecordUserMessage ledgers the turn's input. Entries newer than the restored
// conversation belong to a failed turn and are discarded first, so a retry
// does not count the same input twice.
func RecordUserMessage(
	ctx context.Context,
	in *TurnState,
	ledger contractx.Ledger,
) (*TurnState, error) {
	if in == nil || in.Session == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: turn state is incomplete", contractx.ErrValidation)
	}
	if _, err := ledger.Discard(ctx, in.Key, in.Conversation.LastSeq()); err != nil {
		return nil, fmt.Errorf("%w: discard unchecked messages: %w", contractx.ErrTurnFailed, err)
	}
	if in.Resume {
		return in, nil
	}

	msg := contractx.Message{
		Role:      contractx.RoleUser,
		Content:   in.Text,
		CreatedAt: in.Now,
	}
	seqs, err := ledger.Append(ctx, in.Key, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: record user message: %w", contractx.ErrTurnFailed, err)
	}
	msg.Seq = seqs[0]

	in.Conversation.Append(msg)
	in.Session.MessageCount++
	return in, nil
}
