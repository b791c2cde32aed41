package routernode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
	statex "github.com/tanpawarit/Chative-Travel-Router/agent/state"
)

// SaveSession writes the session record back. The turn already has its
// checkpoint, so a failed write is logged and the turn still succeeds.
func SaveSession(
	ctx context.Context,
	in *TurnState,
	store statex.Store,
	logger zerolog.Logger,
) (*TurnState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: turn session is nil", contractx.ErrValidation)
	}

	in.Session.Touch(in.Now)
	if err := in.Session.Validate(); err != nil {
		return nil, fmt.Errorf("%w: session validation failed: %v", contractx.ErrValidation, err)
	}
	if err := store.Upsert(ctx, in.Session); err != nil {
		logger.Warn().Err(err).Str("session_id", in.Key.SessionID).Msg("session save failed")
	}
	return in, nil
}
