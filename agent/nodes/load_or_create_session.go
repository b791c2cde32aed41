package routernode

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
	statex "github.com/tanpawarit/Chative-Travel-Router/agent/state"
)

// LoadOrCreateSession reads the session record. Any read failure is treated
// as an unknown session: a fresh record is created and written, and a
// failed write is only logged.
func LoadOrCreateSession(
	ctx context.Context,
	in *TurnState,
	store statex.Store,
	logger zerolog.Logger,
) (*TurnState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
	}

	sess, err := store.Read(ctx, in.Key)
	if err == nil && sess != nil {
		in.Session = sess
		return in, nil
	}
	if err != nil && !errors.Is(err, statex.ErrSessionNotFound) {
		logger.Warn().Err(err).Str("session_id", in.Key.SessionID).Msg("session read failed, starting fresh")
	}

	in.Session = statex.NewSession(in.Key, in.Now)
	if err := store.Upsert(ctx, in.Session); err != nil {
		logger.Warn().Err(err).Str("session_id", in.Key.SessionID).Msg("session create failed")
	}
	return in, nil
}
