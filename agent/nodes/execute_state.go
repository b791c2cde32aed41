package routernode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tanpawarit/Chative-Travel-Router/agent/checkpoint"
	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
	"github.com/tanpawarit/Chative-Travel-Router/agent/routing"
	statex "github.com/tanpawarit/Chative-Travel-Router/agent/state"
)

// Workers looks up the worker that runs a state.
type Workers interface {
	Worker(state routing.State) (contractx.Worker, bool)
}

// StepDeps is everything one state step touches.
type StepDeps struct {
	Workers     Workers
	Ledger      contractx.Ledger
	Checkpoints checkpoint.Store
	Sessions    statex.Store
	Table       routing.Table
	StepTimeout time.Duration
	MaxSteps    int
	Logger      zerolog.Logger
	Now         func() time.Time
}

// ExecuteState runs the worker for state, records what it produced, and
// decides where the machine goes next.
func ExecuteState(
	ctx context.Context,
	in *TurnState,
	state routing.State,
	deps StepDeps,
) (*TurnState, error) {
	if in == nil || in.Session == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: turn state is incomplete", contractx.ErrValidation)
	}
	logger := deps.Logger.With().
		Str("tenant_id", in.Key.TenantID).
		Str("user_id", in.Key.UserID).
		Str("session_id", in.Key.SessionID).
		Str("state", state.String()).
		Logger()

	w, ok := deps.Workers.Worker(state)
	if !ok {
		return nil, fmt.Errorf("%w: no worker for state=%s", contractx.ErrTurnFailed, state)
	}
	in.Current = state
	in.Steps++

	var check routing.CompactionCheck
	if state == routing.StateEntry {
		check = compactionCheck(ctx, in, deps.Ledger, logger)
	}
	var compactHead int64
	if state == routing.StateCompactor {
		head, err := deps.Ledger.Head(ctx, in.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: read ledger head: %w", contractx.ErrTurnFailed, err)
		}
		compactHead = head
	}

	stepCtx := ctx
	if deps.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, deps.StepTimeout)
		defer cancel()
	}
	resp, err := w.Run(stepCtx, contractx.WorkerRequest{
		Key:     in.Key,
		History: in.Conversation.Snapshot(),
		Note:    contractx.NoteFor(in.Key),
	})
	if err != nil {
		logger.Error().Err(err).Msg("worker step failed")
		return nil, fmt.Errorf("%w: step=%s: %w", contractx.ErrTurnFailed, state, err)
	}

	if state == routing.StateCompactor {
		if err := applyCompaction(ctx, in, deps.Ledger, resp, compactHead, now(deps)); err != nil {
			return nil, err
		}
	} else if err := record(ctx, in, deps.Ledger, resp.Messages); err != nil {
		return nil, err
	}

	decision := routing.Resolve(routing.Input{
		Current:     state,
		ToolResults: resp.ToolResults,
		Persisted:   in.Session.ActiveWorker,
		Compaction:  check,
	})
	for _, merr := range decision.Malformed {
		logger.Warn().Err(merr).Msg("ignoring malformed transfer signal")
	}

	next, clamped := deps.Table.Clamp(state, decision.Next)
	if clamped {
		logger.Warn().Str("target", decision.Next.String()).Msg("illegal transition clamped to entry")
	}

	stay := next == state
	if state == routing.StateEntry && decision.Source != routing.SourceCompaction {
		if conflicts := PendingConflicts(resp.ToolResults); len(conflicts) > 0 {
			clarification := contractx.Message{
				Role:      contractx.RoleAssistant,
				Content:   FormatConflictMessage(conflicts),
				Worker:    state.String(),
				CreatedAt: now(deps),
			}
			if err := record(ctx, in, deps.Ledger, []contractx.Message{clarification}); err != nil {
				return nil, err
			}
			stay = true
		}
	}
	if stay {
		next = routing.StateAwaitInput
	}

	if active := activeWorker(state, next, decision.Deferred); active != "" && active != in.Session.ActiveWorker {
		in.Session.ActiveWorker = active
		if err := deps.Sessions.PatchActiveWorker(ctx, in.Key, active); err != nil {
			logger.Warn().Err(err).Str("active_worker", active).Msg("patch active worker failed")
		}
	}

	in.Next = next
	in.Halted = next == routing.StateAwaitInput
	in.Paused = !in.Halted && deps.MaxSteps > 0 && in.Steps >= deps.MaxSteps

	rec := &checkpoint.Record{
		TenantID:     in.Key.TenantID,
		UserID:       in.Key.UserID,
		SessionID:    in.Key.SessionID,
		Step:         state.String(),
		Next:         next.String(),
		ActiveWorker: in.Session.ActiveWorker,
		Messages:     in.Conversation.Snapshot(),
	}
	if err := deps.Checkpoints.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: checkpoint step=%s: %w", contractx.ErrTurnFailed, state, err)
	}

	logger.Info().
		Str("next", next.String()).
		Str("source", string(decision.Source)).
		Int64("checkpoint_seq", rec.Seq).
		Bool("paused", in.Paused).
		Msg("step done")
	return in, nil
}

// Route names the graph node that follows a finished step.
func Route(in *TurnState, terminal string) string {
	switch {
	case in.Halted:
		return routing.StateAwaitInput.String()
	case in.Paused:
		return terminal
	default:
		return in.Next.String()
	}
}

// compactionCheck reads the ledger for the Entry check. A ledger that
// cannot be read never forces compaction.
func compactionCheck(ctx context.Context, in *TurnState, ledger contractx.Ledger, logger zerolog.Logger) routing.CompactionCheck {
	count, err := ledger.CountActive(ctx, in.Key)
	if err != nil {
		logger.Warn().Err(err).Msg("count active messages failed")
		return routing.CompactionCheck{}
	}
	head, err := ledger.Head(ctx, in.Key)
	if err != nil {
		logger.Warn().Err(err).Msg("read ledger head failed")
		return routing.CompactionCheck{}
	}
	return routing.CompactionCheck{
		ActiveCount:   count,
		Head:          head,
		LastFiredHead: in.Session.CompactionMark,
	}
}

// record appends worker output to the ledger and the conversation. Ledgered
// messages are also the turn's visible output.
func record(ctx context.Context, in *TurnState, ledger contractx.Ledger, msgs []contractx.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	kept := make([]contractx.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Transient || m.Role == contractx.RoleSystem {
			continue
		}
		kept = append(kept, m)
	}

	seqs, err := ledger.Append(ctx, in.Key, kept...)
	if err != nil {
		return fmt.Errorf("%w: ledger append: %w", contractx.ErrTurnFailed, err)
	}
	for i := range kept {
		kept[i].Seq = seqs[i]
		if seqs[i] > 0 {
			in.Session.MessageCount++
			in.Output = append(in.Output, kept[i])
		}
	}
	in.Conversation.Append(kept...)
	return nil
}

// applyCompaction folds the ledger up to the message before the latest user
// message into the compactor's summary. The compactor's own traffic is not
// kept.
func applyCompaction(
	ctx context.Context,
	in *TurnState,
	ledger contractx.Ledger,
	resp contractx.WorkerResponse,
	head int64,
	at time.Time,
) error {
	text := summaryText(resp)
	if text == "" {
		return fmt.Errorf("%w: compactor produced no summary: %w", contractx.ErrTurnFailed, contractx.ErrSchemaViolation)
	}

	upTo := head
	if seq := lastUserSeq(in.Conversation.Messages); seq > 0 {
		upTo = seq - 1
	}
	summary := contractx.Message{
		Role:      contractx.RoleAssistant,
		Content:   text,
		Worker:    routing.StateCompactor.String(),
		CreatedAt: at,
	}
	span, err := ledger.Summarize(ctx, in.Key, upTo, summary)
	if err != nil {
		return fmt.Errorf("%w: summarize ledger: %w", contractx.ErrTurnFailed, err)
	}
	in.Conversation.Compact(span, summary)
	in.Session.CompactionMark = head
	return nil
}

func summaryText(resp contractx.WorkerResponse) string {
	if text := resp.FinalText(); text != "" {
		return text
	}
	for i := len(resp.Messages) - 1; i >= 0; i-- {
		m := resp.Messages[i]
		if m.Role == contractx.RoleAssistant {
			if text := strings.TrimSpace(m.Content); text != "" {
				return text
			}
		}
	}
	return ""
}

func lastUserSeq(msgs []contractx.Message) int64 {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == contractx.RoleUser && msgs[i].Seq > 0 {
			return msgs[i].Seq
		}
	}
	return 0
}

// activeWorker is the value persisted as the session's active worker after
// a step from state to next. A forced compaction keeps the worker it
// preempted, and compactor steps never change it. Empty means leave the
// record alone.
func activeWorker(state, next, deferred routing.State) string {
	target := next
	switch {
	case state == routing.StateCompactor:
		return ""
	case next == routing.StateCompactor:
		target = deferred
	case next == routing.StateAwaitInput:
		target = state
	}
	if !target.Resumable() {
		return ""
	}
	return target.String()
}

func now(deps StepDeps) time.Time {
	if deps.Now != nil {
		return deps.Now().UTC()
	}
	return time.Now().UTC()
}
