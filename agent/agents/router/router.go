// Package router drives one conversation turn through the travel state
// machine.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog"

	"github.com/tanpawarit/Chative-Travel-Router/agent/checkpoint"
	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
	nodex "github.com/tanpawarit/Chative-Travel-Router/agent/nodes"
	"github.com/tanpawarit/Chative-Travel-Router/agent/routing"
	statex "github.com/tanpawarit/Chative-Travel-Router/agent/state"
	logx "github.com/tanpawarit/Chative-Travel-Router/pkg/logger"
)

var ErrNothingToResume = nodex.ErrNothingToResume

type (
	TurnOutput = nodex.TurnOutput
	Workers    = nodex.Workers
)

const (
	DefaultStepTimeout = 60 * time.Second
	DefaultMaxSteps    = 8
)

type Config struct {
	StepTimeout time.Duration `split_words:"true" default:"60s"`
	MaxSteps    int           `split_words:"true" default:"8"`
}

type Deps struct {
	Workers     Workers
	Sessions    statex.Store
	Checkpoints checkpoint.Store
	Ledger      contractx.Ledger
	// Table defaults to routing.DefaultTable.
	Table routing.Table
}

type Router struct {
	deps   nodex.StepDeps
	runner compose.Runnable[nodex.TurnInput, nodex.TurnOutput]
	logger zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func New(deps Deps, cfg Config) (*Router, error) {
	switch {
	case deps.Workers == nil:
		return nil, errors.New("workers are required")
	case deps.Sessions == nil:
		return nil, errors.New("session store is required")
	case deps.Checkpoints == nil:
		return nil, errors.New("checkpoint store is required")
	case deps.Ledger == nil:
		return nil, errors.New("message ledger is required")
	}

	table := deps.Table
	if table == nil {
		table = routing.DefaultTable()
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	for _, state := range routing.WorkerStates() {
		if _, ok := deps.Workers.Worker(state); !ok {
			return nil, fmt.Errorf("%w: no worker for state=%s", contractx.ErrValidation, state)
		}
	}

	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = DefaultStepTimeout
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}

	r := &Router{
		logger: logx.Component("router"),
		now:    time.Now,
		locks:  make(map[string]*sessionLock),
	}
	r.deps = nodex.StepDeps{
		Workers:     deps.Workers,
		Ledger:      deps.Ledger,
		Checkpoints: deps.Checkpoints,
		Sessions:    deps.Sessions,
		Table:       table,
		StepTimeout: cfg.StepTimeout,
		MaxSteps:    cfg.MaxSteps,
		Logger:      r.logger,
		Now:         func() time.Time { return r.now() },
	}

	runner, err := r.compileTurnGraph(context.Background(), table, cfg.MaxSteps)
	if err != nil {
		return nil, err
	}
	r.runner = runner
	return r, nil
}

// Step runs one turn for key. Turns of the same session never overlap.
// Empty text resumes a turn paused by the step limit.
func (r *Router) Step(ctx context.Context, key statex.Key, text string) (TurnOutput, error) {
	unlock := r.lock(key.String())
	defer unlock()

	out, err := r.runner.Invoke(ctx, nodex.TurnInput{Key: key, Text: text})
	if err != nil {
		r.logger.Error().Err(err).Str("session_id", key.SessionID).Msg("turn failed")
		return TurnOutput{}, err
	}
	return out, nil
}

func (r *Router) lock(id string) func() {
	r.mu.Lock()
	l, ok := r.locks[id]
	if !ok {
		l = &sessionLock{}
		r.locks[id] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, id)
		}
		r.mu.Unlock()
	}
}
