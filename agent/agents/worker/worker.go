// Package worker runs the travel workers: an instruction prompt and a tool
// subset bound to a chat model, driven through a bounded tool loop.
package worker

import (
	"context"
	"fmt"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
	"github.com/tanpawarit/Chative-Travel-Router/agent/routing"
	logx "github.com/tanpawarit/Chative-Travel-Router/pkg/logger"
)

const DefaultMaxToolRounds = 5

type Options struct {
	MaxToolRounds int `split_words:"true" default:"5"`
}

func (o Options) rounds() int {
	if o.MaxToolRounds <= 0 {
		return DefaultMaxToolRounds
	}
	return o.MaxToolRounds
}

type Worker struct {
	state     routing.State
	runner    compose.Runnable[[]*schema.Message, *schema.Message]
	tools     contractx.ToolGateway
	maxRounds int
	logger    zerolog.Logger
	now       func() time.Time
}

var _ contractx.Worker = (*Worker)(nil)

func New(
	ctx context.Context,
	state routing.State,
	chatModel einomodel.ToolCallingChatModel,
	instruction string,
	infos []*schema.ToolInfo,
	tools contractx.ToolGateway,
	opts Options,
) (*Worker, error) {
	if !state.IsWorker() {
		return nil, fmt.Errorf("%w: state=%s has no worker", contractx.ErrValidation, state)
	}
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is required for worker=%s", contractx.ErrValidation, state)
	}
	if len(infos) > 0 && tools == nil {
		return nil, fmt.Errorf("%w: tool gateway is required for worker=%s", contractx.ErrValidation, state)
	}

	var bound einomodel.BaseChatModel = chatModel
	if len(infos) > 0 {
		m, err := chatModel.WithTools(infos)
		if err != nil {
			return nil, fmt.Errorf("%w: bind tools for worker=%s: %v", contractx.ErrModelInvoke, state, err)
		}
		bound = m
	}

	runner, err := compileStepGraph(ctx, bound, instruction, "worker."+state.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}

	return &Worker{
		state:     state,
		runner:    runner,
		tools:     tools,
		maxRounds: opts.rounds(),
		logger:    logx.Component("worker").With().Str("worker", state.String()).Logger(),
		now:       time.Now,
	}, nil
}

func (w *Worker) State() routing.State {
	return w.state
}

// Run executes model rounds until the model answers without tool calls, a
// tool result carries a transfer signal, or the round limit is reached.
// req.History is not modified.
func (w *Worker) Run(ctx context.Context, req contractx.WorkerRequest) (contractx.WorkerResponse, error) {
	if err := req.Key.Validate(); err != nil {
		return contractx.WorkerResponse{}, fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	}

	input := make([]*schema.Message, 0, len(req.History)+1)
	input = append(input, schema.SystemMessage(req.Note.Render()))
	input = append(input, toModelHistory(req.History)...)

	name := w.state.String()
	var resp contractx.WorkerResponse
	for round := 1; ; round++ {
		msg, err := w.runner.Invoke(ctx, input)
		if err != nil {
			return contractx.WorkerResponse{}, fmt.Errorf("%w: worker=%s: %v", contractx.ErrModelInvoke, name, err)
		}
		if msg == nil {
			return contractx.WorkerResponse{}, fmt.Errorf("%w: worker=%s returned no message", contractx.ErrSchemaViolation, name)
		}

		out := fromModelMessage(msg, name, w.now())
		reqs, err := toToolRequests(out.ToolCalls)
		if err != nil {
			return contractx.WorkerResponse{}, err
		}
		if len(reqs) == 0 && out.Content == "" {
			return contractx.WorkerResponse{}, fmt.Errorf("%w: worker=%s returned an empty message", contractx.ErrSchemaViolation, name)
		}
		resp.Messages = append(resp.Messages, out)
		input = append(input, schema.AssistantMessage(msg.Content, msg.ToolCalls))

		if len(reqs) == 0 {
			return resp, nil
		}

		results, err := w.tools.Execute(ctx, name, reqs)
		if err != nil {
			return contractx.WorkerResponse{}, err
		}
		for _, res := range results {
			tm := toolMessage(res, name, w.now())
			resp.Messages = append(resp.Messages, tm)
			input = append(input, schema.ToolMessage(tm.Content, tm.ToolCallID))
		}
		resp.ToolResults = append(resp.ToolResults, results...)

		if routing.HasSignal(results) {
			return resp, nil
		}
		if round >= w.maxRounds {
			w.logger.Warn().Int("rounds", round).Msg("tool round limit reached")
			return resp, nil
		}
	}
}
