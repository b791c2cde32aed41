package worker

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"

	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
	llmx "github.com/tanpawarit/Chative-Travel-Router/agent/llm"
	promptx "github.com/tanpawarit/Chative-Travel-Router/agent/prompt"
	"github.com/tanpawarit/Chative-Travel-Router/agent/routing"
	toolx "github.com/tanpawarit/Chative-Travel-Router/agent/tool"
)

// ModelFactory creates the chat model a worker runs on.
type ModelFactory func(ctx context.Context, state routing.State) (einomodel.ToolCallingChatModel, error)

// OpenRouterModels builds one OpenRouter model per worker, honouring the
// per-worker overrides in cfg.
func OpenRouterModels(cfg llmx.Config) ModelFactory {
	return func(ctx context.Context, state routing.State) (einomodel.ToolCallingChatModel, error) {
		modelCfg := cfg.OpenRouterFor(state)
		return modelCfg.New(ctx)
	}
}

type Registry struct {
	workers map[routing.State]*Worker
}

func NewRegistry(
	ctx context.Context,
	models ModelFactory,
	prompts promptx.PromptSet,
	catalog *toolx.Catalog,
	tools contractx.ToolGateway,
	opts Options,
) (*Registry, error) {
	if models == nil {
		return nil, fmt.Errorf("%w: model factory is required", contractx.ErrValidation)
	}

	r := &Registry{workers: make(map[routing.State]*Worker, len(routing.WorkerStates()))}
	for _, state := range routing.WorkerStates() {
		chatModel, err := models(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, state, err)
		}
		w, err := New(ctx, state, chatModel, prompts.Instruction(state), catalog.ToolsFor(state), tools, opts)
		if err != nil {
			return nil, err
		}
		r.workers[state] = w
	}
	return r, nil
}

func (r *Registry) Worker(state routing.State) (contractx.Worker, bool) {
	w, ok := r.workers[state]
	if !ok {
		return nil, false
	}
	return w, true
}
