package router

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/tanpawarit/Chative-Travel-Router/agent/nodes"
	"github.com/tanpawarit/Chative-Travel-Router/agent/routing"
)

const (
	nodeValidateRequest   = "validate_request"
	nodeLoadOrCreate      = "load_or_create_session"
	nodeRestore           = "restore_conversation"
	nodeRecordUserMessage = "record_user_message"
	nodeSaveSession       = "save_session"
	nodeFinalize          = "finalize"
)

// compileTurnGraph turns the transition table into the turn graph: one node
// per state, and each state's branch may only reach the table's targets,
// the halt node or the pause exit.
func (r *Router) compileTurnGraph(
	ctx context.Context,
	table routing.Table,
	maxSteps int,
) (compose.Runnable[nodex.TurnInput, nodex.TurnOutput], error) {
	graph := compose.NewGraph[nodex.TurnInput, nodex.TurnOutput]()

	if err := graph.AddLambdaNode(nodeValidateRequest,
		compose.InvokableLambda(func(ctx context.Context, in nodex.TurnInput) (*nodex.TurnState, error) {
			return nodex.ValidateRequest(in, r.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeValidateRequest, err)
	}

	if err := graph.AddLambdaNode(nodeLoadOrCreate,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (*nodex.TurnState, error) {
			return nodex.LoadOrCreateSession(ctx, in, r.deps.Sessions, r.logger)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeLoadOrCreate, err)
	}

	if err := graph.AddLambdaNode(nodeRestore,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (*nodex.TurnState, error) {
			return nodex.RestoreConversation(ctx, in, r.deps.Checkpoints)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeRestore, err)
	}

	if err := graph.AddLambdaNode(nodeRecordUserMessage,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (*nodex.TurnState, error) {
			return nodex.RecordUserMessage(ctx, in, r.deps.Ledger)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeRecordUserMessage, err)
	}

	for _, state := range routing.WorkerStates() {
		if err := graph.AddLambdaNode(state.String(),
			compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (*nodex.TurnState, error) {
				return nodex.ExecuteState(ctx, in, state, r.deps)
			}),
		); err != nil {
			return nil, fmt.Errorf("add node %s: %w", state, err)
		}
	}

	if err := graph.AddLambdaNode(routing.StateAwaitInput.String(),
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (*nodex.TurnState, error) {
			return nodex.AwaitInput(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", routing.StateAwaitInput, err)
	}

	if err := graph.AddLambdaNode(nodeSaveSession,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (*nodex.TurnState, error) {
			return nodex.SaveSession(ctx, in, r.deps.Sessions, r.logger)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeSaveSession, err)
	}

	if err := graph.AddLambdaNode(nodeFinalize,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (nodex.TurnOutput, error) {
			return nodex.Finalize(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeFinalize, err)
	}

	edges := [][2]string{
		{compose.START, nodeValidateRequest},
		{nodeValidateRequest, nodeLoadOrCreate},
		{nodeLoadOrCreate, nodeRestore},
		{nodeRestore, nodeRecordUserMessage},
		{routing.StateAwaitInput.String(), nodeSaveSession},
		{nodeSaveSession, nodeFinalize},
		{nodeFinalize, compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	starts := make(map[string]bool, len(routing.WorkerStates()))
	for _, state := range routing.WorkerStates() {
		starts[state.String()] = true
	}
	startBranch := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.TurnState) (string, error) {
			return in.Start.String(), nil
		},
		starts,
	)
	if err := graph.AddBranch(nodeRecordUserMessage, startBranch); err != nil {
		return nil, fmt.Errorf("add branch %s: %w", nodeRecordUserMessage, err)
	}

	for _, state := range routing.WorkerStates() {
		if err := graph.AddBranch(state.String(), stateBranch(table, state)); err != nil {
			return nil, fmt.Errorf("add branch %s: %w", state, err)
		}
	}

	runner, err := graph.Compile(ctx,
		compose.WithGraphName("router.turn"),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
		compose.WithMaxRunSteps(2*maxSteps+16),
	)
	if err != nil {
		return nil, fmt.Errorf("compile router graph: %w", err)
	}
	return runner, nil
}

// stateBranch allows the table's targets for state except itself, since
// staying halts the turn instead.
func stateBranch(table routing.Table, state routing.State) *compose.GraphBranch {
	ends := map[string]bool{
		routing.StateAwaitInput.String(): true,
		nodeSaveSession:                  true,
	}
	for _, target := range table[state] {
		if target != state {
			ends[target.String()] = true
		}
	}
	return compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.TurnState) (string, error) {
			next := nodex.Route(in, nodeSaveSession)
			if !ends[next] {
				return "", fmt.Errorf("%w: %s->%s is not a graph edge", routing.ErrInvalidTable, state, next)
			}
			return next, nil
		},
		ends,
	)
}
