package worker

import (
	"context"
	"fmt"
	"slices"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// compileStepGraph builds the single model round: the instruction is placed
// in front of the running input and handed to the chat model.
func compileStepGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	instruction string,
	graphName string,
) (compose.Runnable[[]*schema.Message, *schema.Message], error) {
	system := schema.SystemMessage(instruction)

	graph := compose.NewGraph[[]*schema.Message, *schema.Message]()
	if err := graph.AddLambdaNode("compose_input",
		compose.InvokableLambda(func(ctx context.Context, in []*schema.Message) ([]*schema.Message, error) {
			out := make([]*schema.Message, 0, len(in)+1)
			out = append(out, system)
			return append(out, slices.Clone(in)...), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add compose_input node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add model node: %w", err)
	}

	edges := [][2]string{
		{compose.START, "compose_input"},
		{"compose_input", "model"},
		{"model", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", graphName, err)
	}
	return runner, nil
}
