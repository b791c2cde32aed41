package contract

import (
	"context"

	statex "github.com/tanpawarit/Chative-Travel-Router/agent/state"
)

// Worker runs one step of a specialised agent over the conversation so far.
type Worker interface {
	Run(ctx context.Context, req WorkerRequest) (WorkerResponse, error)
}

type ToolGateway interface {
	Execute(ctx context.Context, worker string, reqs []ToolRequest) ([]ToolResult, error)
}

// Ledger is the append-only record of user-visible messages used for
// counting and summarization.
type Ledger interface {
	Append(ctx context.Context, key statex.Key, msgs ...Message) ([]int64, error)
	CountActive(ctx context.Context, key statex.Key) (int, error)
	Head(ctx context.Context, key statex.Key) (int64, error)
	Summarize(ctx context.Context, key statex.Key, upTo int64, summary Message) (SummarySpan, error)
	// Discard supersedes the active entries after seq, which no checkpoint
	// covers, and reports how many it dropped.
	Discard(ctx context.Context, key statex.Key, after int64) (int, error)
}
