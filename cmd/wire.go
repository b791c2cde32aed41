package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"github.com/tanpawarit/Chative-Travel-Router/agent/agents/router"
	"github.com/tanpawarit/Chative-Travel-Router/agent/agents/worker"
	"github.com/tanpawarit/Chative-Travel-Router/agent/checkpoint"
	"github.com/tanpawarit/Chative-Travel-Router/agent/ledger"
	llmx "github.com/tanpawarit/Chative-Travel-Router/agent/llm"
	promptx "github.com/tanpawarit/Chative-Travel-Router/agent/prompt"
	"github.com/tanpawarit/Chative-Travel-Router/agent/routing"
	statex "github.com/tanpawarit/Chative-Travel-Router/agent/state"
	toolx "github.com/tanpawarit/Chative-Travel-Router/agent/tool"
	configx "github.com/tanpawarit/Chative-Travel-Router/pkg/config"
	"github.com/tanpawarit/Chative-Travel-Router/pkg/database"
	logx "github.com/tanpawarit/Chative-Travel-Router/pkg/logger"
	mcpx "github.com/tanpawarit/Chative-Travel-Router/pkg/mcp"
	openrouterx "github.com/tanpawarit/Chative-Travel-Router/pkg/openrouter"
)

const (
	sessionBackendSQL     = "sql"
	sessionBackendUpstash = "upstash"
)

type sessionConfig struct {
	Backend string `envconfig:"BACKEND" default:"sql"`
}

type stores struct {
	db          *bun.DB
	sessions    statex.Store
	checkpoints *checkpoint.SQLStore
	ledger      *ledger.Store
}

func (s *stores) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type app struct {
	*stores
	router *router.Router
	tools  *mcpx.Client
}

func (a *app) Close() error {
	return errors.Join(a.tools.Close(), a.stores.Close())
}

// openStores connects the database and the session backend.
func openStores(ctx context.Context) (*stores, error) {
	dbCfg, err := configx.New[database.Config]("DATABASE")
	if err != nil {
		return nil, fmt.Errorf("load database config: %w", err)
	}
	db, err := database.Open(*dbCfg)
	if err != nil {
		return nil, err
	}
	st := &stores{db: db}

	if st.checkpoints, err = checkpoint.NewSQLStore(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if st.ledger, err = ledger.NewStore(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if st.sessions, err = openSessionStore(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func openSessionStore(ctx context.Context, db *bun.DB) (statex.Store, error) {
	cfg, err := configx.New[sessionConfig]("SESSION")
	if err != nil {
		return nil, fmt.Errorf("load session config: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case sessionBackendSQL, "":
		return statex.NewSQLStore(ctx, db)
	case sessionBackendUpstash:
		upstashCfg, err := configx.New[statex.UpstashRedisConfig]("SESSION_UPSTASH")
		if err != nil {
			return nil, fmt.Errorf("load upstash config: %w", err)
		}
		return statex.NewUpstashRedisStore(*upstashCfg)
	default:
		return nil, fmt.Errorf("unsupported session backend %q", cfg.Backend)
	}
}

// wireApp builds the router with every dependency it needs: stores, the
// MCP tool partition, prompts and one OpenRouter model per worker.
func wireApp(ctx context.Context) (*app, error) {
	llmCfg, err := configx.New[llmx.Config]("OPENROUTER")
	if err != nil {
		return nil, fmt.Errorf("load openrouter config: %w", err)
	}
	if err := llmCfg.Validate(); err != nil {
		return nil, err
	}
	routerCfg, err := configx.New[router.Config]("ROUTER")
	if err != nil {
		return nil, fmt.Errorf("load router config: %w", err)
	}
	workerOpts, err := configx.New[worker.Options]("ROUTER")
	if err != nil {
		return nil, fmt.Errorf("load worker config: %w", err)
	}
	mcpCfg, err := configx.New[mcpx.Config]("MCP")
	if err != nil {
		return nil, fmt.Errorf("load mcp config: %w", err)
	}

	logger := logx.Component("wire")

	if llmCfg.Preflight {
		client := openrouterx.NewClient(llmCfg.OpenRouterFor(routing.StateEntry))
		if err := openrouterx.Preflight(ctx, client, llmCfg.Models()...); err != nil {
			return nil, err
		}
	}

	mcpClient, err := mcpx.Dial(ctx, *mcpCfg, logx.Component("mcp"))
	if err != nil {
		return nil, fmt.Errorf("connect mcp server: %w", err)
	}
	defs, err := mcpClient.ListTools(ctx)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("list mcp tools: %w", err), mcpClient.Close())
	}
	catalog, err := toolx.NewCatalog(defs)
	if err != nil {
		return nil, errors.Join(err, mcpClient.Close())
	}
	logger.Info().Interface("distribution", catalog.Distribution()).Int("tools", len(defs)).Msg("tools partitioned")

	prompts, err := promptx.LoadPromptSet()
	if err != nil {
		return nil, errors.Join(err, mcpClient.Close())
	}
	registry, err := worker.NewRegistry(
		ctx,
		worker.OpenRouterModels(*llmCfg),
		prompts,
		catalog,
		toolx.NewGateway(mcpClient, catalog),
		*workerOpts,
	)
	if err != nil {
		return nil, errors.Join(err, mcpClient.Close())
	}

	st, err := openStores(ctx)
	if err != nil {
		return nil, errors.Join(err, mcpClient.Close())
	}
	r, err := router.New(router.Deps{
		Workers:     registry,
		Sessions:    st.sessions,
		Checkpoints: st.checkpoints,
		Ledger:      st.ledger,
	}, *routerCfg)
	if err != nil {
		return nil, errors.Join(err, st.Close(), mcpClient.Close())
	}

	return &app{stores: st, router: r, tools: mcpClient}, nil
}
