package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tanpawarit/Chative-Travel-Router/agent/transport/httpapi"
	configx "github.com/tanpawarit/Chative-Travel-Router/pkg/config"
	logx "github.com/tanpawarit/Chative-Travel-Router/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the router over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			httpCfg, err := configx.New[httpapi.Config]("HTTP")
			if err != nil {
				return err
			}
			if addr != "" {
				httpCfg.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := wireApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			logger := logx.Component("serve")
			server := httpapi.NewServer(httpapi.NewHandler(app.router, app.ledger))

			errCh := make(chan error, 1)
			go func() {
				logger.Info().Str("addr", httpCfg.Addr).Msg("http server started")
				if err := server.Start(httpCfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")

	return cmd
}
