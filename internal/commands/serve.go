package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coopbooks/coopbooks/internal/api"
	"github.com/coopbooks/coopbooks/internal/metrics"
	"github.com/coopbooks/coopbooks/internal/statements"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API for every tenant in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.HTTP.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	a.metrics = metrics.NewCollector()
	reg, err := a.registry()
	if err != nil {
		return err
	}

	srv := api.NewServer(api.Options{
		Tenants: reg,
		Reports: statements.NewGenerator(a.logger),
		Metrics: a.metrics,
		Retry:   a.retryPolicy(),
		Logger:  a.logger.Named("api"),
	})

	server := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("shutting down server", zap.Error(err))
		}
	}()

	a.logger.Info("starting server",
		zap.String("addr", server.Addr),
		zap.String("database", a.cfg.Database.Path),
		zap.Bool("redis_locks", a.redis != nil))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}
