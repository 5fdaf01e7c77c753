package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/account-aggregator-go/internal/config"
	"github.com/boddenberg/account-aggregator-go/internal/domain"
	"github.com/boddenberg/account-aggregator-go/internal/handler"
	"github.com/boddenberg/account-aggregator-go/internal/infra/cache"
	"github.com/boddenberg/account-aggregator-go/internal/infra/scheduler"
	"github.com/boddenberg/account-aggregator-go/internal/port"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve reports over HTTP at GET /v1/report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().Int("port", 0, "listen port (default 8080)")
	_ = a.v.BindPFlag(config.KeyPort, cmd.Flags().Lookup("port"))
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	// --- Cache ---
	var reportCache port.Cache[*domain.Report]
	if a.cfg.CacheTTL > 0 {
		c := cache.New[*domain.Report](a.cfg.CacheTTL)
		defer c.Close()
		reportCache = c
	}

	reporter := a.newReporter(reportCache)

	// --- Background refresh ---
	if a.cfg.RefreshSchedule != "" {
		sched := scheduler.New(ctx, a.logger)
		err := sched.AddJob(a.cfg.RefreshSchedule, scheduler.JobFunc{
			JobName: "refresh-report",
			Fn:      reporter.Refresh,
		})
		if err != nil {
			return fmt.Errorf("invalid %s: %w", config.KeyRefresh, err)
		}
		sched.Start()
		defer sched.Stop()
	}

	// --- Router ---
	router := handler.NewRouter(reporter, a.metrics, a.logger, a.cfg.CORSOrigins...)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting",
			zap.Int("port", a.cfg.Port),
			zap.Duration("cache_ttl", a.cfg.CacheTTL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// --- Graceful shutdown ---
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}

	a.logger.Info("server stopped")
	return nil
}
