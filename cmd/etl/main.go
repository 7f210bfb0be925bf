// Command etl computes and persists the coral bleaching risk status.
//
// Usage:
//
//	etl reload   rebuild the full history from the CSV data directory
//	etl status   refresh the most recent day from the remote provider
//	etl serve    run both on cron schedules behind /healthz, /readyz, /metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/coral-risk-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/coral-risk-etl/internal/config"
	"github.com/couchcryptid/coral-risk-etl/internal/observability"
	"github.com/couchcryptid/coral-risk-etl/internal/pipeline"
	"github.com/couchcryptid/coral-risk-etl/internal/scheduler"
)

const usage = "usage: etl <reload|status|serve>"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	cmd := args[0]
	switch cmd {
	case "reload", "status", "serve":
	default:
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	profile, err := config.LoadProfile(cfg.SiteProfile)
	if err != nil {
		logger.Error("failed to load site profile", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()
	a, err := newApp(ctx, cfg, profile, logger, metrics)
	if err != nil {
		logger.Error("failed to initialise", "error", err)
		return 1
	}
	defer a.Close()

	switch cmd {
	case "reload":
		return reload(ctx, a)
	case "status":
		return status(ctx, a)
	default:
		return serve(ctx, cfg, a, logger)
	}
}

func reload(ctx context.Context, a *app) int {
	sum, err := a.pipeline.Reload(ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoData) {
			a.logger.Error("nothing persisted", "error", err)
		} else {
			a.logger.Error("reload failed", "error", err)
		}
		return 1
	}
	fmt.Println(sum.StatusLine())
	return 0
}

func status(ctx context.Context, a *app) int {
	st, err := a.status.Run(ctx)
	if err != nil {
		a.logger.Error("status refresh failed", "error", err)
		return 1
	}
	fmt.Println(pipeline.FormatStatus(st))
	return 0
}

func serve(ctx context.Context, cfg *config.Config, a *app, logger *slog.Logger) int {
	sched := scheduler.New(ctx, 0, logger)
	if err := sched.Add("reload", cfg.ReloadSchedule, func(ctx context.Context) error {
		_, err := a.pipeline.Reload(ctx)
		return err
	}); err != nil {
		logger.Error("invalid RELOAD_SCHEDULE", "error", err)
		return 1
	}
	if err := sched.Add("status", cfg.StatusSchedule, func(ctx context.Context) error {
		_, err := a.status.Run(ctx)
		return err
	}); err != nil {
		logger.Error("invalid STATUS_SCHEDULE", "error", err)
		return 1
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, logger, a.pipeline, a.store)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	sched.Start()
	// A failed first reload leaves /readyz failing until a scheduled run succeeds.
	go func() { _ = sched.RunNow("reload") }()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("scheduled job still running at shutdown deadline")
	}

	logger.Info("shutdown complete")
	return 0
}
