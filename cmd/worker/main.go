package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rezkam/tutorplan/internal/application/planner"
	"github.com/rezkam/tutorplan/internal/application/worker"
	"github.com/rezkam/tutorplan/internal/config"
	"github.com/rezkam/tutorplan/internal/infrastructure/feed"
	"github.com/rezkam/tutorplan/internal/infrastructure/observability"
	"github.com/rezkam/tutorplan/internal/infrastructure/persistence"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	telemetry, err := observability.Setup(ctx, observability.Config{
		Enabled:     cfg.Observability.OTelEnabled,
		ServiceName: cfg.Observability.ServiceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown telemetry", "error", err)
		}
	}()

	store, err := persistence.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer store.Close()

	publisher, err := newPublisher(ctx, cfg.Feed)
	if err != nil {
		return err
	}
	if c, ok := publisher.(io.Closer); ok {
		defer c.Close()
	}

	// The worker reads each owner once per run, so the cache never helps.
	svc := planner.NewService(store, planner.Config{CacheStaleAfter: time.Nanosecond})

	w := worker.New(svc, publisher,
		worker.WithLocation(cfg.Feed.Location()),
		worker.WithOperationTimeout(cfg.OperationTimeout),
		worker.WithPrune(cfg.Feed.Prune),
	)

	if cfg.Feed.Schedule == "" {
		report, err := w.RunOnce(ctx)
		if err != nil {
			return err
		}
		if report.Failed > 0 {
			return fmt.Errorf("%d of %d feeds failed to publish", report.Failed, report.Owners)
		}
		return nil
	}

	return w.Start(ctx, cfg.Feed.Schedule)
}

// newPublisher builds the feed publisher selected by cfg.Backend.
func newPublisher(ctx context.Context, cfg config.FeedConfig) (feed.Publisher, error) {
	switch cfg.Backend {
	case config.FeedBackendGCS:
		p, err := feed.NewGCSPublisher(ctx, cfg.Bucket, cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS publisher: %w", err)
		}
		slog.InfoContext(ctx, "publishing feeds to GCS", "bucket", cfg.Bucket, "prefix", cfg.Prefix)
		return p, nil
	case config.FeedBackendFS:
		p, err := feed.NewFSPublisher(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to create feed directory: %w", err)
		}
		slog.InfoContext(ctx, "publishing feeds to directory", "dir", cfg.Dir)
		return p, nil
	default:
		return nil, fmt.Errorf("unknown feed backend %q", cfg.Backend)
	}
}
