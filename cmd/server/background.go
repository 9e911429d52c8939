package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/robfig/cron/v3"

	"github.com/rezkam/tutorplan/internal/infrastructure/persistence"
)

// cacheSweeper is the part of planner.Service the sweep job needs.
type cacheSweeper interface {
	SweepCache() int
}

// startCacheSweep runs svc.SweepCache on the given cron spec.
func startCacheSweep(spec string, svc cacheSweeper) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if n := svc.SweepCache(); n > 0 {
			slog.Debug("swept expired task lists", "removed", n)
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule cache sweep: %w", err)
	}
	c.Start()
	slog.Info("cache sweep scheduled", "schedule", spec)
	return c, nil
}

func newListenBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = time.Minute
	return b
}

// listenForChanges keeps a change listener connected until ctx is done,
// reconnecting with backoff whenever the connection drops.
func listenForChanges(ctx context.Context, listener persistence.ChangeListener, invalidate func(ownerID string), b backoff.BackOff) {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, listener.Listen(ctx, invalidate)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.WarnContext(ctx, "change listener disconnected, retrying",
				"error", err,
				"retry_in", next)
		}),
	)
	if err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "change listener stopped", "error", err)
	}
}
