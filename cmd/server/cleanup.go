package main

import (
	"context"
	"io"
	"log/slog"
)

// scheduler abstracts the cron runner so tests can verify cleanup behavior
// without starting real jobs.
type scheduler interface {
	Stop() context.Context
}

// newCleanup constructs the shutdown hook: stop scheduled jobs and wait for
// running ones within ctx, then close the shared store.
func newCleanup(ctx context.Context, jobs scheduler, store io.Closer) func() {
	return func() {
		if jobs != nil {
			select {
			case <-jobs.Stop().Done():
			case <-ctx.Done():
				slog.WarnContext(ctx, "scheduled jobs did not finish before shutdown timeout")
			}
		}

		if store != nil {
			if err := store.Close(); err != nil {
				slog.Error("failed to close store", slog.String("error", err.Error()))
			}
		}
	}
}
