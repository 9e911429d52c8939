package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/rezkam/tutorplan/internal/application/planner"
	"github.com/rezkam/tutorplan/internal/infrastructure/feed"
)

// ScheduleSource is the read side of the planner the worker publishes from.
// *planner.Service satisfies it.
type ScheduleSource interface {
	ListOwners(ctx context.Context) ([]string, error)
	OwnerSchedule(ctx context.Context, ownerID string) (*planner.Schedule, error)
}

// Report summarizes one publishing run.
type Report struct {
	Owners    int
	Published int
	Failed    int
	Pruned    int
}

// Worker renders every owner's schedule as an iCalendar feed and hands it to
// a publisher, either once or on a cron schedule.
type Worker struct {
	source           ScheduleSource
	publisher        feed.Publisher
	loc              *time.Location
	concurrency      int
	operationTimeout time.Duration
	publishAttempts  uint
	retryInterval    time.Duration
	prune            bool
	errorHandler     ErrorHandler
}

// Option is a functional option for configuring Worker.
type Option func(*Worker)

// WithLocation sets the zone timed tasks are placed in.
func WithLocation(loc *time.Location) Option {
	return func(w *Worker) {
		if loc != nil {
			w.loc = loc
		}
	}
}

// WithConcurrency sets how many owners are published in parallel.
func WithConcurrency(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithOperationTimeout sets the timeout for a whole publishing run.
func WithOperationTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.operationTimeout = d
		}
	}
}

// WithPublishRetry sets how many times a failed publish is attempted and the
// initial wait between attempts.
func WithPublishRetry(attempts uint, interval time.Duration) Option {
	return func(w *Worker) {
		if attempts > 0 {
			w.publishAttempts = attempts
		}
		if interval > 0 {
			w.retryInterval = interval
		}
	}
}

// WithPrune removes feeds of owners that no longer have tasks after each run.
func WithPrune(prune bool) Option {
	return func(w *Worker) {
		w.prune = prune
	}
}

// WithErrorHandler replaces the default logging error handler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(w *Worker) {
		if h != nil {
			w.errorHandler = h
		}
	}
}

// New creates a new Worker with the given source, publisher and options.
func New(source ScheduleSource, publisher feed.Publisher, opts ...Option) *Worker {
	w := &Worker{
		source:           source,
		publisher:        publisher,
		loc:              time.UTC,
		concurrency:      4,
		operationTimeout: 5 * time.Minute,
		publishAttempts:  3,
		retryInterval:    500 * time.Millisecond,
		errorHandler:     &DefaultErrorHandler{},
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Start publishes once immediately and then on every tick of the cron spec.
// Runs until ctx is cancelled. On shutdown it stops scheduling, waits for an
// in-flight run to complete and returns nil.
func (w *Worker) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))
	if _, err := c.AddFunc(spec, func() { w.runScheduled() }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	slog.InfoContext(ctx, "Feed publisher started", "schedule", spec)

	// Publish immediately on startup
	w.runScheduled()
	c.Start()

	<-ctx.Done()
	slog.InfoContext(ctx, "Shutdown requested, waiting for in-flight run...")
	<-c.Stop().Done()
	slog.InfoContext(ctx, "Feed publisher stopped gracefully")
	return nil
}

func (w *Worker) runScheduled() {
	opCtx, cancel := context.WithTimeout(context.Background(), w.operationTimeout)
	defer cancel()
	if _, err := w.RunOnce(opCtx); err != nil {
		slog.ErrorContext(opCtx, "Error publishing feeds", "error", err)
	}
}

// RunOnce executes a single publishing cycle over every owner.
// Failures of individual owners are counted in the report and passed to the
// error handler; only listing owners or pruning fails the run.
func (w *Worker) RunOnce(ctx context.Context) (Report, error) {
	owners, err := w.source.ListOwners(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list owners: %w", err)
	}

	slog.InfoContext(ctx, "Publishing feeds", "owners", len(owners))

	var published, failed atomic.Int64
	names := make([]string, len(owners))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i, ownerID := range owners {
		names[i] = feed.FileName(ownerID)
		g.Go(func() error {
			if err := w.publishWithRecovery(gctx, ownerID, names[i]); err != nil {
				failed.Add(1)
				return nil
			}
			published.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Owners:    len(owners),
		Published: int(published.Load()),
		Failed:    int(failed.Load()),
	}

	// A partial run would delete feeds of owners whose publish failed.
	if w.prune && report.Failed == 0 {
		removed, err := feed.Prune(ctx, w.publisher, names)
		report.Pruned = removed
		if err != nil {
			return report, fmt.Errorf("failed to prune feeds: %w", err)
		}
	}

	slog.InfoContext(ctx, "Feeds published",
		"owners", report.Owners,
		"published", report.Published,
		"failed", report.Failed,
		"pruned", report.Pruned)

	return report, nil
}

// publishWithRecovery publishes one owner's feed, turning a panic into a
// PanicError so one bad schedule cannot stop the run.
func (w *Worker) publishWithRecovery(ctx context.Context, ownerID, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stackTrace := string(debug.Stack())
			w.errorHandler.HandlePanic(ctx, ownerID, r, stackTrace)
			err = PanicError{Value: r, StackTrace: stackTrace}
		}
	}()

	if err := w.publishOwner(ctx, ownerID, name); err != nil {
		w.errorHandler.HandleError(ctx, ownerID, err)
		return err
	}
	return nil
}

func (w *Worker) publishOwner(ctx context.Context, ownerID, name string) error {
	schedule, err := w.source.OwnerSchedule(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to load schedule: %w", err)
	}

	data := feed.Encode(ownerID, schedule.Tasks, schedule.Groups, w.loc)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.retryInterval
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		err := w.publisher.Publish(ctx, name, data)
		if errors.Is(err, feed.ErrInvalidName) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(w.publishAttempts),
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", name, err)
	}

	slog.DebugContext(ctx, "Published feed", "owner_id", ownerID, "name", name, "tasks", len(schedule.Tasks))
	return nil
}
