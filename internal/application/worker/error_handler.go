package worker

import (
	"context"
	"log/slog"
)

// ErrorHandler receives per-owner publishing failures for telemetry and alerting.
// Allows custom integration with error tracking services (Sentry, Datadog, etc.).
type ErrorHandler interface {
	// HandleError is called when an owner's feed could not be published after retries.
	HandleError(ctx context.Context, ownerID string, err error)

	// HandlePanic is called when publishing an owner's feed panics.
	// Includes panic value and stack trace.
	HandlePanic(ctx context.Context, ownerID string, panicVal any, stackTrace string)
}

// DefaultErrorHandler logs errors and panics with structured logging.
type DefaultErrorHandler struct{}

func (h *DefaultErrorHandler) HandleError(ctx context.Context, ownerID string, err error) {
	slog.ErrorContext(ctx, "Feed publish failed",
		slog.String("owner_id", ownerID),
		slog.String("error", err.Error()),
	)
}

func (h *DefaultErrorHandler) HandlePanic(ctx context.Context, ownerID string, panicVal any, stackTrace string) {
	slog.ErrorContext(ctx, "Feed publish panicked",
		slog.String("owner_id", ownerID),
		slog.Any("panic_value", panicVal),
		slog.String("stack_trace", stackTrace),
	)
}
