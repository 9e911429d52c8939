package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

// Listen subscribes to ChangesChannel on a connection taken out of the pool and
// calls fn with the owner id of every notification. It blocks until ctx is done,
// returning nil, or until the connection fails, returning the error so the
// caller can reconnect.
func (s *Store) Listen(ctx context.Context, fn func(ownerID string)) error {
	pooled, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listener connection: %w", err)
	}
	// A LISTENing session must not go back to the pool.
	conn := pooled.Hijack()
	defer conn.Close(context.WithoutCancel(ctx))

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ChangesChannel}.Sanitize()); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ChangesChannel, err)
	}
	slog.InfoContext(ctx, "listening for task changes", "channel", ChangesChannel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed waiting for notification: %w", err)
		}
		fn(n.Payload)
	}
}
