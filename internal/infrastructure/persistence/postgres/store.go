package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rezkam/tutorplan/internal/application/planner"
)

// ChangesChannel is the LISTEN/NOTIFY channel carrying the owner id of every
// task write. Notifications sent inside a transaction are delivered on commit.
const ChangesChannel = "task_changes"

// dbtx is the query surface shared by the pool and an open transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store provides the PostgreSQL implementation of planner.Repository.
type Store struct {
	pool *pgxpool.Pool
	db   dbtx
	inTx bool
}

var _ planner.Repository = (*Store)(nil)

// NewStore creates a new PostgreSQL store with the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// finalizeTx handles transaction cleanup for normal error/success cases.
// Rolls back on error, commits on success.
// Panics are handled in executeInTransaction before finalizeTx is called.
func finalizeTx(ctx context.Context, tx pgx.Tx, err *error) {
	if *err != nil {
		slog.ErrorContext(ctx, "transaction failed, rolling back",
			"error", *err)
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.ErrorContext(ctx, "rollback failed",
				"original_error", *err,
				"rollback_error", rbErr)
			*err = fmt.Errorf("transaction failed: %w (rollback error: %v)", *err, rbErr)
		}
	} else {
		*err = tx.Commit(ctx)
		if *err != nil {
			slog.ErrorContext(ctx, "transaction commit failed",
				"error", *err)
		}
	}
}

// executeInTransaction runs fn on a store bound to a new transaction, with
// logging and panic recovery. A store already inside a transaction runs fn
// on itself so nested calls join the outer transaction.
func (s *Store) executeInTransaction(ctx context.Context, operationName string, fn func(txStore *Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}

	start := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to begin transaction",
			"operation", operationName,
			"error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(ctx, "transaction panic, rolling back",
				"operation", operationName,
				"panic", p)
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.ErrorContext(ctx, "rollback after panic failed",
					"operation", operationName,
					"panic", p,
					"rollback_error", rbErr)
			}
			panic(p)
		}

		finalizeTx(ctx, tx, &err)
		if err == nil {
			slog.DebugContext(ctx, "transaction completed",
				"operation", operationName,
				"duration_ms", time.Since(start).Milliseconds())
		}
	}()

	err = fn(&Store{pool: s.pool, db: tx, inTx: true})
	return
}

// Atomic executes fn within a database transaction.
// The repository passed to fn operates within the transaction; everything it
// writes commits if fn returns nil and rolls back otherwise.
func (s *Store) Atomic(ctx context.Context, fn func(repo planner.Repository) error) error {
	return s.executeInTransaction(ctx, "atomic", func(txStore *Store) error {
		return fn(txStore)
	})
}

// notify publishes owner ids on ChangesChannel.
func (s *Store) notify(ctx context.Context, ownerIDs ...string) error {
	for _, owner := range ownerIDs {
		if _, err := s.db.Exec(ctx, "SELECT pg_notify($1, $2)", ChangesChannel, owner); err != nil {
			return fmt.Errorf("failed to notify %s: %w", ChangesChannel, err)
		}
	}
	return nil
}
