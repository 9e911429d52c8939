package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rezkam/tutorplan/internal/application/planner"
	"github.com/rezkam/tutorplan/internal/domain"
)

// timestampLayout is fixed width so that text ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// dbtx is the query surface shared by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Store implements planner.Repository on an embedded SQLite database.
type Store struct {
	db   *sql.DB
	q    dbtx
	inTx bool
}

var _ planner.Repository = (*Store)(nil)

// NewStore creates a store on an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// executeInTransaction runs fn on a store bound to a new transaction.
// A store already inside a transaction runs fn on itself.
func (s *Store) executeInTransaction(ctx context.Context, operationName string, fn func(txStore *Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.ErrorContext(ctx, "rollback failed",
					"operation", operationName,
					"original_error", err,
					"rollback_error", rbErr)
			}
			return
		}
		if err = tx.Commit(); err != nil {
			err = fmt.Errorf("failed to commit %s: %w", operationName, err)
		}
	}()

	err = fn(&Store{db: s.db, q: tx, inTx: true})
	return
}

// Atomic executes fn within a transaction.
func (s *Store) Atomic(ctx context.Context, fn func(repo planner.Repository) error) error {
	return s.executeInTransaction(ctx, "atomic", func(txStore *Store) error {
		return fn(txStore)
	})
}

// === Recurring Group Operations ===

func (s *Store) CreateRecurringGroup(ctx context.Context, group *domain.RecurringGroup) error {
	if err := validateID(group.ID); err != nil {
		return err
	}
	rule, err := encodeRule(group.Rule)
	if err != nil {
		return err
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO recurring_groups (id, owner_id, rule, created_at)
		VALUES (?, ?, ?, ?)`,
		group.ID, group.OwnerID, rule, formatTimestamp(group.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert recurring group: %w", err)
	}
	return nil
}

func (s *Store) FindRecurringGroup(ctx context.Context, id string) (*domain.RecurringGroup, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx, `
		SELECT id, owner_id, rule, created_at
		FROM recurring_groups
		WHERE id = ?`, id)

	group, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrGroupNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find recurring group: %w", err)
	}
	return group, nil
}

func (s *Store) ListRecurringGroups(ctx context.Context, ownerID string) ([]*domain.RecurringGroup, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, owner_id, rule, created_at
		FROM recurring_groups
		WHERE owner_id = ?
		ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring groups: %w", err)
	}
	defer rows.Close()

	var groups []*domain.RecurringGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurring group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list recurring groups: %w", err)
	}
	return groups, nil
}

func (s *Store) DeleteGroup(ctx context.Context, groupID string) (int, error) {
	if err := validateID(groupID); err != nil {
		return 0, err
	}

	var deleted int64
	err := s.executeInTransaction(ctx, "delete_group", func(tx *Store) error {
		res, err := tx.q.ExecContext(ctx, `DELETE FROM tasks WHERE recurring_group_id = ?`, groupID)
		if err != nil {
			return fmt.Errorf("failed to delete group tasks: %w", err)
		}
		if deleted, err = res.RowsAffected(); err != nil {
			return err
		}

		res, err = tx.q.ExecContext(ctx, `DELETE FROM recurring_groups WHERE id = ?`, groupID)
		if err != nil {
			return fmt.Errorf("failed to delete recurring group: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", domain.ErrGroupNotFound, groupID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}

// === Task Operations ===

// InsertTasks stores tasks with one prepared statement inside a transaction.
func (s *Store) InsertTasks(ctx context.Context, tasks []*domain.Task) (int, error) {
	if len(tasks) == 0 {
		return 0, nil
	}
	for _, t := range tasks {
		if err := validateID(t.ID); err != nil {
			return 0, err
		}
		if t.RecurringGroupID != nil {
			if err := validateID(*t.RecurringGroupID); err != nil {
				return 0, err
			}
		}
	}

	var inserted int
	err := s.executeInTransaction(ctx, "insert_tasks", func(tx *Store) error {
		stmt, err := tx.q.PrepareContext(ctx, `
			INSERT INTO tasks (id, owner_id, title, subject, description, date,
			                   start_time, end_time, recurring_group_id, completed,
			                   time_spent_sec, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare task insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range tasks {
			res, err := stmt.ExecContext(ctx,
				t.ID, t.OwnerID, t.Title, t.Subject, t.Description, t.Date.String(),
				nullString(t.StartTime), nullString(t.EndTime), nullString(t.RecurringGroupID),
				t.Completed, nullInt(t.TimeSpentSec), formatTimestamp(t.CreatedAt))
			if err != nil {
				if isForeignKeyViolation(err) {
					return fmt.Errorf("%w: %w", domain.ErrGroupNotFound, err)
				}
				return fmt.Errorf("failed to insert task: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *Store) FindTaskByID(ctx context.Context, id string) (*domain.Task, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	task, err := scanTask(s.q.QueryRowContext(ctx, selectTask+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

func (s *Store) FindTasks(ctx context.Context, query domain.TaskQuery) ([]*domain.Task, error) {
	rows, err := s.q.QueryContext(ctx, selectTask+`
		WHERE owner_id = ?
		  AND (? IS NULL OR date >= ?)
		  AND (? IS NULL OR date <= ?)
		ORDER BY date, created_at, id`,
		query.OwnerID,
		nullDate(query.From), nullDate(query.From),
		nullDate(query.To), nullDate(query.To))
	if err != nil {
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}
	return tasks, nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	res, err := s.q.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	return nil
}

// UpdateTask records progress on a task. NULL parameters keep the stored value.
func (s *Store) UpdateTask(ctx context.Context, id string, update domain.TaskUpdate) (*domain.Task, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	completed := sql.NullBool{}
	if update.Completed != nil {
		completed = sql.NullBool{Bool: *update.Completed, Valid: true}
	}

	task, err := scanTask(s.q.QueryRowContext(ctx, `
		UPDATE tasks
		SET completed = COALESCE(?, completed),
		    time_spent_sec = COALESCE(?, time_spent_sec)
		WHERE id = ?
		RETURNING `+taskColumnList,
		completed, nullInt(update.TimeSpentSec), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

func (s *Store) CountGroupTasks(ctx context.Context, groupID string) (int, error) {
	if err := validateID(groupID); err != nil {
		return 0, err
	}

	var n int
	if err := s.q.QueryRowContext(ctx,
		`SELECT count(*) FROM tasks WHERE recurring_group_id = ?`, groupID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count group tasks: %w", err)
	}
	return n, nil
}

func (s *Store) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT DISTINCT owner_id FROM tasks ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("failed to scan owner: %w", err)
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

// === Row Scanning ===

const taskColumnList = `
	id, owner_id, title, subject, description, date,
	start_time, end_time, recurring_group_id, completed,
	time_spent_sec, created_at`

const selectTask = `SELECT ` + taskColumnList + ` FROM tasks`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*domain.Task, error) {
	var (
		t                           domain.Task
		date, createdAt             string
		startTime, endTime, groupID sql.NullString
		timeSpent                   sql.NullInt64
	)

	err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Subject, &t.Description, &date,
		&startTime, &endTime, &groupID, &t.Completed, &timeSpent, &createdAt)
	if err != nil {
		return nil, err
	}

	if t.Date, err = civil.ParseDate(date); err != nil {
		return nil, fmt.Errorf("corrupt task date %q: %w", date, err)
	}
	if t.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	t.StartTime = stringPtr(startTime)
	t.EndTime = stringPtr(endTime)
	t.RecurringGroupID = stringPtr(groupID)
	if timeSpent.Valid {
		v := int(timeSpent.Int64)
		t.TimeSpentSec = &v
	}
	return &t, nil
}

func scanGroup(row scanner) (*domain.RecurringGroup, error) {
	var (
		g         domain.RecurringGroup
		rule      sql.NullString
		createdAt string
	)

	if err := row.Scan(&g.ID, &g.OwnerID, &rule, &createdAt); err != nil {
		return nil, err
	}

	if rule.Valid && rule.String != "" {
		var r domain.RecurrenceRule
		if err := json.Unmarshal([]byte(rule.String), &r); err != nil {
			return nil, fmt.Errorf("failed to decode recurrence rule: %w", err)
		}
		g.Rule = &r
	}

	var err error
	if g.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	return &g, nil
}

// === Conversion Helpers ===

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}
	return nil
}

func encodeRule(rule *domain.RecurrenceRule) (sql.NullString, error) {
	if rule == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(rule)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode recurrence rule: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullDate(d *civil.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// isForeignKeyViolation reports whether err is a foreign key constraint
// failure, with or without extended result codes.
func isForeignKeyViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY ||
		(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "FOREIGN KEY"))
}
