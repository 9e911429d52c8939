package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rezkam/tutorplan/internal/domain"
)

var taskColumns = []string{
	"id", "owner_id", "title", "subject", "description", "date",
	"start_time", "end_time", "recurring_group_id", "completed",
	"time_spent_sec", "created_at",
}

const taskColumnList = `
	id, owner_id, title, subject, description, date,
	start_time, end_time, recurring_group_id, completed,
	time_spent_sec, created_at`

const selectTaskColumns = `SELECT ` + taskColumnList + ` FROM tasks`

// === Recurring Group Operations ===

// CreateRecurringGroup stores a group row with its rule as JSONB.
func (s *Store) CreateRecurringGroup(ctx context.Context, group *domain.RecurringGroup) error {
	id, err := parseID(group.ID)
	if err != nil {
		return err
	}
	rule, err := ruleToJSON(group.Rule)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO recurring_groups (id, owner_id, rule, created_at)
		VALUES ($1, $2, $3, $4)`,
		id, group.OwnerID, rule, timeToPgtype(group.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert recurring group: %w", err)
	}
	return nil
}

// FindRecurringGroup retrieves a group by ID.
func (s *Store) FindRecurringGroup(ctx context.Context, id string) (*domain.RecurringGroup, error) {
	pgID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRow(ctx, `
		SELECT id, owner_id, rule, created_at
		FROM recurring_groups
		WHERE id = $1`, pgID)

	group, err := scanGroup(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrGroupNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find recurring group: %w", err)
	}
	return group, nil
}

// ListRecurringGroups returns every group of an owner ordered by creation time.
func (s *Store) ListRecurringGroups(ctx context.Context, ownerID string) ([]*domain.RecurringGroup, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, owner_id, rule, created_at
		FROM recurring_groups
		WHERE owner_id = $1
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

// DeleteGroup removes every task of the group and then the group row,
// inside one transaction. Returns the number of tasks removed.
func (s *Store) DeleteGroup(ctx context.Context, groupID string) (int, error) {
	pgID, err := parseID(groupID)
	if err != nil {
		return 0, err
	}

	var deleted int64
	err = s.executeInTransaction(ctx, "delete_group", func(tx *Store) error {
		tag, err := tx.db.Exec(ctx, `DELETE FROM tasks WHERE recurring_group_id = $1`, pgID)
		if err != nil {
			return fmt.Errorf("failed to delete group tasks: %w", err)
		}
		deleted = tag.RowsAffected()

		var ownerID string
		err = tx.db.QueryRow(ctx,
			`DELETE FROM recurring_groups WHERE id = $1 RETURNING owner_id`, pgID).Scan(&ownerID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrGroupNotFound, groupID)
		}
		if err != nil {
			return fmt.Errorf("failed to delete recurring group: %w", err)
		}

		return tx.notify(ctx, ownerID)
	})
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}

// === Task Operations ===

// InsertTasks bulk-loads tasks with COPY and notifies every affected owner.
func (s *Store) InsertTasks(ctx context.Context, tasks []*domain.Task) (int, error) {
	if len(tasks) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(tasks))
	var owners []string
	for _, t := range tasks {
		id, err := parseID(t.ID)
		if err != nil {
			return 0, err
		}
		groupID, err := optionalID(t.RecurringGroupID)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{
			id,
			t.OwnerID,
			t.Title,
			t.Subject,
			t.Description,
			dateToPgtype(t.Date),
			textPtrToPgtype(t.StartTime),
			textPtrToPgtype(t.EndTime),
			groupID,
			t.Completed,
			intPtrToPgtype(t.TimeSpentSec),
			timeToPgtype(t.CreatedAt),
		})
		if !slices.Contains(owners, t.OwnerID) {
			owners = append(owners, t.OwnerID)
		}
	}

	copied, err := s.db.CopyFrom(ctx, pgx.Identifier{"tasks"}, taskColumns, pgx.CopyFromRows(rows))
	if err != nil {
		if isForeignKeyViolation(err, "recurring_group_id") {
			return 0, fmt.Errorf("%w: %w", domain.ErrGroupNotFound, err)
		}
		return 0, fmt.Errorf("failed to copy tasks: %w", err)
	}

	if err := s.notify(ctx, owners...); err != nil {
		return int(copied), err
	}
	return int(copied), nil
}

// FindTaskByID retrieves a single task.
func (s *Store) FindTaskByID(ctx context.Context, id string) (*domain.Task, error) {
	pgID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	task, err := scanTask(s.db.QueryRow(ctx, selectTaskColumns+` WHERE id = $1`, pgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// FindTasks returns an owner's tasks in an inclusive date range.
// NULL bounds skip the corresponding filter.
func (s *Store) FindTasks(ctx context.Context, query domain.TaskQuery) ([]*domain.Task, error) {
	rows, err := s.db.Query(ctx, selectTaskColumns+`
		WHERE owner_id = $1
		  AND ($2::date IS NULL OR date >= $2)
		  AND ($3::date IS NULL OR date <= $3)
		ORDER BY date, created_at, id`,
		query.OwnerID, datePtrToPgtype(query.From), datePtrToPgtype(query.To))
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

// DeleteTask removes a single task.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	pgID, err := parseID(id)
	if err != nil {
		return err
	}

	return s.executeInTransaction(ctx, "delete_task", func(tx *Store) error {
		var ownerID string
		err := tx.db.QueryRow(ctx, `DELETE FROM tasks WHERE id = $1 RETURNING owner_id`, pgID).Scan(&ownerID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		return tx.notify(ctx, ownerID)
	})
}

// UpdateTask records progress on a task. NULL parameters keep the stored value.
func (s *Store) UpdateTask(ctx context.Context, id string, update domain.TaskUpdate) (*domain.Task, error) {
	pgID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	completed := pgtype.Bool{}
	if update.Completed != nil {
		completed = pgtype.Bool{Bool: *update.Completed, Valid: true}
	}

	var task *domain.Task
	err = s.executeInTransaction(ctx, "update_task", func(tx *Store) error {
		t, err := scanTask(tx.db.QueryRow(ctx, `
			UPDATE tasks
			SET completed = COALESCE($2, completed),
			    time_spent_sec = COALESCE($3, time_spent_sec)
			WHERE id = $1
			RETURNING `+taskColumnList,
			pgID, completed, intPtrToPgtype(update.TimeSpentSec)))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		task = t
		return tx.notify(ctx, t.OwnerID)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// CountGroupTasks returns how many tasks reference the group.
func (s *Store) CountGroupTasks(ctx context.Context, groupID string) (int, error) {
	pgID, err := parseID(groupID)
	if err != nil {
		return 0, err
	}

	var n int
	if err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM tasks WHERE recurring_group_id = $1`, pgID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count group tasks: %w", err)
	}
	return n, nil
}

// ListOwners returns every owner with at least one task.
func (s *Store) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT owner_id FROM tasks ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	owners, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	return owners, nil
}

// === Row Scanning ===

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		id, groupID        pgtype.UUID
		date               pgtype.Date
		startTime, endTime pgtype.Text
		timeSpent          pgtype.Int4
		createdAt          pgtype.Timestamptz
		t                  domain.Task
	)

	err := row.Scan(&id, &t.OwnerID, &t.Title, &t.Subject, &t.Description, &date,
		&startTime, &endTime, &groupID, &t.Completed, &timeSpent, &createdAt)
	if err != nil {
		return nil, err
	}

	t.ID = pgtypeToUUIDString(id)
	t.Date = pgtypeToDate(date)
	t.StartTime = pgtypeToTextPtr(startTime)
	t.EndTime = pgtypeToTextPtr(endTime)
	t.RecurringGroupID = pgtypeToUUIDPtr(groupID)
	t.TimeSpentSec = pgtypeToIntPtr(timeSpent)
	t.CreatedAt = pgtypeToTime(createdAt)
	return &t, nil
}

func scanGroup(row pgx.Row) (*domain.RecurringGroup, error) {
	var (
		id        pgtype.UUID
		rule      []byte
		createdAt pgtype.Timestamptz
		g         domain.RecurringGroup
	)

	if err := row.Scan(&id, &g.OwnerID, &rule, &createdAt); err != nil {
		return nil, err
	}

	decoded, err := ruleFromJSON(rule)
	if err != nil {
		return nil, err
	}

	g.ID = pgtypeToUUIDString(id)
	g.Rule = decoded
	g.CreatedAt = pgtypeToTime(createdAt)
	return &g, nil
}
