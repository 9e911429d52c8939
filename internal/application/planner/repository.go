package planner

import (
	"context"

	"github.com/rezkam/tutorplan/internal/domain"
)

// Repository defines storage operations for planner tasks and recurring groups.
type Repository interface {
	// === Recurring Group Operations ===

	// CreateRecurringGroup stores a group row holding the rule it was expanded from.
	CreateRecurringGroup(ctx context.Context, group *domain.RecurringGroup) error

	// FindRecurringGroup retrieves a group by ID.
	// Returns domain.ErrGroupNotFound if the group doesn't exist.
	// Returns domain.ErrInvalidID if id is malformed.
	FindRecurringGroup(ctx context.Context, id string) (*domain.RecurringGroup, error)

	// ListRecurringGroups returns every group of an owner ordered by creation time.
	ListRecurringGroups(ctx context.Context, ownerID string) ([]*domain.RecurringGroup, error)

	// DeleteGroup removes every task of the group and the group row.
	// Returns the number of tasks removed.
	// Returns domain.ErrGroupNotFound if neither the group nor any task of it exists.
	DeleteGroup(ctx context.Context, groupID string) (int, error)

	// === Task Operations ===

	// InsertTasks stores tasks in one statement batch.
	// Returns the number of rows stored; callers compare it with len(tasks).
	// Returns domain.ErrGroupNotFound if a task references a missing group.
	InsertTasks(ctx context.Context, tasks []*domain.Task) (int, error)

	// FindTaskByID retrieves a single task.
	// Returns domain.ErrTaskNotFound if the task doesn't exist.
	// Returns domain.ErrInvalidID if id is malformed.
	FindTaskByID(ctx context.Context, id string) (*domain.Task, error)

	// FindTasks returns the owner's tasks within the query's date range,
	// ordered by date then creation time.
	FindTasks(ctx context.Context, query domain.TaskQuery) ([]*domain.Task, error)

	// UpdateTask applies the non-nil fields of update and returns the stored task.
	// Returns domain.ErrTaskNotFound if the task doesn't exist.
	// Returns domain.ErrInvalidID if id is malformed.
	UpdateTask(ctx context.Context, id string, update domain.TaskUpdate) (*domain.Task, error)

	// DeleteTask removes a single task.
	// Returns domain.ErrTaskNotFound if the task doesn't exist.
	DeleteTask(ctx context.Context, id string) error

	// CountGroupTasks returns how many tasks still reference the group.
	CountGroupTasks(ctx context.Context, groupID string) (int, error)

	// ListOwners returns every owner with at least one task, in ascending order.
	ListOwners(ctx context.Context) ([]string, error)

	// === Transactions ===

	// Atomic runs fn inside a transaction. All writes made through the
	// repository passed to fn commit together or not at all.
	Atomic(ctx context.Context, fn func(repo Repository) error) error
}
