package domain

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// Task is one planner entry on a single calendar day.
type Task struct {
	ID          string
	OwnerID     string // Mentee the task is planned for
	Title       string
	Subject     string
	Description string
	Date        civil.Date
	StartTime   *string // HH:MM, nil when unscheduled
	EndTime     *string // HH:MM, nil when unscheduled

	// RecurringGroupID links every row materialized from the same
	// multi-date expansion. Nil for one-off tasks.
	RecurringGroupID *string

	Completed    bool
	TimeSpentSec *int // Recorded study time, used when no start/end pair exists
	CreatedAt    time.Time
}

// IsRecurring reports whether the task belongs to a recurring group.
func (t *Task) IsRecurring() bool {
	return t.RecurringGroupID != nil && *t.RecurringGroupID != ""
}

// MaxOccurrences caps how many tasks one submission may create.
const MaxOccurrences = 1000

// MaxTimeSpentSec is the most study time a single task can record.
const MaxTimeSpentSec = 24 * 60 * 60

// TaskUpdate carries the progress a mentee records on a task.
// Nil fields are left unchanged.
type TaskUpdate struct {
	Completed    *bool
	TimeSpentSec *int
}

// Validate checks that the update sets something and that recorded time is in range.
func (u TaskUpdate) Validate() error {
	if u.Completed == nil && u.TimeSpentSec == nil {
		return ErrNothingToUpdate
	}
	if u.TimeSpentSec != nil && (*u.TimeSpentSec < 0 || *u.TimeSpentSec > MaxTimeSpentSec) {
		return fmt.Errorf("%w: %d", ErrInvalidTimeSpent, *u.TimeSpentSec)
	}
	return nil
}

// TaskTemplate holds the fields shared by every task materialized from one submission.
type TaskTemplate struct {
	OwnerID     string
	Title       string
	Subject     string
	Description string
	StartTime   *string
	EndTime     *string
}

// RecurringGroup records the rule a set of sibling tasks was expanded from.
type RecurringGroup struct {
	ID        string
	OwnerID   string
	Rule      *RecurrenceRule
	CreatedAt time.Time
}

// DeleteScope selects how much of a recurring group a delete removes.
type DeleteScope string

const (
	DeleteScopeSingle DeleteScope = "single"
	DeleteScopeAll    DeleteScope = "all"
)

// TaskQuery filters tasks of one owner by an inclusive date range.
// Nil bounds are open.
type TaskQuery struct {
	OwnerID string
	From    *civil.Date
	To      *civil.Date
}

// DayAgenda aggregates one day of an owner's plan.
type DayAgenda struct {
	Date         civil.Date
	Tasks        []*Task
	StudySeconds int
}
