// Package compliance holds the behaviour every planner.Repository must share.
package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/tutorplan/internal/application/planner"
	"github.com/rezkam/tutorplan/internal/domain"
	"github.com/rezkam/tutorplan/internal/ptr"
)

// RunRepositoryComplianceTest runs the standard repository tests.
// setup must return an empty repository; cleanup is registered by setup itself.
func RunRepositoryComplianceTest(t *testing.T, setup func(t *testing.T) planner.Repository) {
	t.Run("CreateAndFindGroup", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		start := date(2026, time.March, 2)
		end := date(2026, time.March, 30)
		group := newGroup("mentee-1", &domain.RecurrenceRule{
			Type:       domain.RecurrenceWeekly,
			Weekdays:   []time.Weekday{time.Monday, time.Wednesday},
			RangeStart: &start,
			RangeEnd:   &end,
		})
		require.NoError(t, repo.CreateRecurringGroup(ctx, group))

		found, err := repo.FindRecurringGroup(ctx, group.ID)
		require.NoError(t, err)
		assert.Equal(t, group.ID, found.ID)
		assert.Equal(t, "mentee-1", found.OwnerID)
		assert.Equal(t, group.Rule, found.Rule)
		assert.True(t, group.CreatedAt.Equal(found.CreatedAt))
	})

	t.Run("GroupWithoutRule", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		group := newGroup("mentee-1", nil)
		require.NoError(t, repo.CreateRecurringGroup(ctx, group))

		found, err := repo.FindRecurringGroup(ctx, group.ID)
		require.NoError(t, err)
		assert.Nil(t, found.Rule)
	})

	t.Run("InsertAndFindTasks", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		group := newGroup("mentee-1", nil)
		require.NoError(t, repo.CreateRecurringGroup(ctx, group))

		tasks := []*domain.Task{
			newTask("mentee-1", date(2026, time.March, 9), &group.ID),
			newTask("mentee-1", date(2026, time.March, 2), &group.ID),
			newTask("mentee-1", date(2026, time.March, 16), nil),
			newTask("mentee-2", date(2026, time.March, 2), nil),
		}
		tasks[0].StartTime = ptr.To("09:00")
		tasks[0].EndTime = ptr.To("10:15")
		tasks[2].TimeSpentSec = ptr.To(1800)
		tasks[2].Completed = true

		n, err := repo.InsertTasks(ctx, tasks)
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		found, err := repo.FindTaskByID(ctx, tasks[0].ID)
		require.NoError(t, err)
		assert.Equal(t, tasks[0].Title, found.Title)
		assert.Equal(t, tasks[0].Date, found.Date)
		assert.Equal(t, "09:00", *found.StartTime)
		assert.Equal(t, "10:15", *found.EndTime)
		require.NotNil(t, found.RecurringGroupID)
		assert.Equal(t, group.ID, *found.RecurringGroupID)
		assert.Nil(t, found.TimeSpentSec)

		all, err := repo.FindTasks(ctx, domain.TaskQuery{OwnerID: "mentee-1"})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, date(2026, time.March, 2), all[0].Date, "ordered by date")
		assert.Equal(t, date(2026, time.March, 9), all[1].Date)
		assert.Equal(t, date(2026, time.March, 16), all[2].Date)
		assert.True(t, all[2].Completed)
		assert.Equal(t, 1800, *all[2].TimeSpentSec)
		assert.Nil(t, all[2].RecurringGroupID)
	})

	t.Run("FindTasksDateRange", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		var tasks []*domain.Task
		for d := 1; d <= 10; d++ {
			tasks = append(tasks, newTask("mentee-1", date(2026, time.April, d), nil))
		}
		_, err := repo.InsertTasks(ctx, tasks)
		require.NoError(t, err)

		from, to := date(2026, time.April, 3), date(2026, time.April, 5)
		tests := []struct {
			name     string
			from, to *civil.Date
			want     int
		}{
			{name: "closed range is inclusive", from: &from, to: &to, want: 3},
			{name: "open start", to: &to, want: 5},
			{name: "open end", from: &from, want: 8},
			{name: "fully open", want: 10},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.FindTasks(ctx, domain.TaskQuery{OwnerID: "mentee-1", From: tt.from, To: tt.to})
				require.NoError(t, err)
				assert.Len(t, got, tt.want)
			})
		}
	})

	t.Run("InsertIntoMissingGroup", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		missing := uuid.Must(uuid.NewV7()).String()
		_, err := repo.InsertTasks(ctx, []*domain.Task{newTask("mentee-1", date(2026, time.May, 1), &missing)})
		assert.ErrorIs(t, err, domain.ErrGroupNotFound)
	})

	t.Run("DeleteGroupCascades", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		group := newGroup("mentee-1", nil)
		require.NoError(t, repo.CreateRecurringGroup(ctx, group))
		_, err := repo.InsertTasks(ctx, []*domain.Task{
			newTask("mentee-1", date(2026, time.May, 4), &group.ID),
			newTask("mentee-1", date(2026, time.May, 11), &group.ID),
			newTask("mentee-1", date(2026, time.May, 18), &group.ID),
			newTask("mentee-1", date(2026, time.May, 5), nil),
		})
		require.NoError(t, err)

		deleted, err := repo.DeleteGroup(ctx, group.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, deleted)

		remaining, err := repo.FindTasks(ctx, domain.TaskQuery{OwnerID: "mentee-1"})
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Nil(t, remaining[0].RecurringGroupID)

		_, err = repo.FindRecurringGroup(ctx, group.ID)
		assert.ErrorIs(t, err, domain.ErrGroupNotFound)

		_, err = repo.DeleteGroup(ctx, group.ID)
		assert.ErrorIs(t, err, domain.ErrGroupNotFound)
	})

	t.Run("DeleteTask", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		task := newTask("mentee-1", date(2026, time.June, 1), nil)
		_, err := repo.InsertTasks(ctx, []*domain.Task{task})
		require.NoError(t, err)

		require.NoError(t, repo.DeleteTask(ctx, task.ID))

		_, err = repo.FindTaskByID(ctx, task.ID)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)

		err = repo.DeleteTask(ctx, task.ID)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})

	t.Run("InvalidIDs", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		_, err := repo.FindTaskByID(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, domain.ErrInvalidID)

		_, err = repo.FindRecurringGroup(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, domain.ErrInvalidID)

		_, err = repo.DeleteGroup(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, domain.ErrInvalidID)
	})

	t.Run("AtomicRollsBack", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		group := newGroup("mentee-1", nil)
		boom := errors.New("boom")

		err := repo.Atomic(ctx, func(tx planner.Repository) error {
			if err := tx.CreateRecurringGroup(ctx, group); err != nil {
				return err
			}
			if _, err := tx.InsertTasks(ctx, []*domain.Task{newTask("mentee-1", date(2026, time.July, 1), &group.ID)}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = repo.FindRecurringGroup(ctx, group.ID)
		assert.ErrorIs(t, err, domain.ErrGroupNotFound)

		tasks, err := repo.FindTasks(ctx, domain.TaskQuery{OwnerID: "mentee-1"})
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("AtomicCommits", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		group := newGroup("mentee-1", nil)
		err := repo.Atomic(ctx, func(tx planner.Repository) error {
			if err := tx.CreateRecurringGroup(ctx, group); err != nil {
				return err
			}
			_, err := tx.InsertTasks(ctx, []*domain.Task{
				newTask("mentee-1", date(2026, time.July, 1), &group.ID),
				newTask("mentee-1", date(2026, time.July, 8), &group.ID),
			})
			return err
		})
		require.NoError(t, err)

		tasks, err := repo.FindTasks(ctx, domain.TaskQuery{OwnerID: "mentee-1"})
		require.NoError(t, err)
		assert.Len(t, tasks, 2)
	})

	t.Run("ListOwnersAndGroups", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		g1 := newGroup("mentee-b", nil)
		g2 := newGroup("mentee-b", nil)
		g2.CreatedAt = g1.CreatedAt.Add(time.Second)
		require.NoError(t, repo.CreateRecurringGroup(ctx, g1))
		require.NoError(t, repo.CreateRecurringGroup(ctx, g2))
		_, err := repo.InsertTasks(ctx, []*domain.Task{
			newTask("mentee-b", date(2026, time.August, 1), &g1.ID),
			newTask("mentee-a", date(2026, time.August, 1), nil),
			newTask("mentee-b", date(2026, time.August, 2), nil),
		})
		require.NoError(t, err)

		owners, err := repo.ListOwners(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"mentee-a", "mentee-b"}, owners)

		groups, err := repo.ListRecurringGroups(ctx, "mentee-b")
		require.NoError(t, err)
		require.Len(t, groups, 2)
		assert.Equal(t, g1.ID, groups[0].ID)
		assert.Equal(t, g2.ID, groups[1].ID)

		none, err := repo.ListRecurringGroups(ctx, "mentee-a")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("UpdateTask", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		task := newTask("mentee-1", date(2026, time.September, 7), nil)
		_, err := repo.InsertTasks(ctx, []*domain.Task{task})
		require.NoError(t, err)

		updated, err := repo.UpdateTask(ctx, task.ID, domain.TaskUpdate{Completed: ptr.To(true), TimeSpentSec: ptr.To(2700)})
		require.NoError(t, err)
		assert.Equal(t, task.ID, updated.ID)
		assert.True(t, updated.Completed)
		require.NotNil(t, updated.TimeSpentSec)
		assert.Equal(t, 2700, *updated.TimeSpentSec)

		kept, err := repo.UpdateTask(ctx, task.ID, domain.TaskUpdate{Completed: ptr.To(false)})
		require.NoError(t, err)
		assert.False(t, kept.Completed)
		require.NotNil(t, kept.TimeSpentSec, "nil fields keep their stored value")
		assert.Equal(t, 2700, *kept.TimeSpentSec)

		found, err := repo.FindTaskByID(ctx, task.ID)
		require.NoError(t, err)
		assert.False(t, found.Completed)
		assert.Equal(t, 2700, *found.TimeSpentSec)
		assert.Equal(t, task.Title, found.Title)

		_, err = repo.UpdateTask(ctx, uuid.NewString(), domain.TaskUpdate{Completed: ptr.To(true)})
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)

		_, err = repo.UpdateTask(ctx, "not-a-uuid", domain.TaskUpdate{Completed: ptr.To(true)})
		assert.ErrorIs(t, err, domain.ErrInvalidID)
	})

	t.Run("CountGroupTasks", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		group := newGroup("mentee-1", nil)
		require.NoError(t, repo.CreateRecurringGroup(ctx, group))
		tasks := []*domain.Task{
			newTask("mentee-1", date(2026, time.October, 1), &group.ID),
			newTask("mentee-1", date(2026, time.October, 8), &group.ID),
			newTask("mentee-1", date(2026, time.October, 8), nil),
		}
		_, err := repo.InsertTasks(ctx, tasks)
		require.NoError(t, err)

		n, err := repo.CountGroupTasks(ctx, group.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		require.NoError(t, repo.DeleteTask(ctx, tasks[0].ID))
		n, err = repo.CountGroupTasks(ctx, group.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = repo.CountGroupTasks(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("SingleDeleteOfLastSiblingRemovesGroup", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()
		svc := planner.NewService(repo, planner.Config{})

		tasks, err := svc.Materialize(ctx, []domain.Occurrence{
			{Date: date(2026, time.November, 2)},
			{Date: date(2026, time.November, 9), SequenceIndex: 1},
		}, domain.TaskTemplate{OwnerID: "mentee-1", Title: "Essay draft", Subject: "english"})
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		groupID := *tasks[0].RecurringGroupID

		_, err = svc.DeleteTask(ctx, tasks[0].ID, domain.DeleteScopeSingle)
		require.NoError(t, err)
		_, err = repo.FindRecurringGroup(ctx, groupID)
		require.NoError(t, err, "group stays while a sibling remains")

		_, err = svc.DeleteTask(ctx, tasks[1].ID, domain.DeleteScopeSingle)
		require.NoError(t, err)
		_, err = repo.FindRecurringGroup(ctx, groupID)
		assert.ErrorIs(t, err, domain.ErrGroupNotFound)
	})

	t.Run("ServiceRoundTrip", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()
		svc := planner.NewService(repo, planner.Config{})

		start := date(2026, time.February, 1)
		end := date(2026, time.April, 30)
		rule := &domain.RecurrenceRule{Type: domain.RecurrenceMonthly, DayOfMonth: 30, RangeStart: &start, RangeEnd: &end}

		tasks, err := svc.ScheduleRecurring(ctx, rule, start, domain.TaskTemplate{
			OwnerID: "mentee-1", Title: "Monthly mock exam", Subject: "math",
		})
		require.NoError(t, err)
		require.Len(t, tasks, 2, "February has no 30th")

		deleted, err := svc.DeleteTask(ctx, tasks[0].ID, domain.DeleteScopeAll)
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)

		left, err := svc.ListTasks(ctx, "mentee-1", nil, nil)
		require.NoError(t, err)
		assert.Empty(t, left)
	})
}

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func newGroup(owner string, rule *domain.RecurrenceRule) *domain.RecurringGroup {
	return &domain.RecurringGroup{
		ID:        uuid.Must(uuid.NewV7()).String(),
		OwnerID:   owner,
		Rule:      rule,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func newTask(owner string, d civil.Date, groupID *string) *domain.Task {
	return &domain.Task{
		ID:               uuid.Must(uuid.NewV7()).String(),
		OwnerID:          owner,
		Title:            "Reading " + d.String(),
		Subject:          "literature",
		Date:             d,
		RecurringGroupID: groupID,
		CreatedAt:        time.Now().UTC().Truncate(time.Microsecond),
	}
}
