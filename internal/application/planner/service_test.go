package planner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/tutorplan/internal/domain"
	"github.com/rezkam/tutorplan/internal/ptr"
)

func day(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func occurrences(dates ...civil.Date) []domain.Occurrence {
	out := make([]domain.Occurrence, len(dates))
	for i, d := range dates {
		out[i] = domain.Occurrence{Date: d, SequenceIndex: i}
	}
	return out
}

func template(owner string) domain.TaskTemplate {
	return domain.TaskTemplate{
		OwnerID: owner,
		Title:   "  Vocabulary review ",
		Subject: "english",
	}
}

func TestMaterialize_GroupSharing(t *testing.T) {
	ctx := context.Background()

	t.Run("three occurrences share one group", func(t *testing.T) {
		repo := newMemRepo()
		svc := NewService(repo, Config{})

		tasks, err := svc.Materialize(ctx, occurrences(
			day(2026, time.March, 2), day(2026, time.March, 4), day(2026, time.March, 9),
		), template("mentee-1"))
		require.NoError(t, err)
		require.Len(t, tasks, 3)

		groupID := tasks[0].RecurringGroupID
		require.NotNil(t, groupID)
		assert.NotEmpty(t, *groupID)
		for _, task := range tasks {
			require.NotNil(t, task.RecurringGroupID)
			assert.Equal(t, *groupID, *task.RecurringGroupID)
			assert.Equal(t, "Vocabulary review", task.Title, "title is trimmed")
			assert.Equal(t, "mentee-1", task.OwnerID)
		}
		assert.Equal(t, day(2026, time.March, 2), tasks[0].Date)
		assert.Equal(t, 3, repo.taskCount())
		assert.Equal(t, 1, repo.groupCount())
	})

	t.Run("single occurrence has no group", func(t *testing.T) {
		repo := newMemRepo()
		svc := NewService(repo, Config{})

		tasks, err := svc.Materialize(ctx, occurrences(day(2026, time.March, 2)), template("mentee-1"))
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Nil(t, tasks[0].RecurringGroupID)
		assert.Equal(t, 0, repo.groupCount())
	})

	t.Run("separate submissions get distinct groups", func(t *testing.T) {
		repo := newMemRepo()
		svc := NewService(repo, Config{})

		a, err := svc.Materialize(ctx, occurrences(day(2026, time.March, 2), day(2026, time.March, 3)), template("mentee-1"))
		require.NoError(t, err)
		b, err := svc.Materialize(ctx, occurrences(day(2026, time.April, 2), day(2026, time.April, 3)), template("mentee-1"))
		require.NoError(t, err)

		assert.NotEqual(t, *a[0].RecurringGroupID, *b[0].RecurringGroupID)
	})
}

func TestMaterialize_Validation(t *testing.T) {
	ctx := context.Background()
	occ := occurrences(day(2026, time.March, 2))

	tests := []struct {
		name    string
		occ     []domain.Occurrence
		tmpl    domain.TaskTemplate
		wantErr error
	}{
		{name: "no occurrences", occ: nil, tmpl: template("mentee-1"), wantErr: domain.ErrNothingToMaterialize},
		{name: "missing owner", occ: occ, tmpl: template(""), wantErr: domain.ErrOwnerRequired},
		{name: "missing title", occ: occ, tmpl: domain.TaskTemplate{OwnerID: "m", Subject: "math"}, wantErr: domain.ErrTitleRequired},
		{name: "missing subject", occ: occ, tmpl: domain.TaskTemplate{OwnerID: "m", Title: "t"}, wantErr: domain.ErrSubjectRequired},
		{
			name:    "bad start time",
			occ:     occ,
			tmpl:    domain.TaskTemplate{OwnerID: "m", Title: "t", Subject: "math", StartTime: ptr.To("25:00")},
			wantErr: domain.ErrInvalidClockTime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			svc := NewService(repo, Config{})

			_, err := svc.Materialize(ctx, tt.occ, tt.tmpl)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, repo.insertCalls, "no store call on validation failure")
		})
	}

	t.Run("empty time strings are treated as unset", func(t *testing.T) {
		svc := NewService(newMemRepo(), Config{})
		tmpl := template("mentee-1")
		tmpl.StartTime = ptr.To("")
		tmpl.EndTime = ptr.To("10:30")

		tasks, err := svc.Materialize(ctx, occ, tmpl)
		require.NoError(t, err)
		assert.Nil(t, tasks[0].StartTime)
		assert.Equal(t, "10:30", *tasks[0].EndTime)
	})
}

func TestMaterialize_PartialInsertRollsBack(t *testing.T) {
	repo := newMemRepo()
	repo.insertLimit = 2
	svc := NewService(repo, Config{})

	_, err := svc.Materialize(context.Background(), occurrences(
		day(2026, time.March, 2), day(2026, time.March, 3), day(2026, time.March, 4),
	), template("mentee-1"))

	require.ErrorIs(t, err, domain.ErrPartialInsert)
	assert.Equal(t, 0, repo.taskCount(), "no tasks remain")
	assert.Equal(t, 0, repo.groupCount(), "no group remains")
}

func TestMaterialize_CoalescesDuplicateSubmissions(t *testing.T) {
	repo := newMemRepo()
	repo.insertGate = make(chan struct{})
	repo.insertStarted = make(chan struct{}, 2)
	svc := NewService(repo, Config{})

	occ := occurrences(day(2026, time.March, 2), day(2026, time.March, 9))
	tmpl := template("mentee-1")

	var wg sync.WaitGroup
	results := make([][]*domain.Task, 2)
	errs := make([]error, 2)

	wg.Go(func() {
		results[0], errs[0] = svc.Materialize(context.Background(), occ, tmpl)
	})
	<-repo.insertStarted

	wg.Go(func() {
		results[1], errs[1] = svc.Materialize(context.Background(), occ, tmpl)
	})
	time.Sleep(100 * time.Millisecond)
	close(repo.insertGate)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, repo.insertCalls)
	assert.Equal(t, 2, repo.taskCount())
	assert.Equal(t, results[0][0].ID, results[1][0].ID)
}

func TestMaterialize_CancelledCallerDoesNotFailCoalescedWrite(t *testing.T) {
	repo := newMemRepo()
	repo.insertGate = make(chan struct{})
	repo.insertStarted = make(chan struct{}, 2)
	svc := NewService(repo, Config{})

	occ := occurrences(day(2026, time.March, 2), day(2026, time.March, 9))
	tmpl := template("mentee-1")

	firstCtx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Go(func() {
		_, errs[0] = svc.Materialize(firstCtx, occ, tmpl)
	})
	<-repo.insertStarted
	cancel()

	wg.Go(func() {
		_, errs[1] = svc.Materialize(context.Background(), occ, tmpl)
	})
	time.Sleep(100 * time.Millisecond)
	close(repo.insertGate)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, repo.insertCalls)
	assert.Equal(t, 2, repo.taskCount())
}

func TestMaterialize_TooManyOccurrences(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, Config{})

	dates := make([]civil.Date, domain.MaxOccurrences+1)
	for i := range dates {
		dates[i] = day(2026, time.January, 1).AddDays(i)
	}

	_, err := svc.Materialize(context.Background(), occurrences(dates...), template("mentee-1"))
	require.ErrorIs(t, err, domain.ErrTooManyOccurrences)
	assert.Equal(t, 0, repo.taskCount())

	tasks, err := svc.Materialize(context.Background(), occurrences(dates[:domain.MaxOccurrences]...), template("mentee-1"))
	require.NoError(t, err)
	assert.Len(t, tasks, domain.MaxOccurrences)
}

func TestScheduleRecurring(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, Config{})
	ctx := context.Background()

	start := day(2026, time.February, 2)
	end := day(2026, time.February, 28)
	rule := &domain.RecurrenceRule{
		Type:       domain.RecurrenceWeekly,
		Weekdays:   []time.Weekday{time.Monday, time.Wednesday},
		RangeStart: &start,
		RangeEnd:   &end,
	}

	tasks, err := svc.ScheduleRecurring(ctx, rule, start, template("mentee-1"))
	require.NoError(t, err)
	require.Len(t, tasks, 8)

	group, err := svc.GetGroup(ctx, *tasks[0].RecurringGroupID)
	require.NoError(t, err)
	assert.Equal(t, rule, group.Rule)
	assert.Equal(t, "mentee-1", group.OwnerID)

	t.Run("empty expansion saves nothing", func(t *testing.T) {
		empty := &domain.RecurrenceRule{Type: domain.RecurrenceWeekly, RangeStart: &start, RangeEnd: &end}
		_, err := svc.ScheduleRecurring(ctx, empty, start, template("mentee-1"))
		assert.ErrorIs(t, err, domain.ErrNothingToMaterialize)
	})

	t.Run("invalid rule is rejected", func(t *testing.T) {
		bad := &domain.RecurrenceRule{Type: domain.RecurrenceMonthly, DayOfMonth: 40, RangeStart: &start, RangeEnd: &end}
		_, err := svc.ScheduleRecurring(ctx, bad, start, template("mentee-1"))
		assert.ErrorIs(t, err, domain.ErrInvalidDayOfMonth)
	})

	t.Run("expansion above the cap saves nothing", func(t *testing.T) {
		before := repo.taskCount()
		_, err := svc.ScheduleRecurring(ctx, everyDayFor80Years(), day(2026, time.January, 1), template("mentee-1"))
		assert.ErrorIs(t, err, domain.ErrTooManyOccurrences)
		assert.Equal(t, before, repo.taskCount())
	})
}

func everyDayFor80Years() *domain.RecurrenceRule {
	start := day(2026, time.January, 1)
	end := day(2105, time.December, 31)
	return &domain.RecurrenceRule{
		Type: domain.RecurrenceWeekly,
		Weekdays: []time.Weekday{
			time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
			time.Thursday, time.Friday, time.Saturday,
		},
		RangeStart: &start,
		RangeEnd:   &end,
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Service, *memRepo, []*domain.Task) {
		repo := newMemRepo()
		svc := NewService(repo, Config{})
		tasks, err := svc.Materialize(ctx, occurrences(
			day(2026, time.March, 2), day(2026, time.March, 9), day(2026, time.March, 16), day(2026, time.March, 23),
		), template("mentee-1"))
		require.NoError(t, err)
		return svc, repo, tasks
	}

	t.Run("delete group removes all siblings", func(t *testing.T) {
		svc, repo, tasks := setup(t)

		n, err := svc.DeleteGroup(ctx, *tasks[0].RecurringGroupID)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		assert.Equal(t, 0, repo.taskCount())
		assert.Equal(t, 0, repo.groupCount())
	})

	t.Run("delete single removes exactly one", func(t *testing.T) {
		svc, repo, tasks := setup(t)

		n, err := svc.DeleteTask(ctx, tasks[1].ID, domain.DeleteScopeSingle)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		remaining, err := svc.ListTasks(ctx, "mentee-1", nil, nil)
		require.NoError(t, err)
		require.Len(t, remaining, 3)
		for _, task := range remaining {
			assert.NotEqual(t, tasks[1].ID, task.ID)
			assert.Equal(t, *tasks[0].RecurringGroupID, *task.RecurringGroupID)
		}
		assert.Equal(t, 1, repo.groupCount())
	})

	t.Run("deleting the last sibling removes the group", func(t *testing.T) {
		svc, repo, tasks := setup(t)

		for _, task := range tasks[:3] {
			_, err := svc.DeleteTask(ctx, task.ID, domain.DeleteScopeSingle)
			require.NoError(t, err)
		}
		assert.Equal(t, 1, repo.groupCount(), "group stays while a sibling remains")

		n, err := svc.DeleteTask(ctx, tasks[3].ID, domain.DeleteScopeSingle)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, 0, repo.taskCount())
		assert.Equal(t, 0, repo.groupCount())

		_, err = svc.GetGroup(ctx, *tasks[0].RecurringGroupID)
		assert.ErrorIs(t, err, domain.ErrGroupNotFound)
	})

	t.Run("scope all on a task removes its group", func(t *testing.T) {
		svc, repo, tasks := setup(t)

		n, err := svc.DeleteTask(ctx, tasks[2].ID, domain.DeleteScopeAll)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		assert.Equal(t, 0, repo.taskCount())
	})

	t.Run("grouped task requires a scope", func(t *testing.T) {
		svc, repo, tasks := setup(t)

		_, err := svc.DeleteTask(ctx, tasks[0].ID, "")
		assert.ErrorIs(t, err, domain.ErrDeleteScopeRequired)
		assert.Equal(t, 4, repo.taskCount())
	})

	t.Run("ungrouped task ignores scope", func(t *testing.T) {
		repo := newMemRepo()
		svc := NewService(repo, Config{})
		tasks, err := svc.Materialize(ctx, occurrences(day(2026, time.March, 2)), template("mentee-1"))
		require.NoError(t, err)

		n, err := svc.DeleteTask(ctx, tasks[0].ID, "")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, 0, repo.taskCount())
	})

	t.Run("unknown task", func(t *testing.T) {
		svc := NewService(newMemRepo(), Config{})
		_, err := svc.DeleteTask(ctx, "missing", domain.DeleteScopeSingle)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})

	t.Run("unknown group", func(t *testing.T) {
		svc := NewService(newMemRepo(), Config{})
		_, err := svc.DeleteGroup(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrGroupNotFound)
	})
}

func TestListTasks_Cache(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := NewService(repo, Config{})
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	_, err := svc.Materialize(ctx, occurrences(day(2026, time.March, 2)), template("mentee-1"))
	require.NoError(t, err)

	first, err := svc.ListTasks(ctx, "mentee-1", nil, nil)
	require.NoError(t, err)
	require.Len(t, first, 1)
	calls := repo.findCalls

	_, err = svc.ListTasks(ctx, "mentee-1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, calls, repo.findCalls, "second read is served from cache")

	_, err = svc.Materialize(ctx, occurrences(day(2026, time.March, 3)), template("mentee-1"))
	require.NoError(t, err)

	after, err := svc.ListTasks(ctx, "mentee-1", nil, nil)
	require.NoError(t, err)
	assert.Len(t, after, 2, "writes invalidate the owner's cached lists")

	t.Run("inverted range", func(t *testing.T) {
		from, to := day(2026, time.March, 10), day(2026, time.March, 1)
		_, err := svc.ListTasks(ctx, "mentee-1", &from, &to)
		assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
	})

	t.Run("missing owner", func(t *testing.T) {
		_, err := svc.ListTasks(ctx, "", nil, nil)
		assert.ErrorIs(t, err, domain.ErrOwnerRequired)
	})
}

func TestListTasks_ReadRacingWriteIsNotCached(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	repo.findGate = make(chan struct{})
	repo.findStarted = make(chan struct{}, 1)
	svc := NewService(repo, Config{})

	var wg sync.WaitGroup
	var early []*domain.Task
	var earlyErr error
	wg.Go(func() {
		early, earlyErr = svc.ListTasks(ctx, "mentee-1", nil, nil)
	})
	<-repo.findStarted

	_, err := svc.Materialize(ctx, occurrences(day(2026, time.March, 2), day(2026, time.March, 9)), template("mentee-1"))
	require.NoError(t, err)

	close(repo.findGate)
	wg.Wait()
	require.NoError(t, earlyErr)
	assert.Empty(t, early, "the read started before the write")

	after, err := svc.ListTasks(ctx, "mentee-1", nil, nil)
	require.NoError(t, err)
	assert.Len(t, after, 2, "the pre-write result must not be cached")
}

func TestListTasks_ServesStaleOnRefreshFailure(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := NewService(repo, Config{CacheStaleAfter: time.Nanosecond})

	_, err := svc.Materialize(ctx, occurrences(day(2026, time.March, 2)), template("mentee-1"))
	require.NoError(t, err)

	fresh, err := svc.ListTasks(ctx, "mentee-1", nil, nil)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	repo.findErr = errors.New("connection reset")

	stale, err := svc.ListTasks(ctx, "mentee-1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, fresh, stale)

	svc.InvalidateOwner("mentee-1")
	_, err = svc.ListTasks(ctx, "mentee-1", nil, nil)
	assert.Error(t, err)
}

func TestMonthCalendar(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo(), Config{})

	tmpl := template("mentee-1")
	tmpl.StartTime = ptr.To("18:00")
	tmpl.EndTime = ptr.To("19:30")
	_, err := svc.Materialize(ctx, occurrences(day(2026, time.April, 1), day(2026, time.April, 15)), tmpl)
	require.NoError(t, err)
	_, err = svc.Materialize(ctx, occurrences(day(2026, time.April, 1)), template("mentee-1"))
	require.NoError(t, err)
	_, err = svc.Materialize(ctx, occurrences(day(2026, time.May, 1)), template("mentee-1"))
	require.NoError(t, err)

	view, err := svc.MonthCalendar(ctx, "mentee-1", 2026, time.April)
	require.NoError(t, err)
	require.Len(t, view.Days, 3+30)

	for i := range 3 {
		assert.Nil(t, view.Days[i].Date)
	}
	first := view.Days[3]
	require.NotNil(t, first.Date)
	assert.Equal(t, day(2026, time.April, 1), *first.Date)
	assert.Equal(t, 2, first.TaskCount)
	assert.Equal(t, 90*60, first.StudySeconds)
	assert.Equal(t, 1, view.Days[3+14].TaskCount)
	assert.Equal(t, 0, view.Days[3+29].TaskCount)

	_, err = svc.MonthCalendar(ctx, "mentee-1", 2026, 13)
	assert.ErrorIs(t, err, domain.ErrInvalidMonth)
}

func TestUpdateTask(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := NewService(repo, Config{})

	created, err := svc.Materialize(ctx, occurrences(day(2026, time.April, 6)), template("mentee-1"))
	require.NoError(t, err)
	id := created[0].ID

	before, err := svc.ListTasks(ctx, "mentee-1", nil, nil)
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.False(t, before[0].Completed)

	updated, err := svc.UpdateTask(ctx, id, domain.TaskUpdate{Completed: ptr.To(true), TimeSpentSec: ptr.To(1500)})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	require.NotNil(t, updated.TimeSpentSec)
	assert.Equal(t, 1500, *updated.TimeSpentSec)

	after, err := svc.ListTasks(ctx, "mentee-1", nil, nil)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.True(t, after[0].Completed, "cached list is refreshed after an update")

	view, err := svc.MonthCalendar(ctx, "mentee-1", 2026, time.April)
	require.NoError(t, err)
	var studied int
	for _, d := range view.Days {
		studied += d.StudySeconds
	}
	assert.Equal(t, 1500, studied, "recorded time counts when no start and end are set")

	t.Run("nil fields keep their value", func(t *testing.T) {
		got, err := svc.UpdateTask(ctx, id, domain.TaskUpdate{Completed: ptr.To(false)})
		require.NoError(t, err)
		assert.False(t, got.Completed)
		require.NotNil(t, got.TimeSpentSec)
		assert.Equal(t, 1500, *got.TimeSpentSec)
	})

	tests := []struct {
		name    string
		id      string
		update  domain.TaskUpdate
		wantErr error
	}{
		{name: "empty update", id: id, update: domain.TaskUpdate{}, wantErr: domain.ErrNothingToUpdate},
		{name: "negative time", id: id, update: domain.TaskUpdate{TimeSpentSec: ptr.To(-1)}, wantErr: domain.ErrInvalidTimeSpent},
		{name: "unknown task", id: "missing", update: domain.TaskUpdate{Completed: ptr.To(true)}, wantErr: domain.ErrTaskNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateTask(ctx, tt.id, tt.update)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPreview(t *testing.T) {
	svc := NewService(newMemRepo(), Config{})

	start := day(2026, time.February, 1)
	end := day(2026, time.April, 30)
	res, err := svc.Preview(&domain.RecurrenceRule{
		Type: domain.RecurrenceMonthly, DayOfMonth: 31, RangeStart: &start, RangeEnd: &end,
	}, start)
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 1)
	assert.Equal(t, day(2026, time.March, 31), res.Occurrences[0].Date)
	assert.Contains(t, res.RRule, "FREQ=MONTHLY")

	res, err = svc.Preview(&domain.RecurrenceRule{Type: domain.RecurrenceNone}, start)
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 1)
	assert.Empty(t, res.RRule)

	_, err = svc.Preview(&domain.RecurrenceRule{Type: "yearly"}, start)
	assert.ErrorIs(t, err, domain.ErrInvalidRecurrenceType)

	_, err = svc.Preview(everyDayFor80Years(), day(2026, time.January, 1))
	assert.ErrorIs(t, err, domain.ErrTooManyOccurrences)
}

func TestOwnerSchedule(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo(), Config{})

	_, err := svc.Materialize(ctx, occurrences(day(2026, time.March, 2), day(2026, time.March, 9)), template("mentee-1"))
	require.NoError(t, err)
	_, err = svc.Materialize(ctx, occurrences(day(2026, time.March, 2)), template("mentee-2"))
	require.NoError(t, err)

	sched, err := svc.OwnerSchedule(ctx, "mentee-1")
	require.NoError(t, err)
	assert.Len(t, sched.Tasks, 2)
	assert.Len(t, sched.Groups, 1)

	owners, err := svc.ListOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"mentee-1", "mentee-2"}, owners)
}
