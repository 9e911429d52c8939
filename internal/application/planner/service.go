package planner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/rezkam/tutorplan/internal/cache"
	"github.com/rezkam/tutorplan/internal/domain"
	"github.com/rezkam/tutorplan/internal/recurring"
)

// Config holds configuration for the Service.
type Config struct {
	// CacheStaleAfter is the age after which cached task lists are refreshed (default: 60s).
	CacheStaleAfter time.Duration
	// CacheExpireAfter is the age after which SweepCache drops task lists (default: 10m).
	CacheExpireAfter time.Duration
}

// Service provides the planner operations: previewing rules, materializing
// occurrences into tasks, deleting them and reading an owner's schedule.
type Service struct {
	repo     Repository
	tasks    *cache.Snapshot[[]*domain.Task]
	inflight singleflight.Group
	metrics  *serviceMetrics
	now      func() time.Time

	// generations counts invalidations per owner. A list read only caches
	// its result if no invalidation happened while it was reading.
	genMu       sync.Mutex
	generations map[string]uint64
}

// writeTimeout bounds a coalesced write, which outlives any single caller's context.
const writeTimeout = 30 * time.Second

// NewService creates a new planner service.
// Zero config values fall back to the cache defaults.
func NewService(repo Repository, config Config) *Service {
	return &Service{
		repo: repo,
		tasks: cache.New[[]*domain.Task](
			cache.WithStaleAfter(config.CacheStaleAfter),
			cache.WithExpireAfter(config.CacheExpireAfter),
		),
		metrics:     newServiceMetrics(),
		now:         time.Now,
		generations: make(map[string]uint64),
	}
}

// PreviewResult is the outcome of expanding a rule without saving anything.
type PreviewResult struct {
	Occurrences []domain.Occurrence
	// RRule is the RFC 5545 form of the rule; empty when the rule has none.
	RRule string
}

// Preview validates and expands a rule. Nothing is persisted.
func (s *Service) Preview(rule *domain.RecurrenceRule, anchor civil.Date) (*PreviewResult, error) {
	if rule != nil {
		if err := rule.Validate(); err != nil {
			return nil, err
		}
	}

	result := &PreviewResult{Occurrences: recurring.Expand(rule, anchor)}
	if err := checkOccurrenceCount(result.Occurrences); err != nil {
		return nil, err
	}

	rr, err := recurring.RRuleString(rule)
	switch {
	case err == nil:
		result.RRule = rr
	case errors.Is(err, recurring.ErrNoRRule):
	default:
		return nil, err
	}

	return result, nil
}

// Materialize persists one task per occurrence.
//
// With more than one occurrence all tasks share a freshly generated recurring
// group id; a single occurrence produces a task without a group. The group row
// and every task are written in one transaction. Identical concurrent
// submissions for the same owner are coalesced into one write.
//
// Returns domain.ErrNothingToMaterialize when occurrences is empty and
// domain.ErrTooManyOccurrences above domain.MaxOccurrences.
func (s *Service) Materialize(ctx context.Context, occurrences []domain.Occurrence, tmpl domain.TaskTemplate) ([]*domain.Task, error) {
	return s.materialize(ctx, occurrences, tmpl, nil)
}

// ScheduleRecurring expands rule from anchor and materializes the result.
// The rule is stored with the recurring group.
func (s *Service) ScheduleRecurring(ctx context.Context, rule *domain.RecurrenceRule, anchor civil.Date, tmpl domain.TaskTemplate) ([]*domain.Task, error) {
	if rule != nil {
		if err := rule.Validate(); err != nil {
			return nil, err
		}
	}
	return s.materialize(ctx, recurring.Expand(rule, anchor), tmpl, rule)
}

func (s *Service) materialize(ctx context.Context, occurrences []domain.Occurrence, tmpl domain.TaskTemplate, rule *domain.RecurrenceRule) ([]*domain.Task, error) {
	if len(occurrences) == 0 {
		return nil, domain.ErrNothingToMaterialize
	}
	if err := checkOccurrenceCount(occurrences); err != nil {
		return nil, err
	}

	tmpl, err := normalizeTemplate(tmpl)
	if err != nil {
		return nil, err
	}

	key, err := submissionKey(occurrences, tmpl, rule)
	if err != nil {
		return nil, fmt.Errorf("failed to build submission key: %w", err)
	}

	v, err, shared := s.inflight.Do(key, func() (any, error) {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		defer cancel()
		return s.writeTasks(wctx, occurrences, tmpl, rule)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.InfoContext(ctx, "coalesced duplicate task submission", "owner_id", tmpl.OwnerID)
	}

	return v.([]*domain.Task), nil
}

func (s *Service) writeTasks(ctx context.Context, occurrences []domain.Occurrence, tmpl domain.TaskTemplate, rule *domain.RecurrenceRule) ([]*domain.Task, error) {
	now := s.now().UTC()

	var group *domain.RecurringGroup
	if len(occurrences) > 1 {
		groupID, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate group id: %w", err)
		}
		group = &domain.RecurringGroup{
			ID:        groupID.String(),
			OwnerID:   tmpl.OwnerID,
			Rule:      rule,
			CreatedAt: now,
		}
	}

	tasks := make([]*domain.Task, 0, len(occurrences))
	for _, occ := range occurrences {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate task id: %w", err)
		}

		task := &domain.Task{
			ID:          id.String(),
			OwnerID:     tmpl.OwnerID,
			Title:       tmpl.Title,
			Subject:     tmpl.Subject,
			Description: tmpl.Description,
			Date:        occ.Date,
			StartTime:   tmpl.StartTime,
			EndTime:     tmpl.EndTime,
			CreatedAt:   now,
		}
		if group != nil {
			groupID := group.ID
			task.RecurringGroupID = &groupID
		}
		tasks = append(tasks, task)
	}

	err := s.repo.Atomic(ctx, func(repo Repository) error {
		if group != nil {
			if err := repo.CreateRecurringGroup(ctx, group); err != nil {
				return fmt.Errorf("failed to create recurring group: %w", err)
			}
		}

		inserted, err := repo.InsertTasks(ctx, tasks)
		if err != nil {
			return fmt.Errorf("failed to insert tasks: %w", err)
		}
		if inserted != len(tasks) {
			return fmt.Errorf("%w: stored %d of %d", domain.ErrPartialInsert, inserted, len(tasks))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.InvalidateOwner(tmpl.OwnerID)

	rt := domain.RecurrenceNone
	if rule != nil {
		rt = rule.Type
	}
	s.metrics.recordMaterialized(ctx, len(tasks), group != nil, rt)

	slog.InfoContext(ctx, "tasks materialized",
		"owner_id", tmpl.OwnerID,
		"count", len(tasks),
		"recurring_group_id", groupIDOf(group))

	return tasks, nil
}

// DeleteTask removes a task.
//
// For a task in a recurring group the caller must pick a scope:
// DeleteScopeSingle removes just this task, DeleteScopeAll removes the whole
// group. An empty scope on a grouped task returns domain.ErrDeleteScopeRequired.
// Tasks without a group ignore the scope. Returns the number of tasks removed.
func (s *Service) DeleteTask(ctx context.Context, id string, scope domain.DeleteScope) (int, error) {
	task, err := s.repo.FindTaskByID(ctx, id)
	if err != nil {
		return 0, err
	}

	if task.IsRecurring() {
		switch scope {
		case "":
			return 0, domain.ErrDeleteScopeRequired
		case domain.DeleteScopeAll:
			return s.deleteGroup(ctx, *task.RecurringGroupID, task.OwnerID)
		case domain.DeleteScopeSingle:
		default:
			return 0, fmt.Errorf("%w: %s", domain.ErrInvalidDeleteScope, scope)
		}
	}

	err = s.repo.Atomic(ctx, func(repo Repository) error {
		if err := repo.DeleteTask(ctx, id); err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		if !task.IsRecurring() {
			return nil
		}

		// The last sibling takes its group row with it.
		left, err := repo.CountGroupTasks(ctx, *task.RecurringGroupID)
		if err != nil {
			return err
		}
		if left == 0 {
			if _, err := repo.DeleteGroup(ctx, *task.RecurringGroupID); err != nil {
				return fmt.Errorf("failed to delete empty recurring group: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.InvalidateOwner(task.OwnerID)
	s.metrics.recordDeleted(ctx, 1, domain.DeleteScopeSingle)

	return 1, nil
}

// UpdateTask records completion and study time on a task.
func (s *Service) UpdateTask(ctx context.Context, id string, update domain.TaskUpdate) (*domain.Task, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	task, err := s.repo.UpdateTask(ctx, id, update)
	if err != nil {
		return nil, err
	}

	s.InvalidateOwner(task.OwnerID)

	slog.InfoContext(ctx, "task updated",
		"task_id", task.ID,
		"owner_id", task.OwnerID,
		"completed", task.Completed)

	return task, nil
}

// DeleteGroup removes every task of a recurring group and the group itself.
// Returns the number of tasks removed.
func (s *Service) DeleteGroup(ctx context.Context, groupID string) (int, error) {
	group, err := s.repo.FindRecurringGroup(ctx, groupID)
	if err != nil {
		return 0, err
	}
	return s.deleteGroup(ctx, group.ID, group.OwnerID)
}

func (s *Service) deleteGroup(ctx context.Context, groupID, ownerID string) (int, error) {
	deleted, err := s.repo.DeleteGroup(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete recurring group: %w", err)
	}

	s.InvalidateOwner(ownerID)
	s.metrics.recordDeleted(ctx, deleted, domain.DeleteScopeAll)

	slog.InfoContext(ctx, "recurring group deleted",
		"recurring_group_id", groupID,
		"owner_id", ownerID,
		"tasks", deleted)

	return deleted, nil
}

// GetTask retrieves a single task by ID.
func (s *Service) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return s.repo.FindTaskByID(ctx, id)
}

// GetGroup retrieves a recurring group by ID.
func (s *Service) GetGroup(ctx context.Context, id string) (*domain.RecurringGroup, error) {
	return s.repo.FindRecurringGroup(ctx, id)
}

// ListTasks returns the owner's tasks within [from, to], served from the
// snapshot cache while fresh. A stale snapshot is refreshed; if the refresh
// fails the stale snapshot is returned instead of the error.
func (s *Service) ListTasks(ctx context.Context, ownerID string, from, to *civil.Date) ([]*domain.Task, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, domain.ErrInvalidDateRange
	}

	key := cacheKey(ownerID, from, to)
	gen := s.generation(ownerID)

	cached, ok, stale := s.tasks.Get(key)
	if ok && !stale {
		s.metrics.recordCacheLookup(ctx, "hit")
		return cached, nil
	}

	tasks, err := s.repo.FindTasks(ctx, domain.TaskQuery{OwnerID: ownerID, From: from, To: to})
	if err != nil {
		if ok {
			s.metrics.recordCacheLookup(ctx, "stale")
			slog.WarnContext(ctx, "serving stale task list after refresh failure",
				"owner_id", ownerID,
				"error", err)
			return cached, nil
		}
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}

	s.metrics.recordCacheLookup(ctx, "miss")
	s.storeIfCurrent(ownerID, gen, key, tasks)
	return tasks, nil
}

// CalendarDay is one cell of an owner's month view.
type CalendarDay struct {
	Date         *civil.Date
	TaskCount    int
	StudySeconds int
}

// MonthView is an owner's month grid annotated with per-day task totals.
type MonthView struct {
	Year  int
	Month time.Month
	Days  []CalendarDay
}

// MonthCalendar builds the owner's month grid with task counts and study time per day.
func (s *Service) MonthCalendar(ctx context.Context, ownerID string, year int, month time.Month) (*MonthView, error) {
	if month < time.January || month > time.December {
		return nil, domain.ErrInvalidMonth
	}

	first := civil.Date{Year: year, Month: month, Day: 1}
	last := civil.Date{Year: year, Month: month, Day: recurring.DaysInMonth(year, month)}

	tasks, err := s.ListTasks(ctx, ownerID, &first, &last)
	if err != nil {
		return nil, err
	}

	counts := make(map[civil.Date]int, len(tasks))
	for _, t := range tasks {
		counts[t.Date]++
	}
	study := domain.DailyStudySeconds(tasks)

	cells := recurring.BuildGrid(year, month)
	days := make([]CalendarDay, len(cells))
	for i, c := range cells {
		days[i] = CalendarDay{Date: c.Date}
		if c.Date != nil {
			days[i].TaskCount = counts[*c.Date]
			days[i].StudySeconds = study[*c.Date]
		}
	}

	return &MonthView{Year: year, Month: month, Days: days}, nil
}

// Schedule is everything needed to publish an owner's calendar feed.
type Schedule struct {
	OwnerID string
	Tasks   []*domain.Task
	Groups  []*domain.RecurringGroup
}

// OwnerSchedule loads all tasks and recurring groups of an owner.
func (s *Service) OwnerSchedule(ctx context.Context, ownerID string) (*Schedule, error) {
	tasks, err := s.ListTasks(ctx, ownerID, nil, nil)
	if err != nil {
		return nil, err
	}

	groups, err := s.repo.ListRecurringGroups(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring groups: %w", err)
	}

	return &Schedule{OwnerID: ownerID, Tasks: tasks, Groups: groups}, nil
}

// ListOwners returns every owner that has tasks.
func (s *Service) ListOwners(ctx context.Context) ([]string, error) {
	owners, err := s.repo.ListOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	return owners, nil
}

// InvalidateOwner drops every cached task list of an owner. Reads already in
// flight for that owner will not cache what they fetched.
func (s *Service) InvalidateOwner(ownerID string) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.generations[ownerID]++
	s.tasks.InvalidatePrefix(ownerID + "|")
}

func (s *Service) generation(ownerID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[ownerID]
}

// storeIfCurrent caches tasks unless the owner was invalidated after gen was read.
func (s *Service) storeIfCurrent(ownerID string, gen uint64, key string, tasks []*domain.Task) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.generations[ownerID] != gen {
		return
	}
	s.tasks.Set(key, tasks)
}

// SweepCache drops expired task lists and returns how many were removed.
func (s *Service) SweepCache() int {
	return s.tasks.Sweep()
}

func checkOccurrenceCount(occurrences []domain.Occurrence) error {
	if len(occurrences) > domain.MaxOccurrences {
		return fmt.Errorf("%w: got %d", domain.ErrTooManyOccurrences, len(occurrences))
	}
	return nil
}

func normalizeTemplate(tmpl domain.TaskTemplate) (domain.TaskTemplate, error) {
	if tmpl.OwnerID == "" {
		return tmpl, domain.ErrOwnerRequired
	}

	title, err := domain.NewTitle(tmpl.Title)
	if err != nil {
		return tmpl, err
	}
	tmpl.Title = title.String()

	subject, err := domain.NewSubject(tmpl.Subject)
	if err != nil {
		return tmpl, err
	}
	tmpl.Subject = subject.String()

	if tmpl.StartTime, err = normalizeClock(tmpl.StartTime); err != nil {
		return tmpl, err
	}
	if tmpl.EndTime, err = normalizeClock(tmpl.EndTime); err != nil {
		return tmpl, err
	}

	return tmpl, nil
}

func normalizeClock(s *string) (*string, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	c, err := domain.NewClockTime(*s)
	if err != nil {
		return nil, err
	}
	v := c.String()
	return &v, nil
}

func submissionKey(occurrences []domain.Occurrence, tmpl domain.TaskTemplate, rule *domain.RecurrenceRule) (string, error) {
	payload, err := json.Marshal(struct {
		Occurrences []domain.Occurrence
		Template    domain.TaskTemplate
		Rule        *domain.RecurrenceRule
	}{occurrences, tmpl, rule})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return tmpl.OwnerID + ":" + hex.EncodeToString(sum[:]), nil
}

func cacheKey(ownerID string, from, to *civil.Date) string {
	bound := func(d *civil.Date) string {
		if d == nil {
			return "*"
		}
		return d.String()
	}
	return ownerID + "|" + bound(from) + "|" + bound(to)
}

func groupIDOf(g *domain.RecurringGroup) string {
	if g == nil {
		return ""
	}
	return g.ID
}
