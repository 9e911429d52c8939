package planner

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/rezkam/tutorplan/internal/domain"
)

// memRepo is an in-memory Repository with transactional rollback.
type memRepo struct {
	mu     sync.Mutex
	groups map[string]*domain.RecurringGroup
	tasks  map[string]*domain.Task

	// insertLimit > 0 stores at most that many rows per InsertTasks call.
	insertLimit int
	// findErr is returned by FindTasks when set.
	findErr error
	// insertGate blocks InsertTasks until closed when set; insertStarted is
	// signalled on entry.
	insertGate    chan struct{}
	insertStarted chan struct{}
	// findGate blocks FindTasks after it has read the rows; findStarted
	// receives one signal per call without blocking.
	findGate    chan struct{}
	findStarted chan struct{}

	insertCalls int
	findCalls   int
}

func newMemRepo() *memRepo {
	return &memRepo{
		groups: make(map[string]*domain.RecurringGroup),
		tasks:  make(map[string]*domain.Task),
	}
}

func (m *memRepo) CreateRecurringGroup(ctx context.Context, group *domain.RecurringGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := *group
	m.groups[group.ID] = &g
	return nil
}

func (m *memRepo) FindRecurringGroup(ctx context.Context, id string) (*domain.RecurringGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrGroupNotFound, id)
	}
	out := *g
	return &out, nil
}

func (m *memRepo) ListRecurringGroups(ctx context.Context, ownerID string) ([]*domain.RecurringGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.RecurringGroup
	for _, g := range m.groups {
		if g.OwnerID == ownerID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) DeleteGroup(ctx context.Context, groupID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for id, t := range m.tasks {
		if t.RecurringGroupID != nil && *t.RecurringGroupID == groupID {
			delete(m.tasks, id)
			deleted++
		}
	}
	_, hadGroup := m.groups[groupID]
	delete(m.groups, groupID)

	if deleted == 0 && !hadGroup {
		return 0, fmt.Errorf("%w: %s", domain.ErrGroupNotFound, groupID)
	}
	return deleted, nil
}

func (m *memRepo) InsertTasks(ctx context.Context, tasks []*domain.Task) (int, error) {
	if m.insertStarted != nil {
		m.insertStarted <- struct{}{}
	}
	if m.insertGate != nil {
		<-m.insertGate
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++

	n := len(tasks)
	if m.insertLimit > 0 && m.insertLimit < n {
		n = m.insertLimit
	}
	for _, t := range tasks[:n] {
		if t.RecurringGroupID != nil {
			if _, ok := m.groups[*t.RecurringGroupID]; !ok {
				return 0, fmt.Errorf("%w: %s", domain.ErrGroupNotFound, *t.RecurringGroupID)
			}
		}
		c := *t
		m.tasks[t.ID] = &c
	}
	return n, nil
}

func (m *memRepo) FindTaskByID(ctx context.Context, id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	out := *t
	return &out, nil
}

func (m *memRepo) FindTasks(ctx context.Context, q domain.TaskQuery) ([]*domain.Task, error) {
	out, err := m.findTasks(q)
	if m.findStarted != nil {
		select {
		case m.findStarted <- struct{}{}:
		default:
		}
	}
	if m.findGate != nil {
		<-m.findGate
	}
	return out, err
}

func (m *memRepo) findTasks(q domain.TaskQuery) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	if m.findErr != nil {
		return nil, m.findErr
	}

	var out []*domain.Task
	for _, t := range m.tasks {
		if t.OwnerID != q.OwnerID {
			continue
		}
		if q.From != nil && t.Date.Before(*q.From) {
			continue
		}
		if q.To != nil && t.Date.After(*q.To) {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c < 0
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memRepo) DeleteTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	delete(m.tasks, id)
	return nil
}

func (m *memRepo) UpdateTask(ctx context.Context, id string, update domain.TaskUpdate) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	t := *stored
	if update.Completed != nil {
		t.Completed = *update.Completed
	}
	if update.TimeSpentSec != nil {
		v := *update.TimeSpentSec
		t.TimeSpentSec = &v
	}
	m.tasks[id] = &t
	out := t
	return &out, nil
}

func (m *memRepo) CountGroupTasks(ctx context.Context, groupID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if t.RecurringGroupID != nil && *t.RecurringGroupID == groupID {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) ListOwners(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var owners []string
	for _, t := range m.tasks {
		if !slices.Contains(owners, t.OwnerID) {
			owners = append(owners, t.OwnerID)
		}
	}
	slices.Sort(owners)
	return owners, nil
}

func (m *memRepo) Atomic(ctx context.Context, fn func(repo Repository) error) error {
	m.mu.Lock()
	groups := maps.Clone(m.groups)
	tasks := maps.Clone(m.tasks)
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.groups = groups
		m.tasks = tasks
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memRepo) taskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

func (m *memRepo) groupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.groups)
}

var _ Repository = (*memRepo)(nil)
