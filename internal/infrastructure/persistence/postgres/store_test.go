package postgres_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/tutorplan/internal/application/planner"
	"github.com/rezkam/tutorplan/internal/config"
	"github.com/rezkam/tutorplan/internal/domain"
	"github.com/rezkam/tutorplan/internal/infrastructure/persistence/compliance"
	"github.com/rezkam/tutorplan/internal/infrastructure/persistence/postgres"
)

// newTestStore connects to TUTORPLAN_TEST_DB_DSN and empties both tables.
// Tests are skipped when no DSN is configured.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()

	cfg, err := config.LoadTestConfig()
	require.NoError(t, err)
	if cfg.DSN == "" {
		t.Skip("TUTORPLAN_TEST_DB_DSN not set")
	}

	ctx := context.Background()
	store, err := postgres.NewStoreWithConfig(ctx, postgres.DBConfig{DSN: cfg.DSN, AutoMigrate: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.Pool().Exec(ctx, `TRUNCATE tasks, recurring_groups`)
	require.NoError(t, err)

	return store
}

func TestStoreCompliance(t *testing.T) {
	compliance.RunRepositoryComplianceTest(t, func(t *testing.T) planner.Repository {
		return newTestStore(t)
	})
}

func TestListen_ReceivesOwnerOnCommit(t *testing.T) {
	store := newTestStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	got := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- store.Listen(ctx, func(ownerID string) { got <- ownerID })
	}()

	// LISTEN is issued asynchronously; keep writing until a notification arrives.
	require.Eventually(t, func() bool {
		task := &domain.Task{
			ID:        uuid.Must(uuid.NewV7()).String(),
			OwnerID:   "mentee-listen",
			Title:     "Flashcards",
			Subject:   "french",
			Date:      civil.DateOf(time.Now()),
			CreatedAt: time.Now().UTC(),
		}
		if _, err := store.InsertTasks(ctx, []*domain.Task{task}); err != nil {
			return false
		}

		select {
		case owner := <-got:
			return owner == "mentee-listen"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 100*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
