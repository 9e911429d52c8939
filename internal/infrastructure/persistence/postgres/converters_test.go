package postgres

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/tutorplan/internal/domain"
	"github.com/rezkam/tutorplan/internal/ptr"
)

func TestParseID(t *testing.T) {
	t.Run("valid uuid", func(t *testing.T) {
		id := uuid.Must(uuid.NewV7())

		got, err := parseID(id.String())
		require.NoError(t, err)
		assert.True(t, got.Valid)
		assert.Equal(t, id.String(), pgtypeToUUIDString(got))
	})

	t.Run("invalid uuid keeps both errors in the chain", func(t *testing.T) {
		_, parseErr := uuid.Parse("not-a-uuid")
		require.Error(t, parseErr)

		_, err := parseID("not-a-uuid")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidID)
		assert.Contains(t, err.Error(), parseErr.Error())
	})

	t.Run("nil optional id maps to NULL", func(t *testing.T) {
		got, err := optionalID(nil)
		require.NoError(t, err)
		assert.False(t, got.Valid)
		assert.Nil(t, pgtypeToUUIDPtr(got))
	})
}

func TestDateConversion(t *testing.T) {
	tests := []civil.Date{
		{Year: 2026, Month: time.March, Day: 4},
		{Year: 2028, Month: time.February, Day: 29},
		{Year: 1999, Month: time.December, Day: 31},
	}

	for _, d := range tests {
		t.Run(d.String(), func(t *testing.T) {
			pg := dateToPgtype(d)
			assert.True(t, pg.Valid)
			assert.Equal(t, time.UTC, pg.Time.Location())
			assert.Equal(t, d, pgtypeToDate(pg))
		})
	}

	t.Run("open bound is NULL", func(t *testing.T) {
		assert.False(t, datePtrToPgtype(nil).Valid)
	})

	t.Run("date from a non-UTC timestamp keeps its calendar day", func(t *testing.T) {
		loc := time.FixedZone("UTC+14", 14*60*60)
		pg := pgtype.Date{Time: time.Date(2026, 3, 4, 0, 0, 0, 0, loc), Valid: true}
		assert.Equal(t, civil.Date{Year: 2026, Month: time.March, Day: 4}, pgtypeToDate(pg))
	})
}

func TestNullableConversions(t *testing.T) {
	assert.Nil(t, pgtypeToIntPtr(intPtrToPgtype(nil)))
	assert.Equal(t, 3600, *pgtypeToIntPtr(intPtrToPgtype(ptr.To(3600))))

	assert.Nil(t, pgtypeToTextPtr(textPtrToPgtype(nil)))
	assert.Equal(t, "09:30", *pgtypeToTextPtr(textPtrToPgtype(ptr.To("09:30"))))

	created := time.Date(2026, 3, 4, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, time.UTC, pgtypeToTime(timeToPgtype(created)).Location())
	assert.True(t, pgtypeToTime(timeToPgtype(created)).Equal(created))
	assert.True(t, pgtypeToTime(pgtype.Timestamptz{}).IsZero())
}

func TestRuleJSON(t *testing.T) {
	t.Run("nil rule is NULL", func(t *testing.T) {
		b, err := ruleToJSON(nil)
		require.NoError(t, err)
		assert.Nil(t, b)

		rule, err := ruleFromJSON(nil)
		require.NoError(t, err)
		assert.Nil(t, rule)
	})

	t.Run("stored rule decodes to the same rule", func(t *testing.T) {
		start := civil.Date{Year: 2026, Month: time.March, Day: 2}
		end := civil.Date{Year: 2026, Month: time.March, Day: 30}
		rule := &domain.RecurrenceRule{
			Type:       domain.RecurrenceBiweekly,
			Weekdays:   []time.Weekday{time.Monday, time.Thursday},
			RangeStart: &start,
			RangeEnd:   &end,
		}

		b, err := ruleToJSON(rule)
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"biweekly","weekdays":[1,4],"range_start":"2026-03-02","range_end":"2026-03-30"}`, string(b))

		got, err := ruleFromJSON(b)
		require.NoError(t, err)
		assert.Equal(t, rule, got)
	})

	t.Run("corrupt column", func(t *testing.T) {
		_, err := ruleFromJSON([]byte(`{"type":`))
		assert.Error(t, err)
	})
}

func TestIsForeignKeyViolation(t *testing.T) {
	fk := &pgconn.PgError{Code: "23503", ConstraintName: "tasks_recurring_group_id_fkey"}

	assert.True(t, isForeignKeyViolation(fk, ""))
	assert.True(t, isForeignKeyViolation(fk, "recurring_group_id"))
	assert.False(t, isForeignKeyViolation(fk, "owner_id"))
	assert.False(t, isForeignKeyViolation(&pgconn.PgError{Code: "23505"}, ""))
	assert.False(t, isForeignKeyViolation(errors.New("boom"), ""))
}

func TestApplyPoolDefaults(t *testing.T) {
	t.Run("zero config uses defaults", func(t *testing.T) {
		pc := mustPoolConfig(t)
		applyPoolDefaults(pc, DBConfig{})

		assert.Equal(t, int32(DefaultMaxConns), pc.MaxConns)
		assert.Equal(t, int32(DefaultMinConns), pc.MinConns)
		assert.Equal(t, DefaultConnMaxLifetime, pc.MaxConnLifetime)
		assert.Equal(t, DefaultConnMaxIdleTime, pc.MaxConnIdleTime)
	})

	t.Run("min is capped at max", func(t *testing.T) {
		pc := mustPoolConfig(t)
		applyPoolDefaults(pc, DBConfig{MaxOpenConns: 2, MaxIdleConns: 10, ConnMaxLifetime: time.Hour})

		assert.Equal(t, int32(2), pc.MaxConns)
		assert.Equal(t, int32(2), pc.MinConns)
		assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	})
}

func mustPoolConfig(t *testing.T) *pgxpool.Config {
	t.Helper()
	pc, err := pgxpool.ParseConfig("postgres://tutorplan@localhost:5432/tutorplan")
	require.NoError(t, err)
	return pc
}
