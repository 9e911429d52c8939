package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rezkam/tutorplan/internal/domain"
)

// === pgtype Conversion Helpers ===

// parseID parses a UUID string, keeping both the domain error and the parse
// error in the chain.
func parseID(id string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

// optionalID converts a nullable id; nil maps to NULL.
func optionalID(id *string) (pgtype.UUID, error) {
	if id == nil {
		return pgtype.UUID{}, nil
	}
	return parseID(*id)
}

// pgtypeToUUIDString converts pgtype.UUID to string (empty if invalid).
func pgtypeToUUIDString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}

// pgtypeToUUIDPtr converts pgtype.UUID to *string (nil if invalid).
func pgtypeToUUIDPtr(id pgtype.UUID) *string {
	if !id.Valid {
		return nil
	}
	s := uuid.UUID(id.Bytes).String()
	return &s
}

// timeToPgtype converts time.Time to pgtype.Timestamptz.
func timeToPgtype(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

// pgtypeToTime converts pgtype.Timestamptz to time.Time (zero if invalid).
// Always returns time in UTC location for consistent timezone handling.
func pgtypeToTime(t pgtype.Timestamptz) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

// dateToPgtype converts a calendar date to pgtype.Date at UTC midnight.
func dateToPgtype(d civil.Date) pgtype.Date {
	return pgtype.Date{Time: d.In(time.UTC), Valid: true}
}

// datePtrToPgtype converts an optional bound; nil maps to NULL so that
// `$n::date IS NULL OR ...` skips the filter.
func datePtrToPgtype(d *civil.Date) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return dateToPgtype(*d)
}

// pgtypeToDate converts pgtype.Date to civil.Date (zero if invalid).
func pgtypeToDate(d pgtype.Date) civil.Date {
	if !d.Valid {
		return civil.Date{}
	}
	return civil.DateOf(d.Time)
}

func intPtrToPgtype(v *int) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(*v), Valid: true}
}

func pgtypeToIntPtr(v pgtype.Int4) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int32)
	return &i
}

func textPtrToPgtype(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func pgtypeToTextPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

// === Rule Encoding ===

// ruleToJSON encodes a rule for the JSONB column; nil maps to NULL.
func ruleToJSON(rule *domain.RecurrenceRule) ([]byte, error) {
	if rule == nil {
		return nil, nil
	}
	b, err := json.Marshal(rule)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recurrence rule: %w", err)
	}
	return b, nil
}

func ruleFromJSON(b []byte) (*domain.RecurrenceRule, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var rule domain.RecurrenceRule
	if err := json.Unmarshal(b, &rule); err != nil {
		return nil, fmt.Errorf("failed to decode recurrence rule: %w", err)
	}
	return &rule, nil
}

// === Error Helpers ===

// isForeignKeyViolation checks if an error is a PostgreSQL FK violation
func isForeignKeyViolation(err error, column string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23503 is foreign_key_violation
		if pgErr.Code == "23503" {
			if column == "" {
				return true
			}
			return strings.Contains(pgErr.ConstraintName, column) ||
				strings.Contains(pgErr.Message, column)
		}
	}
	return false
}
