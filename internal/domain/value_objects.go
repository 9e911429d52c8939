package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/civil"
)

const (
	// MaxTitleLength is the maximum number of characters in a task title.
	MaxTitleLength = 200

	// MaxSubjectLength is the maximum number of characters in a subject label.
	MaxSubjectLength = 100
)

// Title is a validated title value object (1-200 characters).
type Title struct {
	value string
}

// NewTitle creates a new Title, validating the input.
func NewTitle(s string) (Title, error) {
	s = strings.TrimSpace(s)

	if s == "" {
		return Title{}, ErrTitleRequired
	}

	if utf8.RuneCountInString(s) > MaxTitleLength {
		return Title{}, ErrTitleTooLong
	}

	return Title{value: s}, nil
}

// String returns the title value.
func (t Title) String() string {
	return t.value
}

// Subject is a validated subject label (1-100 characters), e.g. "math".
type Subject struct {
	value string
}

// NewSubject creates a new Subject, validating the input.
func NewSubject(s string) (Subject, error) {
	s = strings.TrimSpace(s)

	if s == "" {
		return Subject{}, ErrSubjectRequired
	}

	if utf8.RuneCountInString(s) > MaxSubjectLength {
		return Subject{}, ErrSubjectTooLong
	}

	return Subject{value: s}, nil
}

// String returns the subject value.
func (s Subject) String() string {
	return s.value
}

// ClockTime is a time of day with minute precision, written as HH:MM.
type ClockTime struct {
	minutes int
}

// NewClockTime parses a 24-hour HH:MM string.
func NewClockTime(s string) (ClockTime, error) {
	if len(s) != 5 || s[2] != ':' {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}

	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}

	return ClockTime{minutes: t.Hour()*60 + t.Minute()}, nil
}

// Minutes returns the number of minutes since midnight.
func (c ClockTime) Minutes() int {
	return c.minutes
}

// String returns the HH:MM representation.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.minutes/60, c.minutes%60)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(s))
	if err != nil || !d.IsValid() {
		return civil.Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// NewRecurrenceType validates and creates a RecurrenceType.
// An empty string means no repetition.
func NewRecurrenceType(s string) (RecurrenceType, error) {
	if s == "" {
		return RecurrenceNone, nil
	}

	rt := RecurrenceType(strings.ToLower(s))

	switch rt {
	case RecurrenceNone, RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly:
		return rt, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidRecurrenceType, s)
	}
}

// NewDeleteScope validates and creates a DeleteScope.
// An empty string is returned as-is so callers can detect a missing choice.
func NewDeleteScope(s string) (DeleteScope, error) {
	scope := DeleteScope(strings.ToLower(s))

	switch scope {
	case "", DeleteScopeSingle, DeleteScopeAll:
		return scope, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidDeleteScope, s)
	}
}
