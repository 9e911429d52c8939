package recurring

import (
	"cloud.google.com/go/civil"

	"github.com/rezkam/tutorplan/internal/domain"
)

// PatternExpander selects the dates of a repeating rule within a range.
type PatternExpander interface {
	// DatesBetween returns every selected date in the inclusive range
	// [start, end] in ascending order. start must not be after end.
	DatesBetween(start, end civil.Date, rule *domain.RecurrenceRule) []civil.Date
}

// GetExpander returns the expander for a repeating recurrence type.
// Returns nil for RecurrenceNone and unknown types.
func GetExpander(rt domain.RecurrenceType) PatternExpander {
	switch rt {
	case domain.RecurrenceWeekly:
		return &WeeklyExpander{}
	case domain.RecurrenceBiweekly:
		return &WeeklyExpander{EveryOtherWeek: true}
	case domain.RecurrenceMonthly:
		return &MonthlyExpander{}
	default:
		return nil
	}
}
