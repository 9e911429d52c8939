package recurring

import (
	"cloud.google.com/go/civil"

	"github.com/rezkam/tutorplan/internal/domain"
)

// Expand turns a rule and its anchor date into ordered occurrences.
//
// A nil rule or RecurrenceNone yields the anchor alone, or nothing when the
// anchor is the zero date. Repeating rules need both range bounds; a missing
// bound or an end before the start yields nothing. The anchor does not have
// to be one of the selected dates.
func Expand(rule *domain.RecurrenceRule, anchor civil.Date) []domain.Occurrence {
	dates := ExpandDates(rule, anchor)

	occurrences := make([]domain.Occurrence, len(dates))
	for i, d := range dates {
		occurrences[i] = domain.Occurrence{Date: d, SequenceIndex: i}
	}
	return occurrences
}

// ExpandDates is Expand without sequence indexes.
func ExpandDates(rule *domain.RecurrenceRule, anchor civil.Date) []civil.Date {
	if !rule.Repeats() {
		if anchor.IsZero() {
			return nil
		}
		return []civil.Date{anchor}
	}

	if rule.RangeStart == nil || rule.RangeEnd == nil {
		return nil
	}

	start, end := *rule.RangeStart, *rule.RangeEnd
	if end.Before(start) {
		return nil
	}

	expander := GetExpander(rule.Type)
	if expander == nil {
		return nil
	}

	return expander.DatesBetween(start, end, rule)
}
