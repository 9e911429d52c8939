package domain

import (
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/civil"
)

// RecurrenceType identifies how a schedule repeats.
type RecurrenceType string

const (
	RecurrenceNone     RecurrenceType = "none"
	RecurrenceWeekly   RecurrenceType = "weekly"
	RecurrenceBiweekly RecurrenceType = "biweekly"
	RecurrenceMonthly  RecurrenceType = "monthly"
)

// DefaultRangeDays is the span of the default range built from an anchor date.
const DefaultRangeDays = 28

// RecurrenceRule describes a repetition pattern over an inclusive date range.
//
// Weekdays are used by weekly and biweekly rules (Sunday = 0 .. Saturday = 6).
// DayOfMonth is used by monthly rules. Months shorter than DayOfMonth are
// skipped, never clamped to the last day.
type RecurrenceRule struct {
	Type       RecurrenceType `json:"type"`
	Weekdays   []time.Weekday `json:"weekdays,omitempty"`
	DayOfMonth int            `json:"day_of_month,omitempty"`
	RangeStart *civil.Date    `json:"range_start,omitempty"`
	RangeEnd   *civil.Date    `json:"range_end,omitempty"`
}

// RuleOptions carries the optional parts of a rule as entered by a user.
// Nil fields are filled from the anchor date by NewRecurrenceRule.
type RuleOptions struct {
	Weekdays   []time.Weekday
	DayOfMonth int
	RangeStart *civil.Date
	RangeEnd   *civil.Date
}

// NewRecurrenceRule builds a rule for the given anchor date.
//
// Defaults mirror the planner form:
//   - RangeStart: the anchor
//   - RangeEnd: the anchor + DefaultRangeDays
//   - Weekdays: the anchor's weekday (only when Weekdays is nil)
//   - DayOfMonth: the anchor's day of month
//
// A non-nil empty Weekdays slice is kept empty; such a rule expands to no dates.
func NewRecurrenceRule(rt RecurrenceType, anchor civil.Date, opts RuleOptions) (*RecurrenceRule, error) {
	rule := &RecurrenceRule{Type: rt}
	if rt == RecurrenceNone {
		return rule, rule.Validate()
	}

	start := anchor
	if opts.RangeStart != nil {
		start = *opts.RangeStart
	}
	end := anchor.AddDays(DefaultRangeDays)
	if opts.RangeEnd != nil {
		end = *opts.RangeEnd
	}
	rule.RangeStart = &start
	rule.RangeEnd = &end

	switch rt {
	case RecurrenceWeekly, RecurrenceBiweekly:
		if opts.Weekdays == nil {
			rule.Weekdays = []time.Weekday{anchor.Weekday()}
		} else {
			rule.Weekdays = normalizeWeekdays(opts.Weekdays)
		}
	case RecurrenceMonthly:
		rule.DayOfMonth = anchor.Day
		if opts.DayOfMonth != 0 {
			rule.DayOfMonth = opts.DayOfMonth
		}
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// Validate checks the rule's field domains.
// An empty weekday set or an inverted range is valid and expands to nothing.
func (r *RecurrenceRule) Validate() error {
	switch r.Type {
	case RecurrenceNone, RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRecurrenceType, r.Type)
	}

	for _, wd := range r.Weekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return fmt.Errorf("%w: %d", ErrInvalidWeekday, wd)
		}
	}

	if r.Type == RecurrenceMonthly || r.DayOfMonth != 0 {
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return fmt.Errorf("%w: %d", ErrInvalidDayOfMonth, r.DayOfMonth)
		}
	}

	if r.RangeStart != nil && !r.RangeStart.IsValid() {
		return fmt.Errorf("%w: range start", ErrInvalidDate)
	}
	if r.RangeEnd != nil && !r.RangeEnd.IsValid() {
		return fmt.Errorf("%w: range end", ErrInvalidDate)
	}

	return nil
}

// Repeats reports whether the rule produces more than its anchor.
func (r *RecurrenceRule) Repeats() bool {
	return r != nil && r.Type != RecurrenceNone
}

// HasWeekday reports whether wd is one of the rule's weekdays.
func (r *RecurrenceRule) HasWeekday(wd time.Weekday) bool {
	return slices.Contains(r.Weekdays, wd)
}

func normalizeWeekdays(in []time.Weekday) []time.Weekday {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

// Occurrence is one concrete date produced by expanding a rule.
// SequenceIndex 0 is the primary occurrence.
type Occurrence struct {
	Date          civil.Date `json:"date"`
	SequenceIndex int        `json:"sequence_index"`
}

// IsPrimary reports whether this is the first occurrence of an expansion.
func (o Occurrence) IsPrimary() bool {
	return o.SequenceIndex == 0
}

// CalendarCell is one slot of a month grid. A nil Date is a leading blank.
type CalendarCell struct {
	Date *civil.Date `json:"date"`
}

// IsBlank reports whether the cell is padding before the first day.
func (c CalendarCell) IsBlank() bool {
	return c.Date == nil
}
