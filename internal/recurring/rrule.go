package recurring

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/teambition/rrule-go"

	"github.com/rezkam/tutorplan/internal/domain"
)

// ErrNoRRule is returned when a rule has no RFC 5545 equivalent:
// non-repeating rules and rules that select no dates at all.
var ErrNoRRule = errors.New("rule has no RRULE representation")

var rruleWeekdays = [7]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// ToROption converts a repeating rule into rrule options.
//
// The week start is set to the weekday of the range start so that RFC 5545
// week numbering lines up with 7-day blocks counted from the range start.
// That keeps INTERVAL=2 in step with biweekly parity.
func ToROption(rule *domain.RecurrenceRule) (*rrule.ROption, error) {
	if !rule.Repeats() || rule.RangeStart == nil || rule.RangeEnd == nil || rule.RangeEnd.Before(*rule.RangeStart) {
		return nil, ErrNoRRule
	}

	start := *rule.RangeStart
	opt := &rrule.ROption{
		Dtstart:  start.In(time.UTC),
		Until:    rule.RangeEnd.In(time.UTC),
		Interval: 1,
		Wkst:     rruleWeekdays[start.Weekday()],
	}

	switch rule.Type {
	case domain.RecurrenceWeekly, domain.RecurrenceBiweekly:
		if len(rule.Weekdays) == 0 {
			return nil, ErrNoRRule
		}
		opt.Freq = rrule.WEEKLY
		if rule.Type == domain.RecurrenceBiweekly {
			opt.Interval = 2
		}
		for _, wd := range rule.Weekdays {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[wd])
		}
	case domain.RecurrenceMonthly:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = []int{rule.DayOfMonth}
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidRecurrenceType, rule.Type)
	}

	return opt, nil
}

// ToRRule builds an rrule-go iterator equivalent to the rule.
func ToRRule(rule *domain.RecurrenceRule) (*rrule.RRule, error) {
	if rule == nil {
		return nil, ErrNoRRule
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	opt, err := ToROption(rule)
	if err != nil {
		return nil, err
	}

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("failed to build rrule: %w", err)
	}
	return r, nil
}

// RRuleString returns the RRULE property value for the rule, e.g.
// "FREQ=WEEKLY;INTERVAL=2;WKST=MO;UNTIL=20260329T000000Z;BYDAY=MO,WE".
func RRuleString(rule *domain.RecurrenceRule) (string, error) {
	if rule != nil {
		if err := rule.Validate(); err != nil {
			return "", err
		}
	}

	opt, err := ToROption(rule)
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

// DatesFromRRule collects the civil dates produced by an rrule iterator.
func DatesFromRRule(r *rrule.RRule) []civil.Date {
	times := r.All()
	dates := make([]civil.Date, len(times))
	for i, t := range times {
		dates[i] = civil.DateOf(t)
	}
	return dates
}
