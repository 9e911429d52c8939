package recurring

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/rezkam/tutorplan/internal/domain"
)

// WeeklyExpander selects the rule's weekdays on every scanned day.
//
// Weeks are counted in 7-day blocks from the range start, not calendar weeks:
// day i of the range belongs to week i/7. With EveryOtherWeek set only even
// weeks are kept, so parity is anchored to the range start.
type WeeklyExpander struct {
	EveryOtherWeek bool
}

func (e *WeeklyExpander) DatesBetween(start, end civil.Date, rule *domain.RecurrenceRule) []civil.Date {
	if len(rule.Weekdays) == 0 {
		return nil
	}

	var dates []civil.Date
	for d, offset := start, 0; !d.After(end); d, offset = d.AddDays(1), offset+1 {
		if e.EveryOtherWeek && (offset/7)%2 != 0 {
			continue
		}
		if rule.HasWeekday(d.Weekday()) {
			dates = append(dates, d)
		}
	}

	return dates
}

// MonthlyExpander selects the rule's day of month in every month the range touches.
// Months without that day (e.g. the 31st in April) are skipped.
type MonthlyExpander struct{}

func (e *MonthlyExpander) DatesBetween(start, end civil.Date, rule *domain.RecurrenceRule) []civil.Date {
	if rule.DayOfMonth < 1 {
		return nil
	}

	var dates []civil.Date
	year, month := start.Year, start.Month
	for year < end.Year || (year == end.Year && month <= end.Month) {
		if rule.DayOfMonth <= DaysInMonth(year, month) {
			d := civil.Date{Year: year, Month: month, Day: rule.DayOfMonth}
			if !d.Before(start) && !d.After(end) {
				dates = append(dates, d)
			}
		}

		month++
		if month > time.December {
			month = time.January
			year++
		}
	}

	return dates
}

// DaysInMonth returns the number of days in the given month.
// Day 0 of the following month normalizes to the last day of this one.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
