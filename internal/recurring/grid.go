package recurring

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/rezkam/tutorplan/internal/domain"
)

// BuildGrid lays out a month for a Sunday-first calendar.
//
// The grid starts with one blank cell per weekday before the 1st, followed by
// one cell per day of the month. The trailing week is not padded.
func BuildGrid(year int, month time.Month) []domain.CalendarCell {
	first := civil.Date{Year: year, Month: month, Day: 1}
	leading := int(first.Weekday())
	days := DaysInMonth(year, month)

	cells := make([]domain.CalendarCell, leading, leading+days)
	for day := 1; day <= days; day++ {
		d := civil.Date{Year: year, Month: month, Day: day}
		cells = append(cells, domain.CalendarCell{Date: &d})
	}

	return cells
}
