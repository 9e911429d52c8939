package recurring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/tutorplan/internal/domain"
)

func countLeadingBlanks(cells []domain.CalendarCell) int {
	n := 0
	for _, c := range cells {
		if !c.IsBlank() {
			break
		}
		n++
	}
	return n
}

func TestBuildGrid(t *testing.T) {
	tests := []struct {
		name    string
		year    int
		month   time.Month
		leading int
		days    int
	}{
		{name: "february 2026 starts on sunday", year: 2026, month: time.February, leading: 0, days: 28},
		{name: "april 2026 starts on wednesday", year: 2026, month: time.April, leading: 3, days: 30},
		{name: "february 2028 leap year", year: 2028, month: time.February, leading: 2, days: 29},
		{name: "august 2026 starts on saturday", year: 2026, month: time.August, leading: 6, days: 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cells := BuildGrid(tt.year, tt.month)

			require.Len(t, cells, tt.leading+tt.days)
			assert.Equal(t, tt.leading, countLeadingBlanks(cells))

			for i, c := range cells[tt.leading:] {
				require.NotNil(t, c.Date)
				assert.Equal(t, date(tt.year, tt.month, i+1), *c.Date)
			}
		})
	}

	t.Run("cells do not share date pointers", func(t *testing.T) {
		cells := BuildGrid(2026, time.February)
		*cells[0].Date = date(1999, time.January, 1)
		assert.Equal(t, date(2026, time.February, 2), *cells[1].Date)
	})
}
