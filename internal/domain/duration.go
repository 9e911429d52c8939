package domain

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/rezkam/tutorplan/internal/ptr"
)

const minutesPerDay = 24 * 60

// TaskStudyDuration returns the study time attributed to a task.
//
// When both start and end times are valid the span between them is used,
// wrapping past midnight when the end is not after the start. Otherwise the
// recorded TimeSpentSec is used. Tasks with neither count as zero.
func TaskStudyDuration(t *Task) time.Duration {
	if t.StartTime != nil && t.EndTime != nil {
		start, errStart := NewClockTime(*t.StartTime)
		end, errEnd := NewClockTime(*t.EndTime)
		if errStart == nil && errEnd == nil {
			diff := end.Minutes() - start.Minutes()
			if diff <= 0 {
				diff += minutesPerDay
			}
			return time.Duration(diff) * time.Minute
		}
	}

	if spent := ptr.Deref(t.TimeSpentSec, 0); spent > 0 {
		return time.Duration(spent) * time.Second
	}

	return 0
}

// StudySeconds sums the study time of the given tasks in whole seconds.
func StudySeconds(tasks []*Task) int {
	var total time.Duration
	for _, t := range tasks {
		total += TaskStudyDuration(t)
	}
	return int(total / time.Second)
}

// DailyStudySeconds groups study seconds by task date.
func DailyStudySeconds(tasks []*Task) map[civil.Date]int {
	out := make(map[civil.Date]int)
	for _, t := range tasks {
		out[t.Date] += int(TaskStudyDuration(t) / time.Second)
	}
	return out
}

// FormatDurationISO8601 converts a time.Duration to ISO 8601 format (e.g., "PT1H30M").
func FormatDurationISO8601(d time.Duration) string {
	if d == 0 {
		return "PT0S"
	}

	var b strings.Builder
	b.WriteString("PT")

	remaining := d

	if hours := remaining / time.Hour; hours > 0 {
		fmt.Fprintf(&b, "%dH", hours)
		remaining %= time.Hour
	}

	if minutes := remaining / time.Minute; minutes > 0 {
		fmt.Fprintf(&b, "%dM", minutes)
		remaining %= time.Minute
	}

	if seconds := remaining / time.Second; seconds > 0 {
		fmt.Fprintf(&b, "%dS", seconds)
	}

	return b.String()
}
