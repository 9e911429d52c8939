package domain

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"

	"github.com/rezkam/tutorplan/internal/ptr"
)

func TestTaskStudyDuration(t *testing.T) {
	tests := []struct {
		name string
		task Task
		want time.Duration
	}{
		{
			name: "start and end on same day",
			task: Task{StartTime: ptr.To("09:00"), EndTime: ptr.To("10:30")},
			want: 90 * time.Minute,
		},
		{
			name: "wraps past midnight",
			task: Task{StartTime: ptr.To("23:00"), EndTime: ptr.To("01:00")},
			want: 2 * time.Hour,
		},
		{
			name: "equal times count as a full day",
			task: Task{StartTime: ptr.To("08:00"), EndTime: ptr.To("08:00")},
			want: 24 * time.Hour,
		},
		{
			name: "falls back to recorded time",
			task: Task{TimeSpentSec: ptr.To(1500)},
			want: 25 * time.Minute,
		},
		{
			name: "invalid times fall back to recorded time",
			task: Task{StartTime: ptr.To("later"), EndTime: ptr.To("10:00"), TimeSpentSec: ptr.To(60)},
			want: time.Minute,
		},
		{
			name: "nothing recorded",
			task: Task{},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TaskStudyDuration(&tt.task))
		})
	}
}

func TestDailyStudySeconds(t *testing.T) {
	mon := civil.Date{Year: 2026, Month: 3, Day: 2}
	tue := mon.AddDays(1)

	tasks := []*Task{
		{Date: mon, StartTime: ptr.To("09:00"), EndTime: ptr.To("10:00")},
		{Date: mon, TimeSpentSec: ptr.To(600)},
		{Date: tue, StartTime: ptr.To("20:00"), EndTime: ptr.To("20:30")},
	}

	assert.Equal(t, 3600+600+1800, StudySeconds(tasks))
	assert.Equal(t, map[civil.Date]int{mon: 4200, tue: 1800}, DailyStudySeconds(tasks))
}

func TestFormatDurationISO8601(t *testing.T) {
	assert.Equal(t, "PT0S", FormatDurationISO8601(0))
	assert.Equal(t, "PT1H30M", FormatDurationISO8601(90*time.Minute))
	assert.Equal(t, "PT25H5S", FormatDurationISO8601(25*time.Hour+5*time.Second))
}
