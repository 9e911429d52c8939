package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/tutorplan/internal/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeRule(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rule.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestExpand(t *testing.T) {
	path := writeRule(t, `
anchor: 2026-02-02
type: weekly
weekdays: [mon, wednesday]
range_end: 2026-02-15
`)

	t.Run("text", func(t *testing.T) {
		out, err := execute(t, "expand", "--rule", path)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 6)
		assert.True(t, strings.HasPrefix(lines[0], "RRULE:FREQ=WEEKLY"))
		assert.Contains(t, lines[0], "BYDAY=MO,WE")
		assert.Equal(t, "  0  2026-02-02  Mon", lines[1])
		assert.Equal(t, "  3  2026-02-11  Wed", lines[4])
		assert.Equal(t, "4 occurrence(s)", lines[5])
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "expand", "-r", path, "--json")
		require.NoError(t, err)

		var got struct {
			Occurrences []domain.Occurrence `json:"occurrences"`
			RRule       string              `json:"rrule"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		require.Len(t, got.Occurrences, 4)
		assert.Equal(t, civil.Date{Year: 2026, Month: time.February, Day: 9}, got.Occurrences[2].Date)
		assert.NotEmpty(t, got.RRule)
	})
}

func TestExpand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"unknown field", "anchor: 2026-02-02\nfrequency: weekly\n", "field frequency not found"},
		{"bad type", "anchor: 2026-02-02\ntype: daily\n", domain.ErrInvalidRecurrenceType.Error()},
		{"bad weekday", "anchor: 2026-02-02\ntype: weekly\nweekdays: [funday]\n", domain.ErrInvalidWeekday.Error()},
		{"bad anchor", "anchor: 2026-02-30\ntype: weekly\n", "anchor"},
		{"bad day of month", "anchor: 2026-02-02\ntype: monthly\nday_of_month: 32\n", domain.ErrInvalidDayOfMonth.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "expand", "--rule", writeRule(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("rule flag is required", func(t *testing.T) {
		_, err := execute(t, "expand")
		require.Error(t, err)
	})
}

func TestExpand_MonthlySkipsShortMonths(t *testing.T) {
	path := writeRule(t, `
anchor: 2026-01-31
type: monthly
range_end: 2026-05-31
`)
	out, err := execute(t, "expand", "--rule", path)
	require.NoError(t, err)

	assert.Contains(t, out, "2026-01-31")
	assert.Contains(t, out, "2026-03-31")
	assert.Contains(t, out, "2026-05-31")
	assert.NotContains(t, out, "2026-02-")
	assert.NotContains(t, out, "2026-04-")
}

func TestGrid(t *testing.T) {
	out, err := execute(t, "grid", "2026", "2")
	require.NoError(t, err)

	assert.Equal(t, strings.Join([]string{
		"February 2026",
		"Su Mo Tu We Th Fr Sa",
		" 1  2  3  4  5  6  7",
		" 8  9 10 11 12 13 14",
		"15 16 17 18 19 20 21",
		"22 23 24 25 26 27 28",
		"",
	}, "\n"), out)

	t.Run("leading blanks", func(t *testing.T) {
		out, err := execute(t, "grid", "2026", "4")
		require.NoError(t, err)
		lines := strings.Split(out, "\n")
		assert.Equal(t, "          1  2  3  4", lines[2])
	})

	t.Run("invalid input", func(t *testing.T) {
		for _, args := range [][]string{{"grid", "2026", "13"}, {"grid", "year", "1"}, {"grid", "2026"}} {
			_, err := execute(t, args...)
			assert.Error(t, err, args)
		}
	})
}

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Weekday
		wantErr bool
	}{
		{"0", time.Sunday, false},
		{"6", time.Saturday, false},
		{"7", 0, true},
		{"Tu", time.Tuesday, false},
		{"thu", time.Thursday, false},
		{"SATURDAY", time.Saturday, false},
		{"s", 0, true},
		{"noday", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseWeekday(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidWeekday)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
