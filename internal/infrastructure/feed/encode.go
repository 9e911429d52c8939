// Package feed renders an owner's planned tasks as an iCalendar feed and
// publishes the result to a directory or a GCS bucket.
package feed

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/rezkam/tutorplan/internal/domain"
	"github.com/rezkam/tutorplan/internal/recurring"
)

const (
	// ProductName is used for PRODID and as the UID domain of every event.
	ProductName = "tutorplan"

	// RRuleProperty carries the rule a recurring group was expanded from.
	// Every occurrence is already its own VEVENT, so a real RRULE would
	// make clients render the group twice.
	RRuleProperty = ics.ComponentProperty("X-TUTORPLAN-RRULE")

	// ContentType is the media type of an encoded feed.
	ContentType = "text/calendar; charset=utf-8"
)

// Encode builds the iCalendar feed of one owner. Tasks without a start and
// end time become all-day events; timed tasks are placed in loc, and an end
// at or before the start runs into the next day.
func Encode(ownerID string, tasks []*domain.Task, groups []*domain.RecurringGroup, loc *time.Location) []byte {
	if loc == nil {
		loc = time.UTC
	}

	cal := ics.NewCalendarFor(ProductName)
	cal.SetMethod(ics.MethodPublish)
	cal.SetXWRCalName(ownerID)
	cal.SetXWRTimezone(loc.String())

	rules := make(map[string]*domain.RecurrenceRule, len(groups))
	for _, g := range groups {
		rules[g.ID] = g.Rule
	}
	seen := make(map[string]bool, len(groups))

	for _, t := range tasks {
		event := cal.AddEvent(EventUID(t.ID))
		event.SetDtStampTime(t.CreatedAt)
		event.SetCreatedTime(t.CreatedAt)
		event.SetSummary(t.Title)
		if t.Description != "" {
			event.SetDescription(t.Description)
		}
		event.AddCategory(t.Subject)
		setEventTimes(event, t, loc)

		if t.Completed {
			event.SetStatus(ics.ObjectStatusCompleted)
		} else {
			event.SetStatus(ics.ObjectStatusConfirmed)
		}

		if !t.IsRecurring() {
			continue
		}
		groupID := *t.RecurringGroupID
		event.SetProperty(ics.ComponentPropertyRelatedTo, EventUID(groupID))

		// Tasks arrive in date order, so the first one seen is the primary occurrence.
		if seen[groupID] {
			continue
		}
		seen[groupID] = true
		if rule := rules[groupID]; rule != nil && rule.Type != domain.RecurrenceNone {
			rrule, err := recurring.RRuleString(rule)
			if err != nil {
				slog.Warn("skipping rule of recurring group in feed",
					"group_id", groupID,
					"error", err)
				continue
			}
			event.SetProperty(RRuleProperty, rrule)
		}
	}

	return []byte(cal.Serialize())
}

// EventUID is the iCalendar UID of a task or group id.
func EventUID(id string) string {
	return id + "@" + ProductName
}

// FileName maps an owner id to the feed's object name. Characters outside
// [A-Za-z0-9._-] are replaced so the name is safe on disk and in a bucket.
func FileName(ownerID string) string {
	var b strings.Builder
	for _, r := range ownerID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String() + ".ics"
}

func setEventTimes(event *ics.VEvent, t *domain.Task, loc *time.Location) {
	start, end, timed := clockRange(t)
	if !timed {
		event.SetAllDayStartAt(t.Date.In(time.UTC))
		event.SetAllDayEndAt(t.Date.AddDays(1).In(time.UTC))
		return
	}

	startAt := wallClock(t, start, loc)
	endAt := wallClock(t, end, loc)
	if !endAt.After(startAt) {
		endAt = endAt.AddDate(0, 0, 1)
	}
	event.SetStartAt(startAt)
	event.SetEndAt(endAt)
}

func wallClock(t *domain.Task, c domain.ClockTime, loc *time.Location) time.Time {
	return time.Date(t.Date.Year, t.Date.Month, t.Date.Day, c.Minutes()/60, c.Minutes()%60, 0, 0, loc)
}

func clockRange(t *domain.Task) (start, end domain.ClockTime, ok bool) {
	if t.StartTime == nil || t.EndTime == nil {
		return start, end, false
	}
	start, err := domain.NewClockTime(*t.StartTime)
	if err != nil {
		return start, end, false
	}
	end, err = domain.NewClockTime(*t.EndTime)
	if err != nil {
		return start, end, false
	}
	return start, end, true
}

// ContentDisposition is the header value for serving a feed as a download.
func ContentDisposition(ownerID string) string {
	return fmt.Sprintf("attachment; filename=%q", FileName(ownerID))
}
