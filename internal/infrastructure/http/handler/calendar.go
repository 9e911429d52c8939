package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rezkam/tutorplan/internal/domain"
	"github.com/rezkam/tutorplan/internal/infrastructure/feed"
	"github.com/rezkam/tutorplan/internal/infrastructure/http/response"
	"github.com/rezkam/tutorplan/internal/recurring"
)

// PreviewRecurrence expands a rule without saving anything.
// POST /v1/recurrence/preview
func (h *PlannerHandler) PreviewRecurrence(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	anchor, err := domain.ParseDate(req.Anchor)
	if err != nil {
		response.ValidationError(w, "anchor", err.Error())
		return
	}
	rule, err := req.Rule.toRule(anchor)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	result, err := h.service.Preview(rule, anchor)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	occurrences := result.Occurrences
	if occurrences == nil {
		occurrences = []domain.Occurrence{}
	}
	response.OK(w, previewResponse{
		Occurrences: occurrences,
		Rule:        rule,
		RRule:       result.RRule,
	})
}

// GetCalendarGrid returns the bare month grid with leading blanks.
// GET /v1/calendar/{year}/{month}
func (h *PlannerHandler) GetCalendarGrid(w http.ResponseWriter, r *http.Request) {
	year, month, ok := yearMonth(w, r)
	if !ok {
		return
	}
	response.OK(w, gridResponse{
		Year:  year,
		Month: int(month),
		Cells: recurring.BuildGrid(year, month),
	})
}

// GetOwnerCalendar returns the month grid annotated with the owner's task
// counts and study time per day.
// GET /v1/owners/{owner_id}/calendar/{year}/{month}
func (h *PlannerHandler) GetOwnerCalendar(w http.ResponseWriter, r *http.Request) {
	year, month, ok := yearMonth(w, r)
	if !ok {
		return
	}

	view, err := h.service.MonthCalendar(r.Context(), chi.URLParam(r, "owner_id"), year, month)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, mapMonth(view))
}

// GetFeed renders the owner's schedule as an iCalendar feed.
// GET /v1/owners/{owner_id}/feed.ics
func (h *PlannerHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "owner_id")

	schedule, err := h.service.OwnerSchedule(r.Context(), ownerID)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	if r.URL.Query().Has("download") {
		w.Header().Set("Content-Disposition", feed.ContentDisposition(ownerID))
	}
	response.Raw(w, feed.ContentType, feed.Encode(ownerID, schedule.Tasks, schedule.Groups, h.feedLoc))
}

// yearMonth parses the {year}/{month} path segments, writing a validation
// error when either is out of range.
func yearMonth(w http.ResponseWriter, r *http.Request) (int, time.Month, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1 || year > 9999 {
		response.ValidationError(w, "year", "must be a number between 1 and 9999")
		return 0, 0, false
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		response.ValidationError(w, "month", domain.ErrInvalidMonth.Error())
		return 0, 0, false
	}
	return year, time.Month(month), true
}
