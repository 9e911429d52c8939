package handler

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"

	"github.com/rezkam/tutorplan/internal/domain"
	"github.com/rezkam/tutorplan/internal/infrastructure/http/response"
	"github.com/rezkam/tutorplan/internal/recurring"
)

// CreateTasks materializes tasks for an owner.
// POST /v1/owners/{owner_id}/tasks
//
// The body picks dates in one of three ways: "rule" with "anchor" expands a
// recurrence, "dates" saves an explicit selection, and "date" saves one task.
func (h *PlannerHandler) CreateTasks(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "owner_id")

	var req createTasksRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	var (
		tasks []*domain.Task
		err   error
	)
	tmpl := req.template(ownerID)

	switch {
	case req.Rule != nil:
		anchor, perr := domain.ParseDate(req.Anchor)
		if perr != nil {
			response.ValidationError(w, "anchor", perr.Error())
			return
		}
		rule, rerr := req.Rule.toRule(anchor)
		if rerr != nil {
			response.FromDomainError(w, r, rerr)
			return
		}
		tasks, err = h.service.ScheduleRecurring(r.Context(), rule, anchor, tmpl)

	case req.Dates != nil:
		occurrences, perr := occurrencesOf(req.Dates)
		if perr != nil {
			response.ValidationError(w, "dates", perr.Error())
			return
		}
		tasks, err = h.service.Materialize(r.Context(), occurrences, tmpl)

	case req.Date != "":
		date, perr := domain.ParseDate(req.Date)
		if perr != nil {
			response.ValidationError(w, "date", perr.Error())
			return
		}
		tasks, err = h.service.Materialize(r.Context(), []domain.Occurrence{{Date: date}}, tmpl)

	default:
		response.ValidationError(w, "date", "one of date, dates or rule is required")
		return
	}

	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create tasks via HTTP",
			"owner_id", ownerID,
			"error", err)
		response.FromDomainError(w, r, err)
		return
	}

	resp := createTasksResponse{Tasks: mapTasks(tasks)}
	if len(tasks) > 0 {
		resp.RecurringGroupID = tasks[0].RecurringGroupID
	}
	response.Created(w, resp)
}

// ListTasks returns an owner's tasks with their study time.
// GET /v1/owners/{owner_id}/tasks?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *PlannerHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "owner_id")

	from, err := optionalDate(r.URL.Query().Get("from"))
	if err != nil {
		response.ValidationError(w, "from", err.Error())
		return
	}
	to, err := optionalDate(r.URL.Query().Get("to"))
	if err != nil {
		response.ValidationError(w, "to", err.Error())
		return
	}

	tasks, err := h.service.ListTasks(r.Context(), ownerID, from, to)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	total := domain.StudySeconds(tasks)
	response.OK(w, listTasksResponse{
		Tasks:         mapTasks(tasks),
		StudySeconds:  total,
		StudyDuration: domain.FormatDurationISO8601(time.Duration(total) * time.Second),
	})
}

// GetTask returns a single task.
// GET /v1/tasks/{task_id}
func (h *PlannerHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.GetTask(r.Context(), chi.URLParam(r, "task_id"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, mapTask(task))
}

// UpdateTask records completion and study time on a task.
// PATCH /v1/tasks/{task_id}
func (h *PlannerHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")

	var req updateTaskRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	task, err := h.service.UpdateTask(r.Context(), taskID, req.update())
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	response.OK(w, mapTask(task))
}

// DeleteTask removes a task, or its whole recurring group with scope=all.
// DELETE /v1/tasks/{task_id}?scope=single|all
func (h *PlannerHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")

	scope, err := domain.NewDeleteScope(r.URL.Query().Get("scope"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	deleted, err := h.service.DeleteTask(r.Context(), taskID, scope)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "task deleted via HTTP",
		"task_id", taskID,
		"scope", string(scope),
		"deleted", deleted)

	response.OK(w, deleteResponse{Deleted: deleted})
}

// GetGroup returns a recurring group with its rule.
// GET /v1/groups/{group_id}
func (h *PlannerHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.service.GetGroup(r.Context(), chi.URLParam(r, "group_id"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	resp := groupResponse{
		ID:        group.ID,
		OwnerID:   group.OwnerID,
		Rule:      group.Rule,
		CreatedAt: group.CreatedAt,
	}
	if group.Rule.Repeats() {
		if rr, err := recurring.RRuleString(group.Rule); err == nil {
			resp.RRule = rr
		}
	}
	response.OK(w, resp)
}

// DeleteGroup removes a recurring group and all of its tasks.
// DELETE /v1/groups/{group_id}
func (h *PlannerHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "group_id")

	deleted, err := h.service.DeleteGroup(r.Context(), groupID)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "recurring group deleted via HTTP",
		"recurring_group_id", groupID,
		"deleted", deleted)

	response.OK(w, deleteResponse{Deleted: deleted})
}

// occurrencesOf turns an explicit date selection into occurrences in
// ascending date order; repeated dates are kept once.
func occurrencesOf(dates []string) ([]domain.Occurrence, error) {
	seen := make(map[civil.Date]bool, len(dates))
	unique := make([]civil.Date, 0, len(dates))
	for _, s := range dates {
		d, err := domain.ParseDate(s)
		if err != nil {
			return nil, err
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		unique = append(unique, d)
	}
	slices.SortFunc(unique, func(a, b civil.Date) int { return a.Compare(b) })

	occurrences := make([]domain.Occurrence, len(unique))
	for i, d := range unique {
		occurrences[i] = domain.Occurrence{Date: d, SequenceIndex: i}
	}
	return occurrences, nil
}
