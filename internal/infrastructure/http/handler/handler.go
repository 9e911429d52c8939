package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rezkam/tutorplan/internal/application/planner"
	"github.com/rezkam/tutorplan/internal/infrastructure/http/response"
)

// PlannerHandler adapts HTTP requests to planner service calls.
type PlannerHandler struct {
	service   *planner.Service
	validator *requestValidator
	feedLoc   *time.Location
}

// NewPlannerHandler creates a new HTTP API handler.
// feedLoc is the zone timed tasks are placed in when rendering ICS feeds;
// nil means UTC.
func NewPlannerHandler(service *planner.Service, feedLoc *time.Location) *PlannerHandler {
	if feedLoc == nil {
		feedLoc = time.UTC
	}
	return &PlannerHandler{
		service:   service,
		validator: newRequestValidator(),
		feedLoc:   feedLoc,
	}
}

// NewRouter mounts every planner route on a chi router.
// Production code and tests share this function so both see identical routing.
func NewRouter(service *planner.Service, feedLoc *time.Location) http.Handler {
	h := NewPlannerHandler(service, feedLoc)

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, "METHOD_NOT_ALLOWED", r.Method+" is not allowed on this route", http.StatusMethodNotAllowed)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/recurrence/preview", h.PreviewRecurrence)
		r.Get("/calendar/{year}/{month}", h.GetCalendarGrid)

		r.Route("/owners/{owner_id}", func(r chi.Router) {
			r.Use(h.requireOwner)
			r.Post("/tasks", h.CreateTasks)
			r.Get("/tasks", h.ListTasks)
			r.Get("/calendar/{year}/{month}", h.GetOwnerCalendar)
			r.Get("/feed.ics", h.GetFeed)
		})

		r.Get("/tasks/{task_id}", h.GetTask)
		r.Patch("/tasks/{task_id}", h.UpdateTask)
		r.Delete("/tasks/{task_id}", h.DeleteTask)
		r.Get("/groups/{group_id}", h.GetGroup)
		r.Delete("/groups/{group_id}", h.DeleteGroup)
	})

	return r
}

// requireOwner rejects owner ids that cannot be used as feed names or cache keys.
func (h *PlannerHandler) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.validator.Owner(chi.URLParam(r, "owner_id")) {
			response.ValidationError(w, "owner_id", "must be 1-128 printable characters without slashes")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// decodeAndValidate decodes a JSON body into dst and runs struct validation.
// It writes the error response itself and reports whether handling may continue.
func (h *PlannerHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			response.BadRequest(w, "request body is required")
		} else {
			response.BadRequest(w, "invalid JSON: "+err.Error())
		}
		return false
	}

	fields, err := h.validator.Struct(r.Context(), dst)
	if err != nil {
		response.InternalError(w, r, err)
		return false
	}
	if len(fields) > 0 {
		response.ValidationErrors(w, fields)
		return false
	}
	return true
}
