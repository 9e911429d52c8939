package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rezkam/tutorplan/internal/domain"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []ErrorField `json:"details"` // always an array, never null
}

// ErrorField describes a field-specific error.
type ErrorField struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// BadRequest sends a 400 Bad Request error.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, "INVALID_REQUEST", message, http.StatusBadRequest)
}

// ValidationError sends a 400 validation error for a single field.
func ValidationError(w http.ResponseWriter, field, issue string) {
	ValidationErrors(w, []ErrorField{{Field: field, Issue: issue}})
}

// ValidationErrors sends a 400 validation error with one entry per invalid field.
func ValidationErrors(w http.ResponseWriter, fields []ErrorField) {
	if fields == nil {
		fields = []ErrorField{}
	}
	JSON(w, http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    "VALIDATION_ERROR",
			Message: "validation failed",
			Details: fields,
		},
	})
}

// NotFound sends a 404 Not Found error.
func NotFound(w http.ResponseWriter, resource string) {
	Error(w, "NOT_FOUND", resource+" not found", http.StatusNotFound)
}

// InternalError sends a 500 Internal Server Error.
// The error is logged with the request context; the client gets a generic message.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		slog.ErrorContext(r.Context(), "Internal server error", "error", err)
	}
	Error(w, "INTERNAL_ERROR", "an internal error occurred", http.StatusInternalServerError)
}

// Error sends a generic error response.
func Error(w http.ResponseWriter, code, message string, statusCode int) {
	JSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: []ErrorField{},
		},
	})
}

// fieldErrors maps validation sentinels to the request field they concern.
var fieldErrors = []struct {
	err   error
	field string
}{
	{domain.ErrTitleRequired, "title"},
	{domain.ErrTitleTooLong, "title"},
	{domain.ErrSubjectRequired, "subject"},
	{domain.ErrSubjectTooLong, "subject"},
	{domain.ErrOwnerRequired, "owner_id"},
	{domain.ErrInvalidDate, "date"},
	{domain.ErrInvalidDateRange, "to"},
	{domain.ErrInvalidClockTime, "start_time"},
	{domain.ErrInvalidMonth, "month"},
	{domain.ErrInvalidRecurrenceType, "rule.type"},
	{domain.ErrInvalidWeekday, "rule.weekdays"},
	{domain.ErrInvalidDayOfMonth, "rule.day_of_month"},
	{domain.ErrInvalidDeleteScope, "scope"},
	{domain.ErrInvalidID, "id"},
	{domain.ErrInvalidTimeSpent, "time_spent_sec"},
}

// FromDomainError maps domain errors to HTTP responses.
func FromDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, fe := range fieldErrors {
		if errors.Is(err, fe.err) {
			ValidationError(w, fe.field, err.Error())
			return
		}
	}

	switch {
	// Bad request (400)
	case errors.Is(err, domain.ErrNothingToUpdate):
		Error(w, "NOTHING_TO_UPDATE", err.Error(), http.StatusBadRequest)

	// Unprocessable (422)
	case errors.Is(err, domain.ErrNothingToMaterialize):
		Error(w, "NOTHING_TO_SAVE", err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrTooManyOccurrences):
		Error(w, "TOO_MANY_OCCURRENCES", err.Error(), http.StatusUnprocessableEntity)

	// Conflict (409)
	case errors.Is(err, domain.ErrDeleteScopeRequired):
		Error(w, "DELETE_SCOPE_REQUIRED", "task belongs to a recurring group: set scope to single or all", http.StatusConflict)

	// Not found (404)
	case errors.Is(err, domain.ErrTaskNotFound):
		NotFound(w, "task")
	case errors.Is(err, domain.ErrGroupNotFound):
		NotFound(w, "recurring group")
	case errors.Is(err, domain.ErrNotFound):
		NotFound(w, "resource")

	// Unknown errors (500)
	default:
		InternalError(w, r, err)
	}
}
