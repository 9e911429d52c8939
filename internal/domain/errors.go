package domain

import "errors"

// Domain errors returned by repository implementations.

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrTaskNotFound indicates the specified task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrGroupNotFound indicates the specified recurring group does not exist.
	ErrGroupNotFound = errors.New("recurring group not found")

	// ErrInvalidID indicates the provided ID format is invalid.
	ErrInvalidID = errors.New("invalid ID format")

	// ErrPartialInsert indicates a bulk insert stored fewer rows than requested.
	// The surrounding transaction is rolled back when this is returned.
	ErrPartialInsert = errors.New("bulk insert stored fewer rows than requested")
)

// Validation errors returned by value object constructors.

var (
	// ErrTitleRequired indicates the title is empty after trimming.
	ErrTitleRequired = errors.New("title is required")

	// ErrTitleTooLong indicates the title exceeds MaxTitleLength characters.
	ErrTitleTooLong = errors.New("title must be 200 characters or less")

	// ErrSubjectRequired indicates the subject is empty after trimming.
	ErrSubjectRequired = errors.New("subject is required")

	// ErrSubjectTooLong indicates the subject exceeds MaxSubjectLength characters.
	ErrSubjectTooLong = errors.New("subject must be 100 characters or less")

	// ErrOwnerRequired indicates a task was submitted without an owner.
	ErrOwnerRequired = errors.New("owner is required")

	// ErrInvalidDate indicates a date is not a valid YYYY-MM-DD calendar date.
	ErrInvalidDate = errors.New("invalid date: expected YYYY-MM-DD")

	// ErrInvalidDateRange indicates a query range whose end precedes its start.
	ErrInvalidDateRange = errors.New("invalid date range: end before start")

	// ErrInvalidClockTime indicates a time of day is not a valid HH:MM value.
	ErrInvalidClockTime = errors.New("invalid time: expected HH:MM")

	// ErrInvalidMonth indicates a month outside 1..12.
	ErrInvalidMonth = errors.New("invalid month: must be between 1 and 12")
)

// Recurrence errors.

var (
	// ErrInvalidRecurrenceType indicates an unknown recurrence type.
	ErrInvalidRecurrenceType = errors.New("invalid recurrence type")

	// ErrInvalidWeekday indicates a weekday outside 0 (Sunday) .. 6 (Saturday).
	ErrInvalidWeekday = errors.New("invalid weekday: must be between 0 and 6")

	// ErrInvalidDayOfMonth indicates a day of month outside 1..31.
	ErrInvalidDayOfMonth = errors.New("invalid day of month: must be between 1 and 31")
)

// Materialization errors.

var (
	// ErrNothingToMaterialize indicates an expansion produced no dates.
	ErrNothingToMaterialize = errors.New("nothing to save: no dates selected")

	// ErrTooManyOccurrences indicates a selection or expansion above MaxOccurrences dates.
	ErrTooManyOccurrences = errors.New("too many dates: at most 1000 tasks per submission")

	// ErrDeleteScopeRequired indicates a grouped task was deleted without
	// choosing between the single occurrence and the whole group.
	ErrDeleteScopeRequired = errors.New("delete scope required for recurring task")

	// ErrInvalidDeleteScope indicates an unknown delete scope.
	ErrInvalidDeleteScope = errors.New("invalid delete scope")
)

// Progress errors.

var (
	// ErrNothingToUpdate indicates a task update that sets no field.
	ErrNothingToUpdate = errors.New("nothing to update: set completed or time_spent_sec")

	// ErrInvalidTimeSpent indicates recorded study time outside 0..MaxTimeSpentSec.
	ErrInvalidTimeSpent = errors.New("invalid time spent: must be between 0 and 86400 seconds")
)
