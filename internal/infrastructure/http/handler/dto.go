package handler

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/rezkam/tutorplan/internal/application/planner"
	"github.com/rezkam/tutorplan/internal/domain"
)

// === Requests ===

type ruleRequest struct {
	Type       string `json:"type" validate:"omitempty,oneofci=none weekly biweekly monthly"`
	Weekdays   []int  `json:"weekdays" validate:"omitempty,max=7,dive,min=0,max=6"`
	DayOfMonth int    `json:"day_of_month" validate:"omitempty,min=1,max=31"`
	RangeStart string `json:"range_start" validate:"omitempty,datetime=2006-01-02"`
	RangeEnd   string `json:"range_end" validate:"omitempty,datetime=2006-01-02"`
}

type previewRequest struct {
	Rule   *ruleRequest `json:"rule" validate:"required"`
	Anchor string       `json:"anchor" validate:"required,datetime=2006-01-02"`
}

// createTasksRequest carries the shared task fields plus exactly one way of
// choosing dates: a single date, an explicit list, or a rule with its anchor.
type createTasksRequest struct {
	Title       string  `json:"title" validate:"required,notblank,max=200"`
	Subject     string  `json:"subject" validate:"required,notblank,max=100"`
	Description string  `json:"description" validate:"max=4000"`
	StartTime   *string `json:"start_time" validate:"omitempty,clock"`
	EndTime     *string `json:"end_time" validate:"omitempty,clock"`

	Date   string       `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Dates  []string     `json:"dates" validate:"omitempty,max=1000,dive,datetime=2006-01-02"`
	Rule   *ruleRequest `json:"rule"`
	Anchor string       `json:"anchor" validate:"required_with=Rule,omitempty,datetime=2006-01-02"`
}

// updateTaskRequest records progress; omitted fields keep their value.
type updateTaskRequest struct {
	Completed    *bool `json:"completed"`
	TimeSpentSec *int  `json:"time_spent_sec" validate:"omitempty,min=0,max=86400"`
}

func (r *updateTaskRequest) update() domain.TaskUpdate {
	return domain.TaskUpdate{Completed: r.Completed, TimeSpentSec: r.TimeSpentSec}
}

// toRule builds a domain rule, filling unset fields from the anchor.
func (r *ruleRequest) toRule(anchor civil.Date) (*domain.RecurrenceRule, error) {
	rt, err := domain.NewRecurrenceType(r.Type)
	if err != nil {
		return nil, err
	}

	opts := domain.RuleOptions{DayOfMonth: r.DayOfMonth}
	if r.Weekdays != nil {
		opts.Weekdays = make([]time.Weekday, len(r.Weekdays))
		for i, wd := range r.Weekdays {
			opts.Weekdays[i] = time.Weekday(wd)
		}
	}
	if opts.RangeStart, err = optionalDate(r.RangeStart); err != nil {
		return nil, err
	}
	if opts.RangeEnd, err = optionalDate(r.RangeEnd); err != nil {
		return nil, err
	}

	return domain.NewRecurrenceRule(rt, anchor, opts)
}

func (r *createTasksRequest) template(ownerID string) domain.TaskTemplate {
	return domain.TaskTemplate{
		OwnerID:     ownerID,
		Title:       r.Title,
		Subject:     r.Subject,
		Description: r.Description,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
	}
}

func optionalDate(s string) (*civil.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// === Responses ===

type taskResponse struct {
	ID               string     `json:"id"`
	OwnerID          string     `json:"owner_id"`
	Title            string     `json:"title"`
	Subject          string     `json:"subject"`
	Description      string     `json:"description"`
	Date             civil.Date `json:"date"`
	StartTime        *string    `json:"start_time"`
	EndTime          *string    `json:"end_time"`
	RecurringGroupID *string    `json:"recurring_group_id"`
	Completed        bool       `json:"completed"`
	TimeSpentSec     *int       `json:"time_spent_sec"`
	StudySeconds     int        `json:"study_seconds"`
	CreatedAt        time.Time  `json:"created_at"`
}

type groupResponse struct {
	ID        string                 `json:"id"`
	OwnerID   string                 `json:"owner_id"`
	Rule      *domain.RecurrenceRule `json:"rule"`
	RRule     string                 `json:"rrule,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type previewResponse struct {
	Occurrences []domain.Occurrence    `json:"occurrences"`
	Rule        *domain.RecurrenceRule `json:"rule"`
	RRule       string                 `json:"rrule,omitempty"`
}

type createTasksResponse struct {
	Tasks            []taskResponse `json:"tasks"`
	RecurringGroupID *string        `json:"recurring_group_id"`
}

type listTasksResponse struct {
	Tasks        []taskResponse `json:"tasks"`
	StudySeconds int            `json:"study_seconds"`
	// StudyDuration is StudySeconds as an ISO 8601 duration, e.g. "PT1H30M".
	StudyDuration string `json:"study_duration"`
}

type gridResponse struct {
	Year  int                   `json:"year"`
	Month int                   `json:"month"`
	Cells []domain.CalendarCell `json:"cells"`
}

type calendarDayResponse struct {
	Date         *civil.Date `json:"date"`
	TaskCount    int         `json:"task_count"`
	StudySeconds int         `json:"study_seconds"`
}

type monthResponse struct {
	Year  int                   `json:"year"`
	Month int                   `json:"month"`
	Days  []calendarDayResponse `json:"days"`
}

type deleteResponse struct {
	Deleted int `json:"deleted"`
}

// === Mappers ===

func mapTask(t *domain.Task) taskResponse {
	return taskResponse{
		ID:               t.ID,
		OwnerID:          t.OwnerID,
		Title:            t.Title,
		Subject:          t.Subject,
		Description:      t.Description,
		Date:             t.Date,
		StartTime:        t.StartTime,
		EndTime:          t.EndTime,
		RecurringGroupID: t.RecurringGroupID,
		Completed:        t.Completed,
		TimeSpentSec:     t.TimeSpentSec,
		StudySeconds:     int(domain.TaskStudyDuration(t).Seconds()),
		CreatedAt:        t.CreatedAt,
	}
}

func mapTasks(tasks []*domain.Task) []taskResponse {
	out := make([]taskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = mapTask(t)
	}
	return out
}

func mapMonth(view *planner.MonthView) monthResponse {
	days := make([]calendarDayResponse, len(view.Days))
	for i, d := range view.Days {
		days[i] = calendarDayResponse{
			Date:         d.Date,
			TaskCount:    d.TaskCount,
			StudySeconds: d.StudySeconds,
		}
	}
	return monthResponse{Year: view.Year, Month: int(view.Month), Days: days}
}
