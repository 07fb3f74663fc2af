package model

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleKind tags which variant of Schedule a Chore carries.
type ScheduleKind string

const (
	ScheduleCron     ScheduleKind = "cron"
	ScheduleInterval ScheduleKind = "interval"
	ScheduleOnce     ScheduleKind = "once"
)

// Schedule describes how a chore recurs. Exactly one of the variant-specific
// fields is populated, selected by Kind.
type Schedule struct {
	Kind ScheduleKind `json:"kind"`

	// Cron is a standard five-field expression. Populated iff Kind == ScheduleCron.
	CronExpression string `json:"cron_expression,omitempty"`

	// Interval fields. Populated iff Kind == ScheduleInterval.
	IntervalDays   int  `json:"interval_days,omitempty"`
	IntervalHour   *int `json:"interval_hour,omitempty"`
	IntervalMinute *int `json:"interval_minute,omitempty"`
}

type Chore struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Schedule    Schedule  `json:"schedule"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Completion struct {
	ID          uuid.UUID `json:"id"`
	ChoreID     uuid.UUID `json:"chore_id"`
	CompletedAt time.Time `json:"completed_at"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Tag struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Color *string   `json:"color,omitempty"`
}
