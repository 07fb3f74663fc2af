// Package schedule computes the next due instant for a chore's schedule.
//
// Cron schedules are evaluated with a standard five-field parser
// (minute hour day-of-month month day-of-week) that applies the POSIX
// OR-semantics between day-of-month and day-of-week when both are
// restricted. Interval schedules are plain date arithmetic anchored to the
// last completion. Once-in-a-while schedules never produce a due instant.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/netresearch/go-cron"

	"github.com/dukerupert/nag/internal/model"
)

// InvalidCronFieldError reports a cron expression field that failed to parse.
type InvalidCronFieldError struct {
	Index int
	Token string
	Err   error
}

func (e *InvalidCronFieldError) Error() string {
	return fmt.Sprintf("invalid cron field %d (%q): %v", e.Index, e.Token, e.Err)
}

func (e *InvalidCronFieldError) Unwrap() error { return e.Err }

// InvalidIntervalError reports an interval schedule with an out-of-range
// field.
type InvalidIntervalError struct {
	Reason string
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("invalid interval schedule: %s", e.Reason)
}

// Next computes the next due instant for s given the current time and the
// chore's last completion (createdAt is used as the completion fallback for
// interval schedules). ok is false only for ScheduleOnce, which never has a
// due instant.
func Next(s model.Schedule, now, createdAt time.Time, lastCompletedAt *time.Time) (time.Time, bool, error) {
	switch s.Kind {
	case model.ScheduleCron:
		t, err := nextCron(s.CronExpression, now)
		return t, true, err
	case model.ScheduleInterval:
		t, err := nextInterval(s, now, createdAt, lastCompletedAt)
		return t, true, err
	case model.ScheduleOnce:
		return time.Time{}, false, nil
	default:
		return time.Time{}, false, fmt.Errorf("unknown schedule kind %q", s.Kind)
	}
}

// nextCron returns the smallest instant strictly greater than now that
// satisfies expr. last_completed_at is intentionally not a parameter: cron
// schedules are anchored to wall clock, not completion history.
func nextCron(expr string, now time.Time) (time.Time, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return time.Time{}, &InvalidCronFieldError{
			Index: len(fields),
			Token: expr,
			Err:   fmt.Errorf("expected 5 fields, got %d", len(fields)),
		}
	}
	fields[4] = normalizeDayOfWeek(fields[4])

	sched, err := cron.ParseStandard(strings.Join(fields, " "))
	if err != nil {
		return time.Time{}, &InvalidCronFieldError{Token: expr, Err: err}
	}
	return sched.Next(now), nil
}

// normalizeDayOfWeek maps 7 to Sunday in the day-of-week field. POSIX allows
// both 0 and 7 there; the underlying parser only accepts 0-6.
func normalizeDayOfWeek(field string) string {
	parts := strings.Split(field, ",")
	for i, p := range parts {
		switch {
		case p == "7":
			parts[i] = "0"
		case strings.HasSuffix(p, "-7"):
			// A range ending on 7 covers through Saturday plus Sunday.
			parts[i] = strings.TrimSuffix(p, "-7") + "-6"
			parts = append(parts, "0")
		}
	}
	return strings.Join(parts, ",")
}

// nextInterval implements "days since last done, optionally snapped to a
// time of day." base is the last completion, or createdAt if the chore has
// never been completed. If hour is set and snapping the candidate date to
// hour:minute would move it before base, the candidate advances by one day
// so the result is never earlier than the last completion.
func nextInterval(s model.Schedule, now, createdAt time.Time, lastCompletedAt *time.Time) (time.Time, error) {
	if s.IntervalDays < 1 || s.IntervalDays > 365 {
		return time.Time{}, &InvalidIntervalError{Reason: fmt.Sprintf("days %d out of range [1,365]", s.IntervalDays)}
	}
	if s.IntervalHour != nil && (*s.IntervalHour < 0 || *s.IntervalHour > 23) {
		return time.Time{}, &InvalidIntervalError{Reason: fmt.Sprintf("hour %d out of range [0,23]", *s.IntervalHour)}
	}
	if s.IntervalMinute != nil && (*s.IntervalMinute < 0 || *s.IntervalMinute > 59) {
		return time.Time{}, &InvalidIntervalError{Reason: fmt.Sprintf("minute %d out of range [0,59]", *s.IntervalMinute)}
	}

	base := createdAt
	if lastCompletedAt != nil {
		base = *lastCompletedAt
	}

	candidate := base.AddDate(0, 0, s.IntervalDays)

	if s.IntervalHour != nil {
		minute := 0
		if s.IntervalMinute != nil {
			minute = *s.IntervalMinute
		}
		snapped := time.Date(candidate.Year(), candidate.Month(), candidate.Day(),
			*s.IntervalHour, minute, 0, 0, candidate.Location())
		if snapped.Before(base) {
			snapped = snapped.AddDate(0, 0, 1)
		}
		candidate = snapped
	}

	return candidate, nil
}

// IsOverdue reports whether a computed due instant lies strictly before now.
func IsOverdue(dueAt, now time.Time) bool {
	return dueAt.Before(now)
}

// IsDueToday reports whether dueAt falls within [start, end) of now's
// calendar day in loc. loc defaults to UTC when nil.
func IsDueToday(dueAt, now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	d := dueAt.In(loc)
	return !d.Before(start) && d.Before(end)
}
