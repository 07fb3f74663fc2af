// Package choredue computes the projected due/overdue list the UI reads,
// joining chores, their last completion, and the schedule evaluator.
package choredue

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/nag/internal/model"
	"github.com/dukerupert/nag/internal/schedule"
	"github.com/dukerupert/nag/internal/store"
)

// State is the status of a single chore at the instant it was evaluated.
type State string

const (
	StateOverdue  State = "overdue"
	StateDue      State = "due"
	StateUpcoming State = "upcoming"
	StateNone     State = "none" // once-in-a-while: never surfaces a due instant
)

type ChoreStatus struct {
	Chore           *model.Chore
	Tags            []*model.Tag
	NextDue         *time.Time
	IsOverdue       bool
	LastCompletedAt *time.Time
	State           State
}

// Status computes a single chore's due state given its last completion.
// now is the instant the caller is evaluating against; loc governs what
// "due today" means for display purposes only.
func Status(c *model.Chore, lastCompletedAt *time.Time, now time.Time, loc *time.Location) (*time.Time, State, error) {
	next, ok, err := schedule.Next(c.Schedule, now, c.CreatedAt, lastCompletedAt)
	if err != nil {
		return nil, StateNone, err
	}
	if !ok {
		return nil, StateNone, nil
	}

	if schedule.IsOverdue(next, now) {
		return &next, StateOverdue, nil
	}
	if schedule.IsDueToday(next, now, loc) {
		return &next, StateDue, nil
	}
	return &next, StateUpcoming, nil
}

// Filter selects which chores List returns.
type Filter struct {
	Tag             string
	IncludeUpcoming bool
	Now             time.Time
	Location        *time.Location
}

// List streams chores (filtered by tag when requested), resolves each
// one's due state, drops future chores unless IncludeUpcoming is set, and
// sorts by (next_due ascending, nil-due last, name, id) to make ordering
// deterministic for callers and tests.
func List(chores *store.ChoreStore, completions *store.CompletionStore, tags *store.TagStore, f Filter) ([]ChoreStatus, error) {
	all, err := chores.ListAll(f.Tag)
	if err != nil {
		return nil, fmt.Errorf("list chores for due view: %w", err)
	}

	out := make([]ChoreStatus, 0, len(all))
	for _, c := range all {
		last, err := completions.Last(c.ID)
		if err != nil {
			return nil, fmt.Errorf("last completion for chore %s: %w", c.ID, err)
		}
		var lastAt *time.Time
		if last != nil {
			lastAt = &last.CompletedAt
		}

		next, state, err := Status(c, lastAt, f.Now, f.Location)
		if err != nil {
			// InvalidSchedule is a per-chore hard skip, not a fatal error for
			// the whole view.
			continue
		}

		if !f.IncludeUpcoming && next != nil && next.After(f.Now) {
			continue
		}

		choreTags, err := tags.ForChore(c.ID)
		if err != nil {
			return nil, fmt.Errorf("tags for chore %s: %w", c.ID, err)
		}

		out = append(out, ChoreStatus{
			Chore:           c,
			Tags:            choreTags,
			NextDue:         next,
			IsOverdue:       state == StateOverdue,
			LastCompletedAt: lastAt,
			State:           state,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.NextDue == nil) != (b.NextDue == nil) {
			return a.NextDue != nil // non-nil due dates sort before nil
		}
		if a.NextDue != nil && !a.NextDue.Equal(*b.NextDue) {
			return a.NextDue.Before(*b.NextDue)
		}
		if a.Chore.Name != b.Chore.Name {
			return a.Chore.Name < b.Chore.Name
		}
		return lessUUID(a.Chore.ID, b.Chore.ID)
	})

	return out, nil
}

func lessUUID(a, b uuid.UUID) bool {
	return a.String() < b.String()
}
