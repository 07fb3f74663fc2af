package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/nag/internal/choredue"
	"github.com/dukerupert/nag/internal/store"
)

// DueHandler serves the projected due/overdue view the UI polls.
type DueHandler struct {
	chores      *store.ChoreStore
	completions *store.CompletionStore
	tags        *store.TagStore
	loc         *time.Location
}

func NewDueHandler(chores *store.ChoreStore, completions *store.CompletionStore, tags *store.TagStore, loc *time.Location) *DueHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &DueHandler{chores: chores, completions: completions, tags: tags, loc: loc}
}

type dueEntry struct {
	Chore           any        `json:"chore"`
	Tags            any        `json:"tags"`
	NextDue         *time.Time `json:"next_due,omitempty"`
	NextDueRelative string     `json:"next_due_relative,omitempty"`
	IsOverdue       bool       `json:"is_overdue"`
	LastCompletedAt *time.Time `json:"last_completed_at,omitempty"`
	State           string     `json:"state"`
}

// List handles GET /api/chores/due?include_upcoming={bool}&tag={name}.
func (h *DueHandler) List(w http.ResponseWriter, r *http.Request) {
	includeUpcoming, _ := strconv.ParseBool(r.URL.Query().Get("include_upcoming"))
	now := time.Now().UTC()

	statuses, err := choredue.List(h.chores, h.completions, h.tags, choredue.Filter{
		Tag:             r.URL.Query().Get("tag"),
		IncludeUpcoming: includeUpcoming,
		Now:             now,
		Location:        h.loc,
	})
	if err != nil {
		internalError(w, "failed to compute due view")
		return
	}

	out := make([]dueEntry, 0, len(statuses))
	for _, s := range statuses {
		entry := dueEntry{
			Chore:           s.Chore,
			Tags:            s.Tags,
			NextDue:         s.NextDue,
			IsOverdue:       s.IsOverdue,
			LastCompletedAt: s.LastCompletedAt,
			State:           string(s.State),
		}
		if s.NextDue != nil {
			entry.NextDueRelative = choredue.Relative(*s.NextDue, now)
		}
		out = append(out, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{"chores": out})
}
