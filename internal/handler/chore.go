package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/nag/internal/model"
	"github.com/dukerupert/nag/internal/schedule"
	"github.com/dukerupert/nag/internal/store"
	ws "github.com/dukerupert/nag/internal/websocket"
)

// ChoreHandler serves the REST CRUD surface over chores, including
// completion recording and tag association.
type ChoreHandler struct {
	chores *store.ChoreStore
	compl  *store.CompletionStore
	tags   *store.TagStore
	hub    *ws.Hub
}

func NewChoreHandler(chores *store.ChoreStore, compl *store.CompletionStore, tags *store.TagStore, hub *ws.Hub) *ChoreHandler {
	return &ChoreHandler{chores: chores, compl: compl, tags: tags, hub: hub}
}

func (h *ChoreHandler) broadcast(msg ws.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type choreRequest struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	ScheduleKind   string   `json:"schedule_kind"`
	CronExpression string   `json:"cron_expression,omitempty"`
	IntervalDays   int      `json:"interval_days,omitempty"`
	IntervalHour   *int     `json:"interval_hour,omitempty"`
	IntervalMinute *int     `json:"interval_minute,omitempty"`
	TagIDs         []string `json:"tag_ids,omitempty"`
}

func (req choreRequest) toSchedule() model.Schedule {
	return model.Schedule{
		Kind:           model.ScheduleKind(req.ScheduleKind),
		CronExpression: req.CronExpression,
		IntervalDays:   req.IntervalDays,
		IntervalHour:   req.IntervalHour,
		IntervalMinute: req.IntervalMinute,
	}
}

type choreResponse struct {
	*model.Chore
	Tags []*model.Tag `json:"tags"`
}

func (h *ChoreHandler) withTags(c *model.Chore) (choreResponse, error) {
	tags, err := h.tags.ForChore(c.ID)
	if err != nil {
		return choreResponse{}, err
	}
	return choreResponse{Chore: c, Tags: tags}, nil
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req choreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}

	sch := req.toSchedule()
	now := time.Now().UTC()
	if _, _, err := schedule.Next(sch, now, now, nil); err != nil {
		badRequest(w, err.Error())
		return
	}

	c := &model.Chore{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Schedule:    sch,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.chores.Create(c); err != nil {
		internalError(w, "failed to create chore")
		return
	}

	for _, raw := range req.TagIDs {
		if tagID, err := uuid.Parse(raw); err == nil {
			_ = h.tags.Attach(c.ID, tagID)
		}
	}

	h.broadcast(ws.NewMessage("chore", "created", c.ID.String(), nil))

	resp, err := h.withTags(c)
	if err != nil {
		internalError(w, "failed to load chore tags")
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

type chorePage struct {
	Chores     []choreResponse `json:"chores"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)
	offset := decodeCursor(r)
	tagName := r.URL.Query().Get("tag")

	chores, err := h.chores.List(tagName, limit, offset)
	if err != nil {
		internalError(w, "failed to list chores")
		return
	}

	out := make([]choreResponse, 0, len(chores))
	for _, c := range chores {
		resp, err := h.withTags(c)
		if err != nil {
			internalError(w, "failed to load chore tags")
			return
		}
		out = append(out, resp)
	}

	writeJSON(w, http.StatusOK, chorePage{
		Chores:     out,
		NextCursor: nextCursor(offset, limit, len(chores)),
	})
}

func (h *ChoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "invalid chore id")
		return
	}

	c, err := h.chores.Get(id)
	if err != nil {
		internalError(w, "failed to get chore")
		return
	}
	if c == nil {
		notFound(w, "chore not found")
		return
	}

	resp, err := h.withTags(c)
	if err != nil {
		internalError(w, "failed to load chore tags")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "invalid chore id")
		return
	}

	existing, err := h.chores.Get(id)
	if err != nil {
		internalError(w, "failed to get chore")
		return
	}
	if existing == nil {
		notFound(w, "chore not found")
		return
	}

	var req choreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}

	sch := req.toSchedule()
	now := time.Now().UTC()
	if _, _, err := schedule.Next(sch, now, existing.CreatedAt, nil); err != nil {
		badRequest(w, err.Error())
		return
	}

	existing.Name = req.Name
	existing.Description = req.Description
	existing.Schedule = sch
	existing.UpdatedAt = now

	if err := h.chores.Update(existing); err != nil {
		internalError(w, "failed to update chore")
		return
	}

	h.broadcast(ws.NewMessage("chore", "updated", existing.ID.String(), nil))

	resp, err := h.withTags(existing)
	if err != nil {
		internalError(w, "failed to load chore tags")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "invalid chore id")
		return
	}

	if err := h.chores.Delete(id); err != nil {
		internalError(w, "failed to delete chore")
		return
	}

	h.broadcast(ws.NewMessage("chore", "deleted", id.String(), nil))
	w.WriteHeader(http.StatusNoContent)
}

type completeRequest struct {
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
}

// Complete records a completion for the chore. completed_at defaults to
// now but may be backdated.
func (h *ChoreHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "invalid chore id")
		return
	}

	existing, err := h.chores.Get(id)
	if err != nil {
		internalError(w, "failed to get chore")
		return
	}
	if existing == nil {
		notFound(w, "chore not found")
		return
	}

	var req completeRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	now := time.Now().UTC()
	completedAt := now
	if req.CompletedAt != nil {
		completedAt = req.CompletedAt.UTC()
	}

	completion := &model.Completion{
		ID:          uuid.New(),
		ChoreID:     id,
		CompletedAt: completedAt,
		Notes:       req.Notes,
		CreatedAt:   now,
	}
	if err := h.compl.Create(completion); err != nil {
		internalError(w, "failed to record completion")
		return
	}

	h.broadcast(ws.NewMessage("chore", "completed", id.String(), nil))
	writeJSON(w, http.StatusCreated, completion)
}
