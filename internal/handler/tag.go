package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/nag/internal/model"
	"github.com/dukerupert/nag/internal/store"
	ws "github.com/dukerupert/nag/internal/websocket"
)

// TagHandler serves tag CRUD and chore-tag association.
type TagHandler struct {
	tags   *store.TagStore
	chores *store.ChoreStore
	hub    *ws.Hub
}

func NewTagHandler(tags *store.TagStore, chores *store.ChoreStore, hub *ws.Hub) *TagHandler {
	return &TagHandler{tags: tags, chores: chores, hub: hub}
}

func (h *TagHandler) broadcast(msg ws.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type tagRequest struct {
	Name  string  `json:"name"`
	Color *string `json:"color,omitempty"`
}

func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.List()
	if err != nil {
		internalError(w, "failed to list tags")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}

	t := &model.Tag{ID: uuid.New(), Name: req.Name, Color: req.Color}
	if err := h.tags.Create(t); err != nil {
		internalError(w, "failed to create tag")
		return
	}

	h.broadcast(ws.NewMessage("tag", "created", t.ID.String(), nil))
	writeJSON(w, http.StatusCreated, t)
}

func (h *TagHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "invalid tag id")
		return
	}

	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}

	t := &model.Tag{ID: id, Name: req.Name, Color: req.Color}
	if err := h.tags.Update(t); err != nil {
		internalError(w, "failed to update tag")
		return
	}

	h.broadcast(ws.NewMessage("tag", "updated", id.String(), nil))
	writeJSON(w, http.StatusOK, t)
}

func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "invalid tag id")
		return
	}

	if err := h.tags.Delete(id); err != nil {
		internalError(w, "failed to delete tag")
		return
	}

	h.broadcast(ws.NewMessage("tag", "deleted", id.String(), nil))
	w.WriteHeader(http.StatusNoContent)
}

// Attach associates a tag with a chore: POST /api/chores/{id}/tags/{tag_id}.
func (h *TagHandler) Attach(w http.ResponseWriter, r *http.Request) {
	choreID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "invalid chore id")
		return
	}
	tagID, err := uuid.Parse(r.PathValue("tag_id"))
	if err != nil {
		badRequest(w, "invalid tag id")
		return
	}

	if err := h.tags.Attach(choreID, tagID); err != nil {
		internalError(w, "failed to attach tag")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Detach removes a tag from a chore: DELETE /api/chores/{id}/tags/{tag_id}.
func (h *TagHandler) Detach(w http.ResponseWriter, r *http.Request) {
	choreID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "invalid chore id")
		return
	}
	tagID, err := uuid.Parse(r.PathValue("tag_id"))
	if err != nil {
		badRequest(w, "invalid tag id")
		return
	}

	if err := h.tags.Detach(choreID, tagID); err != nil {
		internalError(w, "failed to detach tag")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
