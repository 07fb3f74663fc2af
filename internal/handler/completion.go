package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dukerupert/nag/internal/model"
	"github.com/dukerupert/nag/internal/store"
	ws "github.com/dukerupert/nag/internal/websocket"
)

// CompletionHandler serves the per-chore completion history.
type CompletionHandler struct {
	compl *store.CompletionStore
	hub   *ws.Hub
}

func NewCompletionHandler(compl *store.CompletionStore, hub *ws.Hub) *CompletionHandler {
	return &CompletionHandler{compl: compl, hub: hub}
}

type completionPage struct {
	Completions []*model.Completion `json:"completions"`
	NextCursor  string              `json:"next_cursor,omitempty"`
}

func (h *CompletionHandler) List(w http.ResponseWriter, r *http.Request) {
	choreID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "invalid chore id")
		return
	}

	limit := parseLimit(r)
	offset := decodeCursor(r)

	completions, err := h.compl.List(choreID, limit, offset)
	if err != nil {
		internalError(w, "failed to list completions")
		return
	}

	writeJSON(w, http.StatusOK, completionPage{
		Completions: completions,
		NextCursor:  nextCursor(offset, limit, len(completions)),
	})
}

func (h *CompletionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("completion_id"))
	if err != nil {
		badRequest(w, "invalid completion id")
		return
	}

	if err := h.compl.Delete(id); err != nil {
		internalError(w, "failed to delete completion")
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(ws.NewMessage("completion", "deleted", id.String(), nil))
	}
	w.WriteHeader(http.StatusNoContent)
}
