// Package callback implements the inbound channel-callback path (C6): an
// HTTP handler that validates a channel's inline "mark done" action and
// turns it into a completion.
package callback

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/nag/internal/channel"
	"github.com/dukerupert/nag/internal/model"
	"github.com/dukerupert/nag/internal/store"
)

const maxBodySize = 1 << 20 // 1 MiB, generous for any channel's webhook payload

// Handler serves POST /callback/{channel}. It holds one adapter per channel
// name, matching the dispatcher's channel map.
type Handler struct {
	channels map[string]channel.Adapter
	events   *store.EventStore
	compl    *store.CompletionStore
	logger   *slog.Logger
}

func New(channels map[string]channel.Adapter, events *store.EventStore, compl *store.CompletionStore, logger *slog.Logger) *Handler {
	return &Handler{channels: channels, events: events, compl: compl, logger: logger}
}

// ServeHTTP reads the body, verifies it against the named channel's secret,
// extracts the (event_id, chore_id) action hint, and records a completion.
// A missing event is a terminal "already processed" response (200, not
// retried); a transient store error is a 5xx so the channel retries.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request, channelName string) {
	adapter, ok := h.channels[channelName]
	if !ok {
		http.Error(w, "unknown channel", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	hint, err := adapter.VerifyCallback(headers, body)
	if err != nil {
		h.logger.Warn("callback verification failed", "channel", channelName, "error", err)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	event, err := h.events.Get(hint.EventID)
	if err != nil {
		h.logger.Error("load event for callback", "event_id", hint.EventID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if event == nil {
		writeAck(w, "already processed or expired")
		return
	}

	now := time.Now().UTC()
	completion := &model.Completion{
		ID:          uuid.New(),
		ChoreID:     hint.ChoreID,
		CompletedAt: now,
		CreatedAt:   now,
	}
	if err := h.compl.Create(completion); err != nil {
		h.logger.Error("record completion from callback", "chore_id", hint.ChoreID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeAck(w, "marked done")
}

func writeAck(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
