// Package handler implements the thin HTTP CRUD surface over the
// persistence layer: chores, completions, tags, and the due view. Business
// logic lives in internal/store and internal/choredue; handlers decode
// requests, call the store, and shape responses.
package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
)

// problem is an RFC-7807 problem-details body.
type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, detail string)   { writeProblem(w, http.StatusBadRequest, "Bad Request", detail) }
func notFound(w http.ResponseWriter, detail string)     { writeProblem(w, http.StatusNotFound, "Not Found", detail) }
func internalError(w http.ResponseWriter, detail string) {
	writeProblem(w, http.StatusInternalServerError, "Internal Server Error", detail)
}

// parseLimit reads a "limit" query param, defaulting to 20 and capping at 100.
func parseLimit(r *http.Request) int {
	const defaultLimit, maxLimit = 20, 100
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

// decodeCursor turns an opaque pagination cursor into an offset. An empty or
// malformed cursor starts from the beginning — pagination is best-effort,
// not a hard contract on cursor stability across schema changes.
func decodeCursor(r *http.Request) int {
	v := r.URL.Query().Get("cursor")
	if v == "" {
		return 0
	}
	raw, err := base64.RawURLEncoding.DecodeString(v)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// nextCursor encodes the offset to resume a paginated query at, or "" when
// the page was not full (no more results).
func nextCursor(offset, limit, returned int) string {
	if returned < limit {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(offset + returned)))
}
