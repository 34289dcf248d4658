// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sitewarden/sitewarden/internal/store"
)

// HistoryResponse represents a content history entry in API responses.
type HistoryResponse struct {
	ID         int64           `json:"id"`
	Section    string          `json:"section"`
	OldContent json.RawMessage `json:"old_content,omitempty"`
	NewContent json.RawMessage `json:"new_content,omitempty"`
	ChangeType string          `json:"change_type"`
	ChangedBy  int64           `json:"changed_by"`
	ChangedAt  time.Time       `json:"changed_at"`
}

func storeHistoryToResponse(e store.ContentHistoryEntry) HistoryResponse {
	return HistoryResponse{
		ID:         e.ID,
		Section:    e.SectionName,
		OldContent: e.OldContent,
		NewContent: e.NewContent,
		ChangeType: e.ChangeType,
		ChangedBy:  e.ChangedBy,
		ChangedAt:  e.ChangedAt,
	}
}

// parseDateParam parses an RFC 3339 or YYYY-MM-DD query parameter. A zero
// time means the parameter was absent or malformed.
func parseDateParam(r *http.Request, param string) time.Time {
	str := r.URL.Query().Get(param)
	if str == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, str); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", str); err == nil {
		return t
	}
	return time.Time{}
}

// ListHistory handles GET /api/history. Supports filtering by section,
// change type, author, date range, and free text, newest first.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	page := ParsePageParam(r)
	perPage := ParsePerPageParam(r, 20, 100)

	filters := store.HistoryFilters{
		SectionName: r.URL.Query().Get("section"),
		ChangeType:  r.URL.Query().Get("change_type"),
		ChangedBy:   int64(ParseIntParam(r, "changed_by", 0, 0, 0)),
		DateFrom:    parseDateParam(r, "from"),
		DateTo:      parseDateParam(r, "to"),
		Text:        r.URL.Query().Get("q"),
		Limit:       int64(perPage),
		Offset:      int64((page - 1) * perPage),
	}

	entries, err := h.engine.History(r.Context(), filters)
	if err != nil {
		WriteInternalError(w, "Failed to list history")
		return
	}

	responses := make([]HistoryResponse, 0, len(entries))
	for _, e := range entries {
		responses = append(responses, storeHistoryToResponse(e))
	}

	WriteSuccess(w, responses, &Meta{Page: page, PerPage: perPage})
}

// RevertHistoryEntry handles POST /api/history/{id}/revert. The prior
// snapshot in the entry is committed as a new change; nothing is rewritten
// in place.
func (h *Handler) RevertHistoryEntry(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid history entry ID", nil)
		return
	}

	section, entry, err := h.engine.Revert(r.Context(), actorFromRequest(r), id)
	if err != nil {
		writeDomainError(w, err, "History entry not found")
		return
	}

	WriteSuccess(w, map[string]any{
		"section": storeSectionToResponse(section),
		"history": storeHistoryToResponse(entry),
	}, nil)
}
