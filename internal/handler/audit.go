// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sitewarden/sitewarden/internal/store"
)

// AdminActionResponse represents an audit log entry in API responses.
type AdminActionResponse struct {
	ID          int64           `json:"id"`
	AdminID     int64           `json:"admin_id"`
	ActionType  string          `json:"action_type"`
	TargetTable string          `json:"target_table,omitempty"`
	TargetID    int64           `json:"target_id,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	IPAddress   string          `json:"ip_address,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func storeActionToResponse(a store.AdminAction) AdminActionResponse {
	resp := AdminActionResponse{
		ID:         a.ID,
		AdminID:    a.AdminID,
		ActionType: a.ActionType,
		IPAddress:  a.IpAddress,
		CreatedAt:  a.CreatedAt,
	}
	if a.TargetTable.Valid {
		resp.TargetTable = a.TargetTable.String
	}
	if a.TargetID.Valid {
		resp.TargetID = a.TargetID.Int64
	}
	if json.Valid([]byte(a.Details)) {
		resp.Details = json.RawMessage(a.Details)
	}
	return resp
}

// ListAdminActions handles GET /api/audit. Entries are newest first and
// filterable by admin, action type, date range, and free text.
func (h *Handler) ListAdminActions(w http.ResponseWriter, r *http.Request) {
	page := ParsePageParam(r)
	perPage := ParsePerPageParam(r, 20, 100)

	filters := store.AdminActionFilters{
		AdminID:    int64(ParseIntParam(r, "admin_id", 0, 0, 0)),
		ActionType: r.URL.Query().Get("action_type"),
		DateFrom:   parseDateParam(r, "from"),
		DateTo:     parseDateParam(r, "to"),
		Text:       r.URL.Query().Get("q"),
		Limit:      int64(perPage),
		Offset:     int64((page - 1) * perPage),
	}

	actions, err := h.audit.List(r.Context(), filters)
	if err != nil {
		WriteInternalError(w, "Failed to list admin actions")
		return
	}

	total, err := h.audit.Count(r.Context())
	if err != nil {
		WriteInternalError(w, "Failed to count admin actions")
		return
	}

	responses := make([]AdminActionResponse, 0, len(actions))
	for _, a := range actions {
		responses = append(responses, storeActionToResponse(a))
	}

	totalPages := int(total) / perPage
	if int(total)%perPage != 0 {
		totalPages++
	}

	WriteSuccess(w, responses, &Meta{
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   totalPages,
	})
}
