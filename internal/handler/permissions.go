// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"time"

	"github.com/sitewarden/sitewarden/internal/governance"
	"github.com/sitewarden/sitewarden/internal/model"
	"github.com/sitewarden/sitewarden/internal/store"
	"github.com/sitewarden/sitewarden/internal/util"
)

// PermissionResponse represents one user's capability bits on one section.
type PermissionResponse struct {
	UserID    int64     `json:"user_id"`
	Section   string    `json:"section"`
	CanView   bool      `json:"can_view"`
	CanEdit   bool      `json:"can_edit"`
	CanDelete bool      `json:"can_delete"`
	IsActive  bool      `json:"is_active"`
	GrantedBy int64     `json:"granted_by"`
	GrantedAt time.Time `json:"granted_at"`
}

func storePermissionToResponse(p store.SectionPermission) PermissionResponse {
	return PermissionResponse{
		UserID:    p.UserID,
		Section:   p.SectionName,
		CanView:   p.CanView,
		CanEdit:   p.CanEdit,
		CanDelete: p.CanDelete,
		IsActive:  p.IsActive,
		GrantedBy: p.GrantedBy,
		GrantedAt: p.GrantedAt,
	}
}

// AssignPermissionsRequest represents the request body for a permission
// assignment. The three bits are independent; granting edit does not grant
// view.
type AssignPermissionsRequest struct {
	UserID    int64  `json:"user_id"`
	Section   string `json:"section"`
	CanView   bool   `json:"can_view"`
	CanEdit   bool   `json:"can_edit"`
	CanDelete bool   `json:"can_delete"`
}

// AssignPermissions handles POST /api/permissions. Main admin only.
func (h *Handler) AssignPermissions(w http.ResponseWriter, r *http.Request) {
	var req AssignPermissionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	meta := requestMeta(r)
	perm, auditWarn, err := h.engine.Matrix().Assign(r.Context(), actorFromRequest(r), governance.AssignRequest{
		UserID:    req.UserID,
		Section:   req.Section,
		Perms:     model.NewPermissionSet(req.CanView, req.CanEdit, req.CanDelete),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})
	if err != nil {
		writeDomainError(w, err, "User not found")
		return
	}

	WriteSuccessWarn(w, storePermissionToResponse(perm), auditWarn)
}

// ListUserPermissions handles GET /api/permissions/users/{id}.
func (h *Handler) ListUserPermissions(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid user ID", nil)
		return
	}

	perms, err := h.engine.Matrix().ListForUser(r.Context(), id)
	if err != nil {
		WriteInternalError(w, "Failed to list permissions")
		return
	}

	responses := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		responses = append(responses, storePermissionToResponse(p))
	}
	WriteSuccess(w, responses, &Meta{Total: int64(len(responses))})
}

// SummaryResponse is the granted/total capability count for one user. It is
// a progress figure for the admin UI, not a security boundary.
type SummaryResponse struct {
	UserID  int64 `json:"user_id"`
	Granted int64 `json:"granted"`
	Total   int64 `json:"total"`
}

// SummarizePermissions handles GET /api/permissions/users/{id}/summary.
func (h *Handler) SummarizePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid user ID", nil)
		return
	}

	summary, err := h.engine.Matrix().Summarize(r.Context(), id)
	if err != nil {
		WriteInternalError(w, "Failed to summarize permissions")
		return
	}

	WriteSuccess(w, SummaryResponse{UserID: id, Granted: summary.Granted, Total: summary.Total}, nil)
}

// CheckPermission handles GET /api/permissions/check?section=X&capability=Y.
// It answers for the calling user only.
func (h *Handler) CheckPermission(w http.ResponseWriter, r *http.Request) {
	section := r.URL.Query().Get("section")
	if !util.IsValidSectionKey(section) {
		WriteBadRequest(w, "Invalid section key", nil)
		return
	}

	var capability model.Capability
	switch r.URL.Query().Get("capability") {
	case "view":
		capability = model.CapView
	case "edit":
		capability = model.CapEdit
	case "delete":
		capability = model.CapDelete
	default:
		WriteBadRequest(w, "Capability must be one of view, edit, delete", nil)
		return
	}

	allowed, err := h.engine.Matrix().Check(r.Context(), actorFromRequest(r), section, capability)
	if err != nil {
		WriteInternalError(w, "Failed to check permission")
		return
	}

	WriteSuccess(w, map[string]any{
		"section":    section,
		"capability": capability.String(),
		"allowed":    allowed,
	}, nil)
}
