// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"time"

	"github.com/sitewarden/sitewarden/internal/store"
)

// AuthorizedEmailResponse represents an authorization record in API responses.
type AuthorizedEmailResponse struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	IsActive     bool      `json:"is_active"`
	Notes        string    `json:"notes,omitempty"`
	AuthorizedBy int64     `json:"authorized_by"`
	AuthorizedAt time.Time `json:"authorized_at"`
}

func storeEmailToResponse(e store.AuthorizedEmail) AuthorizedEmailResponse {
	return AuthorizedEmailResponse{
		ID:           e.ID,
		Email:        e.Email,
		IsActive:     e.IsActive,
		Notes:        e.Notes,
		AuthorizedBy: e.AuthorizedBy,
		AuthorizedAt: e.AuthorizedAt,
	}
}

// ListAuthorizedEmails handles GET /api/emails. Revoked records stay in the
// list so they can be reactivated.
func (h *Handler) ListAuthorizedEmails(w http.ResponseWriter, r *http.Request) {
	emails, err := h.registry.List(r.Context())
	if err != nil {
		WriteInternalError(w, "Failed to list authorized emails")
		return
	}

	responses := make([]AuthorizedEmailResponse, 0, len(emails))
	for _, e := range emails {
		responses = append(responses, storeEmailToResponse(e))
	}
	WriteSuccess(w, responses, &Meta{Total: int64(len(responses))})
}

// AuthorizeEmailRequest represents the request body for authorizing an email.
type AuthorizeEmailRequest struct {
	Email string `json:"email"`
	Notes string `json:"notes,omitempty"`
}

// AuthorizeEmail handles POST /api/emails. A revoked record for the same
// email is reactivated instead of duplicated.
func (h *Handler) AuthorizeEmail(w http.ResponseWriter, r *http.Request) {
	var req AuthorizeEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	record, auditWarn, err := h.registry.Authorize(r.Context(), actorFromRequest(r), req.Email, req.Notes, requestMeta(r))
	if err != nil {
		writeDomainError(w, err, "Authorization record not found")
		return
	}

	WriteCreated(w, storeEmailToResponse(record), auditWarn)
}

// RevokeEmail handles POST /api/emails/{id}/revoke. The record is kept,
// deactivated, so the authorization can be restored later.
func (h *Handler) RevokeEmail(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid authorization ID", nil)
		return
	}

	auditWarn, err := h.registry.Revoke(r.Context(), actorFromRequest(r), id, requestMeta(r))
	if err != nil {
		writeDomainError(w, err, "Authorization record not found")
		return
	}

	WriteSuccessWarn(w, map[string]any{"id": id, "status": "revoked"}, auditWarn)
}

// ReactivateEmail handles POST /api/emails/{id}/reactivate.
func (h *Handler) ReactivateEmail(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid authorization ID", nil)
		return
	}

	auditWarn, err := h.registry.Reactivate(r.Context(), actorFromRequest(r), id, requestMeta(r))
	if err != nil {
		writeDomainError(w, err, "Authorization record not found")
		return
	}

	WriteSuccessWarn(w, map[string]any{"id": id, "status": "active"}, auditWarn)
}

// DeleteEmail handles DELETE /api/emails/{id}?confirm=true. Deletion is
// permanent and only allowed on revoked records; the confirm parameter is an
// explicit guard against accidental removal.
func (h *Handler) DeleteEmail(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid authorization ID", nil)
		return
	}

	if r.URL.Query().Get("confirm") != "true" {
		WriteBadRequest(w, "Permanent deletion requires confirm=true", nil)
		return
	}

	auditWarn, err := h.registry.DeletePermanently(r.Context(), actorFromRequest(r), id, requestMeta(r))
	if err != nil {
		writeDomainError(w, err, "Authorization record not found")
		return
	}

	WriteSuccessWarn(w, map[string]any{"id": id, "status": "deleted"}, auditWarn)
}

// SetRoleRequest represents the request body for a role change.
type SetRoleRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// SetUserRole handles PUT /api/users/role. Main admin only.
func (h *Handler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	var req SetRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, auditWarn, err := h.registry.SetRole(r.Context(), actorFromRequest(r), req.Email, req.Role, requestMeta(r))
	if err != nil {
		writeDomainError(w, err, "User not found")
		return
	}

	WriteSuccessWarn(w, storeUserToResponse(user), auditWarn)
}
