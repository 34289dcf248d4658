// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/sitewarden/sitewarden/internal/auth"
	"github.com/sitewarden/sitewarden/internal/governance"
	"github.com/sitewarden/sitewarden/internal/middleware"
	"github.com/sitewarden/sitewarden/internal/model"
	"github.com/sitewarden/sitewarden/internal/registry"
	"github.com/sitewarden/sitewarden/internal/service"
	"github.com/sitewarden/sitewarden/internal/session"
	"github.com/sitewarden/sitewarden/internal/store"
	"github.com/sitewarden/sitewarden/internal/util"
)

// maxBodySize caps JSON request bodies at 1MB.
const maxBodySize = 1 << 20

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	db       *sql.DB
	queries  *store.Queries
	sm       *scs.SessionManager
	engine   *governance.Engine
	registry *registry.Registry
	auth     *auth.Service
	audit    *service.AuditService
	protect  *middleware.LoginProtection
	logger   *slog.Logger
}

// New creates the API handler.
func New(db *sql.DB, sm *scs.SessionManager, engine *governance.Engine, reg *registry.Registry, authSvc *auth.Service, audit *service.AuditService, protect *middleware.LoginProtection, logger *slog.Logger) *Handler {
	return &Handler{
		db:       db,
		queries:  store.New(db),
		sm:       sm,
		engine:   engine,
		registry: reg,
		auth:     authSvc,
		audit:    audit,
		protect:  protect,
		logger:   logger,
	}
}

// decodeJSON decodes the request body into dst. Unknown fields are rejected.
// On failure a 400 response has already been written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteBadRequest(w, "Invalid JSON body: "+err.Error(), nil)
		return false
	}
	return true
}

// ParseIDParam parses the {id} URL parameter as int64.
func ParseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// ParsePageParam parses the "page" query parameter, defaulting to 1.
func ParsePageParam(r *http.Request) int {
	return ParseIntParam(r, "page", 1, 1, 0)
}

// ParsePerPageParam parses the "per_page" query parameter, clamped to
// [1, maxPerPage].
func ParsePerPageParam(r *http.Request, defaultPerPage, maxPerPage int) int {
	return ParseIntParam(r, "per_page", defaultPerPage, 1, maxPerPage)
}

// ParseIntParam parses an integer query parameter, returning defaultVal when
// the parameter is missing, invalid, or out of range.
func ParseIntParam(r *http.Request, param string, defaultVal, minVal, maxVal int) int {
	str := r.URL.Query().Get(param)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if minVal > 0 && val < minVal {
		return defaultVal
	}
	if maxVal > 0 && val > maxVal {
		return defaultVal
	}
	return val
}

// sectionParam returns the {section} URL parameter, validated as a section
// key. On failure a 400 response has already been written.
func sectionParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "section")
	if !util.IsValidSectionKey(name) {
		WriteBadRequest(w, "Invalid section key", nil)
		return "", false
	}
	return name, true
}

// overlayToken returns the session's staging token, minting one on first use.
// Staged previews are scoped to this token, so two admins never see each
// other's unsaved work.
func (h *Handler) overlayToken(r *http.Request) string {
	token := h.sm.GetString(r.Context(), session.KeyOverlayToken)
	if token == "" {
		token = h.engine.Overlay().NewToken()
		h.sm.Put(r.Context(), session.KeyOverlayToken, token)
	}
	return token
}

// actorFromRequest returns the acting user loaded by the auth middleware.
func actorFromRequest(r *http.Request) model.Actor {
	return middleware.Actor(r)
}

// requestMeta extracts the audit enrichment fields from the request.
func requestMeta(r *http.Request) registry.RequestMeta {
	return registry.RequestMeta{
		IPAddress: util.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}
