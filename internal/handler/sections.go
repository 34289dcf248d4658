// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/sitewarden/sitewarden/internal/governance"
	"github.com/sitewarden/sitewarden/internal/model"
	"github.com/sitewarden/sitewarden/internal/store"
)

// SectionResponse represents a section snapshot in API responses.
type SectionResponse struct {
	Section   string          `json:"section"`
	Content   json.RawMessage `json:"content"`
	UpdatedBy int64           `json:"updated_by,omitempty"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
	Staged    bool            `json:"staged,omitempty"`
}

func storeSectionToResponse(s store.SiteSection) SectionResponse {
	resp := SectionResponse{
		Section:   s.SectionName,
		Content:   s.Content,
		UpdatedBy: s.UpdatedBy,
	}
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

// ListSections handles GET /api/sections. Only sections the actor may view
// are returned; the main admin sees everything.
func (h *Handler) ListSections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := actorFromRequest(r)

	sections, err := h.queries.ListSections(ctx)
	if err != nil {
		WriteInternalError(w, "Failed to list sections")
		return
	}

	responses := make([]SectionResponse, 0, len(sections))
	for _, s := range sections {
		ok, err := h.engine.Matrix().Check(ctx, actor, s.SectionName, model.CapView)
		if err != nil {
			WriteInternalError(w, "Failed to check permissions")
			return
		}
		if ok {
			responses = append(responses, storeSectionToResponse(s))
		}
	}

	WriteSuccess(w, responses, &Meta{Total: int64(len(responses))})
}

// GetSection handles GET /api/sections/{section}.
func (h *Handler) GetSection(w http.ResponseWriter, r *http.Request) {
	name, ok := sectionParam(w, r)
	if !ok {
		return
	}

	section, err := h.engine.Get(r.Context(), actorFromRequest(r), name)
	if err != nil {
		writeDomainError(w, err, "Section not found")
		return
	}

	WriteSuccess(w, storeSectionToResponse(section), nil)
}

// GetSectionForEditing handles GET /api/sections/{section}/edit. The staged
// document wins over the persisted snapshot when one exists for this session.
func (h *Handler) GetSectionForEditing(w http.ResponseWriter, r *http.Request) {
	name, ok := sectionParam(w, r)
	if !ok {
		return
	}

	section, staged, err := h.engine.GetForEditing(r.Context(), actorFromRequest(r), h.overlayToken(r), name)
	if err != nil {
		writeDomainError(w, err, "Section not found")
		return
	}

	resp := storeSectionToResponse(section)
	resp.Staged = staged
	WriteSuccess(w, resp, nil)
}

// PreviewSection handles POST /api/sections/{section}/preview. The body is
// the proposed section document; it is validated and staged without touching
// persisted state.
func (h *Handler) PreviewSection(w http.ResponseWriter, r *http.Request) {
	name, ok := sectionParam(w, r)
	if !ok {
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		WriteBadRequest(w, "Failed to read request body", nil)
		return
	}

	if err := h.engine.Preview(r.Context(), actorFromRequest(r), h.overlayToken(r), name, payload); err != nil {
		writeDomainError(w, err, "Section not found")
		return
	}

	WriteSuccess(w, map[string]string{"section": name, "status": "staged"}, nil)
}

// CommitSectionRequest represents the request body for a commit. Payload and
// BaseVersion are both optional: an empty payload commits the staged preview,
// and a zero BaseVersion commits without a concurrency check.
type CommitSectionRequest struct {
	Payload     json.RawMessage `json:"payload,omitempty"`
	BaseVersion *time.Time      `json:"base_version,omitempty"`
}

// CommitSection handles POST /api/sections/{section}/commit.
func (h *Handler) CommitSection(w http.ResponseWriter, r *http.Request) {
	name, ok := sectionParam(w, r)
	if !ok {
		return
	}

	var req CommitSectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	commit := governance.CommitRequest{
		Token:   h.overlayToken(r),
		Section: name,
		Payload: req.Payload,
	}
	if req.BaseVersion != nil {
		commit.BaseVersion = *req.BaseVersion
	}

	section, entry, err := h.engine.Commit(r.Context(), actorFromRequest(r), commit)
	if err != nil {
		writeDomainError(w, err, "Section not found")
		return
	}

	resp := storeSectionToResponse(section)
	WriteSuccess(w, map[string]any{
		"section": resp,
		"history": storeHistoryToResponse(entry),
	}, nil)
}

// DiscardSection handles DELETE /api/sections/{section}/preview. Discarding
// is always safe: persisted state is never touched.
func (h *Handler) DiscardSection(w http.ResponseWriter, r *http.Request) {
	name, ok := sectionParam(w, r)
	if !ok {
		return
	}

	h.engine.Discard(h.overlayToken(r), name)
	WriteSuccess(w, map[string]string{"section": name, "status": "discarded"}, nil)
}

// DeleteSection handles DELETE /api/sections/{section}. The snapshot is
// removed; history for the section is retained.
func (h *Handler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	name, ok := sectionParam(w, r)
	if !ok {
		return
	}

	entry, err := h.engine.Delete(r.Context(), actorFromRequest(r), name)
	if err != nil {
		writeDomainError(w, err, "Section not found")
		return
	}

	WriteSuccess(w, storeHistoryToResponse(entry), nil)
}
