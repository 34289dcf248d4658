// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package governance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sitewarden/sitewarden/internal/model"
	"github.com/sitewarden/sitewarden/internal/service"
	"github.com/sitewarden/sitewarden/internal/store"
	"github.com/sitewarden/sitewarden/internal/util"
)

// Matrix is the section permission matrix: the per (user, section) capability
// bits and the sole authorization gate consulted before content mutations.
//
// The main admin is not a row in the matrix. It is the user whose email
// matches the configured main admin address, and it implicitly holds every
// capability on every section.
type Matrix struct {
	queries        *store.Queries
	audit          *service.AuditService
	mainAdminEmail string
}

// NewMatrix creates a Matrix. mainAdminEmail is compared against actor
// emails after normalization.
func NewMatrix(db *sql.DB, audit *service.AuditService, mainAdminEmail string) *Matrix {
	return &Matrix{
		queries:        store.New(db),
		audit:          audit,
		mainAdminEmail: util.NormalizeEmail(mainAdminEmail),
	}
}

// IsMainAdmin reports whether the actor is the distinguished main admin.
func (m *Matrix) IsMainAdmin(actor model.Actor) bool {
	return m.mainAdminEmail != "" && util.NormalizeEmail(actor.Email) == m.mainAdminEmail
}

// AssignRequest names the capability bits to grant one user on one section.
type AssignRequest struct {
	UserID  int64
	Section string
	Perms   model.PermissionSet
	// Audit enrichment.
	IPAddress string
	UserAgent string
}

// Assign upserts the (user, section) permission row. Only the main admin may
// assign permissions; every other caller gets ErrForbidden before anything
// is written. The returned auditWarn is non-nil when the assignment succeeded
// but its audit record could not be appended.
func (m *Matrix) Assign(ctx context.Context, actor model.Actor, req AssignRequest) (store.SectionPermission, error, error) {
	if !m.IsMainAdmin(actor) {
		return store.SectionPermission{}, nil, ErrForbidden
	}
	if !util.IsValidSectionKey(req.Section) {
		return store.SectionPermission{}, nil, NewValidationError("invalid section key %q", req.Section)
	}
	if _, err := m.queries.GetUserByID(ctx, req.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.SectionPermission{}, nil, NewValidationError("no user with id %d", req.UserID)
		}
		return store.SectionPermission{}, nil, storageErr("get user", err)
	}

	perm, err := m.queries.UpsertSectionPermission(ctx, store.UpsertSectionPermissionParams{
		UserID:      req.UserID,
		SectionName: req.Section,
		CanView:     req.Perms.CanView(),
		CanEdit:     req.Perms.CanEdit(),
		CanDelete:   req.Perms.CanDelete(),
		GrantedBy:   actor.ID,
		GrantedAt:   time.Now(),
	})
	if err != nil {
		return store.SectionPermission{}, nil, storageErr("upsert section permission", err)
	}

	auditWarn := m.audit.Append(ctx, service.AuditRecord{
		AdminID:     actor.ID,
		ActionType:  model.ActionAssignPermissions,
		TargetTable: model.TargetSectionPermissions,
		TargetID:    req.UserID,
		Details: map[string]any{
			"section":    req.Section,
			"can_view":   req.Perms.CanView(),
			"can_edit":   req.Perms.CanEdit(),
			"can_delete": req.Perms.CanDelete(),
		},
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})
	return perm, auditWarn, nil
}

// Check reports whether the actor holds the capability on the section. The
// main admin short-circuits to true for every check. A missing or inactive
// permission row evaluates to false for every capability; the bits carry no
// implication between each other.
func (m *Matrix) Check(ctx context.Context, actor model.Actor, section string, capability model.Capability) (bool, error) {
	if m.IsMainAdmin(actor) {
		return true, nil
	}

	perm, err := m.queries.GetSectionPermission(ctx, store.GetSectionPermissionParams{
		UserID:      actor.ID,
		SectionName: section,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, storageErr("get section permission", err)
	}
	if !perm.IsActive {
		return false, nil
	}

	set := model.NewPermissionSet(perm.CanView, perm.CanEdit, perm.CanDelete)
	return set.Has(capability), nil
}

// Summary is the granted/total capability count for one user, intended for
// progress display only. It is not a security boundary.
type Summary struct {
	Granted int64
	Total   int64
}

// Summarize counts the capability bits granted to userID across all active
// permission rows. Total is the capability count times the number of
// sections with a current snapshot.
func (m *Matrix) Summarize(ctx context.Context, userID int64) (Summary, error) {
	granted, err := m.queries.CountGrantedCapabilities(ctx, userID)
	if err != nil {
		return Summary{}, storageErr("count granted capabilities", err)
	}
	sections, err := m.queries.CountSections(ctx)
	if err != nil {
		return Summary{}, storageErr("count sections", err)
	}
	return Summary{
		Granted: granted,
		Total:   model.CapabilityCount * sections,
	}, nil
}

// ListForUser returns every permission row held by one user.
func (m *Matrix) ListForUser(ctx context.Context, userID int64) ([]store.SectionPermission, error) {
	perms, err := m.queries.ListSectionPermissionsByUser(ctx, userID)
	if err != nil {
		return nil, storageErr("list section permissions", err)
	}
	return perms, nil
}
