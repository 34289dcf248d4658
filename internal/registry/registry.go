// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package registry implements the authorization registry: the set of emails
// allowed to complete registration and the identity-to-role mapping.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/sitewarden/sitewarden/internal/governance"
	"github.com/sitewarden/sitewarden/internal/model"
	"github.com/sitewarden/sitewarden/internal/service"
	"github.com/sitewarden/sitewarden/internal/store"
	"github.com/sitewarden/sitewarden/internal/util"
)

// Registry manages authorized emails and user roles. All mutations are
// privileged and audited; a failed audit append never rolls the mutation
// back but is returned separately so callers can surface it as a warning.
type Registry struct {
	queries        *store.Queries
	audit          *service.AuditService
	logger         *slog.Logger
	mainAdminEmail string
}

// New creates a Registry.
func New(db *sql.DB, audit *service.AuditService, logger *slog.Logger, mainAdminEmail string) *Registry {
	return &Registry{
		queries:        store.New(db),
		audit:          audit,
		logger:         logger,
		mainAdminEmail: util.NormalizeEmail(mainAdminEmail),
	}
}

func (r *Registry) isMainAdmin(actor model.Actor) bool {
	return r.mainAdminEmail != "" && util.NormalizeEmail(actor.Email) == r.mainAdminEmail
}

// RequestMeta carries audit enrichment for a privileged call.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Authorize allows an email to complete registration. The email is matched
// after trimming and lowercasing; an existing active record fails with
// ErrDuplicateEmail, and an inactive record is reactivated in place rather
// than duplicated. The second return is the audit append warning, if any.
func (r *Registry) Authorize(ctx context.Context, actor model.Actor, email, notes string, meta RequestMeta) (store.AuthorizedEmail, error, error) {
	if !actor.IsAdmin() {
		return store.AuthorizedEmail{}, nil, governance.ErrForbidden
	}

	email = util.NormalizeEmail(email)
	if email == "" {
		return store.AuthorizedEmail{}, nil, governance.NewValidationError("email is required")
	}

	existing, err := r.queries.GetAuthorizedEmailByEmail(ctx, email)
	switch {
	case err == nil && existing.IsActive:
		return store.AuthorizedEmail{}, nil, governance.ErrDuplicateEmail
	case err == nil:
		// Inactive record for this email: reactivate it instead of
		// violating the unique constraint.
		if err := r.queries.SetAuthorizedEmailActive(ctx, store.SetAuthorizedEmailActiveParams{
			IsActive: true,
			ID:       existing.ID,
		}); err != nil {
			return store.AuthorizedEmail{}, nil, wrapStorage("reactivate authorized email", err)
		}
		existing.IsActive = true
		auditWarn := r.appendAudit(ctx, actor, model.ActionAuthorizeEmail, existing.ID, meta, map[string]any{
			"email":       email,
			"reactivated": true,
		})
		return existing, auditWarn, nil
	case !errors.Is(err, sql.ErrNoRows):
		return store.AuthorizedEmail{}, nil, wrapStorage("get authorized email", err)
	}

	rec, err := r.queries.CreateAuthorizedEmail(ctx, store.CreateAuthorizedEmailParams{
		Email:        email,
		Notes:        notes,
		AuthorizedBy: actor.ID,
		AuthorizedAt: time.Now(),
	})
	if err != nil {
		return store.AuthorizedEmail{}, nil, wrapStorage("create authorized email", err)
	}

	auditWarn := r.appendAudit(ctx, actor, model.ActionAuthorizeEmail, rec.ID, meta, map[string]any{
		"email": email,
	})
	return rec, auditWarn, nil
}

// Revoke deactivates an authorization record. The email can no longer
// complete registration; sessions of already-registered users are unaffected.
func (r *Registry) Revoke(ctx context.Context, actor model.Actor, id int64, meta RequestMeta) (error, error) {
	if !actor.IsAdmin() {
		return nil, governance.ErrForbidden
	}

	rec, err := r.queries.GetAuthorizedEmailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, wrapStorage("get authorized email", err)
	}

	if err := r.queries.SetAuthorizedEmailActive(ctx, store.SetAuthorizedEmailActiveParams{
		IsActive: false,
		ID:       id,
	}); err != nil {
		return nil, wrapStorage("revoke authorized email", err)
	}

	auditWarn := r.appendAudit(ctx, actor, model.ActionRevokeAuth, id, meta, map[string]any{
		"email": rec.Email,
	})
	return auditWarn, nil
}

// Reactivate re-enables a revoked authorization record. Valid only while the
// record is inactive.
func (r *Registry) Reactivate(ctx context.Context, actor model.Actor, id int64, meta RequestMeta) (error, error) {
	if !actor.IsAdmin() {
		return nil, governance.ErrForbidden
	}

	rec, err := r.queries.GetAuthorizedEmailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, wrapStorage("get authorized email", err)
	}
	if rec.IsActive {
		return nil, governance.NewValidationError("authorization for %s is already active", rec.Email)
	}

	if err := r.queries.SetAuthorizedEmailActive(ctx, store.SetAuthorizedEmailActiveParams{
		IsActive: true,
		ID:       id,
	}); err != nil {
		return nil, wrapStorage("reactivate authorized email", err)
	}

	auditWarn := r.appendAudit(ctx, actor, model.ActionReactivateAuth, id, meta, map[string]any{
		"email": rec.Email,
	})
	return auditWarn, nil
}

// DeletePermanently removes an authorization record for good. Allowed only
// while the record is inactive; callers must require explicit confirmation
// before invoking this, since there is no undo.
func (r *Registry) DeletePermanently(ctx context.Context, actor model.Actor, id int64, meta RequestMeta) (error, error) {
	if !actor.IsAdmin() {
		return nil, governance.ErrForbidden
	}

	rec, err := r.queries.GetAuthorizedEmailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, wrapStorage("get authorized email", err)
	}
	if rec.IsActive {
		return nil, governance.NewValidationError("authorization for %s must be revoked before deletion", rec.Email)
	}

	if err := r.queries.DeleteAuthorizedEmail(ctx, id); err != nil {
		return nil, wrapStorage("delete authorized email", err)
	}

	auditWarn := r.appendAudit(ctx, actor, model.ActionDeleteAuth, id, meta, map[string]any{
		"email": rec.Email,
	})
	return auditWarn, nil
}

// SetRole changes the role of a registered user. Only the main admin may
// change roles. Fails with ErrUnknownEmail when no user exists for the email.
func (r *Registry) SetRole(ctx context.Context, actor model.Actor, email, role string, meta RequestMeta) (store.User, error, error) {
	if !r.isMainAdmin(actor) {
		return store.User{}, nil, governance.ErrForbidden
	}
	if !model.IsValidRole(role) {
		return store.User{}, nil, governance.NewValidationError("invalid role %q", role)
	}

	email = util.NormalizeEmail(email)
	user, err := r.queries.SetUserRole(ctx, store.SetUserRoleParams{
		Role:      role,
		UpdatedAt: time.Now(),
		Email:     email,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.User{}, nil, governance.ErrUnknownEmail
		}
		return store.User{}, nil, wrapStorage("set user role", err)
	}

	auditWarn := r.audit.Append(ctx, service.AuditRecord{
		AdminID:     actor.ID,
		ActionType:  model.ActionPermissionChange,
		TargetTable: model.TargetUsers,
		TargetID:    user.ID,
		Details:     map[string]any{"email": email, "role": role},
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	})
	return user, auditWarn, nil
}

// IsAuthorized reports whether an active authorization record exists for the
// email, matched case- and whitespace-insensitively. Consumed by signup.
func (r *Registry) IsAuthorized(ctx context.Context, email string) (bool, error) {
	rec, err := r.queries.GetAuthorizedEmailByEmail(ctx, util.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, wrapStorage("get authorized email", err)
	}
	return rec.IsActive, nil
}

// List returns all authorization records, newest first.
func (r *Registry) List(ctx context.Context) ([]store.AuthorizedEmail, error) {
	recs, err := r.queries.ListAuthorizedEmails(ctx)
	if err != nil {
		return nil, wrapStorage("list authorized emails", err)
	}
	return recs, nil
}

func (r *Registry) appendAudit(ctx context.Context, actor model.Actor, actionType string, targetID int64, meta RequestMeta, details map[string]any) error {
	return r.audit.Append(ctx, service.AuditRecord{
		AdminID:     actor.ID,
		ActionType:  actionType,
		TargetTable: model.TargetAuthorizedEmails,
		TargetID:    targetID,
		Details:     details,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	})
}

func wrapStorage(op string, err error) error {
	return &governance.StorageError{Op: op, Err: err}
}
