// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mileusna/useragent"

	"github.com/sitewarden/sitewarden/internal/geoip"
	"github.com/sitewarden/sitewarden/internal/store"
)

// AuditService appends records to the append-only admin action log.
//
// Recording is best-effort: a failed append never blocks or rolls back the
// operation that triggered it. Append returns the failure so callers can
// surface it as a warning alongside the successful result.
type AuditService struct {
	queries *store.Queries
	geo     *geoip.Resolver
	logger  *slog.Logger
}

// NewAuditService creates a new AuditService. geo may be nil.
func NewAuditService(db *sql.DB, geo *geoip.Resolver, logger *slog.Logger) *AuditService {
	return &AuditService{
		queries: store.New(db),
		geo:     geo,
		logger:  logger,
	}
}

// AuditRecord describes one privileged operation to record.
type AuditRecord struct {
	AdminID     int64
	ActionType  string
	TargetTable string
	TargetID    int64
	Details     map[string]any
	IPAddress   string
	UserAgent   string
}

// Append records an admin action. The record is enriched with the parsed
// user agent and, when available, the client country. A non-nil return
// means the action itself succeeded but went unrecorded.
func (s *AuditService) Append(ctx context.Context, rec AuditRecord) error {
	details := make(map[string]any, len(rec.Details)+3)
	for k, v := range rec.Details {
		details[k] = v
	}

	if rec.UserAgent != "" {
		ua := useragent.Parse(rec.UserAgent)
		details["browser"] = ua.Name
		details["os"] = ua.OS
	}
	if s.geo != nil && rec.IPAddress != "" {
		if country := s.geo.Country(rec.IPAddress); country != "" {
			details["country"] = country
		}
	}

	detailsJSON := "{}"
	if raw, err := json.Marshal(details); err == nil {
		detailsJSON = string(raw)
	}

	var targetTable sql.NullString
	if rec.TargetTable != "" {
		targetTable = sql.NullString{String: rec.TargetTable, Valid: true}
	}
	var targetID sql.NullInt64
	if rec.TargetID != 0 {
		targetID = sql.NullInt64{Int64: rec.TargetID, Valid: true}
	}

	_, err := s.queries.CreateAdminAction(ctx, store.CreateAdminActionParams{
		AdminID:     rec.AdminID,
		ActionType:  rec.ActionType,
		TargetTable: targetTable,
		TargetID:    targetID,
		Details:     detailsJSON,
		IpAddress:   rec.IPAddress,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		s.logger.Warn("audit append failed",
			"admin_id", rec.AdminID,
			"action_type", rec.ActionType,
			"error", err)
		return err
	}
	return nil
}

// List returns admin action records matching the filters, newest first.
func (s *AuditService) List(ctx context.Context, f store.AdminActionFilters) ([]store.AdminAction, error) {
	return s.queries.ListAdminActions(ctx, f)
}

// Count returns the total number of recorded admin actions.
func (s *AuditService) Count(ctx context.Context) (int64, error) {
	return s.queries.CountAdminActions(ctx)
}
