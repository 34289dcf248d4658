// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"
)

// SectionPermission represents the three capability bits one user holds on
// one section. The bits are independent of each other.
type SectionPermission struct {
	UserID      int64
	SectionName string
	CanView     bool
	CanEdit     bool
	CanDelete   bool
	IsActive    bool
	GrantedBy   int64
	GrantedAt   time.Time
}

const sectionPermissionColumns = "user_id, section_name, can_view, can_edit, can_delete, is_active, granted_by, granted_at"

func scanSectionPermission(row interface{ Scan(...any) error }) (SectionPermission, error) {
	var p SectionPermission
	err := row.Scan(&p.UserID, &p.SectionName, &p.CanView, &p.CanEdit, &p.CanDelete,
		&p.IsActive, &p.GrantedBy, &p.GrantedAt)
	return p, err
}

// UpsertSectionPermissionParams holds parameters for UpsertSectionPermission.
type UpsertSectionPermissionParams struct {
	UserID      int64
	SectionName string
	CanView     bool
	CanEdit     bool
	CanDelete   bool
	GrantedBy   int64
	GrantedAt   time.Time
}

// UpsertSectionPermission inserts or replaces the (user, section) permission row.
func (q *Queries) UpsertSectionPermission(ctx context.Context, arg UpsertSectionPermissionParams) (SectionPermission, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO section_permissions
			(user_id, section_name, can_view, can_edit, can_delete, is_active, granted_by, granted_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (user_id, section_name) DO UPDATE SET
			can_view = excluded.can_view,
			can_edit = excluded.can_edit,
			can_delete = excluded.can_delete,
			is_active = 1,
			granted_by = excluded.granted_by,
			granted_at = excluded.granted_at
		RETURNING `+sectionPermissionColumns,
		arg.UserID, arg.SectionName, arg.CanView, arg.CanEdit, arg.CanDelete,
		arg.GrantedBy, arg.GrantedAt)
	return scanSectionPermission(row)
}

// GetSectionPermissionParams identifies one (user, section) permission row.
type GetSectionPermissionParams struct {
	UserID      int64
	SectionName string
}

// GetSectionPermission fetches the permission row for a (user, section) pair.
func (q *Queries) GetSectionPermission(ctx context.Context, arg GetSectionPermissionParams) (SectionPermission, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+sectionPermissionColumns+` FROM section_permissions
		WHERE user_id = ? AND section_name = ?`,
		arg.UserID, arg.SectionName)
	return scanSectionPermission(row)
}

// ListSectionPermissionsByUser returns all permission rows for one user.
func (q *Queries) ListSectionPermissionsByUser(ctx context.Context, userID int64) ([]SectionPermission, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+sectionPermissionColumns+` FROM section_permissions
		WHERE user_id = ? ORDER BY section_name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SectionPermission
	for rows.Next() {
		p, err := scanSectionPermission(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// CountGrantedCapabilities returns the number of capability bits set across
// all active permission rows of one user.
func (q *Queries) CountGrantedCapabilities(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(can_view + can_edit + can_delete), 0)
		FROM section_permissions
		WHERE user_id = ? AND is_active = 1`, userID).Scan(&count)
	return count, err
}
