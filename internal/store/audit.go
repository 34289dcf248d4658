// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// AdminAction is one append-only record of a privileged operation.
type AdminAction struct {
	ID          int64
	AdminID     int64
	ActionType  string
	TargetTable sql.NullString
	TargetID    sql.NullInt64
	Details     string
	IpAddress   string
	CreatedAt   time.Time
}

const adminActionColumns = "id, admin_id, action_type, target_table, target_id, details, ip_address, created_at"

func scanAdminAction(row interface{ Scan(...any) error }) (AdminAction, error) {
	var a AdminAction
	err := row.Scan(&a.ID, &a.AdminID, &a.ActionType, &a.TargetTable, &a.TargetID,
		&a.Details, &a.IpAddress, &a.CreatedAt)
	return a, err
}

// CreateAdminActionParams holds parameters for CreateAdminAction.
type CreateAdminActionParams struct {
	AdminID     int64
	ActionType  string
	TargetTable sql.NullString
	TargetID    sql.NullInt64
	Details     string
	IpAddress   string
	CreatedAt   time.Time
}

// CreateAdminAction appends an admin action record. Like content history,
// this table is append-only.
func (q *Queries) CreateAdminAction(ctx context.Context, arg CreateAdminActionParams) (AdminAction, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO admin_actions (admin_id, action_type, target_table, target_id, details, ip_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+adminActionColumns,
		arg.AdminID, arg.ActionType, arg.TargetTable, arg.TargetID,
		arg.Details, arg.IpAddress, arg.CreatedAt)
	return scanAdminAction(row)
}

// AdminActionFilters narrows ListAdminActions results. Zero values mean "no filter".
type AdminActionFilters struct {
	AdminID    int64
	ActionType string
	DateFrom   time.Time
	DateTo     time.Time
	Text       string
	Limit      int64
	Offset     int64
}

// ListAdminActions returns admin action records matching the filters, newest first.
func (q *Queries) ListAdminActions(ctx context.Context, f AdminActionFilters) ([]AdminAction, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT ` + adminActionColumns + ` FROM admin_actions WHERE 1=1`)

	if f.AdminID != 0 {
		sb.WriteString(` AND admin_id = ?`)
		args = append(args, f.AdminID)
	}
	if f.ActionType != "" {
		sb.WriteString(` AND action_type = ?`)
		args = append(args, f.ActionType)
	}
	if !f.DateFrom.IsZero() {
		sb.WriteString(` AND created_at >= ?`)
		args = append(args, f.DateFrom)
	}
	if !f.DateTo.IsZero() {
		sb.WriteString(` AND created_at <= ?`)
		args = append(args, f.DateTo)
	}
	if f.Text != "" {
		sb.WriteString(` AND details LIKE ?`)
		args = append(args, "%"+f.Text+"%")
	}

	sb.WriteString(` ORDER BY id DESC`)
	if f.Limit > 0 {
		sb.WriteString(` LIMIT ? OFFSET ?`)
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := q.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []AdminAction
	for rows.Next() {
		a, err := scanAdminAction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// CountAdminActions returns the total number of admin action records.
func (q *Queries) CountAdminActions(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_actions`).Scan(&count)
	return count, err
}
