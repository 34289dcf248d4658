// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"strings"
	"time"
)

// ContentHistoryEntry is one immutable record of a committed section change.
// OldContent is nil for create entries; NewContent is nil for delete entries.
type ContentHistoryEntry struct {
	ID          int64
	SectionName string
	OldContent  []byte
	NewContent  []byte
	ChangeType  string
	ChangedBy   int64
	ChangedAt   time.Time
}

const contentHistoryColumns = "id, section_name, old_content, new_content, change_type, changed_by, changed_at"

func scanContentHistoryEntry(row interface{ Scan(...any) error }) (ContentHistoryEntry, error) {
	var e ContentHistoryEntry
	err := row.Scan(&e.ID, &e.SectionName, &e.OldContent, &e.NewContent,
		&e.ChangeType, &e.ChangedBy, &e.ChangedAt)
	return e, err
}

// CreateHistoryEntryParams holds parameters for CreateHistoryEntry.
type CreateHistoryEntryParams struct {
	SectionName string
	OldContent  []byte
	NewContent  []byte
	ChangeType  string
	ChangedBy   int64
	ChangedAt   time.Time
}

// CreateHistoryEntry appends a history record. History is append-only; there
// are deliberately no update or delete queries for this table.
func (q *Queries) CreateHistoryEntry(ctx context.Context, arg CreateHistoryEntryParams) (ContentHistoryEntry, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO content_history (section_name, old_content, new_content, change_type, changed_by, changed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING `+contentHistoryColumns,
		arg.SectionName, arg.OldContent, arg.NewContent, arg.ChangeType,
		arg.ChangedBy, arg.ChangedAt)
	return scanContentHistoryEntry(row)
}

// GetHistoryEntry fetches a single history record by ID.
func (q *Queries) GetHistoryEntry(ctx context.Context, id int64) (ContentHistoryEntry, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+contentHistoryColumns+` FROM content_history WHERE id = ?`, id)
	return scanContentHistoryEntry(row)
}

// GetLatestHistoryForSection fetches the most recent history record for a section.
func (q *Queries) GetLatestHistoryForSection(ctx context.Context, section string) (ContentHistoryEntry, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+contentHistoryColumns+` FROM content_history
		WHERE section_name = ? ORDER BY id DESC LIMIT 1`, section)
	return scanContentHistoryEntry(row)
}

// HistoryFilters narrows ListHistory results. Zero values mean "no filter".
type HistoryFilters struct {
	ChangedBy   int64
	SectionName string
	ChangeType  string
	DateFrom    time.Time
	DateTo      time.Time
	Text        string
	Limit       int64
	Offset      int64
}

// ListHistory returns history records matching the filters, newest first.
// The query is assembled by hand because the filter set is dynamic.
func (q *Queries) ListHistory(ctx context.Context, f HistoryFilters) ([]ContentHistoryEntry, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT ` + contentHistoryColumns + ` FROM content_history WHERE 1=1`)

	if f.ChangedBy != 0 {
		sb.WriteString(` AND changed_by = ?`)
		args = append(args, f.ChangedBy)
	}
	if f.SectionName != "" {
		sb.WriteString(` AND section_name = ?`)
		args = append(args, f.SectionName)
	}
	if f.ChangeType != "" {
		sb.WriteString(` AND change_type = ?`)
		args = append(args, f.ChangeType)
	}
	if !f.DateFrom.IsZero() {
		sb.WriteString(` AND changed_at >= ?`)
		args = append(args, f.DateFrom)
	}
	if !f.DateTo.IsZero() {
		sb.WriteString(` AND changed_at <= ?`)
		args = append(args, f.DateTo)
	}
	if f.Text != "" {
		sb.WriteString(` AND (old_content LIKE ? OR new_content LIKE ?)`)
		pattern := "%" + f.Text + "%"
		args = append(args, pattern, pattern)
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

	var items []ContentHistoryEntry
	for rows.Next() {
		e, err := scanContentHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// CountHistoryForSection returns the number of history records for a section.
func (q *Queries) CountHistoryForSection(ctx context.Context, section string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM content_history WHERE section_name = ?`, section).Scan(&count)
	return count, err
}
