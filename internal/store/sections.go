// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"
)

// SiteSection is the current snapshot of one governed content section.
// Content is an opaque JSON document; its shape is section-specific.
type SiteSection struct {
	SectionName string
	Content     []byte
	UpdatedBy   int64
	UpdatedAt   time.Time
}

const siteSectionColumns = "section_name, content, updated_by, updated_at"

func scanSiteSection(row interface{ Scan(...any) error }) (SiteSection, error) {
	var s SiteSection
	err := row.Scan(&s.SectionName, &s.Content, &s.UpdatedBy, &s.UpdatedAt)
	return s, err
}

// GetSection fetches the current snapshot of a section.
func (q *Queries) GetSection(ctx context.Context, name string) (SiteSection, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+siteSectionColumns+` FROM site_sections WHERE section_name = ?`, name)
	return scanSiteSection(row)
}

// UpsertSectionParams holds parameters for UpsertSection.
type UpsertSectionParams struct {
	SectionName string
	Content     []byte
	UpdatedBy   int64
	UpdatedAt   time.Time
}

// UpsertSection writes the new current snapshot of a section.
func (q *Queries) UpsertSection(ctx context.Context, arg UpsertSectionParams) (SiteSection, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO site_sections (section_name, content, updated_by, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (section_name) DO UPDATE SET
			content = excluded.content,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at
		RETURNING `+siteSectionColumns,
		arg.SectionName, arg.Content, arg.UpdatedBy, arg.UpdatedAt)
	return scanSiteSection(row)
}

// DeleteSection removes the current snapshot of a section. The section's
// history entries are retained.
func (q *Queries) DeleteSection(ctx context.Context, name string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM site_sections WHERE section_name = ?`, name)
	return err
}

// ListSections returns all current section snapshots ordered by name.
func (q *Queries) ListSections(ctx context.Context) ([]SiteSection, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+siteSectionColumns+` FROM site_sections ORDER BY section_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SiteSection
	for rows.Next() {
		s, err := scanSiteSection(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// CountSections returns the number of sections with a current snapshot.
func (q *Queries) CountSections(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM site_sections`).Scan(&count)
	return count, err
}
