// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"
)

// AuthorizedEmail represents an email allowed to complete registration.
type AuthorizedEmail struct {
	ID           int64
	Email        string
	IsActive     bool
	Notes        string
	AuthorizedBy int64
	AuthorizedAt time.Time
}

const authorizedEmailColumns = "id, email, is_active, notes, authorized_by, authorized_at"

func scanAuthorizedEmail(row interface{ Scan(...any) error }) (AuthorizedEmail, error) {
	var e AuthorizedEmail
	err := row.Scan(&e.ID, &e.Email, &e.IsActive, &e.Notes, &e.AuthorizedBy, &e.AuthorizedAt)
	return e, err
}

// CreateAuthorizedEmailParams holds parameters for CreateAuthorizedEmail.
type CreateAuthorizedEmailParams struct {
	Email        string
	Notes        string
	AuthorizedBy int64
	AuthorizedAt time.Time
}

// CreateAuthorizedEmail inserts a new active authorization record.
func (q *Queries) CreateAuthorizedEmail(ctx context.Context, arg CreateAuthorizedEmailParams) (AuthorizedEmail, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO authorized_emails (email, is_active, notes, authorized_by, authorized_at)
		VALUES (?, 1, ?, ?, ?)
		RETURNING `+authorizedEmailColumns,
		arg.Email, arg.Notes, arg.AuthorizedBy, arg.AuthorizedAt)
	return scanAuthorizedEmail(row)
}

// GetAuthorizedEmailByID fetches an authorization record by ID.
func (q *Queries) GetAuthorizedEmailByID(ctx context.Context, id int64) (AuthorizedEmail, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+authorizedEmailColumns+` FROM authorized_emails WHERE id = ?`, id)
	return scanAuthorizedEmail(row)
}

// GetAuthorizedEmailByEmail fetches an authorization record by email.
// The email column is COLLATE NOCASE, so the match is case-insensitive.
func (q *Queries) GetAuthorizedEmailByEmail(ctx context.Context, email string) (AuthorizedEmail, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+authorizedEmailColumns+` FROM authorized_emails WHERE email = ?`, email)
	return scanAuthorizedEmail(row)
}

// ListAuthorizedEmails returns all authorization records, newest first.
func (q *Queries) ListAuthorizedEmails(ctx context.Context) ([]AuthorizedEmail, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+authorizedEmailColumns+` FROM authorized_emails ORDER BY authorized_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []AuthorizedEmail
	for rows.Next() {
		e, err := scanAuthorizedEmail(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// SetAuthorizedEmailActiveParams holds parameters for SetAuthorizedEmailActive.
type SetAuthorizedEmailActiveParams struct {
	IsActive bool
	ID       int64
}

// SetAuthorizedEmailActive toggles the is_active flag of a record.
func (q *Queries) SetAuthorizedEmailActive(ctx context.Context, arg SetAuthorizedEmailActiveParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE authorized_emails SET is_active = ? WHERE id = ?`, arg.IsActive, arg.ID)
	return err
}

// DeleteAuthorizedEmail permanently removes a record.
func (q *Queries) DeleteAuthorizedEmail(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM authorized_emails WHERE id = ?`, id)
	return err
}
