package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// SeedParams identifies the main admin account created on first run.
type SeedParams struct {
	MainAdminEmail    string
	MainAdminPassword string
	MainAdminName     string
	PasswordHasher    func(string) (string, error)
}

// Seed creates the main admin user and its authorization record if they do
// not exist yet. All other accounts go through email authorization + signup.
func Seed(ctx context.Context, db *sql.DB, p SeedParams) error {
	queries := New(db)
	email := strings.ToLower(strings.TrimSpace(p.MainAdminEmail))

	_, err := queries.GetUserByEmail(ctx, email)
	if err == nil {
		slog.Info("main admin already exists, skipping seed")
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking for main admin: %w", err)
	}

	passwordHash, err := p.PasswordHasher(p.MainAdminPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now()
	user, err := queries.CreateUser(ctx, CreateUserParams{
		Email:        email,
		PasswordHash: passwordHash,
		Role:         "admin",
		Name:         p.MainAdminName,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("creating main admin: %w", err)
	}

	// Record the main admin's email as authorized so the registry invariant
	// (every user has an authorization record) holds for the seed account too.
	if _, err := queries.CreateAuthorizedEmail(ctx, CreateAuthorizedEmailParams{
		Email:        email,
		Notes:        "seeded main admin",
		AuthorizedBy: user.ID,
		AuthorizedAt: now,
	}); err != nil {
		return fmt.Errorf("authorizing main admin email: %w", err)
	}

	slog.Info("created main admin user", "id", user.ID, "email", user.Email)
	return nil
}
