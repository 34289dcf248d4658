// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/sitewarden/sitewarden/internal/model"
	"github.com/sitewarden/sitewarden/internal/registry"
	"github.com/sitewarden/sitewarden/internal/service"
	"github.com/sitewarden/sitewarden/internal/store"
	"github.com/sitewarden/sitewarden/internal/util"
)

// Errors returned by the signup and login flows.
var (
	// ErrNotAuthorized means no active authorization record exists for the
	// email, so registration cannot complete.
	ErrNotAuthorized = errors.New("email is not authorized to register")

	// ErrEmailTaken means a user already registered with the email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials covers both unknown email and wrong password on
	// login; the two are deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrWeakPassword means the password fails the minimum length check.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
)

const minPasswordLen = 8

// Service implements registration and login. Registration is closed: only
// emails with an active record in the authorization registry may sign up.
type Service struct {
	queries  *store.Queries
	registry *registry.Registry
	audit    *service.AuditService
	logger   *slog.Logger
}

// NewService creates an auth Service.
func NewService(db *sql.DB, reg *registry.Registry, audit *service.AuditService, logger *slog.Logger) *Service {
	return &Service{
		queries:  store.New(db),
		registry: reg,
		audit:    audit,
		logger:   logger,
	}
}

// Signup registers a new user. The email is matched against the
// authorization registry after normalization, so "A@X.com " signs up fine
// when "a@x.com" was authorized. New users always start with the user role.
func (s *Service) Signup(ctx context.Context, email, password, name string) (store.User, error) {
	email = util.NormalizeEmail(email)
	if len(password) < minPasswordLen {
		return store.User{}, ErrWeakPassword
	}

	ok, err := s.registry.IsAuthorized(ctx, email)
	if err != nil {
		return store.User{}, err
	}
	if !ok {
		s.logger.Warn("signup blocked for unauthorized email",
			"category", model.EventCategoryAuth,
			"email", email)
		return store.User{}, ErrNotAuthorized
	}

	if _, err := s.queries.GetUserByEmail(ctx, email); err == nil {
		return store.User{}, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.User{}, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return store.User{}, err
	}

	now := time.Now()
	user, err := s.queries.CreateUser(ctx, store.CreateUserParams{
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return store.User{}, err
	}

	s.logger.Info("user registered",
		"category", model.EventCategoryAuth,
		"user_id", user.ID)
	return user, nil
}

// LoginMeta carries request context recorded with the login audit entry.
type LoginMeta struct {
	IPAddress string
	UserAgent string
}

// Login verifies credentials and records the login in the admin action log.
// The audit append is best-effort; its failure comes back as the second
// return without failing the login.
func (s *Service) Login(ctx context.Context, email, password string, meta LoginMeta) (store.User, error, error) {
	email = util.NormalizeEmail(email)

	user, err := s.queries.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.User{}, nil, ErrInvalidCredentials
		}
		return store.User{}, nil, err
	}

	ok, err := CheckPassword(password, user.PasswordHash)
	if err != nil || !ok {
		s.logger.Warn("failed login attempt",
			"category", model.EventCategoryAuth,
			"email", email,
			"ip", meta.IPAddress)
		return store.User{}, nil, ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.queries.UpdateUserLastLogin(ctx, store.UpdateUserLastLoginParams{
		LastLoginAt: now,
		ID:          user.ID,
	}); err != nil {
		return store.User{}, nil, err
	}
	user.LastLoginAt = sql.NullTime{Time: now, Valid: true}

	auditWarn := s.audit.Append(ctx, service.AuditRecord{
		AdminID:    user.ID,
		ActionType: model.ActionLogin,
		Details:    map[string]any{"email": email},
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	})
	return user, auditWarn, nil
}
