// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sitewarden/sitewarden/internal/auth"
	"github.com/sitewarden/sitewarden/internal/middleware"
	"github.com/sitewarden/sitewarden/internal/session"
	"github.com/sitewarden/sitewarden/internal/store"
	"github.com/sitewarden/sitewarden/internal/util"
)

// UserResponse represents a user in API responses. The password hash never
// leaves the store layer.
type UserResponse struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func storeUserToResponse(u store.User) UserResponse {
	resp := UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
	if u.LastLoginAt.Valid {
		resp.LastLoginAt = &u.LastLoginAt.Time
	}
	return resp
}

// SignupRequest represents the request body for registration.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Signup handles POST /api/signup. Registration is closed: only emails with
// an active authorization record may create an account.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.auth.Signup(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeDomainError(w, err, "User not found")
		return
	}

	WriteCreated(w, storeUserToResponse(user), nil)
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/login. Failed attempts count toward the account
// lockout; a successful login clears them and rotates the session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	email := util.NormalizeEmail(req.Email)
	if locked, remaining := h.protect.IsAccountLocked(email); locked {
		WriteError(w, http.StatusTooManyRequests, "account_locked",
			fmt.Sprintf("Account temporarily locked, try again in %s", remaining.Round(time.Second)), nil)
		return
	}

	user, auditWarn, err := h.auth.Login(r.Context(), req.Email, req.Password, auth.LoginMeta{
		IPAddress: util.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			if nowLocked, lockDuration := h.protect.RecordFailedAttempt(email); nowLocked {
				WriteError(w, http.StatusTooManyRequests, "account_locked",
					fmt.Sprintf("Too many failed attempts, account locked for %s", lockDuration), nil)
				return
			}
		}
		writeDomainError(w, err, "User not found")
		return
	}

	h.protect.RecordSuccessfulLogin(email)

	// Rotate the session ID on privilege change
	if err := h.sm.RenewToken(r.Context()); err != nil {
		h.logger.Error("failed to renew session token", "error", err)
		WriteInternalError(w, "Failed to establish session")
		return
	}
	h.sm.Put(r.Context(), session.KeyUserID, user.ID)

	WriteSuccessWarn(w, storeUserToResponse(user), auditWarn)
}

// Logout handles POST /api/logout. Any staged previews for the session are
// discarded along with the session itself.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := h.sm.GetString(r.Context(), session.KeyOverlayToken); token != "" {
		h.engine.Overlay().DiscardAll(token)
	}
	if err := h.sm.Destroy(r.Context()); err != nil {
		h.logger.Error("failed to destroy session", "error", err)
		WriteInternalError(w, "Failed to log out")
		return
	}
	WriteSuccess(w, map[string]string{"status": "logged out"}, nil)
}

// Me handles GET /api/me. Requires authentication.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Not authenticated")
		return
	}
	WriteSuccess(w, storeUserToResponse(*user), nil)
}
