// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sitewarden/sitewarden/internal/util"
)

// maxLockout caps the exponential backoff on repeated lockouts.
const maxLockout = 24 * time.Hour

// LoginProtection throttles login attempts two ways: a per-IP token bucket
// on the login POST route, and a per-account lockout that trips after too
// many wrong passwords inside the attempt window. Accounts are keyed by
// normalized email.
type LoginProtection struct {
	ipLimiters *limiterCache[string]

	mu       sync.RWMutex
	accounts map[string]*accountState

	maxFailedAttempts int
	lockoutDuration   time.Duration
	attemptWindow     time.Duration
}

// accountState is the failure record for one account.
type accountState struct {
	failures    int
	windowStart time.Time
	lockedUntil time.Time
	lockouts    int
}

// LoginProtectionConfig holds configuration for login protection.
type LoginProtectionConfig struct {
	// IPRateLimit is login requests per second per IP.
	IPRateLimit float64
	// IPBurst is the token bucket burst size per IP.
	IPBurst int
	// MaxFailedAttempts is the failure count that trips a lockout.
	MaxFailedAttempts int
	// LockoutDuration is the first lockout length; each further lockout
	// doubles it, up to maxLockout.
	LockoutDuration time.Duration
	// AttemptWindow bounds how long failures keep counting toward a lockout.
	AttemptWindow time.Duration
}

// DefaultLoginProtectionConfig returns sensible defaults: one login every
// two seconds per IP and a 15 minute lockout after 5 failures.
func DefaultLoginProtectionConfig() LoginProtectionConfig {
	return LoginProtectionConfig{
		IPRateLimit:       0.5,
		IPBurst:           5,
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
		AttemptWindow:     15 * time.Minute,
	}
}

// NewLoginProtection creates a login protection instance and starts its
// background janitor. Zero config fields fall back to the defaults.
func NewLoginProtection(cfg LoginProtectionConfig) *LoginProtection {
	def := DefaultLoginProtectionConfig()
	if cfg.IPRateLimit <= 0 {
		cfg.IPRateLimit = def.IPRateLimit
	}
	if cfg.IPBurst <= 0 {
		cfg.IPBurst = def.IPBurst
	}
	if cfg.MaxFailedAttempts <= 0 {
		cfg.MaxFailedAttempts = def.MaxFailedAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}
	if cfg.AttemptWindow <= 0 {
		cfg.AttemptWindow = def.AttemptWindow
	}

	lp := &LoginProtection{
		ipLimiters:        newLimiterCache[string](cfg.IPRateLimit, cfg.IPBurst),
		accounts:          make(map[string]*accountState),
		maxFailedAttempts: cfg.MaxFailedAttempts,
		lockoutDuration:   cfg.LockoutDuration,
		attemptWindow:     cfg.AttemptWindow,
	}

	go lp.janitor()

	return lp
}

// CheckIPRateLimit reports whether a login request from this IP may proceed.
func (lp *LoginProtection) CheckIPRateLimit(ip string) bool {
	return lp.ipLimiters.get(ip).Allow()
}

// IsAccountLocked reports whether the account is locked and for how much
// longer.
func (lp *LoginProtection) IsAccountLocked(email string) (bool, time.Duration) {
	email = util.NormalizeEmail(email)

	lp.mu.RLock()
	state, ok := lp.accounts[email]
	lp.mu.RUnlock()

	if !ok || !time.Now().Before(state.lockedUntil) {
		return false, 0
	}
	return true, time.Until(state.lockedUntil)
}

// RecordFailedAttempt counts one wrong password against the account. When
// the count reaches the limit the account locks and (true, duration) is
// returned; the failure count resets so the next lockout starts fresh.
func (lp *LoginProtection) RecordFailedAttempt(email string) (bool, time.Duration) {
	email = util.NormalizeEmail(email)
	now := time.Now()

	lp.mu.Lock()
	defer lp.mu.Unlock()

	state, ok := lp.accounts[email]
	if !ok || now.Sub(state.windowStart) > lp.attemptWindow {
		if !ok {
			state = &accountState{}
			lp.accounts[email] = state
		}
		state.failures = 1
		state.windowStart = now
		return false, 0
	}

	state.failures++
	if state.failures < lp.maxFailedAttempts {
		return false, 0
	}

	lock := lp.backoff(state.lockouts)
	state.lockedUntil = now.Add(lock)
	state.lockouts++
	state.failures = 0

	slog.Warn("account locked after repeated login failures",
		"email", email,
		"lockouts", state.lockouts,
		"duration", lock,
	)

	return true, lock
}

// backoff doubles the base lockout per prior lockout, capped at maxLockout.
func (lp *LoginProtection) backoff(lockouts int) time.Duration {
	lock := lp.lockoutDuration
	for ; lockouts > 0 && lock < maxLockout; lockouts-- {
		lock *= 2
	}
	if lock > maxLockout {
		lock = maxLockout
	}
	return lock
}

// RecordSuccessfulLogin drops all failure state for the account.
func (lp *LoginProtection) RecordSuccessfulLogin(email string) {
	email = util.NormalizeEmail(email)

	lp.mu.Lock()
	delete(lp.accounts, email)
	lp.mu.Unlock()
}

// GetRemainingAttempts returns how many more failures the account can take
// before it locks.
func (lp *LoginProtection) GetRemainingAttempts(email string) int {
	email = util.NormalizeEmail(email)

	lp.mu.RLock()
	state, ok := lp.accounts[email]
	lp.mu.RUnlock()

	if !ok || time.Since(state.windowStart) > lp.attemptWindow {
		return lp.maxFailedAttempts
	}
	if remaining := lp.maxFailedAttempts - state.failures; remaining > 0 {
		return remaining
	}
	return 0
}

// janitor drops expired account state and oversized limiter caches.
func (lp *LoginProtection) janitor() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		lp.sweep()
	}
}

func (lp *LoginProtection) sweep() {
	if lp.ipLimiters.clearIfExceeds(10000) {
		slog.Info("login IP limiter cache cleared due to size")
	}

	now := time.Now()
	lp.mu.Lock()
	for email, state := range lp.accounts {
		if now.After(state.lockedUntil) && now.Sub(state.windowStart) > lp.attemptWindow {
			delete(lp.accounts, email)
		}
	}
	lp.mu.Unlock()
}

// Middleware rate-limits POSTs by client IP. Apply it to the login route;
// other methods pass through untouched.
func (lp *LoginProtection) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ip := util.ClientIP(r)
			if !lp.CheckIPRateLimit(ip) {
				slog.Warn("login rate limit exceeded", "ip", ip)
				writeJSONError(w, http.StatusTooManyRequests, "too many login attempts, slow down")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
