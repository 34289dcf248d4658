// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Actor identifies the caller of a governed operation. Permission checks are
// pure functions of the actor and their arguments; there is no ambient
// "current user" state anywhere in the engine.
type Actor struct {
	ID    int64
	Email string
	Role  string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
