// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Admin action types recorded in the admin action log. This log is a coarse,
// append-only record of privileged operations, independent of content history.
const (
	ActionAuthorizeEmail    = "authorize_email"
	ActionRevokeAuth        = "revoke_authorization"
	ActionReactivateAuth    = "reactivate_authorization"
	ActionDeleteAuth        = "delete_authorization"
	ActionPermissionChange  = "permission_change"
	ActionAssignPermissions = "assign_permissions"
	ActionLogin             = "login"
)

// Target tables referenced by admin action log entries.
const (
	TargetAuthorizedEmails   = "authorized_emails"
	TargetUsers              = "users"
	TargetSectionPermissions = "section_permissions"
)
