// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain models and value types used throughout the
// application including roles, capabilities, change types, and audit actions.
package model

import "strings"

// Capability is a single permission bit on a section.
type Capability uint8

// Section capabilities. The bits are independent: holding Edit does not
// imply View, and Delete is gated separately from Edit.
const (
	CapView Capability = 1 << iota
	CapEdit
	CapDelete
)

// CapabilityCount is the number of distinct capabilities per section.
const CapabilityCount = 3

// String returns the capability name as stored in permission audit details.
func (c Capability) String() string {
	switch c {
	case CapView:
		return "view"
	case CapEdit:
		return "edit"
	case CapDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// PermissionSet is a bitset of capabilities held by a user on one section.
type PermissionSet uint8

// NewPermissionSet builds a PermissionSet from individual bits.
func NewPermissionSet(view, edit, del bool) PermissionSet {
	var p PermissionSet
	if view {
		p |= PermissionSet(CapView)
	}
	if edit {
		p |= PermissionSet(CapEdit)
	}
	if del {
		p |= PermissionSet(CapDelete)
	}
	return p
}

// AllCapabilities is the set holding every capability bit.
const AllCapabilities = PermissionSet(CapView | CapEdit | CapDelete)

// Has reports whether the set contains the given capability.
func (p PermissionSet) Has(c Capability) bool {
	return p&PermissionSet(c) != 0
}

// CanView reports whether the view bit is set.
func (p PermissionSet) CanView() bool { return p.Has(CapView) }

// CanEdit reports whether the edit bit is set.
func (p PermissionSet) CanEdit() bool { return p.Has(CapEdit) }

// CanDelete reports whether the delete bit is set.
func (p PermissionSet) CanDelete() bool { return p.Has(CapDelete) }

// Count returns the number of capability bits set.
func (p PermissionSet) Count() int {
	n := 0
	for _, c := range []Capability{CapView, CapEdit, CapDelete} {
		if p.Has(c) {
			n++
		}
	}
	return n
}

// String returns a comma-separated list of granted capabilities.
func (p PermissionSet) String() string {
	var parts []string
	for _, c := range []Capability{CapView, CapEdit, CapDelete} {
		if p.Has(c) {
			parts = append(parts, c.String())
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}
