// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util provides general-purpose utility functions including
// section-key normalization and client network helpers.
package util

import (
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
)

var (
	// sectionKeyRegex matches characters not allowed in a section key
	sectionKeyRegex = regexp.MustCompile(`[^a-z0-9_]+`)
	// multipleUnderscores matches multiple consecutive underscores
	multipleUnderscores = regexp.MustCompile(`_{2,}`)
)

// SectionKey converts a display name into a normalized section key, e.g.
// "Color Palette" -> "color_palette". Non-ASCII characters are transliterated.
func SectionKey(s string) string {
	result := unidecode.Unidecode(s)
	result = strings.ToLower(result)
	result = strings.ReplaceAll(result, " ", "_")
	result = strings.ReplaceAll(result, "-", "_")
	result = sectionKeyRegex.ReplaceAllString(result, "")
	result = multipleUnderscores.ReplaceAllString(result, "_")
	return strings.Trim(result, "_")
}

// IsValidSectionKey checks if a string is a valid section key: lowercase
// letters, digits, and single underscores, not at the edges.
func IsValidSectionKey(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_') {
			return false
		}
	}

	if s[0] == '_' || s[len(s)-1] == '_' {
		return false
	}

	return !strings.Contains(s, "__")
}
