// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
)

// Document is the opaque structured content of a section. The governance
// engine treats the shape as section-specific; it only requires a JSON
// object at the top level.
type Document map[string]any

// MaxDocumentBytes is the maximum accepted size of an encoded section document.
const MaxDocumentBytes = 1 << 20 // 1 MiB

// ParseDocument decodes raw JSON into a Document. It fails on anything that
// is not a JSON object or exceeds MaxDocumentBytes.
func ParseDocument(raw []byte) (Document, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	if len(raw) > MaxDocumentBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", MaxDocumentBytes)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("document must be a JSON object")
	}
	return doc, nil
}

// Encode serializes the document back to JSON.
func (d Document) Encode() ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return raw, nil
}

// Sanitize applies the given HTML sanitization policy to every string value
// in the document, recursively through nested objects and arrays.
func (d Document) Sanitize(policy *bluemonday.Policy) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = sanitizeValue(policy, v)
	}
	return out
}

func sanitizeValue(policy *bluemonday.Policy, v any) any {
	switch val := v.(type) {
	case string:
		return policy.Sanitize(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = sanitizeValue(policy, inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = sanitizeValue(policy, inner)
		}
		return out
	default:
		return v
	}
}
