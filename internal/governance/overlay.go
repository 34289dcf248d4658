// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package governance

import (
	"sync"

	"github.com/google/uuid"

	"github.com/sitewarden/sitewarden/internal/model"
)

// Overlay holds staged section documents per editing session. It is never
// persisted: a staged document exists only until it is committed, discarded,
// or the process exits. Tokens identify editing sessions, not users; one
// user may hold several tokens.
type Overlay struct {
	mu     sync.RWMutex
	staged map[string]map[string]model.Document // token -> section -> document
}

// NewOverlay creates an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{
		staged: make(map[string]map[string]model.Document),
	}
}

// NewToken returns a fresh editing-session token.
func (o *Overlay) NewToken() string {
	return uuid.NewString()
}

// Stage stores the proposed document for the section under the token,
// replacing any previously staged value.
func (o *Overlay) Stage(token, section string, doc model.Document) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sections, ok := o.staged[token]
	if !ok {
		sections = make(map[string]model.Document)
		o.staged[token] = sections
	}
	sections[section] = doc
}

// Get returns the staged document for the section, if any.
func (o *Overlay) Get(token, section string) (model.Document, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	doc, ok := o.staged[token][section]
	return doc, ok
}

// Sections returns the section names with a staged document under the token.
func (o *Overlay) Sections(token string) []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var names []string
	for name := range o.staged[token] {
		names = append(names, name)
	}
	return names
}

// Discard drops the staged document for one section. Discarding a section
// that was never staged is a no-op.
func (o *Overlay) Discard(token, section string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if sections, ok := o.staged[token]; ok {
		delete(sections, section)
		if len(sections) == 0 {
			delete(o.staged, token)
		}
	}
}

// DiscardAll drops every staged document under the token. Called when an
// editing session ends.
func (o *Overlay) DiscardAll(token string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.staged, token)
}
