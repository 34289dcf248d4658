// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package governance

import (
	"testing"

	"github.com/sitewarden/sitewarden/internal/model"
)

func TestOverlayStageReplaces(t *testing.T) {
	o := NewOverlay()
	token := o.NewToken()

	o.Stage(token, "hero", model.Document{"title": "v1"})
	o.Stage(token, "hero", model.Document{"title": "v2"})

	doc, ok := o.Get(token, "hero")
	if !ok {
		t.Fatal("expected staged document")
	}
	if doc["title"] != "v2" {
		t.Errorf("title = %v, want v2", doc["title"])
	}
}

func TestOverlayTokensAreIsolated(t *testing.T) {
	o := NewOverlay()
	a := o.NewToken()
	b := o.NewToken()

	o.Stage(a, "hero", model.Document{"title": "mine"})

	if _, ok := o.Get(b, "hero"); ok {
		t.Error("token b sees token a's staged document")
	}
}

func TestOverlayDiscard(t *testing.T) {
	o := NewOverlay()
	token := o.NewToken()

	o.Stage(token, "hero", model.Document{"title": "x"})
	o.Stage(token, "footer", model.Document{"text": "y"})

	o.Discard(token, "hero")
	if _, ok := o.Get(token, "hero"); ok {
		t.Error("hero still staged after Discard")
	}
	if _, ok := o.Get(token, "footer"); !ok {
		t.Error("footer should survive discarding hero")
	}

	// Discarding an unstaged section is a no-op.
	o.Discard(token, "hero")
	o.Discard("no-such-token", "hero")
}

func TestOverlayDiscardAll(t *testing.T) {
	o := NewOverlay()
	token := o.NewToken()

	o.Stage(token, "hero", model.Document{"title": "x"})
	o.Stage(token, "footer", model.Document{"text": "y"})

	if got := len(o.Sections(token)); got != 2 {
		t.Fatalf("Sections = %d, want 2", got)
	}

	o.DiscardAll(token)
	if got := len(o.Sections(token)); got != 0 {
		t.Errorf("Sections after DiscardAll = %d, want 0", got)
	}
}
