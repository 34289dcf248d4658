// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package governance

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/sitewarden/sitewarden/internal/model"
	"github.com/sitewarden/sitewarden/internal/store"
)

// SectionCache is the read-through cache in front of current section
// snapshots. A nil cache disables caching; the engine invalidates the section
// on every successful mutation.
type SectionCache interface {
	Get(ctx context.Context, section string) (store.SiteSection, bool)
	Set(ctx context.Context, section store.SiteSection)
	Invalidate(ctx context.Context, section string)
}

// Engine runs the preview-commit pipeline and the history/revert operations.
// Every call takes the acting user explicitly; the capability check happens
// before any mutation, so a forbidden call never partially applies.
type Engine struct {
	db      *sql.DB
	queries *store.Queries
	matrix  *Matrix
	overlay *Overlay
	cache   SectionCache
	policy  *bluemonday.Policy
	logger  *slog.Logger
}

// NewEngine creates an Engine. cache may be nil.
func NewEngine(db *sql.DB, matrix *Matrix, overlay *Overlay, cache SectionCache, logger *slog.Logger) *Engine {
	return &Engine{
		db:      db,
		queries: store.New(db),
		matrix:  matrix,
		overlay: overlay,
		cache:   cache,
		policy:  bluemonday.UGCPolicy(),
		logger:  logger,
	}
}

// Overlay exposes the engine's staging overlay.
func (e *Engine) Overlay() *Overlay { return e.overlay }

// Matrix exposes the engine's permission matrix.
func (e *Engine) Matrix() *Matrix { return e.matrix }

// Preview validates the proposed payload and stages it in the overlay under
// the session token. Nothing is persisted: history and the section snapshot
// are untouched, and repeated previews simply replace the staged value.
func (e *Engine) Preview(ctx context.Context, actor model.Actor, token, section string, payload []byte) error {
	ok, err := e.matrix.Check(ctx, actor, section, model.CapEdit)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}

	doc, err := model.ParseDocument(payload)
	if err != nil {
		return NewValidationError("invalid section payload: %v", err)
	}

	e.overlay.Stage(token, section, doc)
	return nil
}

// Discard clears the staged document for the section. It always succeeds and
// never touches persisted state.
func (e *Engine) Discard(token, section string) {
	e.overlay.Discard(token, section)
}

// CommitRequest describes one commit. Payload is used when no document is
// staged under Token (a direct write). BaseVersion, when non-zero, is the
// updated_at of the snapshot the editor last read: the commit fails with
// ErrConflict if the live snapshot differs, instead of silently overwriting
// a concurrent change.
type CommitRequest struct {
	Token       string
	Section     string
	Payload     []byte
	BaseVersion time.Time
}

// Commit persists the staged (or directly supplied) document as the
// section's new current snapshot and appends exactly one history entry, both
// in a single transaction. String values are sanitized before persisting.
//
// On success the overlay entry is cleared. On storage failure the overlay is
// left intact so the editor can retry without losing unsaved work.
func (e *Engine) Commit(ctx context.Context, actor model.Actor, req CommitRequest) (store.SiteSection, store.ContentHistoryEntry, error) {
	ok, err := e.matrix.Check(ctx, actor, req.Section, model.CapEdit)
	if err != nil {
		return store.SiteSection{}, store.ContentHistoryEntry{}, err
	}
	if !ok {
		return store.SiteSection{}, store.ContentHistoryEntry{}, ErrForbidden
	}

	doc, staged := e.overlay.Get(req.Token, req.Section)
	if !staged {
		if len(req.Payload) == 0 {
			return store.SiteSection{}, store.ContentHistoryEntry{},
				NewValidationError("nothing staged for section %q and no payload supplied", req.Section)
		}
		doc, err = model.ParseDocument(req.Payload)
		if err != nil {
			return store.SiteSection{}, store.ContentHistoryEntry{},
				NewValidationError("invalid section payload: %v", err)
		}
	}

	content, err := doc.Sanitize(e.policy).Encode()
	if err != nil {
		return store.SiteSection{}, store.ContentHistoryEntry{},
			NewValidationError("invalid section payload: %v", err)
	}

	section, entry, err := e.write(ctx, actor, req.Section, content, req.BaseVersion)
	if err != nil {
		return store.SiteSection{}, store.ContentHistoryEntry{}, err
	}

	// Cleared only after the transaction committed.
	if staged {
		e.overlay.Discard(req.Token, req.Section)
	}
	e.invalidate(ctx, req.Section)

	e.logger.Info("section committed",
		"category", model.EventCategoryContent,
		"section", req.Section,
		"change_type", entry.ChangeType,
		"actor_id", actor.ID)
	return section, entry, nil
}

// write runs the snapshot upsert and the history append in one transaction.
func (e *Engine) write(ctx context.Context, actor model.Actor, sectionName string, content []byte, baseVersion time.Time) (store.SiteSection, store.ContentHistoryEntry, error) {
	var (
		section store.SiteSection
		entry   store.ContentHistoryEntry
	)
	err := store.ExecTx(ctx, e.db, func(q *store.Queries) error {
		current, err := q.GetSection(ctx, sectionName)
		exists := true
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			exists = false
		}

		if !baseVersion.IsZero() && exists && !current.UpdatedAt.Equal(baseVersion) {
			return ErrConflict
		}

		changeType := model.ChangeTypeUpdate
		var oldContent []byte
		if exists {
			oldContent = current.Content
		} else {
			changeType = model.ChangeTypeCreate
		}

		now := time.Now()
		section, err = q.UpsertSection(ctx, store.UpsertSectionParams{
			SectionName: sectionName,
			Content:     content,
			UpdatedBy:   actor.ID,
			UpdatedAt:   now,
		})
		if err != nil {
			return err
		}

		entry, err = q.CreateHistoryEntry(ctx, store.CreateHistoryEntryParams{
			SectionName: sectionName,
			OldContent:  oldContent,
			NewContent:  content,
			ChangeType:  changeType,
			ChangedBy:   actor.ID,
			ChangedAt:   now,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return store.SiteSection{}, store.ContentHistoryEntry{}, ErrConflict
		}
		return store.SiteSection{}, store.ContentHistoryEntry{}, storageErr("commit section", err)
	}
	return section, entry, nil
}

// Delete removes the section's current snapshot and appends a delete history
// entry with the removed content as old_content. History for the section is
// retained; a later commit recreates the section with change type create.
func (e *Engine) Delete(ctx context.Context, actor model.Actor, sectionName string) (store.ContentHistoryEntry, error) {
	ok, err := e.matrix.Check(ctx, actor, sectionName, model.CapDelete)
	if err != nil {
		return store.ContentHistoryEntry{}, err
	}
	if !ok {
		return store.ContentHistoryEntry{}, ErrForbidden
	}

	var entry store.ContentHistoryEntry
	err = store.ExecTx(ctx, e.db, func(q *store.Queries) error {
		current, err := q.GetSection(ctx, sectionName)
		if err != nil {
			return err
		}
		if err := q.DeleteSection(ctx, sectionName); err != nil {
			return err
		}
		entry, err = q.CreateHistoryEntry(ctx, store.CreateHistoryEntryParams{
			SectionName: sectionName,
			OldContent:  current.Content,
			NewContent:  nil,
			ChangeType:  model.ChangeTypeDelete,
			ChangedBy:   actor.ID,
			ChangedAt:   time.Now(),
		})
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ContentHistoryEntry{}, NewValidationError("no such section %q", sectionName)
		}
		return store.ContentHistoryEntry{}, storageErr("delete section", err)
	}

	e.invalidate(ctx, sectionName)
	e.logger.Info("section deleted",
		"category", model.EventCategoryContent,
		"section", sectionName,
		"actor_id", actor.ID)
	return entry, nil
}

// Get returns the section's current persisted snapshot. Requires the view
// capability.
func (e *Engine) Get(ctx context.Context, actor model.Actor, sectionName string) (store.SiteSection, error) {
	ok, err := e.matrix.Check(ctx, actor, sectionName, model.CapView)
	if err != nil {
		return store.SiteSection{}, err
	}
	if !ok {
		return store.SiteSection{}, ErrForbidden
	}

	if e.cache != nil {
		if section, hit := e.cache.Get(ctx, sectionName); hit {
			return section, nil
		}
	}

	section, err := e.queries.GetSection(ctx, sectionName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.SiteSection{}, err
		}
		return store.SiteSection{}, storageErr("get section", err)
	}

	if e.cache != nil {
		e.cache.Set(ctx, section)
	}
	return section, nil
}

// GetForEditing returns the staged document for the session when one exists,
// otherwise the persisted snapshot. The second return reports whether the
// result came from the overlay.
func (e *Engine) GetForEditing(ctx context.Context, actor model.Actor, token, sectionName string) (store.SiteSection, bool, error) {
	if doc, ok := e.overlay.Get(token, sectionName); ok {
		viewOK, err := e.matrix.Check(ctx, actor, sectionName, model.CapView)
		if err != nil {
			return store.SiteSection{}, false, err
		}
		if !viewOK {
			return store.SiteSection{}, false, ErrForbidden
		}
		content, err := doc.Encode()
		if err != nil {
			return store.SiteSection{}, false, NewValidationError("invalid staged payload: %v", err)
		}
		return store.SiteSection{SectionName: sectionName, Content: content}, true, nil
	}

	section, err := e.Get(ctx, actor, sectionName)
	return section, false, err
}

// History returns committed history entries matching the filters, newest
// first. A pure read projection with no side effects.
func (e *Engine) History(ctx context.Context, f store.HistoryFilters) ([]store.ContentHistoryEntry, error) {
	entries, err := e.queries.ListHistory(ctx, f)
	if err != nil {
		return nil, storageErr("list history", err)
	}
	return entries, nil
}

// Revert restores the prior snapshot recorded in the given history entry by
// committing it as a new update. The original entry is never touched, which
// keeps history append-only and makes the revert itself revertible.
func (e *Engine) Revert(ctx context.Context, actor model.Actor, entryID int64) (store.SiteSection, store.ContentHistoryEntry, error) {
	prev, err := e.queries.GetHistoryEntry(ctx, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.SiteSection{}, store.ContentHistoryEntry{}, err
		}
		return store.SiteSection{}, store.ContentHistoryEntry{}, storageErr("get history entry", err)
	}

	ok, err := e.matrix.Check(ctx, actor, prev.SectionName, model.CapEdit)
	if err != nil {
		return store.SiteSection{}, store.ContentHistoryEntry{}, err
	}
	if !ok {
		return store.SiteSection{}, store.ContentHistoryEntry{}, ErrForbidden
	}

	if prev.OldContent == nil {
		return store.SiteSection{}, store.ContentHistoryEntry{}, ErrNothingToRevert
	}

	section, entry, err := e.write(ctx, actor, prev.SectionName, prev.OldContent, time.Time{})
	if err != nil {
		return store.SiteSection{}, store.ContentHistoryEntry{}, err
	}

	e.invalidate(ctx, prev.SectionName)
	e.logger.Info("section reverted",
		"category", model.EventCategoryContent,
		"section", prev.SectionName,
		"entry_id", entryID,
		"actor_id", actor.ID)
	return section, entry, nil
}

func (e *Engine) invalidate(ctx context.Context, sectionName string) {
	if e.cache != nil {
		e.cache.Invalidate(ctx, sectionName)
	}
}
