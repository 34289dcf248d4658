package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sitewarden/sitewarden/internal/store"
)

// SectionCache is the typed cache for current section snapshots, layered on
// a Cacher backend. Lookups are best-effort: any backend failure reads as a
// miss and writes are dropped, so a broken cache never breaks reads.
type SectionCache struct {
	backend Cacher
	ttl     time.Duration
	logger  *slog.Logger
}

// NewSectionCache creates a SectionCache over the given backend.
func NewSectionCache(backend Cacher, ttl time.Duration, logger *slog.Logger) *SectionCache {
	return &SectionCache{
		backend: backend,
		ttl:     ttl,
		logger:  logger,
	}
}

func sectionKey(name string) string {
	return "section:" + name
}

// cachedSection is the serialized cache representation of a snapshot.
type cachedSection struct {
	SectionName string          `json:"section_name"`
	Content     json.RawMessage `json:"content"`
	UpdatedBy   int64           `json:"updated_by"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Get returns the cached snapshot for a section, if present.
func (c *SectionCache) Get(ctx context.Context, section string) (store.SiteSection, bool) {
	raw, err := c.backend.Get(ctx, sectionKey(section))
	if err != nil {
		return store.SiteSection{}, false
	}

	var cached cachedSection
	if err := json.Unmarshal(raw, &cached); err != nil {
		// A corrupt entry reads as a miss and is dropped.
		_ = c.backend.Delete(ctx, sectionKey(section))
		return store.SiteSection{}, false
	}

	return store.SiteSection{
		SectionName: cached.SectionName,
		Content:     cached.Content,
		UpdatedBy:   cached.UpdatedBy,
		UpdatedAt:   cached.UpdatedAt,
	}, true
}

// Set stores a snapshot.
func (c *SectionCache) Set(ctx context.Context, section store.SiteSection) {
	raw, err := json.Marshal(cachedSection{
		SectionName: section.SectionName,
		Content:     section.Content,
		UpdatedBy:   section.UpdatedBy,
		UpdatedAt:   section.UpdatedAt,
	})
	if err != nil {
		return
	}
	if err := c.backend.Set(ctx, sectionKey(section.SectionName), raw, c.ttl); err != nil {
		c.logger.Warn("section cache set failed", "section", section.SectionName, "error", err)
	}
}

// Invalidate drops the cached snapshot for a section. Called on every
// successful commit, revert, and delete.
func (c *SectionCache) Invalidate(ctx context.Context, section string) {
	if err := c.backend.Delete(ctx, sectionKey(section)); err != nil {
		c.logger.Warn("section cache invalidation failed", "section", section, "error", err)
	}
}
