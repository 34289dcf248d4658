package cache

import (
	"context"
	"testing"
	"time"

	"github.com/sitewarden/sitewarden/internal/store"
	"github.com/sitewarden/sitewarden/internal/testutil"
)

func TestSectionCacheRoundTrip(t *testing.T) {
	backend := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Minute})
	defer backend.Close()
	sc := NewSectionCache(backend, time.Minute, testutil.TestLoggerSilent())
	ctx := context.Background()

	if _, hit := sc.Get(ctx, "hero"); hit {
		t.Fatal("unexpected hit on empty cache")
	}

	section := store.SiteSection{
		SectionName: "hero",
		Content:     []byte(`{"title":"X"}`),
		UpdatedBy:   7,
		UpdatedAt:   time.Now().Truncate(time.Second),
	}
	sc.Set(ctx, section)

	got, hit := sc.Get(ctx, "hero")
	if !hit {
		t.Fatal("expected hit after Set")
	}
	if got.SectionName != "hero" || got.UpdatedBy != 7 {
		t.Errorf("got %+v", got)
	}
	if string(got.Content) != `{"title":"X"}` {
		t.Errorf("Content = %s", got.Content)
	}
	if !got.UpdatedAt.Equal(section.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, section.UpdatedAt)
	}
}

func TestSectionCacheInvalidate(t *testing.T) {
	backend := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Minute})
	defer backend.Close()
	sc := NewSectionCache(backend, time.Minute, testutil.TestLoggerSilent())
	ctx := context.Background()

	sc.Set(ctx, store.SiteSection{SectionName: "hero", Content: []byte(`{}`)})
	sc.Invalidate(ctx, "hero")

	if _, hit := sc.Get(ctx, "hero"); hit {
		t.Error("hit after Invalidate")
	}
}

func TestSectionCacheCorruptEntryReadsAsMiss(t *testing.T) {
	backend := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Minute})
	defer backend.Close()
	sc := NewSectionCache(backend, time.Minute, testutil.TestLoggerSilent())
	ctx := context.Background()

	_ = backend.Set(ctx, "section:hero", []byte("not json"), 0)
	if _, hit := sc.Get(ctx, "hero"); hit {
		t.Error("corrupt entry should read as a miss")
	}
	// And the corrupt entry is dropped.
	if has, _ := backend.Has(ctx, "section:hero"); has {
		t.Error("corrupt entry should be deleted")
	}
}
