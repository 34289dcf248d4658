// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/sitewarden/sitewarden/internal/model"
	"github.com/sitewarden/sitewarden/internal/service"
	"github.com/sitewarden/sitewarden/internal/store"
	"github.com/sitewarden/sitewarden/internal/testutil"
)

func TestPruneEvents(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	ctx := context.Background()

	q := store.New(db)
	mkEvent := func(age time.Duration) {
		t.Helper()
		if _, err := q.CreateEvent(ctx, store.CreateEventParams{
			Level:     model.EventLevelInfo,
			Category:  model.EventCategorySystem,
			Message:   "event",
			UserID:    sql.NullInt64{},
			Metadata:  "{}",
			CreatedAt: time.Now().Add(-age),
		}); err != nil {
			t.Fatalf("CreateEvent: %v", err)
		}
	}
	mkEvent(100 * 24 * time.Hour)
	mkEvent(time.Hour)

	events := service.NewEventService(db)
	s := New(events, nil, 90*24*time.Hour, testutil.TestLoggerSilent())
	s.pruneEvents()

	remaining, err := q.ListEvents(ctx, store.ListEventsParams{Limit: 100})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}

	// One old event pruned; the recent one and the prune summary remain.
	for _, e := range remaining {
		if time.Since(e.CreatedAt) > 91*24*time.Hour {
			t.Errorf("event older than retention survived: %+v", e)
		}
	}
}

func TestSchedulerStartStop(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	s := New(service.NewEventService(db), nil, 24*time.Hour, testutil.TestLoggerSilent())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}
