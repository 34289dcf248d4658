// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic maintenance jobs. The only state it prunes
// is the events observability sink; content history and the admin action log
// are append-only and are never touched.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sitewarden/sitewarden/internal/geoip"
	"github.com/sitewarden/sitewarden/internal/model"
	"github.com/sitewarden/sitewarden/internal/service"
)

// Scheduler owns the cron runner and its registered jobs.
type Scheduler struct {
	cron      *cron.Cron
	events    *service.EventService
	geo       *geoip.Resolver
	logger    *slog.Logger
	retention time.Duration
}

// New creates a scheduler. retention is how long event records are kept;
// geo may be nil.
func New(events *service.EventService, geo *geoip.Resolver, retention time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		events:    events,
		geo:       geo,
		logger:    logger,
		retention: retention,
	}
}

// Start registers the jobs and begins the cron loop: event retention daily
// at 03:00, GeoIP database reload hourly.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 3 * * *", s.pruneEvents); err != nil {
		return err
	}

	if s.geo != nil {
		if _, err := s.cron.AddFunc("@hourly", func() {
			if err := s.geo.Reload(); err != nil {
				s.logger.Warn("geoip reload failed", "error", err)
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// pruneEvents deletes event records older than the retention window.
func (s *Scheduler) pruneEvents() {
	ctx := context.Background()

	pruned, err := s.events.DeleteOldEvents(ctx, s.retention)
	if err != nil {
		s.logger.Error("event retention job failed", "error", err)
		return
	}
	if pruned == 0 {
		return
	}

	s.logger.Info("pruned old events", "count", pruned, "retention", s.retention)
	_ = s.events.LogSystemEvent(ctx, model.EventLevelInfo,
		"event retention pruned old records", nil, "", map[string]any{
			"pruned":         pruned,
			"retention_days": int(s.retention.Hours() / 24),
		})
}
