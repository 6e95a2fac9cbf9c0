// Package sweep runs the periodic maintenance pass: archive expired
// threads, delete their stale conversation contexts, and prune synced
// audit rows past the retention window.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/careline/internal/conversation"
)

// DefaultSchedule runs the sweep hourly.
const DefaultSchedule = "@hourly"

// DefaultAuditRetention keeps synced audit rows for 30 days.
const DefaultAuditRetention = 30 * 24 * time.Hour

// Store is the persistence surface the sweep maintains.
type Store interface {
	ArchiveExpired(ctx context.Context, now time.Time) (int, error)
	DeleteExpiredContexts(ctx context.Context, cutoff time.Time) (int, error)
	PruneSynced(ctx context.Context, cutoff time.Time) (int, error)
}

// Sweeper periodically expires threads and prunes stale rows.
type Sweeper struct {
	store     Store
	retention time.Duration
	cron      *cron.Cron
}

// New creates a Sweeper. retention bounds how long synced audit rows are
// kept; zero means DefaultAuditRetention.
func New(store Store, retention time.Duration) *Sweeper {
	if retention <= 0 {
		retention = DefaultAuditRetention
	}
	return &Sweeper{
		store:     store,
		retention: retention,
		cron:      cron.New(),
	}
}

// Start registers the sweep on its schedule and starts the cron ticker.
func (s *Sweeper) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := s.cron.AddFunc(schedule, func() {
		s.RunOnce(context.Background())
	}); err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("sweep scheduled", "schedule", schedule)
	return nil
}

// Stop stops the cron ticker.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}

// RunOnce performs a single sweep pass. Each step is independent: one
// failing step does not stop the others.
func (s *Sweeper) RunOnce(ctx context.Context) {
	now := time.Now().UTC()

	archived, err := s.store.ArchiveExpired(ctx, now)
	if err != nil {
		slog.Error("archiving expired threads failed", "error", err)
	} else if archived > 0 {
		slog.Info("archived expired threads", "count", archived)
	}

	deleted, err := s.store.DeleteExpiredContexts(ctx, now.Add(-conversation.ThreadTTL))
	if err != nil {
		slog.Error("deleting expired contexts failed", "error", err)
	} else if deleted > 0 {
		slog.Info("deleted expired contexts", "count", deleted)
	}

	pruned, err := s.store.PruneSynced(ctx, now.Add(-s.retention))
	if err != nil {
		slog.Error("pruning audit trail failed", "error", err)
	} else if pruned > 0 {
		slog.Info("pruned synced audit rows", "count", pruned)
	}
}
