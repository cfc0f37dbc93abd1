package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SessionStore marks sessions that stopped making progress.
type SessionStore interface {
	AbandonStaleSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// TrialSweeper drops in-flight trials that have been idle too long.
type TrialSweeper interface {
	Sweep(ttl time.Duration) []string
}

// Scheduler periodically expires idle sessions: their in-memory trials are
// evicted and their stored status becomes abandoned.
type Scheduler struct {
	log      *zap.Logger
	store    SessionStore
	trials   TrialSweeper
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewScheduler(log *zap.Logger, store SessionStore, trials TrialSweeper, ttl, interval time.Duration) *Scheduler {
	return &Scheduler{
		log:      log,
		store:    store,
		trials:   trials,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// Start runs the scheduler in a goroutine until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("Starting session sweeper...", zap.Duration("ttl", s.ttl), zap.Duration("interval", s.interval))
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.log.Info("Session sweeper stopped")
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce performs a single sweep.
func (s *Scheduler) RunOnce(ctx context.Context) {
	evicted := s.trials.Sweep(s.ttl)
	if len(evicted) > 0 {
		s.log.Debug("Evicted idle trials", zap.Strings("sessions", evicted))
	}

	cutoff := s.now().Add(-s.ttl).UTC()
	n, err := s.store.AbandonStaleSessions(ctx, cutoff)
	if err != nil {
		s.log.Error("Failed to abandon stale sessions", zap.Error(err), zap.Time("cutoff", cutoff))
		return
	}
	if n > 0 {
		s.log.Info("Marked stale sessions abandoned", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}
}
