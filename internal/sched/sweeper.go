package sched

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/irislabs/iris/internal/store"
)

// Sweeper periodically requeues jobs stuck in the running state, covering
// runner processes that crashed after claiming work. The cron spec uses
// the standard five-field format.
type Sweeper struct {
	repo       store.JobRepo
	cron       *cron.Cron
	staleAfter time.Duration
}

// NewSweeper creates a sweeper over the given job repository.
func NewSweeper(repo store.JobRepo) *Sweeper {
	return &Sweeper{
		repo:       repo,
		cron:       cron.New(),
		staleAfter: defaultStaleAfter,
	}
}

// Start registers the sweep on the given cron schedule and starts the
// cron loop in the background.
func (s *Sweeper) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return fmt.Errorf("register sweep schedule %q: %w", spec, err)
	}
	s.cron.Start()
	slog.Info("Stale job sweeper started", "spec", spec, "staleAfter", s.staleAfter)
	return nil
}

// Stop stops the cron loop, waiting for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweep() {
	n, err := s.repo.RequeueStaleRunningJobs(time.Now().UTC().Add(-s.staleAfter))
	if err != nil {
		slog.Error("Stale job sweep failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("Stale job sweep requeued jobs", "count", n)
	}
}
