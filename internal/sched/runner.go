package sched

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/irislabs/iris/internal/store"
)

// Handler executes a claimed job. The full job row is passed so handlers
// can compare the job ID against the user's current pending task handle.
type Handler func(ctx context.Context, job store.Job) error

const (
	defaultPollInterval = 2 * time.Second
	defaultClaimLimit   = 10
	defaultStaleAfter   = 5 * time.Minute
	baseRetryBackoff    = 30 * time.Second
)

// Runner polls the job repository for due jobs and dispatches them to
// registered handlers. One Runner per process is enough; multiple runner
// processes may share the repository.
type Runner struct {
	repo     store.JobRepo
	interval time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRunner creates a runner over the given job repository.
func NewRunner(repo store.JobRepo) *Runner {
	return &Runner{
		repo:     repo,
		interval: defaultPollInterval,
		handlers: make(map[string]Handler),
	}
}

// RegisterHandler binds a handler to a job kind, replacing any previous
// handler for that kind.
func (r *Runner) RegisterHandler(kind string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// RecoverStaleJobs requeues jobs that were claimed by a process that died
// mid-execution. Call once on startup before Start.
func (r *Runner) RecoverStaleJobs() {
	n, err := r.repo.RequeueStaleRunningJobs(time.Now().UTC().Add(-defaultStaleAfter))
	if err != nil {
		slog.Error("Failed to requeue stale running jobs", "error", err)
		return
	}
	if n > 0 {
		slog.Info("Requeued stale running jobs", "count", n)
	}
}

// Start runs the polling loop until the context is cancelled.
func (r *Runner) Start(ctx context.Context) {
	slog.Info("Job runner started", "interval", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Job runner stopping")
			return
		case <-ticker.C:
			r.ProcessDueJobs(ctx)
		}
	}
}

// ProcessDueJobs claims and executes one batch of due jobs.
func (r *Runner) ProcessDueJobs(ctx context.Context) {
	jobs, err := r.repo.ClaimDueJobs(time.Now().UTC(), defaultClaimLimit)
	if err != nil {
		slog.Error("Failed to claim due jobs", "error", err)
		return
	}
	for _, job := range jobs {
		r.runOne(ctx, job)
	}
}

func (r *Runner) runOne(ctx context.Context, job store.Job) {
	r.mu.RLock()
	h, ok := r.handlers[job.Kind]
	r.mu.RUnlock()
	if !ok {
		slog.Error("No handler registered for job kind", "kind", job.Kind, "id", job.ID)
		if err := r.repo.FailJob(job.ID, "no handler registered", time.Now().UTC().Add(baseRetryBackoff)); err != nil {
			slog.Error("Failed to record job failure", "error", err, "id", job.ID)
		}
		return
	}

	if err := h(ctx, job); err != nil {
		backoff := baseRetryBackoff << job.Attempt
		slog.Error("Job handler failed", "error", err, "id", job.ID, "kind", job.Kind, "attempt", job.Attempt)
		if ferr := r.repo.FailJob(job.ID, err.Error(), time.Now().UTC().Add(backoff)); ferr != nil {
			slog.Error("Failed to record job failure", "error", ferr, "id", job.ID)
		}
		return
	}
	if err := r.repo.CompleteJob(job.ID); err != nil {
		slog.Error("Failed to mark job complete", "error", err, "id", job.ID)
		return
	}
	slog.Debug("Job completed", "id", job.ID, "kind", job.Kind)
}
