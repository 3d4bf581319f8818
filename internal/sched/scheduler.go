// Package sched implements durable deferred task scheduling. Tasks are
// persisted as jobs in the store and executed by a polling Runner, so a
// pending task survives process restarts and a cancel issued on one
// instance is visible to every other instance sharing the database.
package sched

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/irislabs/iris/internal/store"
)

// Scheduler schedules and cancels deferred tasks. Schedule returns an
// opaque handle that Cancel accepts later.
type Scheduler interface {
	Schedule(ctx context.Context, kind string, payload any, delay time.Duration) (string, error)
	Cancel(ctx context.Context, handle string) error
}

// JobScheduler is the durable Scheduler implementation over a JobRepo.
type JobScheduler struct {
	repo store.JobRepo
}

// NewJobScheduler creates a scheduler backed by the given job repository.
func NewJobScheduler(repo store.JobRepo) *JobScheduler {
	return &JobScheduler{repo: repo}
}

// Schedule enqueues a job of the given kind to run after delay. The payload
// is JSON-encoded into the job row.
func (s *JobScheduler) Schedule(ctx context.Context, kind string, payload any, delay time.Duration) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}
	runAt := time.Now().UTC().Add(delay)
	id, err := s.repo.EnqueueJob(kind, runAt, string(body))
	if err != nil {
		return "", fmt.Errorf("enqueue %s job: %w", kind, err)
	}
	slog.Debug("Scheduled deferred job", "id", id, "kind", kind, "runAt", runAt)
	return id, nil
}

// Cancel cancels a previously scheduled job. Cancelling a handle that has
// already fired, or that no longer exists, is a no-op.
func (s *JobScheduler) Cancel(ctx context.Context, handle string) error {
	if handle == "" {
		return nil
	}
	if err := s.repo.CancelJob(handle); err != nil {
		return fmt.Errorf("cancel job %s: %w", handle, err)
	}
	slog.Debug("Cancelled deferred job", "id", handle)
	return nil
}
