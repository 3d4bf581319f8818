package store

import (
	"time"
)

// JobStatus represents the lifecycle state of a deferred job.
type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusRunning  JobStatus = "running"
	JobStatusDone     JobStatus = "done"
	JobStatusFailed   JobStatus = "failed"
	JobStatusCanceled JobStatus = "canceled"
)

// Job is a durable deferred task record. The ID doubles as the opaque
// deferred-task handle handed back to the dialog core.
type Job struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	RunAt       time.Time  `json:"run_at"`
	PayloadJSON string     `json:"payload_json"`
	Status      JobStatus  `json:"status"`
	Attempt     int        `json:"attempt"`
	MaxAttempts int        `json:"max_attempts"`
	LastError   string     `json:"last_error"`
	LockedAt    *time.Time `json:"locked_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// JobRepo is the durable job persistence contract backing the deferred task
// scheduler.
type JobRepo interface {
	// EnqueueJob inserts a new queued job and returns its generated ID.
	EnqueueJob(kind string, runAt time.Time, payloadJSON string) (string, error)

	// ClaimDueJobs marks up to limit queued jobs whose run_at <= now as
	// running and returns them.
	ClaimDueJobs(now time.Time, limit int) ([]Job, error)

	// CompleteJob marks a job as done.
	CompleteJob(id string) error

	// FailJob records the error and requeues the job for nextRunAt while
	// attempts remain; otherwise it marks the job permanently failed.
	FailJob(id string, errMsg string, nextRunAt time.Time) error

	// CancelJob cancels a queued job. Cancelling an unknown, fired or
	// already-cancelled job is a no-op, not an error.
	CancelJob(id string) error

	// RequeueStaleRunningJobs resets jobs running since before staleBefore
	// back to queued (crash recovery).
	RequeueStaleRunningJobs(staleBefore time.Time) (int, error)

	// GetJob retrieves a single job by ID, or nil if absent.
	GetJob(id string) (*Job, error)
}
