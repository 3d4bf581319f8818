package sched

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/irislabs/iris/internal/store"
)

func TestScheduleAndCancel(t *testing.T) {
	repo := store.NewInMemoryStore()
	s := NewJobScheduler(repo)

	handle, err := s.Schedule(context.Background(), "follow_up", map[string]int64{"user_id": 1}, time.Minute)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if handle == "" {
		t.Fatal("Schedule returned empty handle")
	}

	j, err := repo.GetJob(handle)
	if err != nil || j == nil {
		t.Fatalf("job not persisted: %v", err)
	}
	if j.Kind != "follow_up" || j.Status != store.JobStatusQueued {
		t.Errorf("job = %+v", j)
	}
	if j.PayloadJSON != `{"user_id":1}` {
		t.Errorf("payload = %q", j.PayloadJSON)
	}

	if err := s.Cancel(context.Background(), handle); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	j, _ = repo.GetJob(handle)
	if j.Status != store.JobStatusCanceled {
		t.Errorf("status after cancel = %s", j.Status)
	}

	// Cancelling again, or cancelling garbage, stays a no-op.
	if err := s.Cancel(context.Background(), handle); err != nil {
		t.Errorf("second cancel: %v", err)
	}
	if err := s.Cancel(context.Background(), "missing"); err != nil {
		t.Errorf("cancel unknown: %v", err)
	}
	if err := s.Cancel(context.Background(), ""); err != nil {
		t.Errorf("cancel empty handle: %v", err)
	}
}

func TestRunnerExecutesDueJobs(t *testing.T) {
	repo := store.NewInMemoryStore()
	s := NewJobScheduler(repo)
	r := NewRunner(repo)

	var got []string
	r.RegisterHandler("follow_up", func(ctx context.Context, job store.Job) error {
		got = append(got, job.ID)
		return nil
	})

	due, _ := s.Schedule(context.Background(), "follow_up", nil, -time.Second)
	notDue, _ := s.Schedule(context.Background(), "follow_up", nil, time.Hour)

	r.ProcessDueJobs(context.Background())

	if len(got) != 1 || got[0] != due {
		t.Fatalf("executed %v, want only %s", got, due)
	}
	j, _ := repo.GetJob(due)
	if j.Status != store.JobStatusDone {
		t.Errorf("executed job status = %s", j.Status)
	}
	j, _ = repo.GetJob(notDue)
	if j.Status != store.JobStatusQueued {
		t.Errorf("future job status = %s", j.Status)
	}
}

func TestRunnerSkipsCancelledJobs(t *testing.T) {
	repo := store.NewInMemoryStore()
	s := NewJobScheduler(repo)
	r := NewRunner(repo)

	fired := false
	r.RegisterHandler("follow_up", func(ctx context.Context, job store.Job) error {
		fired = true
		return nil
	})

	handle, _ := s.Schedule(context.Background(), "follow_up", nil, -time.Second)
	if err := s.Cancel(context.Background(), handle); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	r.ProcessDueJobs(context.Background())
	if fired {
		t.Error("cancelled job must not fire")
	}
}

func TestRunnerRetriesFailedJobs(t *testing.T) {
	repo := store.NewInMemoryStore()
	s := NewJobScheduler(repo)
	r := NewRunner(repo)

	calls := 0
	r.RegisterHandler("report", func(ctx context.Context, job store.Job) error {
		calls++
		return errors.New("smtp down")
	})

	handle, _ := s.Schedule(context.Background(), "report", nil, -time.Second)
	r.ProcessDueJobs(context.Background())

	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
	j, _ := repo.GetJob(handle)
	if j.Status != store.JobStatusQueued {
		t.Errorf("failed job status = %s, want requeued", j.Status)
	}
	if j.Attempt != 1 {
		t.Errorf("attempt = %d, want 1", j.Attempt)
	}
	if !j.RunAt.After(time.Now().UTC()) {
		t.Errorf("retry must be scheduled in the future, got %s", j.RunAt)
	}
}

func TestRunnerUnknownKindFails(t *testing.T) {
	repo := store.NewInMemoryStore()
	s := NewJobScheduler(repo)
	r := NewRunner(repo)

	handle, _ := s.Schedule(context.Background(), "mystery", nil, -time.Second)
	r.ProcessDueJobs(context.Background())

	j, _ := repo.GetJob(handle)
	if j.Status != store.JobStatusQueued || j.Attempt != 1 {
		t.Errorf("unhandled job = %+v, want one failed attempt", j)
	}
}
