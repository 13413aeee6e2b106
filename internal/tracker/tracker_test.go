package tracker

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"homestaging/internal/domain"
	"homestaging/internal/providers/retouch"
	"homestaging/internal/storage"
)

const owner = "user-1"

type retoucherFunc func(ctx context.Context, req retouch.Request) ([]byte, error)

func (f retoucherFunc) Retouch(ctx context.Context, req retouch.Request) ([]byte, error) {
	return f(ctx, req)
}

func newTestTracker(t *testing.T, fn retoucherFunc) *Tracker {
	t.Helper()
	spool, err := storage.NewSpool(t.TempDir())
	if err != nil {
		t.Fatalf("NewSpool error: %v", err)
	}
	tr := New(fn, spool, zerolog.New(io.Discard))
	t.Cleanup(tr.Close)
	return tr
}

func waitForStatus(t *testing.T, tr *Tracker, id string, status domain.JobStatus) domain.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := tr.Get(owner, id)
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if job.Status == status {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := tr.Get(owner, id)
	t.Fatalf("job %s never reached %s, stuck at %s", id, status, job.Status)
	return domain.Job{}
}

func TestSubmitBatchCreatesProcessingJobs(t *testing.T) {
	release := make(chan struct{})
	tr := newTestTracker(t, func(ctx context.Context, req retouch.Request) ([]byte, error) {
		<-release
		return []byte("staged"), nil
	})

	ids, err := tr.SubmitBatch(owner, []Upload{
		{Name: "salon.jpg", MIME: "image/jpeg", Data: []byte("a")},
		{Name: "cuisine.jpg", MIME: "image/jpeg", Data: []byte("b")},
		{Name: "chambre.jpg", MIME: "image/jpeg", Data: []byte("c")},
	})
	if err != nil {
		t.Fatalf("SubmitBatch error: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate job id %s", id)
		}
		seen[id] = true
		job, err := tr.Get(owner, id)
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if job.Status != domain.JobStatusProcessing {
			t.Fatalf("fresh job status %s", job.Status)
		}
		if job.Artifact != nil || job.Unlocked || job.FailureReason != "" {
			t.Fatalf("fresh job not pristine: %+v", job)
		}
	}

	close(release)
	for _, id := range ids {
		job := waitForStatus(t, tr, id, domain.JobStatusCompleted)
		if string(job.Artifact) != "staged" {
			t.Fatalf("unexpected artifact %q", job.Artifact)
		}
	}
}

func TestSubmitBatchRejectsEmpty(t *testing.T) {
	tr := newTestTracker(t, func(ctx context.Context, req retouch.Request) ([]byte, error) {
		return nil, nil
	})
	if _, err := tr.SubmitBatch(owner, nil); !errors.Is(err, domain.ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestFailedSettlementSetsReason(t *testing.T) {
	tr := newTestTracker(t, func(ctx context.Context, req retouch.Request) ([]byte, error) {
		return nil, errors.New("service exploded")
	})
	ids, err := tr.SubmitBatch(owner, []Upload{{Name: "x.jpg", Data: []byte("a")}})
	if err != nil {
		t.Fatalf("SubmitBatch error: %v", err)
	}
	job := waitForStatus(t, tr, ids[0], domain.JobStatusError)
	if job.FailureReason == "" {
		t.Fatal("expected a failure reason")
	}
	if job.Artifact != nil {
		t.Fatal("failed job must not carry an artifact")
	}
}

func TestOneFailureDoesNotAffectSiblings(t *testing.T) {
	var calls atomic.Int32
	tr := newTestTracker(t, func(ctx context.Context, req retouch.Request) ([]byte, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("first one fails")
		}
		return []byte("ok"), nil
	})
	ids, err := tr.SubmitBatch(owner, []Upload{
		{Name: "a.jpg", Data: []byte("a")},
		{Name: "b.jpg", Data: []byte("b")},
	})
	if err != nil {
		t.Fatalf("SubmitBatch error: %v", err)
	}
	sawError, sawCompleted := false, false
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !(sawError && sawCompleted) {
		sawError, sawCompleted = false, false
		for _, id := range ids {
			job, _ := tr.Get(owner, id)
			switch job.Status {
			case domain.JobStatusError:
				sawError = true
			case domain.JobStatusCompleted:
				sawCompleted = true
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !sawError || !sawCompleted {
		t.Fatalf("expected one error and one completion, got error=%v completed=%v", sawError, sawCompleted)
	}
}

func TestRegenerateResetsJob(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	tr := newTestTracker(t, func(ctx context.Context, req retouch.Request) ([]byte, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("flaky")
		}
		<-release
		return []byte("second try"), nil
	})

	ids, err := tr.SubmitBatch(owner, []Upload{{Name: "x.jpg", Data: []byte("a")}})
	if err != nil {
		t.Fatalf("SubmitBatch error: %v", err)
	}
	waitForStatus(t, tr, ids[0], domain.JobStatusError)

	if err := tr.Regenerate(owner, ids[0]); err != nil {
		t.Fatalf("Regenerate error: %v", err)
	}
	job, _ := tr.Get(owner, ids[0])
	if job.Status != domain.JobStatusProcessing || job.Artifact != nil || job.FailureReason != "" {
		t.Fatalf("regenerate did not reset the job: %+v", job)
	}

	close(release)
	job = waitForStatus(t, tr, ids[0], domain.JobStatusCompleted)
	if string(job.Artifact) != "second try" {
		t.Fatalf("unexpected artifact %q", job.Artifact)
	}
}

func TestRegenerateUnknownJob(t *testing.T) {
	tr := newTestTracker(t, func(ctx context.Context, req retouch.Request) ([]byte, error) {
		return nil, nil
	})
	if err := tr.Regenerate(owner, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStaleSettlementAfterClearAll(t *testing.T) {
	release := make(chan struct{})
	tr := newTestTracker(t, func(ctx context.Context, req retouch.Request) ([]byte, error) {
		select {
		case <-release:
			return []byte("too late"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	ids, err := tr.SubmitBatch(owner, []Upload{{Name: "x.jpg", Data: []byte("a")}})
	if err != nil {
		t.Fatalf("SubmitBatch error: %v", err)
	}
	tr.ClearAll(owner)
	close(release)

	// The in-flight settlement must not recreate the discarded job.
	time.Sleep(20 * time.Millisecond)
	if _, err := tr.Get(owner, ids[0]); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected cleared job to stay gone, got %v", err)
	}
	if jobs := tr.List(owner); len(jobs) != 0 {
		t.Fatalf("expected empty tracker, got %d jobs", len(jobs))
	}
}

func TestStaleSettlementAfterRegenerate(t *testing.T) {
	firstDone := make(chan struct{})
	var calls atomic.Int32
	tr := newTestTracker(t, func(ctx context.Context, req retouch.Request) ([]byte, error) {
		if calls.Add(1) == 1 {
			<-firstDone
			return []byte("first attempt"), nil
		}
		return []byte("fresh attempt"), nil
	})

	ids, err := tr.SubmitBatch(owner, []Upload{{Name: "x.jpg", Data: []byte("a")}})
	if err != nil {
		t.Fatalf("SubmitBatch error: %v", err)
	}
	if err := tr.Regenerate(owner, ids[0]); err != nil {
		t.Fatalf("Regenerate error: %v", err)
	}

	job := waitForStatus(t, tr, ids[0], domain.JobStatusCompleted)
	if string(job.Artifact) != "fresh attempt" {
		t.Fatalf("unexpected artifact %q", job.Artifact)
	}

	// Release the superseded attempt; its result must be dropped.
	close(firstDone)
	time.Sleep(20 * time.Millisecond)
	job, _ = tr.Get(owner, ids[0])
	if string(job.Artifact) != "fresh attempt" {
		t.Fatalf("stale attempt overwrote artifact: %q", job.Artifact)
	}
}

func TestMarkUnlocked(t *testing.T) {
	release := make(chan struct{})
	tr := newTestTracker(t, func(ctx context.Context, req retouch.Request) ([]byte, error) {
		<-release
		return []byte("staged"), nil
	})

	ids, err := tr.SubmitBatch(owner, []Upload{{Name: "x.jpg", Data: []byte("a")}})
	if err != nil {
		t.Fatalf("SubmitBatch error: %v", err)
	}
	if err := tr.MarkUnlocked(owner, ids[0]); !errors.Is(err, domain.ErrJobNotCompleted) {
		t.Fatalf("expected ErrJobNotCompleted while processing, got %v", err)
	}
	if err := tr.MarkUnlocked(owner, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	close(release)
	waitForStatus(t, tr, ids[0], domain.JobStatusCompleted)
	if err := tr.MarkUnlocked(owner, ids[0]); err != nil {
		t.Fatalf("MarkUnlocked error: %v", err)
	}
	job, _ := tr.Get(owner, ids[0])
	if !job.Unlocked || !job.Downloadable() {
		t.Fatalf("expected unlocked downloadable job, got %+v", job)
	}
}

func TestJobsAreScopedToTheirOwner(t *testing.T) {
	tr := newTestTracker(t, func(ctx context.Context, req retouch.Request) ([]byte, error) {
		return []byte("staged"), nil
	})

	ids, err := tr.SubmitBatch(owner, []Upload{{Name: "x.jpg", Data: []byte("a")}})
	if err != nil {
		t.Fatalf("SubmitBatch error: %v", err)
	}
	otherIDs, err := tr.SubmitBatch("user-2", []Upload{{Name: "y.jpg", Data: []byte("b")}})
	if err != nil {
		t.Fatalf("SubmitBatch error: %v", err)
	}

	if _, err := tr.Get("user-2", ids[0]); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected foreign job to be invisible, got %v", err)
	}
	if err := tr.Regenerate("user-2", ids[0]); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected foreign regenerate to be refused, got %v", err)
	}

	tr.ClearAll(owner)
	if jobs := tr.List(owner); len(jobs) != 0 {
		t.Fatalf("expected owner's jobs cleared, got %d", len(jobs))
	}
	if _, err := tr.Get("user-2", otherIDs[0]); err != nil {
		t.Fatalf("clear must not touch another owner's jobs: %v", err)
	}
}
