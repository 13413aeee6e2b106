// Package tracker manages the per-upload retouch jobs. Each submitted file
// becomes a job that is immediately processing; one goroutine per job calls
// the retouch provider, and completions settle in any order without affecting
// sibling jobs. Every job carries its own cancel handle and an attempt
// number, so a result arriving after a regenerate or a batch clear is dropped
// instead of resurrecting discarded state.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"homestaging/internal/domain"
	"homestaging/internal/infra"
	"homestaging/internal/providers/retouch"
	"homestaging/internal/storage"
)

// Upload is one file handed to SubmitBatch.
type Upload struct {
	Name string
	MIME string
	Data []byte
}

type Tracker struct {
	mu      sync.Mutex
	jobs    map[string]*domain.Job
	order   []string
	cancels map[string]context.CancelFunc

	base       context.Context
	baseCancel context.CancelFunc

	retoucher retouch.Retoucher
	spool     *storage.Spool
	logger    infra.Logger
	wg        sync.WaitGroup
}

func New(retoucher retouch.Retoucher, spool *storage.Spool, logger infra.Logger) *Tracker {
	base, cancel := context.WithCancel(context.Background())
	return &Tracker{
		jobs:       make(map[string]*domain.Job),
		cancels:    make(map[string]context.CancelFunc),
		base:       base,
		baseCancel: cancel,
		retoucher:  retoucher,
		spool:      spool,
		logger:     logger,
	}
}

// SubmitBatch creates one processing job per upload for the given owner and
// schedules its transform. It returns the new job ids immediately;
// completions arrive asynchronously and independently.
func (t *Tracker) SubmitBatch(ownerID string, uploads []Upload) ([]string, error) {
	if len(uploads) == 0 {
		return nil, domain.ErrEmptyBatch
	}

	ids := make([]string, 0, len(uploads))
	t.mu.Lock()
	for _, up := range uploads {
		id := uuid.NewString()
		key, err := t.spool.Put("originals/"+id, up.Data)
		if err != nil {
			t.mu.Unlock()
			return nil, err
		}
		now := time.Now()
		job := &domain.Job{
			ID:           id,
			OwnerID:      ownerID,
			OriginalName: up.Name,
			MIME:         up.MIME,
			OriginalKey:  key,
			Status:       domain.JobStatusProcessing,
			Attempt:      1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		t.jobs[id] = job
		t.order = append(t.order, id)
		ids = append(ids, id)

		runCtx, cancel := context.WithCancel(t.base)
		t.cancels[id] = cancel
		t.wg.Add(1)
		go t.run(runCtx, id, 1, up.Data, up.MIME)
	}
	t.mu.Unlock()

	t.logger.Info().Str("owner_id", ownerID).Int("jobs", len(ids)).Msg("tracker: batch submitted")
	return ids, nil
}

// Regenerate resets a job to processing, clears its previous outcome and
// re-invokes the transform once. Any prior status is acceptable; an in-flight
// attempt is cancelled and superseded.
func (t *Tracker) Regenerate(ownerID, id string) error {
	t.mu.Lock()
	job, ok := t.lookup(ownerID, id)
	if !ok {
		t.mu.Unlock()
		return domain.ErrNotFound
	}
	if cancel, ok := t.cancels[id]; ok {
		cancel()
	}
	job.Status = domain.JobStatusProcessing
	job.Artifact = nil
	job.FailureReason = ""
	job.Attempt++
	job.UpdatedAt = time.Now()
	attempt := job.Attempt
	key := job.OriginalKey
	mime := job.MIME
	runCtx, cancel := context.WithCancel(t.base)
	t.cancels[id] = cancel
	t.mu.Unlock()

	data, err := t.spool.Get(key)
	if err != nil {
		cancel()
		t.settle(id, attempt, nil, err)
		return nil
	}

	t.wg.Add(1)
	go t.run(runCtx, id, attempt, data, mime)
	return nil
}

// MarkUnlocked flips the job's unlocked flag. Only a completed job can be
// unlocked; the flag never reverts.
func (t *Tracker) MarkUnlocked(ownerID, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.lookup(ownerID, id)
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status != domain.JobStatusCompleted {
		return domain.ErrJobNotCompleted
	}
	job.Unlocked = true
	job.UpdatedAt = time.Now()
	return nil
}

// Get returns a snapshot of one job.
func (t *Tracker) Get(ownerID, id string) (domain.Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.lookup(ownerID, id)
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	return *job, nil
}

// List returns snapshots of the owner's jobs in submission order.
func (t *Tracker) List(ownerID string) []domain.Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []domain.Job
	for _, id := range t.order {
		if job, ok := t.jobs[id]; ok && job.OwnerID == ownerID {
			out = append(out, *job)
		}
	}
	return out
}

// ClearAll discards the owner's jobs, cancels their in-flight transforms and
// releases the spooled originals.
func (t *Tracker) ClearAll(ownerID string) {
	t.mu.Lock()
	var dropped []*domain.Job
	remaining := t.order[:0]
	for _, id := range t.order {
		job, ok := t.jobs[id]
		if !ok {
			continue
		}
		if job.OwnerID != ownerID {
			remaining = append(remaining, id)
			continue
		}
		if cancel, ok := t.cancels[id]; ok {
			cancel()
			delete(t.cancels, id)
		}
		delete(t.jobs, id)
		dropped = append(dropped, job)
	}
	t.order = remaining
	t.mu.Unlock()

	for _, job := range dropped {
		if err := t.spool.Remove(job.OriginalKey); err != nil {
			t.logger.Warn().Err(err).Str("job_id", job.ID).Msg("tracker: failed to release original")
		}
	}
	t.logger.Info().Str("owner_id", ownerID).Int("jobs", len(dropped)).Msg("tracker: cleared")
}

// Close cancels all in-flight transforms and waits for their goroutines.
func (t *Tracker) Close() {
	t.baseCancel()
	t.wg.Wait()
}

// lookup must be called with the mutex held. An id owned by someone else is
// reported as absent.
func (t *Tracker) lookup(ownerID, id string) (*domain.Job, bool) {
	job, ok := t.jobs[id]
	if !ok || job.OwnerID != ownerID {
		return nil, false
	}
	return job, true
}

func (t *Tracker) run(ctx context.Context, id string, attempt int, data []byte, mime string) {
	defer t.wg.Done()
	artifact, err := t.retoucher.Retouch(ctx, retouch.Request{
		Data:      data,
		MIME:      mime,
		RequestID: id,
	})
	t.settle(id, attempt, artifact, err)
}

// settle records the outcome of one transform attempt. A settlement for a job
// that no longer exists, or for a superseded attempt, is a no-op.
func (t *Tracker) settle(id string, attempt int, artifact []byte, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok || job.Attempt != attempt {
		t.logger.Debug().Str("job_id", id).Int("attempt", attempt).Msg("tracker: dropping stale settlement")
		return
	}
	if cancel, ok := t.cancels[id]; ok {
		cancel()
		delete(t.cancels, id)
	}

	job.UpdatedAt = time.Now()
	if err != nil {
		job.Status = domain.JobStatusError
		job.Artifact = nil
		job.FailureReason = err.Error()
		t.logger.Warn().Err(err).Str("job_id", id).Msg("tracker: transform failed")
		return
	}
	job.Status = domain.JobStatusCompleted
	job.Artifact = artifact
	job.FailureReason = ""
	t.logger.Info().Str("job_id", id).Int("bytes", len(artifact)).Msg("tracker: transform completed")
}
