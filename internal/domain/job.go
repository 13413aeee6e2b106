package domain

import "time"

// JobStatus enumerates the lifecycle states of a retouch job.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusError      JobStatus = "error"
)

// Job encapsulates one uploaded photo and its retouch lifecycle. A job is
// created already processing; each attempt settles exactly once into
// completed (Artifact set) or error (FailureReason set), and an explicit
// regenerate resets it to processing.
type Job struct {
	ID            string
	OwnerID       string
	OriginalName  string
	MIME          string
	OriginalKey   string // spool key of the uploaded bytes, released when the job is discarded
	Artifact      []byte // encoded result, non-nil iff Status == completed
	Status        JobStatus
	Unlocked      bool   // monotonic: never reverts to false
	FailureReason string // non-empty iff Status == error
	Attempt       int    // settlements from superseded attempts are dropped
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Downloadable reports whether the clean artifact may be served.
func (j Job) Downloadable() bool {
	return j.Status == JobStatusCompleted && j.Unlocked
}
