package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobKind is the persisted discriminator of a pipeline job
type JobKind string

const (
	JobKindProcessEmbedding JobKind = "ProcessEmbedding"
	JobKindProcessConcepts  JobKind = "ProcessConcepts"
)

// Job is the closed set of pipeline jobs. Dispatch switches over the concrete types.
type Job interface {
	Kind() JobKind
	TargetPageID() int64
	isJob()
}

// ProcessEmbedding recomputes a page's compiled content and embedding
type ProcessEmbedding struct {
	PageID int64 `json:"pageId"`
}

// ProcessConcepts extracts key concepts from a page
type ProcessConcepts struct {
	PageID int64 `json:"pageId"`
}

func (ProcessEmbedding) Kind() JobKind { return JobKindProcessEmbedding }
func (ProcessConcepts) Kind() JobKind  { return JobKindProcessConcepts }

func (j ProcessEmbedding) TargetPageID() int64 { return j.PageID }
func (j ProcessConcepts) TargetPageID() int64  { return j.PageID }

func (ProcessEmbedding) isJob() {}
func (ProcessConcepts) isJob()  {}

// PageJobs returns the jobs enqueued whenever a page's blocks change
func PageJobs(pageID int64) []Job {
	return []Job{ProcessEmbedding{PageID: pageID}, ProcessConcepts{PageID: pageID}}
}

// EncodeJob returns the kind and payload stored in the queue
func EncodeJob(j Job) (JobKind, []byte, error) {
	if j == nil {
		return "", nil, ErrInvalidJobKind
	}
	payload, err := json.Marshal(j)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode %s payload: %w", j.Kind(), err)
	}
	return j.Kind(), payload, nil
}

// DecodeJob rebuilds a job from its stored kind and payload
func DecodeJob(kind JobKind, payload []byte) (Job, error) {
	switch kind {
	case JobKindProcessEmbedding:
		var j ProcessEmbedding
		if err := json.Unmarshal(payload, &j); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", kind, err)
		}
		if j.PageID <= 0 {
			return nil, ErrMissingRequiredField.Wrap(fmt.Errorf("%s payload has no pageId", kind))
		}
		return j, nil
	case JobKindProcessConcepts:
		var j ProcessConcepts
		if err := json.Unmarshal(payload, &j); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", kind, err)
		}
		if j.PageID <= 0 {
			return nil, ErrMissingRequiredField.Wrap(fmt.Errorf("%s payload has no pageId", kind))
		}
		return j, nil
	}
	return nil, ErrInvalidJobKind.Wrap(fmt.Errorf("%q", kind))
}

// JobStatus represents the status of a queued job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// QueuedJob is a job plus the queue's own bookkeeping
type QueuedJob struct {
	ID          string
	Job         Job
	Status      JobStatus
	Attempts    int32
	Error       string
	CreatedAt   time.Time
	AvailableAt time.Time
	ClaimedAt   *time.Time
	ProcessedAt *time.Time
}

// NewQueuedJob creates a pending QueuedJob available immediately
func NewQueuedJob(id string, job Job, now time.Time) *QueuedJob {
	return &QueuedJob{
		ID:          id,
		Job:         job,
		Status:      JobStatusPending,
		CreatedAt:   now,
		AvailableAt: now,
	}
}

// ValidateQueuedJob validates a QueuedJob instance
func ValidateQueuedJob(j *QueuedJob) error {
	if j == nil {
		return fmt.Errorf("queued job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("queued job ID is required")
	}

	if j.Job == nil {
		return fmt.Errorf("queued job must carry a job")
	}

	if j.Job.TargetPageID() <= 0 {
		return fmt.Errorf("queued job must target a page")
	}

	if !IsValidJobStatus(j.Status) {
		return fmt.Errorf("queued job Status is invalid: %s", j.Status)
	}

	if j.Attempts < 0 {
		return fmt.Errorf("queued job Attempts cannot be negative")
	}

	return nil
}

// IsValidJobStatus checks if a JobStatus is valid
func IsValidJobStatus(s JobStatus) bool {
	switch s {
	case JobStatusPending, JobStatusProcessing,
		JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}
