package jobqueue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kevin07696/subscription-billing/internal/domain"
)

// DefaultMaxRetries applies when a job is enqueued without WithRetries
const DefaultMaxRetries = 3

// Status is the lifecycle state of a job
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	// StatusFailed is terminal: the job exhausted its retries and waits for manual requeue
	StatusFailed Status = "failed"
)

// Job is a persisted unit of work. Attempts counts executions that ended in failure;
// a job is dead once Attempts > MaxRetries.
type Job struct {
	RunAt          time.Time             `json:"run_at"`
	CreatedAt      time.Time             `json:"created_at"`
	LockedUntil    *time.Time            `json:"locked_until,omitempty"`
	ProcessedAt    *time.Time            `json:"processed_at,omitempty"`
	LockedBy       *uuid.UUID            `json:"locked_by,omitempty"`
	LastError      *string               `json:"last_error,omitempty"`
	RequestContext domain.RequestContext `json:"request_context"`
	Queue          string                `json:"queue"`
	Kind           domain.JobKind        `json:"kind"`
	Status         Status                `json:"status"`
	Payload        json.RawMessage       `json:"payload"`
	Attempts       int                   `json:"attempts"`
	MaxRetries     int                   `json:"max_retries"`
	ID             uuid.UUID             `json:"id"`
}

// RetriesLeft reports whether another failure would still be retried
func (j *Job) RetriesLeft() bool {
	return j.Attempts+1 <= j.MaxRetries
}
