package jobqueue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage persists jobs. ClaimJob must hand out at most one running job per queue at a time,
// across every process sharing the storage.
type Storage interface {
	CreateJob(ctx context.Context, job *Job) error
	ClaimJob(ctx context.Context, queue string, workerID uuid.UUID, lockDuration time.Duration) (*Job, error)
	CompleteJob(ctx context.Context, id uuid.UUID) error
	// FailJob records a failed attempt; a nil retryAt marks the job failed for good
	FailJob(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)
	ListJobs(ctx context.Context, queue string, status Status, limit int) ([]*Job, error)
	// RequeueJob gives a failed job one more attempt
	RequeueJob(ctx context.Context, id uuid.UUID) error
	// ReleaseExpiredLocks treats processing jobs whose lock lapsed as a failed attempt
	ReleaseExpiredLocks(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, queue string) (map[Status]int, error)
}
