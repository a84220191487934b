package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

// EnqueueOption configures a single enqueue
type EnqueueOption func(*Job)

// WithRetries sets how many times a failed job is retried. Zero means one attempt only.
func WithRetries(n int) EnqueueOption {
	return func(j *Job) {
		if n >= 0 {
			j.MaxRetries = n
		}
	}
}

// WithDelay postpones the first attempt
func WithDelay(d time.Duration) EnqueueOption {
	return func(j *Job) {
		if d > 0 {
			j.RunAt = j.RunAt.Add(d)
		}
	}
}

// Queue enqueues jobs onto one named queue
type Queue struct {
	storage  Storage
	notifier Notifier
	logger   ports.Logger
	now      func() time.Time
	name     string
}

// NewQueue creates a queue; notifier may be nil, workers then rely on polling
func NewQueue(storage Storage, name string, notifier Notifier, logger ports.Logger) (*Queue, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	return &Queue{
		storage:  storage,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		name:     name,
	}, nil
}

// Name returns the queue name
func (q *Queue) Name() string {
	return q.name
}

// Enqueue stores a job of the given kind with the JSON-encoded payload
func (q *Queue) Enqueue(ctx context.Context, kind domain.JobKind, payload any, rc domain.RequestContext, opts ...EnqueueOption) (ports.JobHandle, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return ports.JobHandle{}, fmt.Errorf("%w: %v", ErrPayloadMarshal, err)
	}

	now := q.now().UTC()
	job := &Job{
		ID:             uuid.New(),
		Queue:          q.name,
		Kind:           kind,
		Payload:        raw,
		RequestContext: rc,
		Status:         StatusPending,
		MaxRetries:     DefaultMaxRetries,
		RunAt:          now,
		CreatedAt:      now,
	}
	for _, opt := range opts {
		opt(job)
	}

	if err := q.storage.CreateJob(ctx, job); err != nil {
		return ports.JobHandle{}, fmt.Errorf("failed to store job: %w", err)
	}

	q.logger.Info("Job enqueued",
		ports.String("job_id", job.ID.String()),
		ports.String("queue", q.name),
		ports.String("kind", string(kind)),
		ports.Int("max_retries", job.MaxRetries))

	if q.notifier != nil {
		if err := q.notifier.Notify(ctx, q.name); err != nil {
			// workers still pick the job up on the next poll
			q.logger.Warn("Failed to notify workers", ports.String("queue", q.name), ports.Err(err))
		}
	}

	return ports.JobHandle{ID: job.ID.String(), Queue: q.name}, nil
}
