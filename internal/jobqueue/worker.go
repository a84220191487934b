package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
	"github.com/kevin07696/subscription-billing/pkg/observability"
	"github.com/kevin07696/subscription-billing/pkg/resilience"
	"github.com/kevin07696/subscription-billing/pkg/shutdown"
)

// HandlerFunc runs one job. Returning nil completes it.
type HandlerFunc func(ctx context.Context, job *Job) error

// Typed decodes the job payload into T before calling fn. A payload that does not decode fails permanently.
func Typed[T any](fn func(ctx context.Context, rc domain.RequestContext, payload T) error) HandlerFunc {
	return func(ctx context.Context, job *Job) error {
		var payload T
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return Permanent(fmt.Errorf("decode %s payload: %w", job.Kind, err))
		}
		return fn(ctx, job.RequestContext, payload)
	}
}

// WorkerOption configures a Worker
type WorkerOption func(*Worker)

// WithPollInterval sets how often an idle worker checks storage
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithLockTimeout sets how long a claimed job stays locked
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.lockTimeout = d
		}
	}
}

// WithBackoff sets the delay between attempts of a failing job
func WithBackoff(b resilience.BackoffStrategy) WorkerOption {
	return func(w *Worker) {
		if b != nil {
			w.backoff = b
		}
	}
}

// WithNotifier lets enqueues wake the worker before the next poll
func WithNotifier(n Notifier) WorkerOption {
	return func(w *Worker) { w.notifier = n }
}

// WithTimeouts sets the per-job execution timeout
func WithTimeouts(tc *resilience.TimeoutConfig) WorkerOption {
	return func(w *Worker) {
		if tc != nil {
			w.timeouts = tc
		}
	}
}

// WithTracker registers running jobs with an in-flight tracker
func WithTracker(t *shutdown.InFlightTracker) WorkerOption {
	return func(w *Worker) { w.tracker = t }
}

// Worker runs the jobs of one queue strictly one at a time
type Worker struct {
	storage      Storage
	notifier     Notifier
	backoff      resilience.BackoffStrategy
	logger       ports.Logger
	tracer       trace.Tracer
	tracker      *shutdown.InFlightTracker
	timeouts     *resilience.TimeoutConfig
	handlers     map[domain.JobKind]HandlerFunc
	now          func() time.Time
	queue        string
	pollInterval time.Duration
	lockTimeout  time.Duration
	mu           sync.RWMutex
	workerID     uuid.UUID
}

// NewWorker creates a worker for the named queue
func NewWorker(storage Storage, queue string, logger ports.Logger, opts ...WorkerOption) (*Worker, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}

	w := &Worker{
		storage:      storage,
		queue:        queue,
		logger:       logger,
		handlers:     make(map[domain.JobKind]HandlerFunc),
		backoff:      resilience.JobRetryBackoff(),
		timeouts:     resilience.DefaultTimeoutConfig(),
		tracer:       otel.Tracer("github.com/kevin07696/subscription-billing/internal/jobqueue"),
		now:          time.Now,
		pollInterval: 2 * time.Second,
		lockTimeout:  5 * time.Minute,
		workerID:     uuid.New(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// OnJob registers the handler for a job kind, replacing any previous one
func (w *Worker) OnJob(kind domain.JobKind, handler HandlerFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[kind] = handler
}

// Run processes jobs until ctx is cancelled. The job running at that moment is allowed to finish.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.RLock()
	handlerCount := len(w.handlers)
	w.mu.RUnlock()
	if handlerCount == 0 {
		return ErrNoHandlers
	}

	var wake <-chan struct{}
	if w.notifier != nil {
		ch, err := w.notifier.Subscribe(ctx, w.queue)
		if err != nil {
			w.logger.Warn("Job notifier unavailable, polling only",
				ports.String("queue", w.queue), ports.Err(err))
		} else {
			wake = ch
		}
	}

	w.logger.Info("Job worker started",
		ports.String("queue", w.queue),
		ports.String("worker_id", w.workerID.String()),
		ports.Duration("poll_interval", w.pollInterval))

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.drain(ctx)

		select {
		case <-ctx.Done():
			w.logger.Info("Job worker stopped", ports.String("queue", w.queue))
			return nil
		case <-ticker.C:
		case _, ok := <-wake:
			if !ok {
				wake = nil
			}
		}
	}
}

// drain runs ready jobs back to back until the queue is empty or ctx ends
func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		processed, err := w.ProcessNext(ctx)
		if err != nil {
			w.logger.Error("Failed to process job", ports.String("queue", w.queue), ports.Err(err))
			return
		}
		if !processed {
			return
		}
	}
}

// ProcessNext claims and runs a single job. It reports false when nothing was ready.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	if w.tracker != nil {
		if !w.tracker.Add() {
			return false, nil
		}
		defer w.tracker.Done()
	}

	job, err := w.storage.ClaimJob(ctx, w.queue, w.workerID, w.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrNoJob) {
			return false, nil
		}
		return false, fmt.Errorf("claim job: %w", err)
	}

	return true, w.execute(ctx, job)
}

func (w *Worker) execute(parent context.Context, job *Job) error {
	start := time.Now()

	// detached from the worker context so shutdown lets the running job finish
	ctx, cancel := w.timeouts.JobContext(context.WithoutCancel(parent))
	defer cancel()

	ctx, span := w.tracer.Start(ctx, "job "+string(job.Kind),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("job.id", job.ID.String()),
			attribute.String("job.queue", job.Queue),
			attribute.String("job.kind", string(job.Kind)),
			attribute.Int("job.attempt", job.Attempts+1),
			attribute.String("channel.token", job.RequestContext.ChannelToken),
		))
	defer span.End()

	jobErr := w.invoke(ctx, job)
	elapsed := time.Since(start)

	if jobErr == nil {
		span.SetStatus(codes.Ok, "")
		observability.RecordJob(job.Queue, string(job.Kind), "completed", elapsed.Seconds())
		w.logger.Info("Job completed",
			ports.String("job_id", job.ID.String()),
			ports.String("kind", string(job.Kind)),
			ports.Duration("elapsed", elapsed))
		return w.storage.CompleteJob(context.WithoutCancel(parent), job.ID)
	}

	span.RecordError(jobErr)
	span.SetStatus(codes.Error, jobErr.Error())

	var retryAt *time.Time
	if job.RetriesLeft() && !IsPermanent(jobErr) {
		at := w.now().UTC().Add(w.backoff.NextDelay(job.Attempts))
		retryAt = &at
	}

	fields := []ports.Field{
		ports.String("job_id", job.ID.String()),
		ports.String("kind", string(job.Kind)),
		ports.String("channel_token", job.RequestContext.ChannelToken),
		ports.Int("attempt", job.Attempts+1),
		ports.Int("max_retries", job.MaxRetries),
		ports.Duration("elapsed", elapsed),
		ports.Err(jobErr),
	}
	if retryAt != nil {
		observability.RecordJob(job.Queue, string(job.Kind), "retrying", elapsed.Seconds())
		w.logger.Warn("Job failed, retry scheduled", append(fields, ports.String("retry_at", retryAt.Format(time.RFC3339)))...)
	} else {
		observability.RecordJob(job.Queue, string(job.Kind), "failed", elapsed.Seconds())
		w.logger.Error("Job failed permanently", fields...)
	}

	return w.storage.FailJob(context.WithoutCancel(parent), job.ID, jobErr.Error(), retryAt)
}

func (w *Worker) invoke(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job handler: %v", r)
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[job.Kind]
	w.mu.RUnlock()
	if !ok {
		return Permanent(fmt.Errorf("%w: %s", ErrHandlerNotFound, job.Kind))
	}
	return handler(ctx, job)
}

// ReleaseExpiredLocks recovers jobs abandoned by a crashed worker
func (w *Worker) ReleaseExpiredLocks(ctx context.Context) (int, error) {
	n, err := w.storage.ReleaseExpiredLocks(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		w.logger.Warn("Released expired job locks", ports.String("queue", w.queue), ports.Int("count", n))
	}
	return n, nil
}
