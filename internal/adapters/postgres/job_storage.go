package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/jobqueue"
)

// JobStorage implements jobqueue.Storage on the billing_jobs table.
// A transaction-scoped advisory lock per queue name serializes claims across processes,
// and a queue with a live processing job hands out nothing.
type JobStorage struct {
	db *DBExecutor
}

var _ jobqueue.Storage = (*JobStorage)(nil)

// NewJobStorage creates a new postgres job storage
func NewJobStorage(db *DBExecutor) *JobStorage {
	return &JobStorage{db: db}
}

const jobColumns = `id, queue, kind, payload, request_context, status, attempts, max_retries,
	run_at, created_at, locked_by, locked_until, processed_at, last_error`

func (s *JobStorage) CreateJob(ctx context.Context, job *jobqueue.Job) error {
	rc, err := json.Marshal(job.RequestContext)
	if err != nil {
		return fmt.Errorf("marshal request context: %w", err)
	}
	_, err = s.db.Conn(ctx).Exec(ctx, `
		INSERT INTO billing_jobs (id, queue, kind, payload, request_context, status, attempts, max_retries, run_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.Queue, string(job.Kind), []byte(job.Payload), rc, string(job.Status),
		job.Attempts, job.MaxRetries, job.RunAt, job.CreatedAt)
	if err != nil {
		return persistenceError(err, "create job")
	}
	return nil
}

func (s *JobStorage) ClaimJob(ctx context.Context, queue string, workerID uuid.UUID, lockDuration time.Duration) (*jobqueue.Job, error) {
	var claimed *jobqueue.Job
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var locked bool
		if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock(hashtext($1))`, queue).Scan(&locked); err != nil {
			return persistenceError(err, "acquire queue lock")
		}
		if !locked {
			return jobqueue.ErrNoJob
		}

		var running bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM billing_jobs
				WHERE queue = $1 AND status = 'processing' AND locked_until > NOW())`, queue).Scan(&running); err != nil {
			return persistenceError(err, "check running job")
		}
		if running {
			return jobqueue.ErrNoJob
		}

		row := tx.QueryRow(ctx, `
			UPDATE billing_jobs SET status = 'processing', locked_by = $2,
				locked_until = NOW() + make_interval(secs => $3)
			WHERE id = (
				SELECT id FROM billing_jobs
				WHERE queue = $1 AND status = 'pending' AND run_at <= NOW()
				ORDER BY run_at, created_at, seq
				LIMIT 1
				FOR UPDATE SKIP LOCKED
			)
			RETURNING `+jobColumns, queue, workerID, lockDuration.Seconds())
		job, err := scanJob(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return jobqueue.ErrNoJob
		}
		if err != nil {
			return persistenceError(err, "claim job")
		}
		claimed = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *JobStorage) CompleteJob(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Conn(ctx).Exec(ctx, `
		UPDATE billing_jobs SET status = 'completed', processed_at = NOW(), locked_by = NULL, locked_until = NULL
		WHERE id = $1`, id)
	if err != nil {
		return persistenceError(err, "complete job")
	}
	if tag.RowsAffected() == 0 {
		return jobqueue.ErrJobNotFound
	}
	return nil
}

func (s *JobStorage) FailJob(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error {
	var (
		tagRows int64
		err     error
	)
	if retryAt == nil {
		tag, execErr := s.db.Conn(ctx).Exec(ctx, `
			UPDATE billing_jobs SET status = 'failed', attempts = attempts + 1, last_error = $2,
				processed_at = NOW(), locked_by = NULL, locked_until = NULL
			WHERE id = $1`, id, errMsg)
		tagRows, err = tag.RowsAffected(), execErr
	} else {
		tag, execErr := s.db.Conn(ctx).Exec(ctx, `
			UPDATE billing_jobs SET status = 'pending', attempts = attempts + 1, last_error = $2,
				run_at = $3, locked_by = NULL, locked_until = NULL
			WHERE id = $1`, id, errMsg, *retryAt)
		tagRows, err = tag.RowsAffected(), execErr
	}
	if err != nil {
		return persistenceError(err, "fail job")
	}
	if tagRows == 0 {
		return jobqueue.ErrJobNotFound
	}
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, id uuid.UUID) (*jobqueue.Job, error) {
	job, err := scanJob(s.db.Conn(ctx).QueryRow(ctx, `SELECT `+jobColumns+` FROM billing_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, jobqueue.ErrJobNotFound
	}
	if err != nil {
		return nil, persistenceError(err, "get job")
	}
	return job, nil
}

func (s *JobStorage) ListJobs(ctx context.Context, queue string, status jobqueue.Status, limit int) ([]*jobqueue.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Conn(ctx).Query(ctx, `
		SELECT `+jobColumns+` FROM billing_jobs
		WHERE queue = $1 AND ($2 = '' OR status = $2)
		ORDER BY run_at, created_at, seq
		LIMIT $3`, queue, string(status), limit)
	if err != nil {
		return nil, persistenceError(err, "list jobs")
	}
	defer rows.Close()

	var jobs []*jobqueue.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, persistenceError(err, "scan job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError(err, "list jobs")
	}
	return jobs, nil
}

func (s *JobStorage) RequeueJob(ctx context.Context, id uuid.UUID) error {
	var status string
	err := s.db.Conn(ctx).QueryRow(ctx, `
		WITH target AS (SELECT id, status FROM billing_jobs WHERE id = $1 FOR UPDATE)
		UPDATE billing_jobs j SET
			status = CASE WHEN t.status = 'failed' THEN 'pending' ELSE j.status END,
			run_at = CASE WHEN t.status = 'failed' THEN NOW() ELSE j.run_at END,
			max_retries = CASE WHEN t.status = 'failed' THEN j.attempts ELSE j.max_retries END,
			processed_at = CASE WHEN t.status = 'failed' THEN NULL ELSE j.processed_at END
		FROM target t WHERE j.id = t.id
		RETURNING t.status`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return jobqueue.ErrJobNotFound
	}
	if err != nil {
		return persistenceError(err, "requeue job")
	}
	if jobqueue.Status(status) != jobqueue.StatusFailed {
		return jobqueue.ErrJobNotFailed
	}
	return nil
}

func (s *JobStorage) ReleaseExpiredLocks(ctx context.Context) (int, error) {
	tag, err := s.db.Conn(ctx).Exec(ctx, `
		UPDATE billing_jobs SET
			attempts = attempts + 1,
			last_error = 'lock expired before the job finished',
			status = CASE WHEN attempts + 1 <= max_retries THEN 'pending' ELSE 'failed' END,
			run_at = CASE WHEN attempts + 1 <= max_retries THEN NOW() ELSE run_at END,
			processed_at = CASE WHEN attempts + 1 <= max_retries THEN NULL ELSE NOW() END,
			locked_by = NULL,
			locked_until = NULL
		WHERE status = 'processing' AND locked_until <= NOW()`)
	if err != nil {
		return 0, persistenceError(err, "release expired locks")
	}
	return int(tag.RowsAffected()), nil
}

func (s *JobStorage) CountByStatus(ctx context.Context, queue string) (map[jobqueue.Status]int, error) {
	rows, err := s.db.Conn(ctx).Query(ctx,
		`SELECT status, COUNT(*) FROM billing_jobs WHERE queue = $1 GROUP BY status`, queue)
	if err != nil {
		return nil, persistenceError(err, "count jobs")
	}
	defer rows.Close()

	counts := make(map[jobqueue.Status]int)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, persistenceError(err, "scan job count")
		}
		counts[jobqueue.Status(status)] = int(n)
	}
	return counts, rows.Err()
}

func scanJob(row pgx.Row) (*jobqueue.Job, error) {
	var (
		job                      jobqueue.Job
		kind, status             string
		payload, rc              []byte
		lockedBy                 pgtype.UUID
		lockedUntil, processedAt pgtype.Timestamptz
		lastError                pgtype.Text
	)
	if err := row.Scan(&job.ID, &job.Queue, &kind, &payload, &rc, &status, &job.Attempts, &job.MaxRetries,
		&job.RunAt, &job.CreatedAt, &lockedBy, &lockedUntil, &processedAt, &lastError); err != nil {
		return nil, err
	}
	job.Kind = domain.JobKind(kind)
	job.Status = jobqueue.Status(status)
	job.Payload = json.RawMessage(payload)
	if len(rc) > 0 {
		if err := json.Unmarshal(rc, &job.RequestContext); err != nil {
			return nil, fmt.Errorf("unmarshal request context: %w", err)
		}
	}
	if lockedBy.Valid {
		id := uuid.UUID(lockedBy.Bytes)
		job.LockedBy = &id
	}
	job.LockedUntil = timePtr(lockedUntil)
	job.ProcessedAt = timePtr(processedAt)
	if lastError.Valid {
		msg := lastError.String
		job.LastError = &msg
	}
	return &job, nil
}
