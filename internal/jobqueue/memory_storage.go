package jobqueue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is a process-local Storage for tests and single-instance development
type MemoryStorage struct {
	jobs map[uuid.UUID]*Job
	now  func() time.Time
	// insertion order breaks ties between equal RunAt and CreatedAt
	seq  map[uuid.UUID]int64
	next int64
	mu   sync.Mutex
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		jobs: make(map[uuid.UUID]*Job),
		seq:  make(map[uuid.UUID]int64),
		now:  time.Now,
	}
}

// SetClock overrides the storage clock, for tests
func (ms *MemoryStorage) SetClock(now func() time.Time) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.now = now
}

func (ms *MemoryStorage) CreateJob(_ context.Context, job *Job) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	c := *job
	ms.jobs[job.ID] = &c
	ms.seq[job.ID] = ms.next
	ms.next++
	return nil
}

func (ms *MemoryStorage) ClaimJob(_ context.Context, queue string, workerID uuid.UUID, lockDuration time.Duration) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now().UTC()
	var best *Job
	for _, job := range ms.jobs {
		if job.Queue != queue {
			continue
		}
		if job.Status == StatusProcessing && job.LockedUntil != nil && job.LockedUntil.After(now) {
			// one running job per queue
			return nil, ErrNoJob
		}
		if job.Status != StatusPending || job.RunAt.After(now) {
			continue
		}
		if best == nil || ms.before(job, best) {
			best = job
		}
	}
	if best == nil {
		return nil, ErrNoJob
	}

	lockedUntil := now.Add(lockDuration)
	best.Status = StatusProcessing
	best.LockedBy = &workerID
	best.LockedUntil = &lockedUntil

	c := *best
	return &c, nil
}

func (ms *MemoryStorage) before(a, b *Job) bool {
	if !a.RunAt.Equal(b.RunAt) {
		return a.RunAt.Before(b.RunAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return ms.seq[a.ID] < ms.seq[b.ID]
}

func (ms *MemoryStorage) CompleteJob(_ context.Context, id uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, ok := ms.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	now := ms.now().UTC()
	job.Status = StatusCompleted
	job.ProcessedAt = &now
	job.LockedBy = nil
	job.LockedUntil = nil
	return nil
}

func (ms *MemoryStorage) FailJob(_ context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, ok := ms.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	ms.fail(job, errMsg, retryAt)
	return nil
}

func (ms *MemoryStorage) fail(job *Job, errMsg string, retryAt *time.Time) {
	job.Attempts++
	job.LastError = &errMsg
	job.LockedBy = nil
	job.LockedUntil = nil

	if retryAt == nil {
		now := ms.now().UTC()
		job.Status = StatusFailed
		job.ProcessedAt = &now
		return
	}
	job.Status = StatusPending
	job.RunAt = *retryAt
}

func (ms *MemoryStorage) GetJob(_ context.Context, id uuid.UUID) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, ok := ms.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	c := *job
	return &c, nil
}

func (ms *MemoryStorage) ListJobs(_ context.Context, queue string, status Status, limit int) ([]*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var jobs []*Job
	for _, job := range ms.jobs {
		if job.Queue != queue || (status != "" && job.Status != status) {
			continue
		}
		c := *job
		jobs = append(jobs, &c)
	}
	sort.Slice(jobs, func(i, j int) bool { return ms.before(jobs[i], jobs[j]) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (ms *MemoryStorage) RequeueJob(_ context.Context, id uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, ok := ms.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status != StatusFailed {
		return ErrJobNotFailed
	}
	job.Status = StatusPending
	job.RunAt = ms.now().UTC()
	job.MaxRetries = job.Attempts
	job.ProcessedAt = nil
	return nil
}

func (ms *MemoryStorage) ReleaseExpiredLocks(_ context.Context) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now().UTC()
	released := 0
	for _, job := range ms.jobs {
		if job.Status != StatusProcessing || job.LockedUntil == nil || job.LockedUntil.After(now) {
			continue
		}
		var retryAt *time.Time
		if job.RetriesLeft() {
			retryAt = &now
		}
		ms.fail(job, "lock expired before the job finished", retryAt)
		released++
	}
	return released, nil
}

func (ms *MemoryStorage) CountByStatus(_ context.Context, queue string) (map[Status]int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	counts := make(map[Status]int)
	for _, job := range ms.jobs {
		if job.Queue == queue {
			counts[job.Status]++
		}
	}
	return counts, nil
}
