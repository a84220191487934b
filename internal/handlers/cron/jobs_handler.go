package cron

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kevin07696/subscription-billing/internal/jobqueue"
	"github.com/kevin07696/subscription-billing/pkg/timeutil"
)

// LockReleaser recovers jobs whose worker died while holding the lock
type LockReleaser interface {
	ReleaseExpiredLocks(ctx context.Context) (int, error)
}

// StatsSource counts the jobs of a queue per status
type StatsSource interface {
	CountByStatus(ctx context.Context, queue string) (map[jobqueue.Status]int, error)
}

// JobsHandler handles cron job endpoints for the billing queue
type JobsHandler struct {
	releaser   LockReleaser
	stats      StatsSource
	queue      string
	clock      timeutil.Clock
	logger     *zap.Logger
	cronSecret string // Secret token for authenticating cron requests
}

// NewJobsHandler creates a new jobs cron handler
func NewJobsHandler(
	releaser LockReleaser,
	stats StatsSource,
	queue string,
	logger *zap.Logger,
	cronSecret string,
) *JobsHandler {
	return &JobsHandler{
		releaser:   releaser,
		stats:      stats,
		queue:      queue,
		clock:      timeutil.SystemClock{},
		logger:     logger,
		cronSecret: cronSecret,
	}
}

// ReleaseLocksResponse represents the response from a lock release run
type ReleaseLocksResponse struct {
	Success     bool   `json:"success"`
	Released    int    `json:"released"`
	ProcessedAt string `json:"processed_at"`
}

// ReleaseExpiredLocks handles the POST /cron/release-expired-locks endpoint.
// Released jobs count the lost run as a failed attempt and go back to pending or to failed.
func (h *JobsHandler) ReleaseExpiredLocks(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Release expired locks cron job triggered",
		zap.String("method", r.Method),
		zap.String("remote_addr", r.RemoteAddr),
	)

	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}

	if !h.authenticateRequest(r) {
		h.logger.Warn("Unauthorized cron request",
			zap.String("remote_addr", r.RemoteAddr),
		)
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	released, err := h.releaser.ReleaseExpiredLocks(r.Context())
	if err != nil {
		h.logger.Error("Failed to release expired locks", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to release expired locks")
		return
	}

	h.logger.Info("Expired locks released", zap.Int("released", released))
	h.respond(w, http.StatusOK, ReleaseLocksResponse{
		Success:     true,
		Released:    released,
		ProcessedAt: h.clock.Now().Format(time.RFC3339),
	})
}

// Stats handles GET /cron/jobs/stats for monitoring the billing queue
func (h *JobsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.authenticateRequest(r) {
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	counts, err := h.stats.CountByStatus(r.Context(), h.queue)
	if err != nil {
		h.logger.Error("Failed to count jobs", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{
		"queue":      h.queue,
		"pending":    counts[jobqueue.StatusPending],
		"processing": counts[jobqueue.StatusProcessing],
		"completed":  counts[jobqueue.StatusCompleted],
		"failed":     counts[jobqueue.StatusFailed],
		"time":       h.clock.Now().Format(time.RFC3339),
	})
}

// HealthCheck handles GET /cron/health for monitoring
func (h *JobsHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	h.respond(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   h.clock.Now().Format(time.RFC3339),
	})
}

// authenticateRequest verifies the cron request is authorized
func (h *JobsHandler) authenticateRequest(r *http.Request) bool {
	if h.cronSecret == "" {
		return false
	}

	// Check X-Cron-Secret header
	if secret := r.Header.Get("X-Cron-Secret"); secret != "" && equal(secret, h.cronSecret) {
		return true
	}

	// Check Authorization header (Bearer token)
	return equal(r.Header.Get("Authorization"), "Bearer "+h.cronSecret)
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (h *JobsHandler) respond(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// respondError sends an error response
func (h *JobsHandler) respondError(w http.ResponseWriter, statusCode int, message string) {
	h.respond(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
