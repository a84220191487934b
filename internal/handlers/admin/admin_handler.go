// Package admin serves the operator endpoints: schedules, payment events, order subscriptions and jobs
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/handlers/response"
	"github.com/kevin07696/subscription-billing/internal/jobqueue"
	"github.com/kevin07696/subscription-billing/internal/services/ports"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// JobStore is the part of the job storage the admin endpoints inspect and repair
type JobStore interface {
	ListJobs(ctx context.Context, queue string, status jobqueue.Status, limit int) ([]*jobqueue.Job, error)
	RequeueJob(ctx context.Context, id uuid.UUID) error
	CountByStatus(ctx context.Context, queue string) (map[jobqueue.Status]int, error)
}

// Handler serves the admin API
type Handler struct {
	schedules     ports.ScheduleService
	subscriptions ports.SubscriptionAdminService
	jobs          JobStore
	queue         string
	token         string
	validate      *validator.Validate
	logger        *zap.Logger
}

// Config holds admin endpoint settings
type Config struct {
	// Token is the bearer token every admin request must present
	Token string
	Queue string
}

// NewHandler creates a new admin handler
func NewHandler(cfg Config, schedules ports.ScheduleService, subscriptions ports.SubscriptionAdminService, jobs JobStore, logger *zap.Logger) *Handler {
	queue := cfg.Queue
	if queue == "" {
		queue = domain.BillingQueueName
	}
	return &Handler{
		schedules:     schedules,
		subscriptions: subscriptions,
		jobs:          jobs,
		queue:         queue,
		token:         cfg.Token,
		validate:      validator.New(),
		logger:        logger,
	}
}

// Routes mounts the admin endpoints behind bearer authentication
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.authenticate)

	r.Get("/schedules", h.ListSchedules)
	r.Put("/schedules", h.UpsertSchedule)
	r.Delete("/schedules/{id}", h.DeleteSchedule)

	r.Get("/payment-events", h.ListPaymentEvents)
	r.Get("/orders/{code}/subscriptions", h.OrderSubscriptions)
	r.Get("/orders/{code}/history", h.OrderHistory)

	r.Get("/jobs", h.ListJobs)
	r.Get("/jobs/stats", h.JobStats)
	r.Post("/jobs/{id}/requeue", h.RequeueJob)
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if h.token == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(h.token)) != 1 {
			h.logger.Warn("Unauthorized admin request", zap.String("remote_addr", r.RemoteAddr))
			response.Message(w, h.logger, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListSchedules handles GET /admin/schedules
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	token, ok := response.ChannelToken(w, r, h.logger)
	if !ok {
		return
	}
	schedules, err := h.schedules.List(r.Context(), token)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, h.logger, http.StatusOK, map[string]interface{}{"schedules": schedules})
}

// UpsertSchedule handles PUT /admin/schedules. A body without id creates a schedule.
func (h *Handler) UpsertSchedule(w http.ResponseWriter, r *http.Request) {
	token, ok := response.ChannelToken(w, r, h.logger)
	if !ok {
		return
	}
	var schedule domain.Schedule
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&schedule); err != nil {
		response.Message(w, h.logger, http.StatusBadRequest, "invalid schedule body: "+err.Error())
		return
	}

	saved, err := h.schedules.Upsert(r.Context(), token, schedule)
	if err != nil {
		status := response.StatusCode(err)
		if domain.IsDomainError(err, domain.ErrorCodeConfigInvalidSchedule) {
			// an invalid schedule here is the caller's input, not server configuration
			status = http.StatusUnprocessableEntity
		}
		response.WithStatus(w, h.logger, status, err)
		return
	}
	response.JSON(w, h.logger, http.StatusOK, saved)
}

// DeleteSchedule handles DELETE /admin/schedules/{id}
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	token, ok := response.ChannelToken(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.schedules.Delete(r.Context(), token, chi.URLParam(r, "id")); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// paymentEventQuery holds the filters of the payment event listing
type paymentEventQuery struct {
	OrderCode string `validate:"omitempty,max=255"`
	EventType string `validate:"omitempty,oneof=invoice.payment_succeeded invoice.payment_failed invoice.payment_action_required"`
	Limit     int    `validate:"gte=1,lte=500"`
	Offset    int    `validate:"gte=0"`
}

// ListPaymentEvents handles GET /admin/payment-events
func (h *Handler) ListPaymentEvents(w http.ResponseWriter, r *http.Request) {
	token, ok := response.ChannelToken(w, r, h.logger)
	if !ok {
		return
	}
	limit, err := intParam(r, "limit", defaultListLimit)
	if err != nil {
		response.Message(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		response.Message(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	q := paymentEventQuery{
		OrderCode: r.URL.Query().Get("order_code"),
		EventType: r.URL.Query().Get("event_type"),
		Limit:     limit,
		Offset:    offset,
	}
	if err := h.validate.Struct(q); err != nil {
		response.Message(w, h.logger, http.StatusBadRequest, "invalid filter: "+err.Error())
		return
	}

	events, err := h.subscriptions.ListPaymentEvents(r.Context(), token, domain.PaymentEventFilter{
		OrderCode: q.OrderCode,
		EventType: q.EventType,
		Limit:     q.Limit,
		Offset:    q.Offset,
	})
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, h.logger, http.StatusOK, map[string]interface{}{"payment_events": events})
}

// OrderSubscriptions handles GET /admin/orders/{code}/subscriptions
func (h *Handler) OrderSubscriptions(w http.ResponseWriter, r *http.Request) {
	token, ok := response.ChannelToken(w, r, h.logger)
	if !ok {
		return
	}
	subs, err := h.subscriptions.OrderSubscriptions(r.Context(), token, chi.URLParam(r, "code"))
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, h.logger, http.StatusOK, map[string]interface{}{"lines": subs})
}

// OrderHistory handles GET /admin/orders/{code}/history
func (h *Handler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	token, ok := response.ChannelToken(w, r, h.logger)
	if !ok {
		return
	}
	entries, err := h.subscriptions.OrderHistory(r.Context(), token, chi.URLParam(r, "code"))
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, h.logger, http.StatusOK, map[string]interface{}{"history": entries})
}

// ListJobs handles GET /admin/jobs?status=failed
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := jobqueue.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = jobqueue.StatusFailed
	}
	switch status {
	case jobqueue.StatusPending, jobqueue.StatusProcessing, jobqueue.StatusCompleted, jobqueue.StatusFailed:
	default:
		response.Message(w, h.logger, http.StatusBadRequest, "unknown job status "+string(status))
		return
	}
	limit, err := intParam(r, "limit", defaultListLimit)
	if err != nil || limit < 1 || limit > maxListLimit {
		response.Message(w, h.logger, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}

	jobs, err := h.jobs.ListJobs(r.Context(), h.queue, status, limit)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, h.logger, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// JobStats handles GET /admin/jobs/stats
func (h *Handler) JobStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.jobs.CountByStatus(r.Context(), h.queue)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, h.logger, http.StatusOK, map[string]interface{}{"queue": h.queue, "counts": counts})
}

// RequeueJob handles POST /admin/jobs/{id}/requeue; only dead jobs can be requeued
func (h *Handler) RequeueJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Message(w, h.logger, http.StatusBadRequest, "invalid job id")
		return
	}

	err = h.jobs.RequeueJob(r.Context(), id)
	switch {
	case errors.Is(err, jobqueue.ErrJobNotFound):
		response.Message(w, h.logger, http.StatusNotFound, err.Error())
	case errors.Is(err, jobqueue.ErrJobNotFailed):
		response.Message(w, h.logger, http.StatusConflict, err.Error())
	case err != nil:
		response.Error(w, h.logger, err)
	default:
		h.logger.Info("Requeued job", zap.String("job_id", id.String()))
		response.JSON(w, h.logger, http.StatusAccepted, map[string]interface{}{"job_id": id, "status": jobqueue.StatusPending})
	}
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return v, nil
}
