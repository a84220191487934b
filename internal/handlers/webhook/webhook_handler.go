// Package webhook receives billing provider notifications over HTTP
package webhook

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/handlers/response"
	"github.com/kevin07696/subscription-billing/internal/services/ports"
)

const (
	// SignatureHeader carries the provider's HMAC signature
	SignatureHeader = "Stripe-Signature"
	maxBodyBytes    = 1 << 20
)

// Handler serves the provider webhook endpoint
type Handler struct {
	service ports.WebhookService
	logger  *zap.Logger
}

// NewHandler creates a new webhook handler
func NewHandler(service ports.WebhookService, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// HandleWebhook handles POST /stripe-subscriptions/webhook.
// The raw body is passed on untouched since the signature covers its exact bytes.
// Deliveries the service acknowledges answer 200, so the provider stops redelivering them;
// everything else answers an error status and gets redelivered.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Message(w, h.logger, http.StatusRequestEntityTooLarge, "webhook body too large")
			return
		}
		response.Message(w, h.logger, http.StatusBadRequest, "failed to read webhook body")
		return
	}

	result, err := h.service.HandleWebhook(r.Context(), body, r.Header.Get(SignatureHeader))
	if result.Acknowledged {
		if err != nil {
			h.logger.Warn("Acknowledged webhook that cannot be processed",
				zap.String("event_id", result.EventID),
				zap.String("outcome", string(result.Outcome)),
				zap.Error(err))
		}
		response.JSON(w, h.logger, http.StatusOK, result)
		return
	}
	if err == nil {
		err = errors.New("webhook was not processed")
	}
	response.WithStatus(w, h.logger, statusFor(err), err)
}

func statusFor(err error) int {
	switch {
	case domain.IsSignatureError(err):
		return http.StatusBadRequest
	case domain.IsValidationError(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
