// Package storefront serves the checkout endpoints of the storefront
package storefront

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kevin07696/subscription-billing/internal/handlers/response"
	"github.com/kevin07696/subscription-billing/internal/services/ports"
	"github.com/kevin07696/subscription-billing/internal/services/subscription"
)

// Handler serves pricing previews and payment intents
type Handler struct {
	service  ports.StorefrontService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler creates a new storefront handler
func NewHandler(service ports.StorefrontService, logger *zap.Logger) *Handler {
	return &Handler{service: service, validate: validator.New(), logger: logger}
}

// Routes mounts the storefront endpoints
func (h *Handler) Routes(r chi.Router) {
	r.Get("/variants/{variantID}/pricing", h.PricingForVariant)
	r.Post("/orders/{code}/payment-intent", h.CreatePaymentIntent)
}

// pricingQuery holds the optional query parameters of a pricing preview
type pricingQuery struct {
	StartDate   string `validate:"omitempty,datetime=2006-01-02"`
	Downpayment string `validate:"omitempty,number"`
}

// PricingForVariant handles GET /storefront/variants/{variantID}/pricing
func (h *Handler) PricingForVariant(w http.ResponseWriter, r *http.Request) {
	token, ok := response.ChannelToken(w, r, h.logger)
	if !ok {
		return
	}

	q := pricingQuery{
		StartDate:   r.URL.Query().Get("start_date"),
		Downpayment: r.URL.Query().Get("downpayment"),
	}
	if err := h.validate.Struct(q); err != nil {
		response.Message(w, h.logger, http.StatusBadRequest, "start_date must be YYYY-MM-DD and downpayment a whole number of minor units")
		return
	}

	var opts subscription.PricingOptions
	if q.StartDate != "" {
		start, err := time.Parse(time.DateOnly, q.StartDate)
		if err != nil {
			response.Message(w, h.logger, http.StatusBadRequest, "invalid start_date")
			return
		}
		opts.StartDate = &start
	}
	if q.Downpayment != "" {
		amount, err := strconv.ParseInt(q.Downpayment, 10, 64)
		if err != nil {
			response.Message(w, h.logger, http.StatusBadRequest, "invalid downpayment")
			return
		}
		opts.Downpayment = &amount
	}
	if err := h.validate.Struct(opts); err != nil {
		response.Message(w, h.logger, http.StatusBadRequest, "downpayment must not be negative")
		return
	}

	pricing, err := h.service.PricingForVariant(r.Context(), token, chi.URLParam(r, "variantID"), opts)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, h.logger, http.StatusOK, pricing)
}

// PaymentIntentResponse carries the client secret the storefront confirms the payment with
type PaymentIntentResponse struct {
	ClientSecret string `json:"client_secret"`
}

// CreatePaymentIntent handles POST /storefront/orders/{code}/payment-intent
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	token, ok := response.ChannelToken(w, r, h.logger)
	if !ok {
		return
	}
	code := chi.URLParam(r, "code")

	secret, err := h.service.CreatePaymentIntent(r.Context(), token, code)
	if err != nil {
		h.logger.Warn("Failed to create payment intent", zap.String("order_code", code), zap.Error(err))
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, h.logger, http.StatusCreated, PaymentIntentResponse{ClientSecret: secret})
}
