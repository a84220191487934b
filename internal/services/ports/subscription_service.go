package ports

import (
	"context"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/services/subscription"
)

// WebhookService handles inbound provider notifications
type WebhookService interface {
	HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader string) (subscription.WebhookResult, error)
}

// StorefrontService serves the customer facing checkout operations
type StorefrontService interface {
	PricingForVariant(ctx context.Context, channelToken, variantID string, opts subscription.PricingOptions) (*subscription.VariantPricing, error)
	CreatePaymentIntent(ctx context.Context, channelToken, orderCode string) (string, error)
}

// SubscriptionAdminService serves the operator views of orders and payments
type SubscriptionAdminService interface {
	OrderSubscriptions(ctx context.Context, channelToken, orderCode string) ([]subscription.LineSubscriptions, error)
	OrderHistory(ctx context.Context, channelToken, orderCode string) ([]domain.HistoryEntry, error)
	ListPaymentEvents(ctx context.Context, channelToken string, filter domain.PaymentEventFilter) ([]domain.PaymentEvent, error)
}

// ScheduleService manages schedules of a channel
type ScheduleService interface {
	Upsert(ctx context.Context, channelToken string, schedule domain.Schedule) (*domain.Schedule, error)
	Delete(ctx context.Context, channelToken, id string) error
	List(ctx context.Context, channelToken string) ([]domain.Schedule, error)
}
