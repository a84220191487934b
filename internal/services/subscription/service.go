// Package subscription orchestrates provider subscriptions for orders: webhook ingress,
// the creation and cancellation jobs, pricing previews and payment intents.
package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
	"github.com/kevin07696/subscription-billing/internal/jobqueue"
	"github.com/kevin07696/subscription-billing/pkg/resilience"
)

var _ jobqueue.BillingHandlers = (*Service)(nil)

// Dependencies are the collaborators of the orchestrator
type Dependencies struct {
	Orders        ports.OrderRepository
	History       ports.HistoryRepository
	PaymentEvents ports.PaymentEventRepository
	Promotions    ports.PromotionSource
	Channels      ports.ChannelResolver
	Providers     ports.BillingProviderFactory
	Jobs          ports.JobEnqueuer
}

// Config holds orchestrator settings
type Config struct {
	Timeouts *resilience.TimeoutConfig
	// Now anchors pricing and downpayment cadence; defaults to time.Now in UTC
	Now func() time.Time
}

// Service is the subscription orchestrator
type Service struct {
	orders        ports.OrderRepository
	history       ports.HistoryRepository
	paymentEvents ports.PaymentEventRepository
	promotions    ports.PromotionSource
	channels      ports.ChannelResolver
	providers     ports.BillingProviderFactory
	jobs          ports.JobEnqueuer
	logger        ports.Logger
	timeouts      *resilience.TimeoutConfig
	now           func() time.Time
}

// NewService creates a new subscription orchestrator
func NewService(cfg Config, deps Dependencies, logger ports.Logger) *Service {
	timeouts := cfg.Timeouts
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		orders:        deps.Orders,
		history:       deps.History,
		paymentEvents: deps.PaymentEvents,
		promotions:    deps.Promotions,
		channels:      deps.Channels,
		providers:     deps.Providers,
		jobs:          deps.Jobs,
		logger:        logger,
		timeouts:      timeouts,
		now:           now,
	}
}

// providerFor resolves the channel and binds the provider client to its credentials
func (s *Service) providerFor(ctx context.Context, channelToken string) (*domain.Channel, ports.BillingProvider, error) {
	channel, err := s.channels.Resolve(ctx, channelToken)
	if err != nil {
		return nil, nil, err
	}
	provider, err := s.providers.ForChannel(channel)
	if err != nil {
		return nil, nil, err
	}
	return channel, provider, nil
}

// findOrder loads an order of the channel; a missing order is a validation failure
func (s *Service) findOrder(ctx context.Context, channel *domain.Channel, code string) (*domain.Order, error) {
	order, err := s.orders.FindOrderByCode(ctx, channel.ID, code)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.WrapError(domain.ErrorCodeValidationOrderNotFound, "order not found", err).
			WithDetail("order_code", code).
			WithDetail("channel_token", channel.Token)
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}
