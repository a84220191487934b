package subscription

import (
	"context"
	"fmt"

	"github.com/kevin07696/subscription-billing/internal/domain"
)

// LineSubscriptions are the provider subscriptions of one order line
type LineSubscriptions struct {
	LineID        string                        `json:"line_id"`
	VariantName   string                        `json:"variant_name"`
	Subscriptions []domain.ProviderSubscription `json:"subscriptions"`
}

// OrderSubscriptions fetches the current provider state of every subscription of an order
func (s *Service) OrderSubscriptions(ctx context.Context, channelToken, orderCode string) ([]LineSubscriptions, error) {
	channel, provider, err := s.providerFor(ctx, channelToken)
	if err != nil {
		return nil, err
	}
	order, err := s.findOrder(ctx, channel, orderCode)
	if err != nil {
		return nil, err
	}

	result := make([]LineSubscriptions, 0, len(order.Lines))
	for _, line := range order.Lines {
		if !line.HasSubscriptions() {
			continue
		}
		entry := LineSubscriptions{LineID: line.ID, VariantName: line.Variant.Name}
		for _, id := range line.SubscriptionIDs {
			sub, err := provider.GetSubscription(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("get subscription %s: %w", id, err)
			}
			entry.Subscriptions = append(entry.Subscriptions, *sub)
		}
		result = append(result, entry)
	}
	return result, nil
}

// ListPaymentEvents lists the payment event log of a channel
func (s *Service) ListPaymentEvents(ctx context.Context, channelToken string, filter domain.PaymentEventFilter) ([]domain.PaymentEvent, error) {
	channel, err := s.channels.Resolve(ctx, channelToken)
	if err != nil {
		return nil, err
	}
	filter.ChannelID = channel.ID
	return s.paymentEvents.List(ctx, filter)
}

// OrderHistory returns the history entries of an order
func (s *Service) OrderHistory(ctx context.Context, channelToken, orderCode string) ([]domain.HistoryEntry, error) {
	channel, err := s.channels.Resolve(ctx, channelToken)
	if err != nil {
		return nil, err
	}
	order, err := s.findOrder(ctx, channel, orderCode)
	if err != nil {
		return nil, err
	}
	return s.history.ListOrderHistory(ctx, order.ID)
}
