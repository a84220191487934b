package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

// OnOrderLineCreated gives lines of scheduled variants a unique subscription hash, so the same
// variant added twice stays two lines with their own subscriptions.
func (s *Service) OnOrderLineCreated(ctx context.Context, event domain.OrderLineCreatedEvent) error {
	line, err := s.orders.FindOrderLineByID(ctx, event.OrderLineID)
	if err != nil {
		return fmt.Errorf("load created order line %s: %w", event.OrderLineID, err)
	}
	if !line.IsSubscription() || line.SubscriptionHash != "" {
		return nil
	}
	return s.orders.SetSubscriptionHash(ctx, line.ID, uuid.NewString())
}

// OnStockMovement enqueues a cancellation job for every subscribed line of a release or cancellation
func (s *Service) OnStockMovement(ctx context.Context, event domain.StockMovementEvent) error {
	if !event.Type.CancelsSubscriptions() {
		return nil
	}

	rc := domain.RequestContext{ChannelToken: event.ChannelToken}
	var failures []error
	for _, lineID := range event.OrderLineIDs {
		line, err := s.orders.FindOrderLineByID(ctx, lineID)
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("Stock movement references unknown order line", ports.String("line_id", lineID))
			continue
		}
		if err != nil {
			failures = append(failures, fmt.Errorf("load order line %s: %w", lineID, err))
			continue
		}
		if !line.HasSubscriptions() {
			continue
		}
		handle, err := s.jobs.EnqueueCancelSubscription(ctx, rc, domain.CancelSubscriptionJob{OrderLineID: line.ID})
		if err != nil {
			failures = append(failures, fmt.Errorf("enqueue cancellation for line %s: %w", lineID, err))
			continue
		}
		s.logger.Info("Enqueued subscription cancellation",
			ports.String("line_id", line.ID),
			ports.String("stock_movement", string(event.Type)),
			ports.String("job_id", handle.ID))
	}
	return errors.Join(failures...)
}
