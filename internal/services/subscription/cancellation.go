package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
	"github.com/kevin07696/subscription-billing/internal/jobqueue"
	"github.com/kevin07696/subscription-billing/pkg/observability"
)

// CancelSubscriptionsForOrderLine is the cancellation job handler. Every id on the line is set to
// cancel at period end independently; an id the provider reports as already canceled counts as done.
// Remaining failures are returned joined so the queue retries the job. An unknown line, or ids the
// provider does not know, fail it without retries.
func (s *Service) CancelSubscriptionsForOrderLine(ctx context.Context, rc domain.RequestContext, job domain.CancelSubscriptionJob) error {
	line, err := s.orders.FindOrderLineByID(ctx, job.OrderLineID)
	if errors.Is(err, domain.ErrNotFound) {
		return jobqueue.Permanent(domain.WrapError(domain.ErrorCodeValidationLineNotFound, "order line not found", err).
			WithDetail("line_id", job.OrderLineID))
	}
	if err != nil {
		return err
	}
	if !line.HasSubscriptions() {
		s.logger.Info("Order line has no subscriptions, nothing to cancel", ports.String("line_id", line.ID))
		return nil
	}

	_, provider, err := s.providerFor(ctx, rc.ChannelToken)
	if err != nil {
		return err
	}

	cancelAtPeriodEnd := true
	var failures []error
	missing := 0
	for _, id := range line.SubscriptionIDs {
		_, err := provider.UpdateSubscription(ctx, id, domain.UpdateSubscriptionParams{CancelAtPeriodEnd: &cancelAtPeriodEnd})
		switch {
		case err == nil:
			observability.RecordSubscriptionCanceled("success")
			s.logger.Info("Cancelled subscription", ports.String("subscription_id", id), ports.String("line_id", line.ID))
			s.logHistory(ctx, line.OrderID, historyEntry{message: "Cancelled subscription " + id, subscriptionID: id})

		case errors.Is(err, domain.ErrSubscriptionAlreadyCanceled):
			observability.RecordSubscriptionCanceled("already_canceled")
			s.logger.Info("Subscription already canceled", ports.String("subscription_id", id), ports.String("line_id", line.ID))
			s.logHistory(ctx, line.OrderID, historyEntry{message: "Subscription " + id + " was already canceled", subscriptionID: id})

		case errors.Is(err, domain.ErrSubscriptionNotFound):
			missing++
			observability.RecordSubscriptionCanceled("not_found")
			s.logger.Error("Subscription not found at provider",
				ports.String("subscription_id", id),
				ports.String("line_id", line.ID),
				ports.Err(err))
			s.logHistory(ctx, line.OrderID, historyEntry{message: "Subscription " + id + " not found at provider", err: err, subscriptionID: id})
			failures = append(failures, fmt.Errorf("cancel subscription %s: %w", id, err))

		default:
			observability.RecordSubscriptionCanceled("failed")
			s.logger.Error("Failed to cancel subscription",
				ports.String("subscription_id", id),
				ports.String("line_id", line.ID),
				ports.Err(err))
			s.logHistory(ctx, line.OrderID, historyEntry{message: "Failed to cancel " + id, err: err, subscriptionID: id})
			failures = append(failures, fmt.Errorf("cancel subscription %s: %w", id, err))
		}
	}
	if len(failures) > 0 && missing == len(failures) {
		// retrying cannot make an unknown id appear
		return jobqueue.Permanent(errors.Join(failures...))
	}
	return errors.Join(failures...)
}
