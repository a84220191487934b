package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
	"github.com/kevin07696/subscription-billing/internal/pricing"
	"github.com/kevin07696/subscription-billing/pkg/observability"
)

const (
	kindRecurring   = "recurring"
	kindDownpayment = "downpayment"
)

// CreateSubscriptionsForOrder is the creation job handler. Every subscription line is attempted even
// when an earlier one failed; failures are written to the order history and returned joined so the
// job ends failed. Ids are persisted right after each provider call together with their kind, and a
// rerun only creates the kinds a line is still missing, so a redelivered job never creates a
// subscription twice.
func (s *Service) CreateSubscriptionsForOrder(ctx context.Context, rc domain.RequestContext, job domain.CreateSubscriptionsJob) error {
	channel, provider, err := s.providerFor(ctx, rc.ChannelToken)
	if err != nil {
		return fmt.Errorf("create subscriptions for order %s: %w", job.OrderCode, err)
	}
	order, err := s.findOrder(ctx, channel, job.OrderCode)
	if err != nil {
		return fmt.Errorf("create subscriptions: %w", err)
	}
	if !order.HasSubscriptions() {
		s.logger.Info("Order has no subscription lines, nothing to create", ports.String("order_code", order.Code))
		return nil
	}

	s.logger.Info("Creating subscriptions", ports.String("order_code", order.Code))

	var failures []error
	for i, line := range order.SubscriptionLines() {
		lineNo := i + 1
		if err := s.createForLine(ctx, channel, provider, order, line, lineNo, job); err != nil {
			s.logger.Error("Failed to create subscriptions for order line",
				ports.String("order_code", order.Code),
				ports.String("line_id", line.ID),
				ports.Int("line", lineNo),
				ports.Err(err))
			s.logHistory(ctx, order.ID, historyEntry{
				message: fmt.Sprintf("Failed to create subscription for line %d", lineNo),
				err:     err,
			})
			failures = append(failures, fmt.Errorf("line %d (%s): %w", lineNo, line.ID, err))
		}
	}
	return errors.Join(failures...)
}

func (s *Service) createForLine(ctx context.Context, channel *domain.Channel, provider ports.BillingProvider, order *domain.Order, line domain.OrderLine, lineNo int, job domain.CreateSubscriptionsJob) error {
	hasRecurring, hasDownpayment := line.HasRecurringSubscription(), line.HasDownpaymentSubscription()
	if hasRecurring && hasDownpayment {
		s.logger.Info("Order line already has subscriptions, skipping",
			ports.String("order_code", order.Code),
			ports.String("line_id", line.ID),
			ports.Strings("subscription_ids", line.SubscriptionIDs))
		return nil
	}

	schedule := line.Variant.Schedule
	if schedule.IsOneTimeCharge() {
		return nil
	}

	price, err := s.PricingForOrderLine(ctx, order, &line)
	if err != nil {
		return err
	}
	if hasRecurring && price.Downpayment <= 0 {
		s.logger.Info("Order line already has subscriptions, skipping",
			ports.String("order_code", order.Code),
			ports.String("line_id", line.ID),
			ports.Strings("subscription_ids", line.SubscriptionIDs))
		return nil
	}

	base := domain.CreateSubscriptionParams{
		CustomerID:      job.ProviderCustomerID,
		PaymentMethodID: job.ProviderPaymentMethodID,
		Currency:        order.Currency,
		EndDate:         price.SubscriptionEndDate,
		Metadata: map[string]string{
			domain.MetadataOrderCode:    order.Code,
			domain.MetadataChannelToken: channel.Token,
		},
	}

	if !hasRecurring {
		recurring := base
		recurring.StartDate = price.SubscriptionStartDate
		recurring.Amount = price.RecurringPrice
		recurring.Interval = price.Interval
		recurring.IntervalCount = price.IntervalCount
		recurring.Description = line.Variant.Name
		if err := s.createOne(ctx, channel, provider, order, line, kindRecurring,
			fmt.Sprintf("%s (%s)", line.Variant.Name, order.Code), recurring, &price,
			fmt.Sprintf("Created subscription for line %d", lineNo), "Failed to create subscription"); err != nil {
			return err
		}
	}

	if hasDownpayment || price.Downpayment <= 0 {
		return nil
	}

	// the downpayment recurs once per commitment
	start, err := pricing.NextCycleStartDate(s.now(), schedule.StartMoment, schedule.DurationUnit,
		schedule.DurationCount, schedule.FixedStartDate)
	if err != nil {
		return err
	}
	downpayment := base
	downpayment.StartDate = start
	downpayment.Amount = price.Downpayment
	downpayment.Interval = schedule.DurationUnit
	downpayment.IntervalCount = schedule.DurationCount
	downpayment.Description = "Downpayment"
	return s.createOne(ctx, channel, provider, order, line, kindDownpayment,
		fmt.Sprintf("%s - Downpayment (%s)", line.Variant.Name, order.Code), downpayment, &price,
		fmt.Sprintf("Created downpayment subscription for line %d", lineNo), "Failed to create downpayment subscription")
}

// createOne creates a product and a subscription on it and persists the id before anything else.
// A subscription the provider did not activate is kept on the line and logged as invalid.
func (s *Service) createOne(ctx context.Context, channel *domain.Channel, provider ports.BillingProvider, order *domain.Order, line domain.OrderLine,
	kind, productName string, params domain.CreateSubscriptionParams, price *domain.PricingResult, successMsg, invalidMsg string) error {
	product, err := provider.CreateProduct(ctx, productName)
	if err != nil {
		observability.RecordSubscriptionCreated(channel.Token, kind, "failed")
		return fmt.Errorf("create %s product: %w", kind, err)
	}
	params.ProductID = product.ID

	sub, err := provider.CreateSubscription(ctx, params)
	if err != nil {
		observability.RecordSubscriptionCreated(channel.Token, kind, "failed")
		return fmt.Errorf("create %s subscription: %w", kind, err)
	}
	if err := s.saveSubscriptionID(ctx, line.ID, kind, sub.ID); err != nil {
		return fmt.Errorf("save %s subscription id %s: %w", kind, sub.ID, err)
	}

	if !sub.Status.IsHealthy() {
		observability.RecordSubscriptionCreated(channel.Token, kind, "invalid")
		s.logger.Error("Created subscription is not active",
			ports.String("order_code", order.Code),
			ports.String("subscription_id", sub.ID),
			ports.String("status", string(sub.Status)))
		s.logHistory(ctx, order.ID, historyEntry{
			message:        invalidMsg,
			errorText:      fmt.Sprintf("Subscription status is %s", sub.Status),
			pricing:        price,
			currency:       order.Currency,
			subscriptionID: sub.ID,
		})
		return nil
	}

	observability.RecordSubscriptionCreated(channel.Token, kind, "success")
	s.logger.Info("Created subscription",
		ports.String("order_code", order.Code),
		ports.String("subscription_id", sub.ID),
		ports.String("kind", kind),
		ports.String("amount", pricing.FormatMoney(params.Amount, order.Currency)),
		ports.Int("interval_count", params.IntervalCount),
		ports.String("interval", string(params.Interval)))
	s.logHistory(ctx, order.ID, historyEntry{
		message:        successMsg,
		pricing:        price,
		currency:       order.Currency,
		subscriptionID: sub.ID,
	})
	return nil
}

func (s *Service) saveSubscriptionID(ctx context.Context, lineID, kind, id string) error {
	if kind == kindDownpayment {
		return s.orders.SetDownpaymentSubscriptionID(ctx, lineID, id)
	}
	return s.orders.AppendSubscriptionIDs(ctx, lineID, id)
}
