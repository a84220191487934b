package subscription

import (
	"context"
	"fmt"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
	"github.com/kevin07696/subscription-billing/internal/pricing"
	"github.com/kevin07696/subscription-billing/pkg/observability"
)

// WebhookOutcome is how an inbound provider event was handled
type WebhookOutcome string

const (
	WebhookProcessed WebhookOutcome = "processed"
	// WebhookIgnored is an event kind the engine does not process
	WebhookIgnored WebhookOutcome = "ignored"
	// WebhookRejected is an event that can never be processed, redelivery would not help
	WebhookRejected WebhookOutcome = "rejected"
	WebhookFailed   WebhookOutcome = "failed"
)

// WebhookResult describes the handling of one webhook delivery
type WebhookResult struct {
	EventID   string           `json:"event_id,omitempty"`
	EventType domain.EventType `json:"event_type,omitempty"`
	OrderCode string           `json:"order_code,omitempty"`
	Outcome   WebhookOutcome   `json:"outcome"`
	// Acknowledged tells the transport to answer 2xx so the provider stops redelivering
	Acknowledged bool `json:"acknowledged"`
}

// HandleWebhook decodes, routes, authenticates and dispatches one provider event.
// An error is returned together with a result whose Acknowledged flag says whether the
// provider should still be told the delivery succeeded.
func (s *Service) HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader string) (WebhookResult, error) {
	ctx, cancel := s.timeouts.ServiceContext(ctx)
	defer cancel()

	event, err := domain.DecodeWebhookEvent(rawBody)
	if err != nil {
		s.logger.Error("Rejected malformed webhook", ports.Err(err))
		observability.RecordWebhookEvent("unknown", string(WebhookRejected))
		return WebhookResult{Outcome: WebhookRejected, Acknowledged: true}, err
	}

	result := WebhookResult{EventID: event.EventID(), EventType: event.Type()}
	s.logger.Info("Incoming webhook",
		ports.String("event_id", event.EventID()),
		ports.String("event_type", string(event.Type())))

	if _, ok := event.(*domain.UnsupportedEvent); ok {
		s.logger.Info("Not processing webhook event kind", ports.String("event_type", string(event.Type())))
		result.Outcome, result.Acknowledged = WebhookIgnored, true
		observability.RecordWebhookEvent(string(event.Type()), string(result.Outcome))
		return result, nil
	}

	result, err = s.processEvent(ctx, event, rawBody, signatureHeader, result)
	observability.RecordWebhookEvent(string(event.Type()), string(result.Outcome))
	if err != nil {
		s.logger.Error("Failed to process webhook",
			ports.String("event_id", event.EventID()),
			ports.String("event_type", string(event.Type())),
			ports.String("order_code", result.OrderCode),
			ports.Err(err))
		return result, err
	}
	s.logger.Info("Handled webhook",
		ports.String("event_id", event.EventID()),
		ports.String("event_type", string(event.Type())),
		ports.String("order_code", result.OrderCode))
	return result, nil
}

func (s *Service) processEvent(ctx context.Context, event domain.WebhookEvent, rawBody []byte, signatureHeader string, result WebhookResult) (WebhookResult, error) {
	metadata := event.RoutingMetadata()
	result.OrderCode = metadata.OrderCode()
	if !metadata.Complete() {
		result.Outcome, result.Acknowledged = WebhookRejected, true
		return result, domain.NewDomainError(domain.ErrorCodeValidationMissingMetadata,
			"webhook is missing metadata.orderCode or metadata.channelToken").
			WithDetail("event_id", event.EventID()).
			WithDetail("order_code", metadata.OrderCode()).
			WithDetail("channel_token", metadata.ChannelToken())
	}

	result.Outcome = WebhookFailed
	channel, err := s.channels.Resolve(ctx, metadata.ChannelToken())
	if err != nil {
		return result, err
	}
	if channel.PaymentMethod == nil {
		return result, domain.ErrPaymentMethodMissing
	}
	order, err := s.findOrder(ctx, channel, metadata.OrderCode())
	if err != nil {
		return result, err
	}

	if !channel.PaymentMethod.DisableWebhookSignatureChecking {
		if err := s.providers.VerifyWebhookSignature(rawBody, signatureHeader, channel.PaymentMethod.WebhookSecret); err != nil {
			result.Outcome = WebhookRejected
			return result, err
		}
	}

	switch ev := event.(type) {
	case *domain.PaymentIntentSucceededEvent:
		err = s.HandlePaymentIntentSucceeded(ctx, channel, order, ev.Object)
	case *domain.InvoiceEvent:
		if ev.Succeeded() {
			s.HandleInvoicePaymentSucceeded(ctx, order, ev.Object)
		} else {
			s.HandleInvoicePaymentFailed(ctx, order, ev.Object)
		}
		_, err = s.SavePaymentEvent(ctx, channel, ev.Type(), ev.Object)
	default:
		err = fmt.Errorf("%w: %s", domain.ErrUnsupportedEventType, event.Type())
	}
	if err != nil {
		return result, err
	}
	result.Outcome, result.Acknowledged = WebhookProcessed, true
	return result, nil
}

// HandlePaymentIntentSucceeded records the initial payment and enqueues subscription creation.
// A payment intent without a customer can never create subscriptions: it is logged to the order
// and rejected without enqueueing anything.
func (s *Service) HandlePaymentIntentSucceeded(ctx context.Context, channel *domain.Channel, order *domain.Order, intent domain.PaymentIntentObject) error {
	if intent.Customer == "" {
		s.logHistory(ctx, order.ID, historyEntry{
			errorText: "No customer ID found in incoming webhook. Can not create subscriptions for this order.",
		})
		return domain.WrapError(domain.ErrorCodeValidationMissingCustomer, "no customer in payment intent",
			fmt.Errorf("payment intent %s for order %s has no customer", intent.ID, order.Code))
	}

	handle, err := s.jobs.EnqueueCreateSubscriptions(ctx, domain.RequestContext{ChannelToken: channel.Token},
		domain.CreateSubscriptionsJob{
			OrderCode:               order.Code,
			ProviderCustomerID:      intent.Customer,
			ProviderPaymentMethodID: intent.PaymentMethod,
		})
	if err != nil {
		return fmt.Errorf("enqueue subscription creation for order %s: %w", order.Code, err)
	}
	s.logger.Info("Enqueued subscription creation",
		ports.String("order_code", order.Code),
		ports.String("job_id", handle.ID))

	if order.State != domain.OrderStateArrangingPayment {
		if err := s.orders.TransitionOrderState(ctx, order.ID, domain.OrderStateArrangingPayment); err != nil {
			return fmt.Errorf("transition order %s from %s to %s: %w",
				order.Code, order.State, domain.OrderStateArrangingPayment, err)
		}
	}

	payment := domain.PaymentInput{
		Method:        channel.PaymentMethod.Code,
		TransactionID: intent.ID,
		Amount:        intent.Amount,
		Metadata: map[string]interface{}{
			"setupIntentId": intent.ID,
			"amount":        intent.Metadata[domain.MetadataAmount],
		},
	}
	if err := s.orders.AddPaymentToOrder(ctx, order.ID, payment); err != nil {
		return fmt.Errorf("add payment to order %s: %w", order.Code, err)
	}

	s.logger.Info("Settled payment for order",
		ports.String("order_code", order.Code),
		ports.String("channel_token", channel.Token))
	return nil
}

// HandleInvoicePaymentSucceeded writes a history entry for a renewal payment
func (s *Service) HandleInvoicePaymentSucceeded(ctx context.Context, order *domain.Order, invoice domain.InvoiceObject) {
	message := "Received subscription payment"
	if amount := firstPlanAmount(invoice); amount > 0 {
		message = "Received subscription payment of " + pricing.FormatMoney(amount, currencyOf(invoice, order))
	}
	s.logHistory(ctx, order.ID, historyEntry{message: message, subscriptionID: invoice.SubscriptionID()})
}

// HandleInvoicePaymentFailed writes a failure history entry; the provider retries the charge itself
func (s *Service) HandleInvoicePaymentFailed(ctx context.Context, order *domain.Order, invoice domain.InvoiceObject) {
	message := "Subscription payment failed"
	if amount := firstPlanAmount(invoice); amount > 0 {
		message = fmt.Sprintf("Subscription payment of %s failed", pricing.FormatMoney(amount, currencyOf(invoice, order)))
	}
	s.logHistory(ctx, order.ID, historyEntry{
		message:        message,
		errorText:      message + " - " + invoice.ID,
		subscriptionID: invoice.SubscriptionID(),
	})
}

// SavePaymentEvent appends the invoice to the payment event log.
// created is false when the (invoice, event type) pair was already stored.
func (s *Service) SavePaymentEvent(ctx context.Context, channel *domain.Channel, eventType domain.EventType, invoice domain.InvoiceObject) (bool, error) {
	currency := invoice.Currency
	if currency == "" {
		currency = channel.DefaultCurrency
	}
	event := &domain.PaymentEvent{
		ChannelID:        channel.ID,
		EventType:        string(eventType),
		Currency:         currency,
		InvoiceID:        invoice.ID,
		OrderCode:        invoice.RoutingMetadata().OrderCode(),
		SubscriptionID:   invoice.SubscriptionID(),
		CollectionMethod: invoice.CollectionMethod,
		Charge:           invoice.Charge(),
	}

	created, err := s.paymentEvents.Insert(ctx, event)
	if err != nil {
		return false, fmt.Errorf("save payment event for invoice %s: %w", invoice.ID, err)
	}
	observability.RecordPaymentEvent(event.EventType, event.Currency, event.Charge, !created)
	if !created {
		s.logger.Info("Payment event already recorded",
			ports.String("invoice_id", invoice.ID),
			ports.String("event_type", event.EventType))
	}
	return created, nil
}

func firstPlanAmount(invoice domain.InvoiceObject) int64 {
	if len(invoice.Lines.Data) == 0 || invoice.Lines.Data[0].Plan == nil {
		return 0
	}
	return invoice.Lines.Data[0].Plan.Amount
}

func currencyOf(invoice domain.InvoiceObject, order *domain.Order) string {
	if invoice.Currency != "" {
		return invoice.Currency
	}
	return order.Currency
}
