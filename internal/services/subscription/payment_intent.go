package subscription

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

// CreatePaymentIntent creates the provider payment intent for an order and returns its client secret.
// The order must have lines, a customer and a shipping line. A zero total gets a verification fee so
// the provider can still verify and save the payment method.
func (s *Service) CreatePaymentIntent(ctx context.Context, channelToken, orderCode string) (string, error) {
	ctx, cancel := s.timeouts.ServiceContext(ctx)
	defer cancel()

	channel, provider, err := s.providerFor(ctx, channelToken)
	if err != nil {
		return "", err
	}
	order, err := s.findOrder(ctx, channel, orderCode)
	if err != nil {
		return "", err
	}

	switch {
	case len(order.Lines) == 0:
		return "", domain.NewDomainError(domain.ErrorCodeValidationFailed, "cannot create payment intent for empty order").
			WithDetail("order_code", order.Code)
	case order.Customer == nil:
		return "", domain.NewDomainError(domain.ErrorCodeValidationMissingCustomer, "cannot create payment intent for order without customer").
			WithDetail("order_code", order.Code)
	case order.ShippingLineCount == 0:
		return "", domain.NewDomainError(domain.ErrorCodeValidationMissingField, "cannot create payment intent for order without shipping method").
			WithDetail("order_code", order.Code)
	case channel.PaymentMethod == nil || !channel.PaymentMethod.Enabled:
		return "", domain.ErrPaymentMethodMissing
	}

	if order.TotalWithTax == 0 {
		fee := domain.Surcharge{Description: "Verification fee", SKU: "verification-fee", Amount: domain.VerificationFeeAmount}
		if err := s.orders.AddSurcharge(ctx, order.ID, fee); err != nil {
			return "", fmt.Errorf("add verification fee to order %s: %w", order.Code, err)
		}
		order.TotalWithTax += fee.Amount
	}

	customer, err := s.findOrCreateCustomer(ctx, provider, order.Customer)
	if err != nil {
		return "", err
	}

	setupFutureUsage := domain.SetupFutureUsageOnSession
	if order.HasSubscriptions() {
		setupFutureUsage = domain.SetupFutureUsageOffSession
	}
	intent, err := provider.CreatePaymentIntent(ctx, domain.PaymentIntentParams{
		CustomerID:       customer.ID,
		Currency:         order.Currency,
		Amount:           order.TotalWithTax,
		SetupFutureUsage: setupFutureUsage,
		Metadata: map[string]string{
			domain.MetadataOrderCode:    order.Code,
			domain.MetadataChannelToken: channel.Token,
			domain.MetadataAmount:       strconv.FormatInt(order.TotalWithTax, 10),
		},
	})
	if err != nil {
		return "", fmt.Errorf("create payment intent for order %s: %w", order.Code, err)
	}

	s.logger.Info("Created payment intent",
		ports.String("payment_intent_id", intent.ID),
		ports.String("order_code", order.Code),
		ports.Int64("amount", order.TotalWithTax))
	return intent.ClientSecret, nil
}

func (s *Service) findOrCreateCustomer(ctx context.Context, provider ports.BillingProvider, customer *domain.Customer) (*domain.ProviderCustomer, error) {
	existing, err := provider.FindCustomerByEmail(ctx, customer.Email)
	if err != nil {
		return nil, fmt.Errorf("find provider customer: %w", err)
	}
	if existing != nil {
		return existing, nil
	}
	created, err := provider.CreateCustomer(ctx, domain.CreateCustomerParams{
		Email:    customer.Email,
		Name:     customer.FullName(),
		Metadata: map[string]string{"customerId": customer.ID},
	})
	if err != nil {
		return nil, fmt.Errorf("create provider customer: %w", err)
	}
	s.logger.Info("Created provider customer", ports.String("customer_id", customer.ID))
	return created, nil
}
