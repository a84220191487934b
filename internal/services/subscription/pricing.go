package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/pricing"
)

// PricingOptions are the optional storefront inputs of a pricing preview
type PricingOptions struct {
	StartDate   *time.Time `json:"start_date,omitempty"`
	Downpayment *int64     `json:"downpayment,omitempty" validate:"omitempty,gte=0"`
}

// VariantPricing is a pricing preview of a variant
type VariantPricing struct {
	domain.PricingResult
	VariantID string `json:"variant_id"`
	Currency  string `json:"currency"`
}

// PricingForVariant previews the subscription pricing of a variant of the channel.
// Promotions are not applied: they belong to an order.
func (s *Service) PricingForVariant(ctx context.Context, channelToken, variantID string, opts PricingOptions) (*VariantPricing, error) {
	channel, err := s.channels.Resolve(ctx, channelToken)
	if err != nil {
		return nil, err
	}
	variant, err := s.orders.FindVariantByID(ctx, channel.ID, variantID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.WrapError(domain.ErrorCodeValidationVariantNotFound, "variant not found", err).
			WithDetail("variant_id", variantID)
	}
	if err != nil {
		return nil, err
	}
	if !variant.IsSubscription() {
		return nil, domain.NewDomainError(domain.ErrorCodeConfigVariantNotScheduled, "variant has no schedule attached").
			WithDetail("variant_id", variant.ID)
	}

	result, err := pricing.ComputePricing(variant.Price, *variant.Schedule, pricing.Options{
		Now:                 s.now(),
		StartDate:           opts.StartDate,
		DownpaymentOverride: opts.Downpayment,
	})
	if err != nil {
		return nil, err
	}
	return &VariantPricing{PricingResult: result, VariantID: variant.ID, Currency: variant.Currency}, nil
}

// PricingForOrderLine computes the pricing of a subscription line with the channel's active
// promotions applied to the recurring price. The line's own downpayment and start date win over
// the schedule's. OriginalRecurringPrice keeps the undiscounted price.
func (s *Service) PricingForOrderLine(ctx context.Context, order *domain.Order, line *domain.OrderLine) (domain.PricingResult, error) {
	if !line.IsSubscription() {
		return domain.PricingResult{}, domain.NewDomainError(domain.ErrorCodeConfigVariantNotScheduled, "variant has no schedule attached").
			WithDetail("variant_id", line.Variant.ID)
	}

	result, err := pricing.ComputePricing(line.Variant.Price, *line.Variant.Schedule, pricing.Options{
		Now:                 s.now(),
		StartDate:           line.StartDate,
		DownpaymentOverride: line.Downpayment,
	})
	if err != nil {
		return domain.PricingResult{}, err
	}

	promotions, err := s.promotions.ActivePromotions(ctx, order.ChannelID)
	if err != nil {
		return domain.PricingResult{}, fmt.Errorf("load active promotions: %w", err)
	}
	result.OriginalRecurringPrice = result.RecurringPrice
	result.RecurringPrice = pricing.ApplyPromotions(ctx, result.RecurringPrice, pricing.LineContext{
		OrderID:   order.ID,
		OrderCode: order.Code,
		LineID:    line.ID,
		VariantID: line.Variant.ID,
		SKU:       line.Variant.SKU,
		Quantity:  line.Quantity,
	}, promotions)
	return result, nil
}
