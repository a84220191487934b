package pricing

import (
	"context"
	"slices"
)

// LineContext describes the subscription line a promotion is evaluated against
type LineContext struct {
	OrderID   string
	OrderCode string
	LineID    string
	VariantID string
	SKU       string
	Quantity  int
}

// Promotion is an active promotion that may discount a subscription's recurring price.
// CanApplyToSubscriptionLine returns the discount in minor units and whether it applies.
type Promotion interface {
	Code() string
	CanApplyToSubscriptionLine(ctx context.Context, line LineContext, recurringPrice int64) (int64, bool)
}

// ApplyPromotions subtracts every eligible discount from base and clamps the result at zero.
// Promotions are only evaluated, never mutated.
func ApplyPromotions(ctx context.Context, base int64, line LineContext, promotions []Promotion) int64 {
	adjusted := base
	for _, p := range promotions {
		discount, ok := p.CanApplyToSubscriptionLine(ctx, line, base)
		if !ok || discount <= 0 {
			continue
		}
		adjusted -= discount
	}
	if adjusted < 0 {
		return 0
	}
	return adjusted
}

// PromotionFunc adapts a function to the Promotion interface
type PromotionFunc struct {
	Fn        func(ctx context.Context, line LineContext, recurringPrice int64) (int64, bool)
	PromoCode string
}

func (p PromotionFunc) Code() string { return p.PromoCode }

func (p PromotionFunc) CanApplyToSubscriptionLine(ctx context.Context, line LineContext, recurringPrice int64) (int64, bool) {
	return p.Fn(ctx, line, recurringPrice)
}

// FixedAmountDiscount takes a fixed amount off the recurring price of matching lines
type FixedAmountDiscount struct {
	PromoCode string
	// SKUs limits the discount to these variants; empty means every subscription line
	SKUs   []string
	Amount int64
}

func (d FixedAmountDiscount) Code() string { return d.PromoCode }

func (d FixedAmountDiscount) CanApplyToSubscriptionLine(_ context.Context, line LineContext, _ int64) (int64, bool) {
	if !matchesSKU(d.SKUs, line.SKU) {
		return 0, false
	}
	return d.Amount, true
}

// PercentageDiscount takes a percentage off the recurring price of matching lines
type PercentageDiscount struct {
	PromoCode string
	SKUs      []string
	// BasisPoints is the discount in hundredths of a percent, 1000 = 10%
	BasisPoints int64
}

func (d PercentageDiscount) Code() string { return d.PromoCode }

func (d PercentageDiscount) CanApplyToSubscriptionLine(_ context.Context, line LineContext, recurringPrice int64) (int64, bool) {
	if !matchesSKU(d.SKUs, line.SKU) {
		return 0, false
	}
	return RoundHalfEven(recurringPrice*d.BasisPoints, 10000), true
}

func matchesSKU(skus []string, sku string) bool {
	return len(skus) == 0 || slices.Contains(skus, sku)
}
