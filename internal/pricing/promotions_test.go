package pricing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyPromotions(t *testing.T) {
	ctx := context.Background()
	line := LineContext{OrderCode: "ORD1", LineID: "line_1", SKU: "COFFEE-M"}

	tests := []struct {
		name       string
		base       int64
		promotions []Promotion
		want       int64
	}{
		{name: "no_promotions", base: 5000, want: 5000},
		{
			name: "sums_eligible_discounts",
			base: 5000,
			promotions: []Promotion{
				FixedAmountDiscount{PromoCode: "WELCOME", Amount: 500},
				PercentageDiscount{PromoCode: "TENOFF", BasisPoints: 1000},
			},
			want: 4000,
		},
		{
			name: "skips_other_skus",
			base: 5000,
			promotions: []Promotion{
				FixedAmountDiscount{PromoCode: "TEA", Amount: 500, SKUs: []string{"TEA-M"}},
				FixedAmountDiscount{PromoCode: "COFFEE", Amount: 700, SKUs: []string{"COFFEE-M"}},
			},
			want: 4300,
		},
		{
			name:       "clamps_at_zero",
			base:       1000,
			promotions: []Promotion{FixedAmountDiscount{PromoCode: "FREE", Amount: 2500}},
			want:       0,
		},
		{
			name: "ignores_negative_discounts",
			base: 1000,
			promotions: []Promotion{PromotionFunc{PromoCode: "ODD", Fn: func(context.Context, LineContext, int64) (int64, bool) {
				return -300, true
			}}},
			want: 1000,
		},
		{
			name: "percentage_uses_base_not_running_total",
			base: 1000,
			promotions: []Promotion{
				PercentageDiscount{PromoCode: "HALF", BasisPoints: 5000},
				PercentageDiscount{PromoCode: "HALF-AGAIN", BasisPoints: 5000},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyPromotions(ctx, tt.base, line, tt.promotions))
		})
	}
}

func TestApplyPromotions_DoesNotMutatePromotions(t *testing.T) {
	calls := 0
	promo := PromotionFunc{PromoCode: "COUNT", Fn: func(_ context.Context, _ LineContext, price int64) (int64, bool) {
		calls++
		return price / 10, true
	}}
	promotions := []Promotion{promo, FixedAmountDiscount{PromoCode: "F", Amount: 1}}

	first := ApplyPromotions(context.Background(), 1000, LineContext{}, promotions)
	second := ApplyPromotions(context.Background(), 1000, LineContext{}, promotions)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(899), first)
	assert.Equal(t, 2, calls)
	assert.Equal(t, FixedAmountDiscount{PromoCode: "F", Amount: 1}, promotions[1])
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "EUR 120.00", FormatMoney(12000, "eur"))
	assert.Equal(t, "USD 0.05", FormatMoney(5, "usd"))
	assert.Equal(t, "-1.50", FormatMoney(-150, ""))
}

func TestRoundHalfEven(t *testing.T) {
	assert.Equal(t, int64(2), RoundHalfEven(5, 2))
	assert.Equal(t, int64(4), RoundHalfEven(7, 2))
	assert.Equal(t, int64(1), RoundHalfEven(2, 3))
	assert.Equal(t, int64(0), RoundHalfEven(10, 0))
}
