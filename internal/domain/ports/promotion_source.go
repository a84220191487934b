package ports

import (
	"context"

	"github.com/kevin07696/subscription-billing/internal/pricing"
)

// PromotionSource supplies the promotions active for a channel at evaluation time
type PromotionSource interface {
	ActivePromotions(ctx context.Context, channelID string) ([]pricing.Promotion, error)
}
