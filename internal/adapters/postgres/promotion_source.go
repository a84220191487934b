package postgres

import (
	"context"

	"github.com/kevin07696/subscription-billing/internal/domain/ports"
	"github.com/kevin07696/subscription-billing/internal/pricing"
)

// PromotionSource reads enabled promotions whose window contains now
type PromotionSource struct {
	db *DBExecutor
}

var _ ports.PromotionSource = (*PromotionSource)(nil)

// NewPromotionSource creates a new promotion source
func NewPromotionSource(db *DBExecutor) *PromotionSource {
	return &PromotionSource{db: db}
}

func (s *PromotionSource) ActivePromotions(ctx context.Context, channelID string) ([]pricing.Promotion, error) {
	rows, err := s.db.Conn(ctx).Query(ctx, `
		SELECT code, kind, amount, skus FROM promotions
		WHERE channel_id = $1 AND enabled
			AND (starts_at IS NULL OR starts_at <= NOW())
			AND (ends_at IS NULL OR ends_at > NOW())
		ORDER BY id`, channelID)
	if err != nil {
		return nil, persistenceError(err, "list active promotions")
	}
	defer rows.Close()

	var promotions []pricing.Promotion
	for rows.Next() {
		var (
			code, kind string
			amount     int64
			skus       []string
		)
		if err := rows.Scan(&code, &kind, &amount, &skus); err != nil {
			return nil, persistenceError(err, "scan promotion")
		}
		switch kind {
		case "fixed":
			promotions = append(promotions, pricing.FixedAmountDiscount{PromoCode: code, SKUs: skus, Amount: amount})
		case "percentage":
			promotions = append(promotions, pricing.PercentageDiscount{PromoCode: code, SKUs: skus, BasisPoints: amount})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError(err, "list active promotions")
	}
	return promotions, nil
}
