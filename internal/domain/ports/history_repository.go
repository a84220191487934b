package ports

import (
	"context"

	"github.com/kevin07696/subscription-billing/internal/domain"
)

// HistoryRepository is the order history sink
type HistoryRepository interface {
	AppendOrderHistory(ctx context.Context, orderID string, entryType string, data domain.HistoryData) error
	ListOrderHistory(ctx context.Context, orderID string) ([]domain.HistoryEntry, error)
}
