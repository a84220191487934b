package ports

import (
	"context"

	"github.com/kevin07696/subscription-billing/internal/domain"
)

// PaymentEventRepository stores the append-only provider notification log
type PaymentEventRepository interface {
	// Insert stores the event unless (invoice_id, event_type) already exists.
	// created is false for a duplicate.
	Insert(ctx context.Context, event *domain.PaymentEvent) (created bool, err error)
	List(ctx context.Context, filter domain.PaymentEventFilter) ([]domain.PaymentEvent, error)
}
