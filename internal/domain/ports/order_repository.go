package ports

import (
	"context"

	"github.com/kevin07696/subscription-billing/internal/domain"
)

// OrderRepository is the order/customer/variant store the billing engine reads and writes.
// Lookups return domain.ErrNotFound when the record does not exist.
type OrderRepository interface {
	FindOrderByCode(ctx context.Context, channelID, code string) (*domain.Order, error)
	FindOrderByID(ctx context.Context, id string) (*domain.Order, error)
	FindOrderLineByID(ctx context.Context, id string) (*domain.OrderLine, error)
	FindVariantByID(ctx context.Context, channelID, id string) (*domain.Variant, error)

	// AppendSubscriptionIDs adds provider ids to the line; existing ids are kept
	AppendSubscriptionIDs(ctx context.Context, lineID string, ids ...string) error
	// SetDownpaymentSubscriptionID appends id to the line's ids and marks it as the downpayment one
	SetDownpaymentSubscriptionID(ctx context.Context, lineID, id string) error
	SetSubscriptionHash(ctx context.Context, lineID, hash string) error

	AddPaymentToOrder(ctx context.Context, orderID string, payment domain.PaymentInput) error
	TransitionOrderState(ctx context.Context, orderID string, state domain.OrderState) error
	AddSurcharge(ctx context.Context, orderID string, surcharge domain.Surcharge) error
}
