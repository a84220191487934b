package domain

import "time"

// StockMovementType mirrors the commerce platform's stock movement kinds
type StockMovementType string

const (
	StockMovementSale         StockMovementType = "SALE"
	StockMovementRelease      StockMovementType = "RELEASE"
	StockMovementCancellation StockMovementType = "CANCELLATION"
	StockMovementAdjustment   StockMovementType = "ADJUSTMENT"
)

// CancelsSubscriptions reports whether the movement gives the goods back
func (t StockMovementType) CancelsSubscriptions() bool {
	return t == StockMovementRelease || t == StockMovementCancellation
}

// OrderLineCreatedEvent is published when a line is added to an order
type OrderLineCreatedEvent struct {
	OccurredAt   time.Time `json:"occurred_at"`
	ChannelToken string    `json:"channel_token"`
	OrderID      string    `json:"order_id"`
	OrderLineID  string    `json:"order_line_id"`
	VariantID    string    `json:"variant_id"`
}

// StockMovementEvent is published when stock moves for one or more order lines
type StockMovementEvent struct {
	OccurredAt   time.Time         `json:"occurred_at"`
	ChannelToken string            `json:"channel_token"`
	Type         StockMovementType `json:"type"`
	OrderLineIDs []string          `json:"order_line_ids"`
}
