package domain

import "time"

// PaymentEvent is one row of the append-only provider notification log.
// (InvoiceID, EventType) is unique so webhook redelivery never duplicates a row.
type PaymentEvent struct {
	CreatedAt        time.Time `json:"created_at"`
	ChannelID        string    `json:"channel_id"`
	EventType        string    `json:"event_type"`
	Currency         string    `json:"currency"`
	InvoiceID        string    `json:"invoice_id"`
	OrderCode        string    `json:"order_code"`
	SubscriptionID   string    `json:"subscription_id"`
	CollectionMethod string    `json:"collection_method"`
	ID               int64     `json:"id"`
	Charge           int64     `json:"charge"`
}

// PaymentEventFilter selects payment events for listing
type PaymentEventFilter struct {
	ChannelID string
	OrderCode string
	EventType string
	Limit     int
	Offset    int
}
