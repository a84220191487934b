package domain

import "time"

// HistoryTypeSubscriptionNotification marks order history entries written by the billing engine
const HistoryTypeSubscriptionNotification = "SUBSCRIPTION_NOTIFICATION"

// PricingSummary is the human readable pricing attached to history entries
type PricingSummary struct {
	RecurringPrice         string `json:"recurring_price"`
	OriginalRecurringPrice string `json:"original_recurring_price"`
	Downpayment            string `json:"downpayment"`
	TotalProratedAmount    string `json:"total_prorated_amount"`
	AmountDueNow           string `json:"amount_due_now"`
	SubscriptionStartDate  string `json:"subscription_start_date"`
	SubscriptionEndDate    string `json:"subscription_end_date,omitempty"`
	Interval               string `json:"interval"`
	IntervalCount          int    `json:"interval_count"`
}

// HistoryData is the payload of a history entry
type HistoryData struct {
	Pricing        *PricingSummary `json:"pricing,omitempty"`
	Message        string          `json:"message"`
	Error          string          `json:"error,omitempty"`
	SubscriptionID string          `json:"subscription_id,omitempty"`
	Valid          bool            `json:"valid"`
}

// HistoryEntry is appended to an order's history
type HistoryEntry struct {
	CreatedAt time.Time   `json:"created_at"`
	Data      HistoryData `json:"data"`
	ID        string      `json:"id"`
	OrderID   string      `json:"order_id"`
	Type      string      `json:"type"`
}
