package domain

import "time"

// PricingResult is the fully resolved price breakdown of a variant on a schedule.
// All amounts are minor currency units. Never persisted, recomputed on demand.
type PricingResult struct {
	SubscriptionStartDate  time.Time    `json:"subscription_start_date"`
	SubscriptionEndDate    *time.Time   `json:"subscription_end_date,omitempty"`
	ScheduleID             string       `json:"schedule_id"`
	Interval               IntervalUnit `json:"interval"`
	IntervalCount          int          `json:"interval_count"`
	RecurringPrice         int64        `json:"recurring_price"`
	OriginalRecurringPrice int64        `json:"original_recurring_price"`
	Downpayment            int64        `json:"downpayment"`
	DayRate                int64        `json:"day_rate"`
	TotalProratedAmount    int64        `json:"total_prorated_amount"`
	AmountDueNow           int64        `json:"amount_due_now"`
	PaidUpFront            bool         `json:"paid_up_front"`
	AutoRenew              bool         `json:"auto_renew"`
}
