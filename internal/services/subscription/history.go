package subscription

import (
	"context"
	"time"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
	"github.com/kevin07696/subscription-billing/internal/pricing"
)

// historyEntry is one SUBSCRIPTION_NOTIFICATION written to an order
type historyEntry struct {
	pricing        *domain.PricingResult
	err            error
	message        string
	errorText      string
	subscriptionID string
	currency       string
}

// logHistory appends the entry to the order's history. A failing history write is logged, not returned:
// the operation that produced the entry already happened at the provider.
func (s *Service) logHistory(ctx context.Context, orderID string, e historyEntry) {
	data := domain.HistoryData{
		Message:        e.message,
		SubscriptionID: e.subscriptionID,
		Valid:          e.err == nil && e.errorText == "",
	}
	switch {
	case e.errorText != "":
		data.Error = e.errorText
	case e.err != nil:
		data.Error = e.err.Error()
	}
	if e.pricing != nil {
		data.Pricing = summarizePricing(*e.pricing, e.currency)
	}

	if err := s.history.AppendOrderHistory(ctx, orderID, domain.HistoryTypeSubscriptionNotification, data); err != nil {
		s.logger.Error("Failed to write order history",
			ports.String("order_id", orderID),
			ports.String("message", e.message),
			ports.Err(err))
	}
}

func summarizePricing(p domain.PricingResult, currency string) *domain.PricingSummary {
	summary := &domain.PricingSummary{
		RecurringPrice:         pricing.FormatMoney(p.RecurringPrice, currency),
		OriginalRecurringPrice: pricing.FormatMoney(p.OriginalRecurringPrice, currency),
		Downpayment:            pricing.FormatMoney(p.Downpayment, currency),
		TotalProratedAmount:    pricing.FormatMoney(p.TotalProratedAmount, currency),
		AmountDueNow:           pricing.FormatMoney(p.AmountDueNow, currency),
		SubscriptionStartDate:  p.SubscriptionStartDate.Format(time.DateOnly),
		Interval:               string(p.Interval),
		IntervalCount:          p.IntervalCount,
	}
	if p.SubscriptionEndDate != nil {
		summary.SubscriptionEndDate = p.SubscriptionEndDate.Format(time.DateOnly)
	}
	return summary
}
