package domain

import "time"

// ProviderSubscriptionStatus is the status the billing provider reports for a subscription
type ProviderSubscriptionStatus string

const (
	ProviderSubscriptionActive     ProviderSubscriptionStatus = "active"
	ProviderSubscriptionTrialing   ProviderSubscriptionStatus = "trialing"
	ProviderSubscriptionIncomplete ProviderSubscriptionStatus = "incomplete"
	ProviderSubscriptionPastDue    ProviderSubscriptionStatus = "past_due"
	ProviderSubscriptionUnpaid     ProviderSubscriptionStatus = "unpaid"
	ProviderSubscriptionCanceled   ProviderSubscriptionStatus = "canceled"
)

// IsHealthy returns true for statuses that mean the subscription will bill normally
func (s ProviderSubscriptionStatus) IsHealthy() bool {
	return s == ProviderSubscriptionActive || s == ProviderSubscriptionTrialing
}

// ProviderCustomer is a customer object at the billing provider
type ProviderCustomer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ProviderProduct is a product object at the billing provider
type ProviderProduct struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProviderSubscription is a subscription object at the billing provider
type ProviderSubscription struct {
	CurrentPeriodEnd  *time.Time                 `json:"current_period_end,omitempty"`
	Metadata          map[string]string          `json:"metadata,omitempty"`
	ID                string                     `json:"id"`
	CustomerID        string                     `json:"customer_id"`
	Status            ProviderSubscriptionStatus `json:"status"`
	CancelAtPeriodEnd bool                       `json:"cancel_at_period_end"`
}

// CreateSubscriptionParams describes an off-session subscription to create
type CreateSubscriptionParams struct {
	StartDate       time.Time
	EndDate         *time.Time
	Metadata        map[string]string
	CustomerID      string
	ProductID       string
	PaymentMethodID string
	Currency        string
	Description     string
	Interval        IntervalUnit
	IntervalCount   int
	Amount          int64
}

// UpdateSubscriptionParams holds the mutable subscription fields
type UpdateSubscriptionParams struct {
	CancelAtPeriodEnd *bool
}

// CreateCustomerParams describes a provider customer to create
type CreateCustomerParams struct {
	Metadata map[string]string
	Email    string
	Name     string
}

// PaymentIntentParams describes a payment intent to create
type PaymentIntentParams struct {
	Metadata         map[string]string
	CustomerID       string
	Currency         string
	SetupFutureUsage string
	Description      string
	Amount           int64
}

// PaymentIntent is a payment intent at the billing provider
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Currency     string `json:"currency"`
	Amount       int64  `json:"amount"`
}

const (
	// SetupFutureUsageOffSession lets the provider charge the saved payment method without the customer present
	SetupFutureUsageOffSession = "off_session"
	SetupFutureUsageOnSession  = "on_session"
)
