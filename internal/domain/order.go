package domain

import "time"

// OrderState is the order lifecycle state as seen by the billing engine
type OrderState string

const (
	OrderStateAddingItems       OrderState = "AddingItems"
	OrderStateArrangingPayment  OrderState = "ArrangingPayment"
	OrderStatePaymentAuthorized OrderState = "PaymentAuthorized"
	OrderStatePaymentSettled    OrderState = "PaymentSettled"
	OrderStateCancelled         OrderState = "Cancelled"
)

// Customer is the order's customer
type Customer struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FullName joins first and last name
func (c *Customer) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	if c.FirstName == "" {
		return c.LastName
	}
	return c.FirstName + " " + c.LastName
}

// Variant is a sellable product variant; Schedule is nil for variants that are not sold on subscription
type Variant struct {
	Schedule *Schedule `json:"schedule,omitempty"`
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	SKU      string    `json:"sku"`
	Currency string    `json:"currency"`
	Price    int64     `json:"price"`
}

// IsSubscription returns true if the variant is sold on a schedule
func (v *Variant) IsSubscription() bool {
	return v.Schedule != nil
}

// OrderLine is a line of an order with its subscription state. Downpayment and StartDate are the
// customer's choices made when the line was added; nil falls back to the schedule.
type OrderLine struct {
	Variant                   Variant    `json:"variant"`
	Downpayment               *int64     `json:"downpayment,omitempty"`
	StartDate                 *time.Time `json:"start_date,omitempty"`
	ID                        string     `json:"id"`
	OrderID                   string     `json:"order_id"`
	SubscriptionHash          string     `json:"subscription_hash,omitempty"`
	DownpaymentSubscriptionID string     `json:"downpayment_subscription_id,omitempty"`
	SubscriptionIDs           []string   `json:"subscription_ids"`
	Quantity                  int        `json:"quantity"`
	UnitPrice                 int64      `json:"unit_price"`
}

// IsSubscription returns true if the line's variant is sold on a schedule
func (l *OrderLine) IsSubscription() bool {
	return l.Variant.IsSubscription()
}

// HasSubscriptions returns true once the creation job persisted at least one provider id
func (l *OrderLine) HasSubscriptions() bool {
	return len(l.SubscriptionIDs) > 0
}

// HasRecurringSubscription returns true if an id other than the downpayment one is stored
func (l *OrderLine) HasRecurringSubscription() bool {
	for _, id := range l.SubscriptionIDs {
		if id != l.DownpaymentSubscriptionID {
			return true
		}
	}
	return false
}

// HasDownpaymentSubscription returns true once the downpayment subscription id is stored
func (l *OrderLine) HasDownpaymentSubscription() bool {
	return l.DownpaymentSubscriptionID != ""
}

// Order is the slice of an order the billing engine reads
type Order struct {
	CreatedAt         time.Time   `json:"created_at"`
	Customer          *Customer   `json:"customer,omitempty"`
	ID                string      `json:"id"`
	Code              string      `json:"code"`
	ChannelID         string      `json:"channel_id"`
	State             OrderState  `json:"state"`
	Currency          string      `json:"currency"`
	Lines             []OrderLine `json:"lines"`
	ShippingLineCount int         `json:"shipping_line_count"`
	TotalWithTax      int64       `json:"total_with_tax"`
}

// SubscriptionLines returns the lines sold on a schedule
func (o *Order) SubscriptionLines() []OrderLine {
	var lines []OrderLine
	for _, l := range o.Lines {
		if l.IsSubscription() {
			lines = append(lines, l)
		}
	}
	return lines
}

// HasSubscriptions returns true if any line is sold on a schedule
func (o *Order) HasSubscriptions() bool {
	for _, l := range o.Lines {
		if l.IsSubscription() {
			return true
		}
	}
	return false
}

// PaymentInput is a payment recorded against an order
type PaymentInput struct {
	Metadata      map[string]interface{} `json:"metadata"`
	Method        string                 `json:"method"`
	TransactionID string                 `json:"transaction_id"`
	Amount        int64                  `json:"amount"`
}

// Surcharge is an extra charge added to an order
type Surcharge struct {
	Description string `json:"description"`
	SKU         string `json:"sku"`
	Amount      int64  `json:"amount"`
}

// VerificationFeeAmount is charged on zero-total orders so the provider can verify the payment method
const VerificationFeeAmount int64 = 100
