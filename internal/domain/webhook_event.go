package domain

import (
	"encoding/json"
	"fmt"
)

// EventType is the provider's event kind, the tag of the webhook envelope
type EventType string

const (
	EventPaymentIntentSucceeded       EventType = "payment_intent.succeeded"
	EventInvoicePaymentSucceeded      EventType = "invoice.payment_succeeded"
	EventInvoicePaymentFailed         EventType = "invoice.payment_failed"
	EventInvoicePaymentActionRequired EventType = "invoice.payment_action_required"
)

// Metadata keys carried on every provider object the billing engine creates
const (
	MetadataOrderCode    = "orderCode"
	MetadataChannelToken = "channelToken"
	MetadataAmount       = "amount"
)

// Metadata is the provider's string map attached to objects
type Metadata map[string]string

// OrderCode returns the order code or ""
func (m Metadata) OrderCode() string { return m[MetadataOrderCode] }

// ChannelToken returns the channel token or ""
func (m Metadata) ChannelToken() string { return m[MetadataChannelToken] }

// Complete returns true when both routing keys are present
func (m Metadata) Complete() bool {
	return m.OrderCode() != "" && m.ChannelToken() != ""
}

// envelope is the raw provider event before its object is decoded by tag
type envelope struct {
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	Created int64     `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// WebhookEvent is a decoded provider event. The concrete type is selected by the envelope's type field.
type WebhookEvent interface {
	EventID() string
	Type() EventType
	// RoutingMetadata returns the metadata that identifies the order and channel
	RoutingMetadata() Metadata
}

// PaymentIntentObject is data.object of payment_intent.* events
type PaymentIntentObject struct {
	Metadata      Metadata `json:"metadata"`
	ID            string   `json:"id"`
	Customer      string   `json:"customer"`
	PaymentMethod string   `json:"payment_method"`
	Currency      string   `json:"currency"`
	Status        string   `json:"status"`
	Amount        int64    `json:"amount"`
}

// InvoicePlan is the plan of an invoice line
type InvoicePlan struct {
	ID       string `json:"id"`
	Interval string `json:"interval"`
	Amount   int64  `json:"amount"`
}

// InvoiceLine is one line of an invoice
type InvoiceLine struct {
	Plan         *InvoicePlan `json:"plan"`
	Metadata     Metadata     `json:"metadata"`
	ID           string       `json:"id"`
	Subscription string       `json:"subscription"`
	Amount       int64        `json:"amount"`
}

// InvoiceObject is data.object of invoice.* events
type InvoiceObject struct {
	Metadata         Metadata `json:"metadata"`
	ID               string   `json:"id"`
	Customer         string   `json:"customer"`
	Subscription     string   `json:"subscription"`
	Currency         string   `json:"currency"`
	CollectionMethod string   `json:"collection_method"`
	Lines            struct {
		Data []InvoiceLine `json:"data"`
	} `json:"lines"`
	AmountDue  int64 `json:"amount_due"`
	AmountPaid int64 `json:"amount_paid"`
}

// Charge sums the plan amounts of all invoice lines
func (o *InvoiceObject) Charge() int64 {
	var total int64
	for _, l := range o.Lines.Data {
		if l.Plan != nil {
			total += l.Plan.Amount
		}
	}
	return total
}

// SubscriptionID returns the invoice's subscription, falling back to its first line
func (o *InvoiceObject) SubscriptionID() string {
	if o.Subscription != "" {
		return o.Subscription
	}
	if len(o.Lines.Data) > 0 {
		return o.Lines.Data[0].Subscription
	}
	return ""
}

// RoutingMetadata prefers the invoice metadata and falls back to the first line's metadata,
// which is where subscription-generated invoices carry it.
func (o *InvoiceObject) RoutingMetadata() Metadata {
	if o.Metadata.Complete() {
		return o.Metadata
	}
	if len(o.Lines.Data) > 0 && o.Lines.Data[0].Metadata.Complete() {
		return o.Lines.Data[0].Metadata
	}
	return o.Metadata
}

// PaymentIntentSucceededEvent is a payment_intent.succeeded event
type PaymentIntentSucceededEvent struct {
	Object PaymentIntentObject
	ID     string
}

func (e *PaymentIntentSucceededEvent) EventID() string           { return e.ID }
func (e *PaymentIntentSucceededEvent) Type() EventType           { return EventPaymentIntentSucceeded }
func (e *PaymentIntentSucceededEvent) RoutingMetadata() Metadata { return e.Object.Metadata }

// InvoiceEvent covers invoice.payment_succeeded, invoice.payment_failed and invoice.payment_action_required
type InvoiceEvent struct {
	Object    InvoiceObject
	ID        string
	EventType EventType
}

func (e *InvoiceEvent) EventID() string           { return e.ID }
func (e *InvoiceEvent) Type() EventType           { return e.EventType }
func (e *InvoiceEvent) RoutingMetadata() Metadata { return e.Object.RoutingMetadata() }

// Succeeded returns true for invoice.payment_succeeded
func (e *InvoiceEvent) Succeeded() bool {
	return e.EventType == EventInvoicePaymentSucceeded
}

// UnsupportedEvent is any event kind the billing engine does not process
type UnsupportedEvent struct {
	ID        string
	EventType EventType
}

func (e *UnsupportedEvent) EventID() string           { return e.ID }
func (e *UnsupportedEvent) Type() EventType           { return e.EventType }
func (e *UnsupportedEvent) RoutingMetadata() Metadata { return nil }

// DecodeWebhookEvent decodes a provider envelope into the variant selected by its type
func DecodeWebhookEvent(raw []byte) (WebhookEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, WrapError(ErrorCodeValidationMalformedEvent, "malformed webhook envelope", err)
	}
	if env.Type == "" {
		return nil, NewDomainError(ErrorCodeValidationMalformedEvent, "webhook envelope has no type")
	}

	switch env.Type {
	case EventPaymentIntentSucceeded:
		ev := &PaymentIntentSucceededEvent{ID: env.ID}
		if err := decodeObject(env, &ev.Object); err != nil {
			return nil, err
		}
		return ev, nil

	case EventInvoicePaymentSucceeded, EventInvoicePaymentFailed, EventInvoicePaymentActionRequired:
		ev := &InvoiceEvent{ID: env.ID, EventType: env.Type}
		if err := decodeObject(env, &ev.Object); err != nil {
			return nil, err
		}
		return ev, nil

	default:
		return &UnsupportedEvent{ID: env.ID, EventType: env.Type}, nil
	}
}

func decodeObject(env envelope, into interface{}) error {
	if len(env.Data.Object) == 0 {
		return NewDomainError(ErrorCodeValidationMalformedEvent, "webhook envelope has no data.object").
			WithDetail("event_type", string(env.Type))
	}
	if err := json.Unmarshal(env.Data.Object, into); err != nil {
		return WrapError(ErrorCodeValidationMalformedEvent,
			fmt.Sprintf("malformed %s object", env.Type), err)
	}
	return nil
}
