package domain

// JobKind tags a billing job
type JobKind string

const (
	JobKindCreateSubscriptions JobKind = "create_subscriptions"
	JobKindCancelSubscription  JobKind = "cancel_subscription"
)

// BillingQueueName is the single logical queue billing jobs run on
const BillingQueueName = "subscription-billing"

// CreateSubscriptionsJob asks for provider subscriptions for every subscription line of an order
type CreateSubscriptionsJob struct {
	OrderCode               string `json:"order_code"`
	ProviderCustomerID      string `json:"provider_customer_id"`
	ProviderPaymentMethodID string `json:"provider_payment_method_id"`
}

// CancelSubscriptionJob asks for every subscription of an order line to be canceled at period end
type CancelSubscriptionJob struct {
	OrderLineID string `json:"order_line_id"`
}
