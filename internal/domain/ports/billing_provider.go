package ports

import (
	"context"

	"github.com/kevin07696/subscription-billing/internal/domain"
)

// BillingProvider is the external billing service bound to one channel's credentials.
// Implementations bound every call with a timeout and return domain provider errors.
type BillingProvider interface {
	FindCustomerByEmail(ctx context.Context, email string) (*domain.ProviderCustomer, error)
	CreateCustomer(ctx context.Context, params domain.CreateCustomerParams) (*domain.ProviderCustomer, error)
	CreateProduct(ctx context.Context, name string) (*domain.ProviderProduct, error)
	CreateSubscription(ctx context.Context, params domain.CreateSubscriptionParams) (*domain.ProviderSubscription, error)
	// UpdateSubscription returns domain.ErrSubscriptionAlreadyCanceled when the subscription was canceled
	// and an error wrapping domain.ErrSubscriptionNotFound when the provider does not know the id
	UpdateSubscription(ctx context.Context, id string, params domain.UpdateSubscriptionParams) (*domain.ProviderSubscription, error)
	GetSubscription(ctx context.Context, id string) (*domain.ProviderSubscription, error)
	CreatePaymentIntent(ctx context.Context, params domain.PaymentIntentParams) (*domain.PaymentIntent, error)
}

// WebhookVerifier checks a raw webhook body against the signature header and a channel secret
type WebhookVerifier interface {
	VerifyWebhookSignature(rawBody []byte, signatureHeader, secret string) error
}

// BillingProviderFactory binds the provider client to a channel's payment method credentials
type BillingProviderFactory interface {
	ForChannel(channel *domain.Channel) (BillingProvider, error)
	WebhookVerifier
}
