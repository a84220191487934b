package ports

import (
	"context"

	"github.com/kevin07696/subscription-billing/internal/domain"
)

// ChannelResolver resolves a channel token into a channel with its payment method credentials.
// Returns a configuration error when the channel has no single enabled payment method with
// an api key and a webhook secret.
type ChannelResolver interface {
	Resolve(ctx context.Context, token string) (*domain.Channel, error)
}
