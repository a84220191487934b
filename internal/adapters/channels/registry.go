package channels

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	adapterports "github.com/kevin07696/subscription-billing/internal/adapters/ports"
	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

// SubscriptionHandlerCode is the payment method handler the billing engine drives
const SubscriptionHandlerCode = "stripe-subscription"

// PaymentMethodEntry is one payment method of a channel in the registry file.
// Credentials are never inlined; they are secret manager paths.
type PaymentMethodEntry struct {
	Code                            string `yaml:"code"`
	Handler                         string `yaml:"handler"`
	PublishableKey                  string `yaml:"publishable_key"`
	APIKeySecret                    string `yaml:"api_key_secret"`
	WebhookSecretSecret             string `yaml:"webhook_secret_secret"`
	Enabled                         bool   `yaml:"enabled"`
	DisableWebhookSignatureChecking bool   `yaml:"disable_webhook_signature_checking"`
}

// ChannelEntry is one channel in the registry file
type ChannelEntry struct {
	Token           string               `yaml:"token"`
	ID              string               `yaml:"id"`
	DefaultCurrency string               `yaml:"default_currency"`
	PaymentMethods  []PaymentMethodEntry `yaml:"payment_methods"`
}

type registryFile struct {
	Channels []ChannelEntry `yaml:"channels"`
}

// Registry resolves channel tokens from a static registry and fetches credentials from a secret manager
type Registry struct {
	byToken map[string]ChannelEntry
	secrets adapterports.SecretManagerAdapter
	logger  ports.Logger
}

var _ ports.ChannelResolver = (*Registry)(nil)

// LoadRegistry reads a YAML registry file
func LoadRegistry(path string, secrets adapterports.SecretManagerAdapter, logger ports.Logger) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read channel registry %s: %w", path, err)
	}
	return ParseRegistry(raw, secrets, logger)
}

// ParseRegistry builds a registry from YAML bytes
func ParseRegistry(raw []byte, secrets adapterports.SecretManagerAdapter, logger ports.Logger) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse channel registry: %w", err)
	}
	return NewRegistry(file.Channels, secrets, logger)
}

// NewRegistry builds a registry from entries. Tokens must be unique and non-empty.
func NewRegistry(entries []ChannelEntry, secrets adapterports.SecretManagerAdapter, logger ports.Logger) (*Registry, error) {
	byToken := make(map[string]ChannelEntry, len(entries))
	for i, entry := range entries {
		if entry.Token == "" {
			return nil, fmt.Errorf("channel %d has no token", i)
		}
		if entry.ID == "" {
			return nil, fmt.Errorf("channel %q has no id", entry.Token)
		}
		if _, dup := byToken[entry.Token]; dup {
			return nil, fmt.Errorf("duplicate channel token %q", entry.Token)
		}
		byToken[entry.Token] = entry
	}
	return &Registry{byToken: byToken, secrets: secrets, logger: logger}, nil
}

// Tokens returns the registered channel tokens
func (r *Registry) Tokens() []string {
	tokens := make([]string, 0, len(r.byToken))
	for token := range r.byToken {
		tokens = append(tokens, token)
	}
	return tokens
}

// Resolve returns the channel with its subscription payment method and credentials filled in
func (r *Registry) Resolve(ctx context.Context, token string) (*domain.Channel, error) {
	entry, ok := r.byToken[token]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrorCodeConfigChannelNotFound, "channel not found").
			WithDetail("channel_token", token)
	}

	method, err := subscriptionMethod(entry)
	if err != nil {
		return nil, err
	}

	apiKey, err := r.secret(ctx, entry.Token, method.APIKeySecret, "api key")
	if err != nil {
		return nil, err
	}
	webhookSecret, err := r.secret(ctx, entry.Token, method.WebhookSecretSecret, "webhook secret")
	if err != nil {
		return nil, err
	}

	return &domain.Channel{
		ID:              entry.ID,
		Token:           entry.Token,
		DefaultCurrency: strings.ToUpper(entry.DefaultCurrency),
		PaymentMethod: &domain.PaymentMethodConfig{
			Code:                            method.Code,
			Handler:                         method.Handler,
			APIKey:                          apiKey,
			PublishableKey:                  method.PublishableKey,
			WebhookSecret:                   webhookSecret,
			Enabled:                         method.Enabled,
			DisableWebhookSignatureChecking: method.DisableWebhookSignatureChecking,
		},
	}, nil
}

// subscriptionMethod picks the single enabled payment method using the subscription handler
func subscriptionMethod(entry ChannelEntry) (PaymentMethodEntry, error) {
	var found []PaymentMethodEntry
	for _, m := range entry.PaymentMethods {
		if m.Enabled && m.Handler == SubscriptionHandlerCode {
			found = append(found, m)
		}
	}
	switch len(found) {
	case 0:
		return PaymentMethodEntry{}, domain.NewDomainError(domain.ErrorCodeConfigPaymentMethod,
			"no enabled subscription payment method").WithDetail("channel_token", entry.Token)
	case 1:
		return found[0], nil
	default:
		return PaymentMethodEntry{}, domain.NewDomainError(domain.ErrorCodeConfigPaymentMethod,
			"more than one enabled subscription payment method").
			WithDetail("channel_token", entry.Token).
			WithDetail("count", len(found))
	}
}

func (r *Registry) secret(ctx context.Context, token, path, what string) (string, error) {
	if path == "" {
		return "", domain.NewDomainError(domain.ErrorCodeConfigMissingCredentials, what+" is not configured").
			WithDetail("channel_token", token)
	}
	s, err := r.secrets.GetSecret(ctx, path)
	if err != nil {
		if errors.Is(err, adapterports.ErrSecretNotFound) {
			return "", domain.WrapError(domain.ErrorCodeConfigMissingCredentials, what+" secret not found", err).
				WithDetail("channel_token", token)
		}
		r.logger.Error("failed to fetch channel secret",
			ports.String("channel_token", token),
			ports.String("kind", what),
			ports.Err(err),
		)
		return "", fmt.Errorf("failed to fetch %s for channel %s: %w", what, token, err)
	}
	if s.Value == "" {
		return "", domain.NewDomainError(domain.ErrorCodeConfigMissingCredentials, what+" is empty").
			WithDetail("channel_token", token)
	}
	return s.Value, nil
}
