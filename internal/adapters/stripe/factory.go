package stripe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	adapterports "github.com/kevin07696/subscription-billing/internal/adapters/ports"
	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

const defaultClientCacheSize = 256

// Factory hands out one client per channel so each channel keeps its own circuit breaker
type Factory struct {
	*SignatureVerifier
	clients    *lru.Cache[string, *Client]
	httpClient adapterports.HTTPClient
	logger     ports.Logger
	config     ClientConfig
}

var _ ports.BillingProviderFactory = (*Factory)(nil)

// NewFactory creates a provider factory
func NewFactory(cfg ClientConfig, verifier *SignatureVerifier, httpClient adapterports.HTTPClient, logger ports.Logger) (*Factory, error) {
	clients, err := lru.New[string, *Client](defaultClientCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create client cache: %w", err)
	}
	if verifier == nil {
		verifier = NewSignatureVerifier(DefaultSignatureTolerance)
	}
	return &Factory{
		SignatureVerifier: verifier,
		clients:           clients,
		httpClient:        httpClient,
		logger:            logger,
		config:            cfg,
	}, nil
}

// ForChannel returns the client for the channel's secret key. A rotated key yields a new client.
func (f *Factory) ForChannel(channel *domain.Channel) (ports.BillingProvider, error) {
	if channel == nil || channel.PaymentMethod == nil || channel.PaymentMethod.APIKey == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeConfigPaymentMethod, "no billing provider api key configured for channel")
	}

	key := cacheKey(channel.Token, channel.PaymentMethod.APIKey)
	if client, ok := f.clients.Get(key); ok {
		return client, nil
	}

	client := NewClient(f.config, channel.PaymentMethod.APIKey, channel.Token, f.httpClient, f.logger)
	f.clients.Add(key, client)
	return client, nil
}

func cacheKey(channelToken, apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return channelToken + ":" + hex.EncodeToString(sum[:8])
}
