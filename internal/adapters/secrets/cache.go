package secrets

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	adapterports "github.com/kevin07696/subscription-billing/internal/adapters/ports"
)

// CachedSecretManager memoizes GetSecret lookups for a TTL. Versioned reads bypass the cache.
type CachedSecretManager struct {
	inner adapterports.SecretManagerAdapter
	cache *expirable.LRU[string, *adapterports.Secret]
}

// NewCachedSecretManager wraps inner with an expiring LRU of the given size
func NewCachedSecretManager(inner adapterports.SecretManagerAdapter, size int, ttl time.Duration) *CachedSecretManager {
	return &CachedSecretManager{
		inner: inner,
		cache: expirable.NewLRU[string, *adapterports.Secret](size, nil, ttl),
	}
}

func (c *CachedSecretManager) GetSecret(ctx context.Context, path string) (*adapterports.Secret, error) {
	if secret, ok := c.cache.Get(path); ok {
		return secret, nil
	}
	secret, err := c.inner.GetSecret(ctx, path)
	if err != nil {
		return nil, err
	}
	c.cache.Add(path, secret)
	return secret, nil
}

func (c *CachedSecretManager) GetSecretVersion(ctx context.Context, path string, version string) (*adapterports.Secret, error) {
	return c.inner.GetSecretVersion(ctx, path, version)
}

// Invalidate drops a cached path, used after credential rotation
func (c *CachedSecretManager) Invalidate(path string) {
	c.cache.Remove(path)
}
