package ports

import (
	"context"
	"errors"
)

// ErrSecretNotFound is returned when a secret path does not exist in the backend
var ErrSecretNotFound = errors.New("secret not found")

// Secret represents a retrieved secret with metadata
type Secret struct {
	Metadata  map[string]string
	Value     string
	Version   string
	CreatedAt string
}

// SecretManagerAdapter retrieves channel credentials from a secret backend.
// Path format depends on implementation:
//   - AWS: "subscription-billing/channels/{channel}/api-key"
//   - Vault: "secret/data/subscription-billing/channels/{channel}" (field "value" unless "#field" is appended)
//   - Local: relative file path under the base directory
type SecretManagerAdapter interface {
	GetSecret(ctx context.Context, path string) (*Secret, error)
	GetSecretVersion(ctx context.Context, path string, version string) (*Secret, error)
}
