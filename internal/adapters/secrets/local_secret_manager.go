package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	adapterports "github.com/kevin07696/subscription-billing/internal/adapters/ports"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

// localSecretManager reads secrets from files under a base directory.
// Development only; use AWS Secrets Manager or Vault in production.
type localSecretManager struct {
	basePath string
	logger   ports.Logger
}

// NewLocalSecretManager creates a new local filesystem secret manager
func NewLocalSecretManager(basePath string, logger ports.Logger) adapterports.SecretManagerAdapter {
	return &localSecretManager{basePath: basePath, logger: logger}
}

// GetSecret reads a plain text file, or a JSON file of the form {"value": "...", "tags": {...}}
func (m *localSecretManager) GetSecret(_ context.Context, secretPath string) (*adapterports.Secret, error) {
	filePath := filepath.Join(m.basePath, filepath.Clean("/"+secretPath))

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", adapterports.ErrSecretNotFound, secretPath)
		}
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	m.logger.Debug("Secret read from filesystem", ports.String("path", secretPath))

	var secretData struct {
		Tags      map[string]string `json:"tags"`
		Value     string            `json:"value"`
		CreatedAt string            `json:"created_at"`
	}
	if err := json.Unmarshal(data, &secretData); err == nil && secretData.Value != "" {
		return &adapterports.Secret{
			Value:     secretData.Value,
			Version:   "v1",
			Metadata:  secretData.Tags,
			CreatedAt: secretData.CreatedAt,
		}, nil
	}

	return &adapterports.Secret{
		Value:   strings.TrimSpace(string(data)),
		Version: "v1",
	}, nil
}

// GetSecretVersion only knows the single file version
func (m *localSecretManager) GetSecretVersion(ctx context.Context, secretPath string, version string) (*adapterports.Secret, error) {
	if version != "" && version != "v1" {
		return nil, fmt.Errorf("%w: %s version %s", adapterports.ErrSecretNotFound, secretPath, version)
	}
	return m.GetSecret(ctx, secretPath)
}
