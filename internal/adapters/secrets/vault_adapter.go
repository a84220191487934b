package secrets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	vault "github.com/hashicorp/vault/api"

	adapterports "github.com/kevin07696/subscription-billing/internal/adapters/ports"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

// VaultConfig contains configuration for HashiCorp Vault adapter
type VaultConfig struct {
	Address string
	// Authentication method: "token" or "approle"
	AuthMethod string
	Token      string
	RoleID     string
	SecretID   string
	Namespace  string
	// KV secrets engine mount path (default: "secret")
	MountPath string
	// KV version: "v1" or "v2" (default: "v2")
	KVVersion string
}

type vaultAdapter struct {
	client *vault.Client
	config VaultConfig
	logger ports.Logger
}

// NewVaultAdapter creates a new HashiCorp Vault adapter
func NewVaultAdapter(ctx context.Context, cfg VaultConfig, logger ports.Logger) (adapterports.SecretManagerAdapter, error) {
	if cfg.MountPath == "" {
		cfg.MountPath = "secret"
	}
	if cfg.KVVersion == "" {
		cfg.KVVersion = "v2"
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	if err := authenticateVault(ctx, client, cfg); err != nil {
		return nil, fmt.Errorf("failed to authenticate with Vault: %w", err)
	}

	logger.Info("Vault adapter initialized",
		ports.String("address", cfg.Address),
		ports.String("auth_method", cfg.AuthMethod),
		ports.String("kv_version", cfg.KVVersion))

	return &vaultAdapter{client: client, config: cfg, logger: logger}, nil
}

func authenticateVault(ctx context.Context, client *vault.Client, cfg VaultConfig) error {
	switch cfg.AuthMethod {
	case "", "token":
		if cfg.Token == "" {
			return fmt.Errorf("token is required for token auth")
		}
		client.SetToken(cfg.Token)
		return nil

	case "approle":
		if cfg.RoleID == "" || cfg.SecretID == "" {
			return fmt.Errorf("role_id and secret_id are required for AppRole auth")
		}
		resp, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		})
		if err != nil {
			return fmt.Errorf("AppRole login failed: %w", err)
		}
		if resp == nil || resp.Auth == nil {
			return fmt.Errorf("AppRole login returned no auth info")
		}
		client.SetToken(resp.Auth.ClientToken)
		return nil

	default:
		return fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
}

// GetSecret reads "path" or "path#field"; the field defaults to "value"
func (a *vaultAdapter) GetSecret(ctx context.Context, path string) (*adapterports.Secret, error) {
	secretPath, field := splitField(path)

	if a.config.KVVersion == "v1" {
		kv, err := a.client.KVv1(a.config.MountPath).Get(ctx, secretPath)
		if err != nil {
			return nil, a.readError(path, err)
		}
		return secretFromData(path, field, kv.Data, "1", "")
	}

	kv, err := a.client.KVv2(a.config.MountPath).Get(ctx, secretPath)
	if err != nil {
		return nil, a.readError(path, err)
	}
	version, created := versionInfo(kv)
	return secretFromData(path, field, kv.Data, version, created)
}

// GetSecretVersion reads a specific KV v2 version
func (a *vaultAdapter) GetSecretVersion(ctx context.Context, path string, version string) (*adapterports.Secret, error) {
	if a.config.KVVersion != "v2" {
		return nil, fmt.Errorf("GetSecretVersion requires KV v2")
	}
	n, err := strconv.Atoi(version)
	if err != nil {
		return nil, fmt.Errorf("invalid Vault secret version %q: %w", version, err)
	}

	secretPath, field := splitField(path)
	kv, err := a.client.KVv2(a.config.MountPath).GetVersion(ctx, secretPath, n)
	if err != nil {
		return nil, a.readError(path, err)
	}
	v, created := versionInfo(kv)
	return secretFromData(path, field, kv.Data, v, created)
}

func (a *vaultAdapter) readError(path string, err error) error {
	if errors.Is(err, vault.ErrSecretNotFound) {
		return fmt.Errorf("%w: %s", adapterports.ErrSecretNotFound, path)
	}
	a.logger.Error("Failed to read secret from Vault", ports.String("path", path), ports.Err(err))
	return fmt.Errorf("failed to read secret from Vault: %w", err)
}

func versionInfo(kv *vault.KVSecret) (string, string) {
	if kv == nil || kv.VersionMetadata == nil {
		return "", ""
	}
	return strconv.Itoa(kv.VersionMetadata.Version), kv.VersionMetadata.CreatedTime.UTC().Format(time.RFC3339)
}

func secretFromData(path, field string, data map[string]interface{}, version, created string) (*adapterports.Secret, error) {
	value, ok := data[field].(string)
	if !ok || value == "" {
		return nil, fmt.Errorf("%w: %s has no field %q", adapterports.ErrSecretNotFound, path, field)
	}

	secret := &adapterports.Secret{
		Value:     value,
		Version:   version,
		CreatedAt: created,
		Metadata:  make(map[string]string),
	}
	for k, v := range data {
		if s, ok := v.(string); ok && k != field {
			secret.Metadata[k] = s
		}
	}
	return secret, nil
}

func splitField(path string) (string, string) {
	if i := strings.LastIndex(path, "#"); i >= 0 && i < len(path)-1 {
		return path[:i], path[i+1:]
	}
	return path, "value"
}
