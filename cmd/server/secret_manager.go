package main

import (
	"context"
	"fmt"

	adapterports "github.com/kevin07696/subscription-billing/internal/adapters/ports"
	"github.com/kevin07696/subscription-billing/internal/adapters/secrets"
	"github.com/kevin07696/subscription-billing/internal/config"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

// initSecretManager initializes the secret backend named by SECRET_MANAGER and wraps it in the lookup cache.
// Supports:
//   - AWS Secrets Manager (production): SECRET_MANAGER=aws, AWS_REGION
//   - HashiCorp Vault: SECRET_MANAGER=vault, VAULT_ADDR plus token or approle credentials
//   - Local files (development/testing): SECRET_MANAGER=local, SECRETS_PATH
func initSecretManager(ctx context.Context, cfg config.SecretsConfig, logger ports.Logger) (adapterports.SecretManagerAdapter, error) {
	var (
		inner adapterports.SecretManagerAdapter
		err   error
	)

	switch cfg.Backend {
	case "aws":
		inner, err = secrets.NewAWSSecretsManagerAdapter(ctx, secrets.AWSSecretsManagerConfig{
			Region:   cfg.AWSRegion,
			Profile:  cfg.AWSProfile,
			Endpoint: cfg.AWSEndpoint,
		}, logger)
	case "vault":
		inner, err = secrets.NewVaultAdapter(ctx, secrets.VaultConfig{
			Address:    cfg.VaultAddress,
			AuthMethod: cfg.VaultAuthMethod,
			Token:      cfg.VaultToken,
			RoleID:     cfg.VaultRoleID,
			SecretID:   cfg.VaultSecretID,
			Namespace:  cfg.VaultNamespace,
			MountPath:  cfg.VaultMountPath,
		}, logger)
	default:
		logger.Warn("Using LOCAL secret manager - NOT for production use!",
			ports.String("secrets_path", cfg.LocalPath),
		)
		inner = secrets.NewLocalSecretManager(cfg.LocalPath, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s secret manager: %w", cfg.Backend, err)
	}

	logger.Info("Secret manager initialized",
		ports.String("backend", cfg.Backend),
		ports.Int("cache_size", cfg.CacheSize),
		ports.Duration("cache_ttl", cfg.CacheTTL),
	)
	return secrets.NewCachedSecretManager(inner, cfg.CacheSize, cfg.CacheTTL), nil
}
