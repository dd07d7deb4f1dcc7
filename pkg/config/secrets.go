package config

import (
	"context"

	"persona-nft/backend/pkg/secrets"
)

// ResolveSecrets fills the credential fields from the secrets manager.
// Values already present in the environment act as defaults.
func (c *Config) ResolveSecrets(ctx context.Context, m secrets.Manager) {
	if m == nil {
		return
	}
	c.AI.APIKey = m.GetSecretWithDefault(ctx, "gemini-api-key", c.AI.APIKey)
	c.Pinning.JWT = m.GetSecretWithDefault(ctx, "pinata-jwt", c.Pinning.JWT)
	c.Wallet.PrivateKey = m.GetSecretWithDefault(ctx, "wallet-private-key", c.Wallet.PrivateKey)
	c.Wallet.ConnectSecret = m.GetSecretWithDefault(ctx, "wallet-connect-secret", c.Wallet.ConnectSecret)
	c.JWT.Secret = m.GetSecretWithDefault(ctx, "jwt-secret", c.JWT.Secret)
	c.Redis.Password = m.GetSecretWithDefault(ctx, "redis-password", c.Redis.Password)
	c.Database.Password = m.GetSecretWithDefault(ctx, "db-password", c.Database.Password)
}
