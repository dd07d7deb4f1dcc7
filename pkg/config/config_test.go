package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type staticSecrets map[string]string

func (s staticSecrets) GetSecret(_ context.Context, key string) (string, error) {
	return s[key], nil
}

func (s staticSecrets) GetSecretWithDefault(_ context.Context, key, defaultValue string) string {
	if v, ok := s[key]; ok {
		return v
	}
	return defaultValue
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, int64(43113), cfg.Chain.ChainID)
	assert.Equal(t, "gemini-1.5-flash", cfg.AI.Model)
	assert.InDelta(t, 0.9, cfg.AI.Temperature, 1e-9)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.False(t, cfg.Database.Enabled)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("CHAIN_ID", "43114")
	t.Setenv("SESSION_IDLE_TTL", "5m")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("NFT_CONTRACT_ADDRESS", "0x2BA558Db9F0F42646a2D99140389C2659912A5C7")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, int64(43114), cfg.Chain.ChainID)
	assert.Equal(t, 5*time.Minute, cfg.Session.IdleTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, "0x2BA558Db9F0F42646a2D99140389C2659912A5C7", cfg.Chain.ContractAddress)
}

func TestResolveSecrets(t *testing.T) {
	t.Setenv("PINATA_JWT", "from-env")
	cfg := Load()

	cfg.ResolveSecrets(context.Background(), staticSecrets{"gemini-api-key": "vault-key"})

	assert.Equal(t, "vault-key", cfg.AI.APIKey)
	assert.Equal(t, "from-env", cfg.Pinning.JWT)
}
