package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server struct {
		Port     string
		GRPCPort string
		Env      string
		Timeout  time.Duration
		BaseURL  string
	}

	// Chain holds the RPC endpoint and the deployed character contract
	Chain struct {
		RPCURL          string
		ChainID         int64
		ContractAddress string
		ExplorerURL     string
		ReceiptTimeout  time.Duration
	}

	// Wallet selects the signing backend: "key", "mock" or "none"
	Wallet struct {
		Backend     string
		PrivateKey  string
		MockAddress string
		// ConnectSecret, when set, must accompany POST /wallet/connect
		ConnectSecret string
	}

	Pinning struct {
		BaseURL    string
		GatewayURL string
		JWT        string
		Timeout    time.Duration
	}

	AI struct {
		APIKey      string
		Model       string
		Temperature float64
		Timeout     time.Duration
		StylesPath  string
	}

	Avatar struct {
		APIURL  string
		Timeout time.Duration
		// Curated enables the fixed avatars of the built-in characters
		Curated        bool
		CuratedBaseURL string
	}

	JWT struct {
		Secret string
		Expiry time.Duration
	}

	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		MaxBodySize    int64
	}

	Logging struct {
		Level  string
		Format string
	}

	Session struct {
		IdleTTL     time.Duration
		MaxSessions int
	}

	// Cache selects where fetched metadata is cached: "memory" or "redis"
	Cache struct {
		Backend     string
		TTL         time.Duration
		MaxSize     int
		PurgeWindow time.Duration
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// Database is the optional Postgres store for the character projection
	Database struct {
		Enabled  bool
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
	}

	Vault struct {
		Enabled     bool
		Address     string
		Token       string
		Namespace   string
		MountPath   string
		SecretsPath string
	}

	OpenAPISchemaPath string
}

var (
	instance *Config
	once     sync.Once
)

// New returns the process-wide Config, loading it from the environment on first use
func New() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		instance = Load()
	})
	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	return New()
}

// Load reads a fresh Config from environment variables
func Load() *Config {
	cfg := &Config{}

	cfg.Server.Port = getEnvString("PORT", "8081")
	cfg.Server.GRPCPort = getEnvString("GRPC_PORT", "9091")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
	cfg.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.Server.Port)

	cfg.Chain.RPCURL = getEnvString("CHAIN_RPC_URL", "https://api.avax-test.network/ext/bc/C/rpc")
	cfg.Chain.ChainID = getEnvInt64("CHAIN_ID", 43113)
	cfg.Chain.ContractAddress = getEnvString("NFT_CONTRACT_ADDRESS", "")
	cfg.Chain.ExplorerURL = getEnvString("CHAIN_EXPLORER_URL", "https://testnet.snowtrace.io")
	cfg.Chain.ReceiptTimeout = getEnvDuration("CHAIN_RECEIPT_TIMEOUT", 2*time.Minute)

	cfg.Wallet.Backend = getEnvString("WALLET_BACKEND", "key")
	cfg.Wallet.PrivateKey = getEnvString("WALLET_PRIVATE_KEY", "")
	cfg.Wallet.MockAddress = getEnvString("WALLET_MOCK_ADDRESS", "0x1234567890123456789012345678901234567890")
	cfg.Wallet.ConnectSecret = getEnvString("WALLET_CONNECT_SECRET", "")

	cfg.Pinning.BaseURL = getEnvString("PINATA_BASE_URL", "https://api.pinata.cloud/pinning")
	cfg.Pinning.GatewayURL = getEnvString("PINATA_GATEWAY_URL", "https://gateway.pinata.cloud")
	cfg.Pinning.JWT = getEnvString("PINATA_JWT", "")
	cfg.Pinning.Timeout = getEnvDuration("PINATA_TIMEOUT", 60*time.Second)

	cfg.AI.APIKey = getEnvString("GEMINI_API_KEY", "")
	cfg.AI.Model = getEnvString("GEMINI_MODEL", "gemini-1.5-flash")
	cfg.AI.Temperature = getEnvFloat("GEMINI_TEMPERATURE", 0.9)
	cfg.AI.Timeout = getEnvDuration("GEMINI_TIMEOUT", 30*time.Second)
	cfg.AI.StylesPath = getEnvString("PERSONA_STYLES_PATH", "")

	cfg.Avatar.APIURL = getEnvString("AVATAR_API_URL", "http://127.0.0.1:5001/generate-avatar")
	cfg.Avatar.Timeout = getEnvDuration("AVATAR_TIMEOUT", 90*time.Second)
	cfg.Avatar.Curated = getEnvBool("CURATED_AVATARS", true)
	cfg.Avatar.CuratedBaseURL = getEnvString("CURATED_AVATAR_BASE_URL", "")

	cfg.JWT.Secret = getEnvString("JWT_SECRET", "")
	cfg.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
	cfg.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 10<<20)

	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	cfg.Session.IdleTTL = getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute)
	cfg.Session.MaxSessions = getEnvInt("SESSION_MAX", 1000)

	cfg.Cache.Backend = getEnvString("CACHE_BACKEND", "memory")
	cfg.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
	cfg.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 1000)
	cfg.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)

	cfg.Redis.Addr = getEnvString("REDIS_URL", "localhost:6379")
	cfg.Redis.Password = getEnvString("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Database.Enabled = getEnvBool("DB_ENABLED", false)
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "persona_nft")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)

	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Address = getEnvString("VAULT_ADDR", "")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.Namespace = getEnvString("VAULT_NAMESPACE", "")
	cfg.Vault.MountPath = getEnvString("VAULT_MOUNT_PATH", "secret")
	cfg.Vault.SecretsPath = getEnvString("VAULT_SECRETS_PATH", "persona-nft")

	cfg.OpenAPISchemaPath = getEnvString("OPENAPI_SCHEMA_PATH", "")

	return cfg
}

// IsProduction reports whether the service runs with APP_ENV=production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
