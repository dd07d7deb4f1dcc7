package di

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"persona-nft/backend/ai"
	"persona-nft/backend/internal/avatar"
	"persona-nft/backend/internal/chat"
	"persona-nft/backend/internal/contract"
	"persona-nft/backend/internal/directory"
	grpcserver "persona-nft/backend/internal/grpc"
	"persona-nft/backend/internal/metadata"
	"persona-nft/backend/internal/mint"
	"persona-nft/backend/internal/wallet"
	"persona-nft/backend/pkg/config"
	"persona-nft/backend/pkg/health"
	"persona-nft/backend/pkg/jwt"
	"persona-nft/backend/pkg/logger"
	"persona-nft/backend/pkg/middleware"
	"persona-nft/backend/pkg/secrets"
	"persona-nft/backend/shared/observability"
	"persona-nft/backend/shared/redis"
)

// Container holds all the dependencies for the application
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          *gorm.DB
	Redis       *redis.Client
	Metrics     *observability.Metrics
	JWTService  *jwt.Service
	Wallet      *wallet.Adapter
	Contract    *contract.Client
	Pinata      *metadata.Client
	Avatars     *avatar.Generator
	Directory   *directory.Directory
	Generator   ai.Generator
	Sessions    *chat.Manager
	Minter      *mint.Pipeline
	Health      *health.Checker
	RateLimiter *middleware.RateLimiter
	GRPC        *grpcserver.Server

	closers []func(context.Context) error
}

// New builds every service described by cfg. Secrets are resolved first, from Vault when enabled.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: log}
	ok := false
	defer func() {
		if !ok {
			_ = c.Close(context.Background())
		}
	}()

	c.resolveSecrets(ctx)

	shutdownTracing, err := observability.SetupTracing(observability.ServiceName, traceOutput(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	c.closers = append(c.closers, shutdownTracing)

	if c.Metrics, err = observability.NewMetrics(); err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	c.closers = append(c.closers, c.Metrics.Shutdown)

	if c.JWTService, err = jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry); err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	c.Health = health.NewChecker(log, 0)
	c.GRPC = grpcserver.NewServer(log)
	c.Health.OnChange(c.GRPC.SetServing)

	if c.Wallet, err = newWallet(cfg, log); err != nil {
		return nil, err
	}
	if err := c.initChain(ctx); err != nil {
		return nil, err
	}

	c.Pinata = metadata.NewClient(metadata.Options{
		BaseURL:    cfg.Pinning.BaseURL,
		GatewayURL: cfg.Pinning.GatewayURL,
		JWT:        cfg.Pinning.JWT,
		Timeout:    cfg.Pinning.Timeout,
		Recorder:   c.Metrics,
	}, log)
	c.Health.RegisterPingCheck("pinning", false, c.Pinata.Ping)

	c.Avatars = avatar.NewGenerator(cfg.Avatar.APIURL, cfg.Avatar.Timeout, log)

	if err := c.initDirectory(ctx); err != nil {
		return nil, err
	}

	if c.Generator, err = ai.NewGeminiGenerator(ctx, ai.Config{
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: float32(cfg.AI.Temperature),
		Timeout:     cfg.AI.Timeout,
	}, log); err != nil {
		return nil, err
	}

	styles, err := chat.LoadStyles(cfg.AI.StylesPath)
	if err != nil {
		return nil, err
	}
	c.Sessions = chat.NewManager(c.Directory, c.Generator, chat.ManagerOptions{
		IdleTTL:      cfg.Session.IdleTTL,
		MaxSessions:  cfg.Session.MaxSessions,
		ReplyTimeout: cfg.AI.Timeout,
		Styles:       styles,
		Metrics:      c.Metrics,
	}, log)
	c.closers = append(c.closers, func(context.Context) error {
		c.Sessions.Shutdown()
		return nil
	})

	c.Minter = mint.NewPipeline(c.Wallet, c.Pinata, c.Contract, c.Avatars, mint.Options{
		ExplorerURL: cfg.Chain.ExplorerURL,
		Recorder:    c.Metrics,
	}, log)

	opts := middleware.DefaultRateLimiterOptions()
	opts.Limit = rate.Limit(cfg.Security.RateLimit)
	opts.Burst = cfg.Security.RateLimitBurst
	c.RateLimiter = middleware.NewRateLimiter(log, opts)

	ok = true
	return c, nil
}

func (c *Container) resolveSecrets(ctx context.Context) {
	cfg := c.Config
	if !cfg.Vault.Enabled {
		cfg.ResolveSecrets(ctx, secrets.NewEnvManager())
		return
	}

	vm, err := secrets.NewVaultManager(secrets.VaultConfig{
		Address:     cfg.Vault.Address,
		Token:       cfg.Vault.Token,
		Namespace:   cfg.Vault.Namespace,
		MountPath:   cfg.Vault.MountPath,
		SecretsPath: cfg.Vault.SecretsPath,
	}, c.Logger)
	if err != nil {
		c.Logger.LogError(err, "Vault unavailable, reading secrets from the environment")
		cfg.ResolveSecrets(ctx, secrets.NewEnvManager())
		return
	}
	cfg.ResolveSecrets(ctx, vm)
}

func newWallet(cfg *config.Config, log *logger.Logger) (*wallet.Adapter, error) {
	switch strings.ToLower(cfg.Wallet.Backend) {
	case "key":
		if cfg.Wallet.PrivateKey == "" {
			log.Warn("WALLET_PRIVATE_KEY is not set; no wallet provider available")
			return wallet.NewAdapter(nil, log), nil
		}
		p, err := wallet.NewKeyProvider(cfg.Wallet.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load wallet key: %w", err)
		}
		return wallet.NewAdapter(p, log), nil
	case "mock":
		if !common.IsHexAddress(cfg.Wallet.MockAddress) {
			return nil, fmt.Errorf("invalid mock wallet address %q", cfg.Wallet.MockAddress)
		}
		return wallet.NewAdapter(wallet.NewMockProvider(common.HexToAddress(cfg.Wallet.MockAddress)), log), nil
	case "none", "":
		return wallet.NewAdapter(nil, log), nil
	default:
		return nil, fmt.Errorf("unknown wallet backend %q", cfg.Wallet.Backend)
	}
}

func (c *Container) initChain(ctx context.Context) error {
	cfg := c.Config
	if !common.IsHexAddress(cfg.Chain.ContractAddress) {
		return fmt.Errorf("NFT_CONTRACT_ADDRESS %q is not a valid address", cfg.Chain.ContractAddress)
	}

	rpc, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to dial chain rpc: %w", err)
	}
	c.closers = append(c.closers, func(context.Context) error {
		rpc.Close()
		return nil
	})

	c.Contract, err = contract.NewClient(rpc, c.Wallet, contract.Config{
		Address:        common.HexToAddress(cfg.Chain.ContractAddress),
		ChainID:        big.NewInt(cfg.Chain.ChainID),
		ReceiptTimeout: cfg.Chain.ReceiptTimeout,
	}, c.Logger)
	if err != nil {
		return err
	}
	c.Health.RegisterPingCheck("rpc", true, c.Contract.Ping)
	return nil
}

func (c *Container) initDirectory(ctx context.Context) error {
	cfg := c.Config
	opts := directory.Options{Recorder: c.Metrics}
	if cfg.Avatar.Curated {
		opts.Avatars = directory.DefaultAvatars(cfg.Avatar.CuratedBaseURL)
	}

	switch strings.ToLower(cfg.Cache.Backend) {
	case "redis":
		c.Redis = redis.NewClient(redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   "persona-nft:",
		})
		c.closers = append(c.closers, func(context.Context) error { return c.Redis.Close() })
		c.Health.RegisterPingCheck("redis", false, c.Redis.Ping)
		opts.Cache = directory.NewRedisCache(c.Redis, cfg.Cache.TTL, c.Logger)
	default:
		mem := directory.NewMemoryCache(cfg.Cache.TTL, cfg.Cache.MaxSize, cfg.Cache.PurgeWindow)
		c.closers = append(c.closers, func(context.Context) error {
			mem.Close()
			return nil
		})
		opts.Cache = mem
	}

	if cfg.Database.Enabled {
		db, err := config.NewDB(cfg)
		if err != nil {
			return err
		}
		c.DB = db
		c.closers = append(c.closers, func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})

		store := directory.NewGormStore(db)
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate character store: %w", err)
		}
		opts.Store = store
		c.Health.RegisterPingCheck("database", false, func(context.Context) error { return config.PingDB(db) })
	}

	c.Directory = directory.New(c.Contract, c.Pinata, opts, c.Logger)
	return nil
}

func traceOutput(cfg *config.Config) *os.File {
	if cfg.IsProduction() {
		return os.Stderr
	}
	return os.Stdout
}

// Close releases resources in reverse order of creation
func (c *Container) Close(ctx context.Context) error {
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.closers = nil
	return firstErr
}
