package router

import (
	"context"

	"github.com/gin-gonic/gin"

	"persona-nft/backend/internal/api"
	"persona-nft/backend/internal/ws"
	"persona-nft/backend/pkg/config"
	"persona-nft/backend/pkg/di"
	"persona-nft/backend/pkg/errors"
	"persona-nft/backend/pkg/logger"
	"persona-nft/backend/pkg/middleware"
)

// Version is reported by the health endpoints
var Version = "dev"

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Hub       *ws.Hub
	Config    *config.Config
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)
	cfg := container.Config

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// request logger first so every later middleware sees the request ID
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(container.Metrics.Middleware())
	engine.Use(middleware.CORS(cfg.Security.AllowedOrigins))
	engine.Use(middleware.BodyLimit(cfg.Security.MaxBodySize))

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Hub:       ws.NewHub(container.Sessions, cfg.Security.AllowedOrigins, container.Logger),
		Config:    cfg,
	}
}

// Start runs the background workers the routes depend on until ctx is done
func (r *Router) Start(ctx context.Context) {
	go r.Hub.Run(ctx)
	go r.Container.RateLimiter.Run(ctx)
	r.Container.Health.Start(ctx)
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	if r.Config.OpenAPISchemaPath != "" {
		r.AddOpenAPIValidation(r.Config.OpenAPISchemaPath)
	}

	c := r.Container
	walletAuth := middleware.WalletAuth(c.JWTService, r.Logger)
	limit := c.RateLimiter.Middleware()

	walletHandler := api.NewWalletHandler(c.Wallet, c.JWTService, r.Config.Chain.ChainID, r.Logger)
	characterHandler := api.NewCharacterHandler(c.Directory, c.Minter, c.Wallet)
	chatController := api.NewChatController(c.Sessions)
	healthHandler := api.NewHealthHandler(c.Health, c.Sessions.Count, Version)

	r.setupHealthRoutes()
	r.Engine.GET("/metrics", c.Metrics.Handler())

	v1 := r.Engine.Group("/api/v1")
	{
		healthHandler.RegisterHealthRoutes(v1)
		walletHandler.RegisterRoutes(v1, walletAuth, middleware.ConnectGuard(r.Config.Wallet.ConnectSecret))
		characterHandler.RegisterRoutes(v1, walletAuth, limit)
		chatController.RegisterRoutes(v1, limit)
	}

	r.Engine.GET("/ws/chat/:characterId", limit, r.Hub.ServeWs)
}
