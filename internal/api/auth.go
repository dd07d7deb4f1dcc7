package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"persona-nft/backend/pkg/errors"
	"persona-nft/backend/pkg/jwt"
	"persona-nft/backend/pkg/logger"
	"persona-nft/backend/pkg/middleware"
)

// Wallet is the connection surface of the wallet adapter
type Wallet interface {
	Connect(ctx context.Context) (common.Address, error)
	Disconnect()
	Address() (common.Address, bool)
	HasProvider() bool
}

// WalletHandler handles wallet connection requests
type WalletHandler struct {
	wallet     Wallet
	jwtService *jwt.Service
	chainID    int64
	logger     *logger.Logger
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(wallet Wallet, jwtService *jwt.Service, chainID int64, logger *logger.Logger) *WalletHandler {
	return &WalletHandler{
		wallet:     wallet,
		jwtService: jwtService,
		chainID:    chainID,
		logger:     logger,
	}
}

type connectResponse struct {
	Address   string    `json:"address"`
	ChainID   int64     `json:"chainId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type walletStatus struct {
	Connected   bool   `json:"connected"`
	Address     string `json:"address,omitempty"`
	HasProvider bool   `json:"hasProvider"`
	ChainID     int64  `json:"chainId"`
}

// Connect asks the provider for an account and issues a wallet token for it
func (h *WalletHandler) Connect(c *gin.Context) {
	addr, err := h.wallet.Connect(c.Request.Context())
	if err != nil {
		c.Error(ToAppError(err))
		return
	}

	token, expiresAt, err := h.jwtService.GenerateToken(addr.Hex(), h.chainID)
	if err != nil {
		c.Error(errors.NewInternalServerError(errors.CodeInternal, "Failed to issue wallet token").WithCause(err))
		return
	}

	logger.FromContext(c).WithAddress(addr.Hex()).Info("Wallet connected")
	c.JSON(http.StatusOK, connectResponse{
		Address:   addr.Hex(),
		ChainID:   h.chainID,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// Disconnect clears the connection held for the token's wallet
func (h *WalletHandler) Disconnect(c *gin.Context) {
	caller, _ := middleware.WalletFromContext(c)
	addr, ok := h.wallet.Address()
	if ok && !strings.EqualFold(addr.Hex(), caller) {
		c.Error(errors.NewForbiddenError(errors.CodeWalletMismatch, "Token does not belong to the connected wallet"))
		return
	}

	h.wallet.Disconnect()
	logger.FromContext(c).WithAddress(caller).Info("Wallet disconnected")
	c.Status(http.StatusNoContent)
}

// Status reports the current connection
func (h *WalletHandler) Status(c *gin.Context) {
	status := walletStatus{HasProvider: h.wallet.HasProvider(), ChainID: h.chainID}
	if addr, ok := h.wallet.Address(); ok {
		status.Connected = true
		status.Address = addr.Hex()
	}
	c.JSON(http.StatusOK, status)
}

// RegisterRoutes registers the wallet routes. guard runs before connect.
func (h *WalletHandler) RegisterRoutes(rg *gin.RouterGroup, auth, guard gin.HandlerFunc) {
	group := rg.Group("/wallet")
	{
		group.GET("", h.Status)
		group.POST("/connect", guard, h.Connect)
		group.POST("/disconnect", auth, h.Disconnect)
	}
}
