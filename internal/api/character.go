package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"persona-nft/backend/internal/contract"
	"persona-nft/backend/internal/models"
	"persona-nft/backend/pkg/errors"
	"persona-nft/backend/pkg/logger"
	"persona-nft/backend/pkg/middleware"
)

// Directory serves the public characters
type Directory interface {
	ListCharacters(ctx context.Context) ([]models.Character, error)
	GetCharacter(ctx context.Context, id string) (models.Character, error)
}

// Minter runs the mint pipeline
type Minter interface {
	Mint(ctx context.Context, req models.CreateCharacterRequest) (models.MintResult, error)
}

// CharacterHandler handles character listing and minting
type CharacterHandler struct {
	directory Directory
	minter    Minter
	wallet    Wallet
}

// NewCharacterHandler creates a new character handler
func NewCharacterHandler(directory Directory, minter Minter, wallet Wallet) *CharacterHandler {
	return &CharacterHandler{directory: directory, minter: minter, wallet: wallet}
}

type listResponse struct {
	Characters []models.Character `json:"characters"`
	Notice     *errors.AppError   `json:"notice,omitempty"`
}

// ListCharacters returns all public characters. When the chain cannot be read and nothing
// is cached, the list is empty and a notice explains why.
func (h *CharacterHandler) ListCharacters(c *gin.Context) {
	characters, err := h.directory.ListCharacters(c.Request.Context())
	if err != nil {
		if !stderrors.Is(err, contract.ErrContractRead) && !stderrors.Is(err, contract.ErrChainMismatch) {
			c.Error(ToAppError(err))
			return
		}
		logger.FromContext(c).Warn("Character listing unavailable", "error", err.Error())
		c.JSON(http.StatusOK, listResponse{Characters: []models.Character{}, Notice: ToAppError(err)})
		return
	}
	if characters == nil {
		characters = []models.Character{}
	}
	c.JSON(http.StatusOK, listResponse{Characters: characters})
}

// GetCharacter returns a single character
func (h *CharacterHandler) GetCharacter(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.Error(errors.NewBadRequestError(errors.CodeInvalidRequest, "Character id is required"))
		return
	}

	character, err := h.directory.GetCharacter(c.Request.Context(), id)
	if err != nil {
		c.Error(ToAppError(err))
		return
	}
	c.JSON(http.StatusOK, character)
}

// CreateCharacter mints a character for the authenticated wallet
func (h *CharacterHandler) CreateCharacter(c *gin.Context) {
	var req models.CreateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(invalidRequest(err))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.Personality = strings.TrimSpace(req.Personality)
	if req.Name == "" || req.Description == "" || req.Personality == "" {
		c.Error(errors.NewBadRequestError(errors.CodeInvalidRequest, "Name, description and personality are required"))
		return
	}

	caller, _ := middleware.WalletFromContext(c)
	if addr, ok := h.wallet.Address(); ok && !strings.EqualFold(addr.Hex(), caller) {
		c.Error(errors.NewForbiddenError(errors.CodeWalletMismatch, "Token does not belong to the connected wallet"))
		return
	}

	result, err := h.minter.Mint(c.Request.Context(), req)
	if err != nil {
		appErr := ToAppError(err)
		if result.TransactionHash != "" {
			appErr = appErr.WithDetails(result)
		}
		c.Error(appErr)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// RegisterRoutes registers the character routes
func (h *CharacterHandler) RegisterRoutes(rg *gin.RouterGroup, auth gin.HandlerFunc, limit gin.HandlerFunc) {
	group := rg.Group("/characters")
	{
		group.GET("", h.ListCharacters)
		group.GET("/:id", h.GetCharacter)
		group.POST("", auth, limit, h.CreateCharacter)
	}
}
