// Package mint runs the avatar, pinning and contract steps that create a character token.
package mint

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"persona-nft/backend/internal/avatar"
	"persona-nft/backend/internal/contract"
	"persona-nft/backend/internal/metadata"
	"persona-nft/backend/internal/models"
	"persona-nft/backend/internal/wallet"
	"persona-nft/backend/pkg/logger"
	"persona-nft/backend/pkg/resilience"
)

// ErrInvalidAvatar means the supplied avatar image could not be decoded as an image
var ErrInvalidAvatar = errors.New("avatar image is not a valid image")

// Wallet reports the connected account
type Wallet interface {
	Address() (common.Address, bool)
}

// Pinner uploads avatars and metadata documents
type Pinner interface {
	UploadImage(ctx context.Context, data []byte, filename string) (string, error)
	UploadMetadata(ctx context.Context, meta models.CharacterMetadata) (string, error)
}

// Minter submits createCharacter
type Minter interface {
	CreateCharacter(ctx context.Context, p contract.CreateParams) (*contract.Receipt, error)
}

// AvatarSource renders a portrait for a description
type AvatarSource interface {
	GenerateCharacterAvatar(ctx context.Context, description string) avatar.Avatar
}

// Recorder counts mint outcomes
type Recorder interface {
	MintFinished(outcome string)
}

// Options configures a Pipeline
type Options struct {
	// ExplorerURL is the block explorer base used to link transactions
	ExplorerURL string
	Upload      resilience.RetryConfig
	Recorder    Recorder
}

// Pipeline mints characters
type Pipeline struct {
	wallet  Wallet
	pinner  Pinner
	minter  Minter
	avatars AvatarSource
	opts    Options
	log     *logger.Logger
}

// NewPipeline wires the mint steps together
func NewPipeline(w Wallet, pinner Pinner, minter Minter, avatars AvatarSource, opts Options, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Discard()
	}
	if opts.Upload.Attempts == 0 {
		opts.Upload = resilience.RetryConfig{Attempts: 3, Delay: 500 * time.Millisecond, MaxDelay: 4 * time.Second}
	}
	if opts.Upload.Retryable == nil {
		opts.Upload.Retryable = retryableUpload
	}
	return &Pipeline{
		wallet:  w,
		pinner:  pinner,
		minter:  minter,
		avatars: avatars,
		opts:    opts,
		log:     log.Component("mint"),
	}
}

func retryableUpload(err error) bool {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, metadata.ErrImageRequired),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// Mint creates a character: wallet check, avatar, image upload, metadata upload, contract call.
// Nothing is uploaded when no wallet is connected, and metadata is only pinned after its image.
func (p *Pipeline) Mint(ctx context.Context, req models.CreateCharacterRequest) (models.MintResult, error) {
	var result models.MintResult

	creator, ok := p.wallet.Address()
	if !ok {
		p.finish("no_wallet")
		return result, wallet.ErrNoWalletConnected
	}
	log := p.log.WithAddress(creator.Hex())

	isPublic := false
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	log.Info("Preparing avatar", "step", 1, "name", req.Name)
	avatarURI, err := p.avatarURI(ctx, req)
	if err != nil {
		p.finish("avatar_failed")
		return result, err
	}
	result.AvatarURI = avatarURI

	log.Info("Uploading metadata", "step", 2, "avatar", avatarURI)
	meta := models.CharacterMetadata{
		Name:        req.Name,
		Description: req.Description,
		Personality: req.Personality,
		Image:       avatarURI,
		IsPublic:    isPublic,
	}
	var tokenURI string
	err = resilience.Retry(ctx, p.opts.Upload, func(ctx context.Context) error {
		var err error
		tokenURI, err = p.pinner.UploadMetadata(ctx, meta)
		return err
	})
	if err != nil {
		p.finish("upload_failed")
		return result, err
	}
	result.TokenURI = tokenURI

	log.Info("Minting on chain", "step", 3, "token_uri", tokenURI)
	receipt, err := p.minter.CreateCharacter(ctx, contract.CreateParams{
		Name:        req.Name,
		Description: req.Description,
		Personality: req.Personality,
		AvatarURI:   avatarURI,
		TokenURI:    tokenURI,
		IsPublic:    isPublic,
	})
	if receipt != nil {
		result.TransactionHash = receipt.TxHash.Hex()
		result.ExplorerURL = p.explorerLink(result.TransactionHash)
	}
	if err != nil {
		p.finish(outcome(err))
		log.LogError(err, "Mint failed", "tx", result.TransactionHash)
		return result, err
	}
	if receipt.TokenID != nil {
		result.TokenID = receipt.TokenID.String()
	}

	p.finish("minted")
	log.Info("Character minted", "token_id", result.TokenID, "tx", result.TransactionHash)
	return result, nil
}

// avatarURI returns the custom URI as-is, or pins the supplied or generated image
func (p *Pipeline) avatarURI(ctx context.Context, req models.CreateCharacterRequest) (string, error) {
	if uri := strings.TrimSpace(req.AvatarURL); uri != "" {
		return uri, nil
	}

	var data []byte
	if req.AvatarImage != "" {
		decoded, err := decodeImage(req.AvatarImage)
		if err != nil {
			return "", err
		}
		data = decoded
	} else {
		description := req.Description
		if req.Personality != "" {
			description = fmt.Sprintf("%s, %s", req.Description, req.Personality)
		}
		generated := p.avatars.GenerateCharacterAvatar(ctx, description)
		if generated.Placeholder {
			p.log.Warn("Avatar generation failed, pinning placeholder")
		}
		data = generated.Data
	}

	filename := fmt.Sprintf("avatar-%s%s", uuid.New().String(), extension(http.DetectContentType(data)))
	var uri string
	err := resilience.Retry(ctx, p.opts.Upload, func(ctx context.Context) error {
		var err error
		uri, err = p.pinner.UploadImage(ctx, data, filename)
		return err
	})
	return uri, err
}

// decodeImage accepts raw base64 or a data URL
func decodeImage(s string) ([]byte, error) {
	if i := strings.Index(s, ","); strings.HasPrefix(s, "data:") && i != -1 {
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAvatar, err)
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		return nil, ErrInvalidAvatar
	}
	return data, nil
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func (p *Pipeline) explorerLink(txHash string) string {
	if p.opts.ExplorerURL == "" || txHash == "" {
		return ""
	}
	return strings.TrimRight(p.opts.ExplorerURL, "/") + "/tx/" + txHash
}

func (p *Pipeline) finish(outcome string) {
	if p.opts.Recorder != nil {
		p.opts.Recorder.MintFinished(outcome)
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, wallet.ErrNoWalletConnected):
		return "no_wallet"
	case errors.Is(err, contract.ErrTransactionReverted):
		return "reverted"
	case errors.Is(err, contract.ErrTransactionRejected):
		return "rejected"
	default:
		return "failed"
	}
}
