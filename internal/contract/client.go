// Package contract talks to the character NFT contract over JSON-RPC.
package contract

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"persona-nft/backend/internal/models"
	"persona-nft/backend/internal/wallet"
	"persona-nft/backend/pkg/logger"
)

var (
	// ErrTransactionRejected means the signer declined or the node refused the transaction
	ErrTransactionRejected = errors.New("transaction rejected")
	// ErrTransactionReverted means the transaction was mined with a failed status or would revert
	ErrTransactionReverted = errors.New("transaction reverted")
	// ErrContractRead means a read call failed on the network or returned undecodable data
	ErrContractRead = errors.New("contract read failed")
	// ErrCharacterNotFound means the contract reverted a lookup for the token id
	ErrCharacterNotFound = errors.New("character not found")
	// ErrChainMismatch means the RPC node serves a different chain than configured
	ErrChainMismatch = errors.New("rpc chain id does not match configuration")
)

// Backend is the subset of an Ethereum JSON-RPC client this package uses.
// *ethclient.Client satisfies it.
type Backend interface {
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.GasPricer
	ethereum.TransactionSender
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Signer is the connected wallet
type Signer interface {
	Address() (common.Address, bool)
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Config identifies the deployed contract
type Config struct {
	Address        common.Address
	ChainID        *big.Int
	ReceiptTimeout time.Duration
	// GasMargin is added to the gas estimate, in percent
	GasMargin uint64
}

// CreateParams are the arguments of createCharacter
type CreateParams struct {
	Name        string
	Description string
	Personality string
	AvatarURI   string
	TokenURI    string
	IsPublic    bool
}

// Receipt summarizes a confirmed createCharacter transaction
type Receipt struct {
	TxHash      common.Hash
	BlockNumber *big.Int
	GasUsed     uint64
	// TokenID is nil when the receipt carries no Transfer log from the contract
	TokenID *big.Int
}

// Client reads from and writes to the character contract
type Client struct {
	backend Backend
	signer  Signer
	abi     abi.ABI
	cfg     Config
	log     *logger.Logger
}

// NewClient builds a contract client; signer may be nil for a read-only client
func NewClient(backend Backend, signer Signer, cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.Address == (common.Address{}) {
		return nil, errors.New("contract address is not configured")
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, errors.New("chain id is not configured")
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 2 * time.Minute
	}
	if cfg.GasMargin == 0 {
		cfg.GasMargin = 20
	}
	if log == nil {
		log = logger.Discard()
	}

	parsed, err := parseABI()
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse contract abi")
	}

	return &Client{
		backend: backend,
		signer:  signer,
		abi:     parsed,
		cfg:     cfg,
		log:     log.Component("contract"),
	}, nil
}

// Address returns the contract address
func (c *Client) Address() common.Address {
	return c.cfg.Address
}

// Ping verifies the RPC node is reachable and serves the configured chain
func (c *Client) Ping(ctx context.Context) error {
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to query chain id")
	}
	if id.Cmp(c.cfg.ChainID) != 0 {
		return errors.Wrapf(ErrChainMismatch, "node=%s configured=%s", id, c.cfg.ChainID)
	}
	return nil
}

// CreateCharacter mints a character with the connected wallet and waits for its receipt.
// A non-nil Receipt with a set TxHash is returned alongside errors raised after submission.
func (c *Client) CreateCharacter(ctx context.Context, p CreateParams) (*Receipt, error) {
	if c.signer == nil {
		return nil, wallet.ErrNoWalletConnected
	}
	from, ok := c.signer.Address()
	if !ok {
		return nil, wallet.ErrNoWalletConnected
	}

	data, err := c.abi.Pack("createCharacter", p.Name, p.Description, p.Personality, p.AvatarURI, p.TokenURI, p.IsPublic)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode createCharacter")
	}

	to := c.cfg.Address
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		if isRevert(err) {
			return nil, errors.Wrap(ErrTransactionReverted, err.Error())
		}
		return nil, errors.Wrap(ErrTransactionRejected, "gas estimation failed: "+err.Error())
	}
	gas += gas * c.cfg.GasMargin / 100

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(ErrTransactionRejected, "gas price unavailable: "+err.Error())
	}
	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, errors.Wrap(ErrTransactionRejected, "nonce unavailable: "+err.Error())
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := c.signer.SignTx(ctx, tx, c.cfg.ChainID)
	if err != nil {
		if errors.Is(err, wallet.ErrNoWalletConnected) {
			return nil, err
		}
		return nil, errors.Wrap(ErrTransactionRejected, err.Error())
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, errors.Wrap(ErrTransactionRejected, err.Error())
	}

	result := &Receipt{TxHash: signed.Hash()}
	c.log.Info("Transaction submitted", "tx", result.TxHash.Hex(), "wallet", from.Hex(), "nonce", nonce, "gas", gas)

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.ReceiptTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.backend, signed)
	if err != nil {
		return result, errors.Wrap(err, "failed waiting for receipt")
	}

	result.BlockNumber = receipt.BlockNumber
	result.GasUsed = receipt.GasUsed

	if receipt.Status != types.ReceiptStatusSuccessful {
		return result, errors.Wrapf(ErrTransactionReverted, "tx %s", result.TxHash.Hex())
	}

	result.TokenID = mintedTokenID(receipt.Logs, c.cfg.Address, from)
	c.log.Info("Transaction confirmed", "tx", result.TxHash.Hex(), "block", receipt.BlockNumber, "token_id", result.TokenID)
	return result, nil
}

// ListPublicCharacterIDs returns the ids of all public characters in contract order
func (c *Client) ListPublicCharacterIDs(ctx context.Context) ([]string, error) {
	var ids []*big.Int
	if err := c.call(ctx, &ids, "getPublicCharacters"); err != nil {
		return nil, err
	}

	result := make([]string, 0, len(ids))
	for _, id := range ids {
		result = append(result, id.String())
	}
	return result, nil
}

// onchainCharacter mirrors the getCharacter outputs
type onchainCharacter struct {
	Name        string
	Description string
	Personality string
	AvatarURI   string
	Creator     common.Address
	CreatedAt   *big.Int
	IsPublic    bool
}

// GetCharacter reads one character and its token URI
func (c *Client) GetCharacter(ctx context.Context, id string) (*models.Character, error) {
	tokenID, ok := new(big.Int).SetString(id, 10)
	if !ok || tokenID.Sign() < 0 {
		return nil, errors.Wrapf(ErrCharacterNotFound, "invalid token id %q", id)
	}

	var raw onchainCharacter
	if err := c.call(ctx, &raw, "getCharacter", tokenID); err != nil {
		return nil, err
	}

	var tokenURI string
	if err := c.call(ctx, &tokenURI, "tokenURI", tokenID); err != nil {
		return nil, err
	}

	ch := &models.Character{
		ID:          tokenID.String(),
		Name:        raw.Name,
		Description: raw.Description,
		Personality: raw.Personality,
		AvatarURI:   raw.AvatarURI,
		Creator:     raw.Creator.Hex(),
		IsPublic:    raw.IsPublic,
		TokenURI:    tokenURI,
	}
	if raw.CreatedAt != nil {
		ch.CreatedAt = time.Unix(raw.CreatedAt.Int64(), 0).UTC()
	}
	return ch, nil
}

// call runs a read-only method and decodes its outputs into out
func (c *Client) call(ctx context.Context, out any, method string, args ...any) error {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return errors.Wrapf(ErrContractRead, "encode %s: %v", method, err)
	}

	to := c.cfg.Address
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		if isRevert(err) && len(args) > 0 {
			return errors.Wrapf(ErrCharacterNotFound, "%s: %v", method, err)
		}
		return errors.Wrapf(ErrContractRead, "%s: %v", method, err)
	}

	if err := c.abi.UnpackIntoInterface(out, method, raw); err != nil {
		return errors.Wrapf(ErrContractRead, "decode %s: %v", method, err)
	}
	return nil
}

// mintedTokenID finds the Transfer(0x0 -> to, id) log emitted by contract
func mintedTokenID(logs []*types.Log, contract, to common.Address) *big.Int {
	for _, l := range logs {
		if l == nil || l.Address != contract || len(l.Topics) != 4 || l.Topics[0] != transferTopic {
			continue
		}
		if common.BytesToAddress(l.Topics[1].Bytes()) != (common.Address{}) {
			continue
		}
		if common.BytesToAddress(l.Topics[2].Bytes()) != to {
			continue
		}
		return new(big.Int).SetBytes(l.Topics[3].Bytes())
	}
	return nil
}

func isRevert(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}
