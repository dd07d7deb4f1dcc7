// Package wallet holds the single connection to the user's signing wallet.
package wallet

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"persona-nft/backend/pkg/logger"
)

var (
	// ErrNoProviderFound means no wallet provider is configured
	ErrNoProviderFound = errors.New("no wallet provider found")
	// ErrUserRejected means the provider declined the account request
	ErrUserRejected = errors.New("wallet connection rejected")
	// ErrNoWalletConnected means an operation needs a connected account
	ErrNoWalletConnected = errors.New("no wallet connected")
	// ErrSignatureRejected means the provider declined to sign
	ErrSignatureRejected = errors.New("signature request rejected")
)

// Provider is the injected wallet capability
type Provider interface {
	// RequestAccounts asks the wallet for its accounts; an empty result counts as a rejection
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// SignTx signs tx with account for chainID
	SignTx(ctx context.Context, account common.Address, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Adapter tracks the connected account. It is the only writer of connection state.
type Adapter struct {
	provider Provider
	mu       sync.RWMutex
	account  common.Address
	ok       bool
	log      *logger.Logger
}

// NewAdapter wraps provider, which may be nil when no wallet is available
func NewAdapter(provider Provider, log *logger.Logger) *Adapter {
	if log == nil {
		log = logger.Discard()
	}
	return &Adapter{provider: provider, log: log.Component("wallet")}
}

// Connect requests accounts from the provider and keeps the first one
func (a *Adapter) Connect(ctx context.Context) (common.Address, error) {
	if a.provider == nil {
		return common.Address{}, ErrNoProviderFound
	}

	accounts, err := a.provider.RequestAccounts(ctx)
	if err != nil {
		if errors.Is(err, ErrUserRejected) {
			return common.Address{}, err
		}
		return common.Address{}, errors.Wrap(ErrUserRejected, err.Error())
	}
	if len(accounts) == 0 {
		return common.Address{}, ErrUserRejected
	}

	a.mu.Lock()
	a.account = accounts[0]
	a.ok = true
	a.mu.Unlock()

	a.log.Info("Wallet connected", "wallet", accounts[0].Hex())
	return accounts[0], nil
}

// Disconnect forgets the connected account. The provider is not contacted.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	was := a.account
	a.account = common.Address{}
	a.ok = false
	a.mu.Unlock()

	if was != (common.Address{}) {
		a.log.Info("Wallet disconnected", "wallet", was.Hex())
	}
}

// Address returns the connected account, if any
func (a *Adapter) Address() (common.Address, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.account, a.ok
}

// IsConnected reports whether an account is connected
func (a *Adapter) IsConnected() bool {
	_, ok := a.Address()
	return ok
}

// HasProvider reports whether a provider is configured at all
func (a *Adapter) HasProvider() bool {
	return a.provider != nil
}

// SignTx signs tx with the connected account
func (a *Adapter) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	account, ok := a.Address()
	if !ok {
		return nil, ErrNoWalletConnected
	}
	return a.provider.SignTx(ctx, account, tx, chainID)
}
