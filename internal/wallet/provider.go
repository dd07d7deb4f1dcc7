package wallet

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// KeyProvider signs with a single secp256k1 key held by the service
type KeyProvider struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeyProvider parses a hex private key, with or without 0x prefix
func NewKeyProvider(hexKey string) (*KeyProvider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert private key")
	}
	return &KeyProvider{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// RequestAccounts returns the key's address
func (p *KeyProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	return []common.Address{p.address}, nil
}

// SignTx signs tx with the key using the latest signer for chainID
func (p *KeyProvider) SignTx(_ context.Context, account common.Address, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if account != p.address {
		return nil, errors.Wrapf(ErrSignatureRejected, "unknown account %s", account.Hex())
	}
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), p.key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}
	return signed, nil
}

// MockProvider is a scriptable provider for demos and tests
type MockProvider struct {
	mu            sync.Mutex
	address       common.Address
	rejectConnect bool
	rejectSign    bool
	key           *ecdsa.PrivateKey
}

// NewMockProvider returns a provider that reports address and signs with a throwaway key
func NewMockProvider(address common.Address) *MockProvider {
	key, _ := crypto.GenerateKey()
	return &MockProvider{address: address, key: key}
}

// RejectConnect makes subsequent account requests fail like a declined prompt
func (p *MockProvider) RejectConnect(reject bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejectConnect = reject
}

// RejectSign makes subsequent signature requests fail like a declined prompt
func (p *MockProvider) RejectSign(reject bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejectSign = reject
}

// RequestAccounts returns the configured address
func (p *MockProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rejectConnect {
		return nil, ErrUserRejected
	}
	return []common.Address{p.address}, nil
}

// SignTx signs with the throwaway key; the recovered sender will not equal the mock address
func (p *MockProvider) SignTx(_ context.Context, _ common.Address, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	p.mu.Lock()
	reject := p.rejectSign
	p.mu.Unlock()
	if reject {
		return nil, ErrSignatureRejected
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), p.key)
}
