package mint

import (
	"context"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"persona-nft/backend/internal/avatar"
	"persona-nft/backend/internal/contract"
	"persona-nft/backend/internal/metadata"
	"persona-nft/backend/internal/models"
	"persona-nft/backend/internal/wallet"
	"persona-nft/backend/pkg/logger"
	"persona-nft/backend/pkg/resilience"
)

type fakeWallet struct {
	addr common.Address
	ok   bool
}

func (w fakeWallet) Address() (common.Address, bool) { return w.addr, w.ok }

type mockPinner struct {
	mock.Mock
	calls []string
}

func (m *mockPinner) UploadImage(ctx context.Context, data []byte, filename string) (string, error) {
	m.calls = append(m.calls, "image")
	args := m.Called(data, filename)
	return args.String(0), args.Error(1)
}

func (m *mockPinner) UploadMetadata(ctx context.Context, meta models.CharacterMetadata) (string, error) {
	m.calls = append(m.calls, "metadata")
	args := m.Called(meta)
	return args.String(0), args.Error(1)
}

type mockMinter struct {
	mock.Mock
}

func (m *mockMinter) CreateCharacter(ctx context.Context, p contract.CreateParams) (*contract.Receipt, error) {
	args := m.Called(p)
	r, _ := args.Get(0).(*contract.Receipt)
	return r, args.Error(1)
}

type stubAvatars struct {
	avatar      avatar.Avatar
	description string
}

func (s *stubAvatars) GenerateCharacterAvatar(_ context.Context, description string) avatar.Avatar {
	s.description = description
	return s.avatar
}

type outcomes []string

func (o *outcomes) MintFinished(outcome string) { *o = append(*o, outcome) }

var creator = common.HexToAddress("0x1234567890123456789012345678901234567890")

func request() models.CreateCharacterRequest {
	return models.CreateCharacterRequest{
		Name:        "Captain Nova",
		Description: "A space explorer",
		Personality: "Brave, curious",
	}
}

func newPipeline(w Wallet, p Pinner, m Minter, a AvatarSource, rec Recorder) *Pipeline {
	return NewPipeline(w, p, m, a, Options{
		ExplorerURL: "https://testnet.snowtrace.io/",
		Upload:      resilience.RetryConfig{Attempts: 2},
		Recorder:    rec,
	}, logger.Discard())
}

func TestMint_GeneratedAvatar(t *testing.T) {
	pinner := &mockPinner{}
	minter := &mockMinter{}
	avatars := &stubAvatars{avatar: avatar.Avatar{Data: avatar.Placeholder(), ContentType: "image/png", Placeholder: true}}
	rec := &outcomes{}

	pinner.On("UploadImage", avatar.Placeholder(), mock.MatchedBy(func(name string) bool {
		return strings.HasPrefix(name, "avatar-") && strings.HasSuffix(name, ".png")
	})).Return("https://gateway.pinata.cloud/ipfs/QmImage", nil)
	pinner.On("UploadMetadata", models.CharacterMetadata{
		Name:        "Captain Nova",
		Description: "A space explorer",
		Personality: "Brave, curious",
		Image:       "https://gateway.pinata.cloud/ipfs/QmImage",
		IsPublic:    false,
	}).Return("https://gateway.pinata.cloud/ipfs/QmMeta", nil)
	minter.On("CreateCharacter", contract.CreateParams{
		Name:        "Captain Nova",
		Description: "A space explorer",
		Personality: "Brave, curious",
		AvatarURI:   "https://gateway.pinata.cloud/ipfs/QmImage",
		TokenURI:    "https://gateway.pinata.cloud/ipfs/QmMeta",
		IsPublic:    false,
	}).Return(&contract.Receipt{TxHash: common.HexToHash("0xabc"), TokenID: big.NewInt(7)}, nil)

	p := newPipeline(fakeWallet{creator, true}, pinner, minter, avatars, rec)
	res, err := p.Mint(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, "7", res.TokenID)
	assert.Equal(t, "https://gateway.pinata.cloud/ipfs/QmImage", res.AvatarURI)
	assert.Equal(t, "https://gateway.pinata.cloud/ipfs/QmMeta", res.TokenURI)
	assert.Equal(t, common.HexToHash("0xabc").Hex(), res.TransactionHash)
	assert.Equal(t, "https://testnet.snowtrace.io/tx/"+res.TransactionHash, res.ExplorerURL)
	assert.Equal(t, "A space explorer, Brave, curious", avatars.description)
	assert.Equal(t, []string{"image", "metadata"}, pinner.calls)
	assert.Equal(t, outcomes{"minted"}, *rec)
	pinner.AssertExpectations(t)
	minter.AssertExpectations(t)
}

func TestMint_NoWalletUploadsNothing(t *testing.T) {
	pinner := &mockPinner{}
	minter := &mockMinter{}
	rec := &outcomes{}

	p := newPipeline(fakeWallet{}, pinner, minter, &stubAvatars{}, rec)
	_, err := p.Mint(context.Background(), request())

	assert.ErrorIs(t, err, wallet.ErrNoWalletConnected)
	assert.Empty(t, pinner.calls)
	minter.AssertNotCalled(t, "CreateCharacter", mock.Anything)
	assert.Equal(t, outcomes{"no_wallet"}, *rec)
}

func TestMint_CustomAvatarSkipsImageUpload(t *testing.T) {
	pinner := &mockPinner{}
	minter := &mockMinter{}
	public := true

	pinner.On("UploadMetadata", mock.MatchedBy(func(m models.CharacterMetadata) bool {
		return m.Image == "https://example.com/nova.png" && m.IsPublic
	})).Return("ipfs://QmMeta", nil)
	minter.On("CreateCharacter", mock.MatchedBy(func(p contract.CreateParams) bool { return p.IsPublic })).Return(&contract.Receipt{TxHash: common.HexToHash("0x1")}, nil)

	req := request()
	req.AvatarURL = " https://example.com/nova.png "
	req.IsPublic = &public

	p := newPipeline(fakeWallet{creator, true}, pinner, minter, &stubAvatars{}, nil)
	res, err := p.Mint(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/nova.png", res.AvatarURI)
	assert.Empty(t, res.TokenID)
	assert.Equal(t, []string{"metadata"}, pinner.calls)
}

func TestMint_ProvidedImage(t *testing.T) {
	pinner := &mockPinner{}
	minter := &mockMinter{}
	png := avatar.Placeholder()

	pinner.On("UploadImage", png, mock.Anything).Return("ipfs://QmImage", nil)
	pinner.On("UploadMetadata", mock.Anything).Return("ipfs://QmMeta", nil)
	minter.On("CreateCharacter", mock.Anything).Return(&contract.Receipt{TxHash: common.HexToHash("0x1")}, nil)

	req := request()
	req.AvatarImage = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	avatars := &stubAvatars{}
	p := newPipeline(fakeWallet{creator, true}, pinner, minter, avatars, nil)
	_, err := p.Mint(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, avatars.description)
}

func TestMint_InvalidImage(t *testing.T) {
	pinner := &mockPinner{}
	req := request()
	req.AvatarImage = base64.StdEncoding.EncodeToString([]byte("just some text"))

	p := newPipeline(fakeWallet{creator, true}, pinner, &mockMinter{}, &stubAvatars{}, nil)
	_, err := p.Mint(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidAvatar)
	assert.Empty(t, pinner.calls)

	req.AvatarImage = "%%%"
	_, err = p.Mint(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidAvatar)
}

func TestMint_UploadFailureAborts(t *testing.T) {
	pinner := &mockPinner{}
	minter := &mockMinter{}
	rec := &outcomes{}

	pinner.On("UploadImage", mock.Anything, mock.Anything).Return("", metadata.ErrUploadFailed)

	avatars := &stubAvatars{avatar: avatar.Avatar{Data: avatar.Placeholder()}}
	p := newPipeline(fakeWallet{creator, true}, pinner, minter, avatars, rec)
	_, err := p.Mint(context.Background(), request())

	assert.ErrorIs(t, err, metadata.ErrUploadFailed)
	assert.Equal(t, []string{"image", "image"}, pinner.calls)
	minter.AssertNotCalled(t, "CreateCharacter", mock.Anything)
	assert.Equal(t, outcomes{"avatar_failed"}, *rec)
}

func TestMint_ContractFailures(t *testing.T) {
	tests := []struct {
		name    string
		receipt *contract.Receipt
		err     error
		outcome string
	}{
		{"rejected", nil, contract.ErrTransactionRejected, "rejected"},
		{"reverted", &contract.Receipt{TxHash: common.HexToHash("0xdead")}, contract.ErrTransactionReverted, "reverted"},
		{"other", nil, errors.New("boom"), "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pinner := &mockPinner{}
			minter := &mockMinter{}
			rec := &outcomes{}

			pinner.On("UploadMetadata", mock.Anything).Return("ipfs://QmMeta", nil)
			minter.On("CreateCharacter", mock.Anything).Return(tt.receipt, tt.err)

			req := request()
			req.AvatarURL = "ipfs://QmImage"
			p := newPipeline(fakeWallet{creator, true}, pinner, minter, &stubAvatars{}, rec)
			res, err := p.Mint(context.Background(), req)

			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, outcomes{tt.outcome}, *rec)
			if tt.receipt != nil {
				assert.Equal(t, tt.receipt.TxHash.Hex(), res.TransactionHash)
			}
		})
	}
}
