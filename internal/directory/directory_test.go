package directory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-nft/backend/internal/contract"
	"persona-nft/backend/internal/models"
	"persona-nft/backend/pkg/logger"
	"persona-nft/backend/shared/redis"
)

type fakeContract struct {
	mu       sync.Mutex
	ids      []string
	listErr  error
	chars    map[string]*models.Character
	charErrs map[string]error
	reads    int
}

func (f *fakeContract) ListPublicCharacterIDs(context.Context) ([]string, error) {
	return f.ids, f.listErr
}

func (f *fakeContract) GetCharacter(_ context.Context, id string) (*models.Character, error) {
	f.mu.Lock()
	f.reads++
	f.mu.Unlock()
	if err := f.charErrs[id]; err != nil {
		return nil, err
	}
	c, ok := f.chars[id]
	if !ok {
		return nil, contract.ErrCharacterNotFound
	}
	cp := *c
	return &cp, nil
}

type fakeFetcher struct {
	docs map[string]*models.CharacterMetadata
}

func (f *fakeFetcher) FetchMetadata(_ context.Context, uri string) (*models.CharacterMetadata, error) {
	if d, ok := f.docs[uri]; ok {
		return d, nil
	}
	return nil, errors.New("gateway timeout")
}

type memStore struct {
	mu    sync.Mutex
	items map[string]models.Character
}

func (s *memStore) Save(_ context.Context, c models.Character) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[c.ID] = c
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*models.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[id]
	if !ok {
		return nil, ErrNotStored
	}
	return &c, nil
}

func (s *memStore) ListPublic(context.Context) ([]models.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Character
	for _, c := range s.items {
		out = append(out, c)
	}
	return out, nil
}

func fixture() (*fakeContract, *fakeFetcher) {
	fc := &fakeContract{
		ids: []string{"1", "2", "3"},
		chars: map[string]*models.Character{
			"1": {ID: "1", Name: "Aria the Mystic", Description: "A wise sorceress", AvatarURI: "ipfs://img1", TokenURI: "ipfs://meta1", IsPublic: true},
			"2": {ID: "2", TokenURI: "ipfs://meta2", IsPublic: true},
			"3": {ID: "3", Name: "Echo", TokenURI: "ipfs://gone", IsPublic: true},
		},
		charErrs: map[string]error{},
	}
	ff := &fakeFetcher{docs: map[string]*models.CharacterMetadata{
		"ipfs://meta1": {Name: "Aria the Mystic", Image: "ipfs://img1"},
		"ipfs://meta2": {Name: "Captain Nova", Description: "Space explorer", Personality: "Brave", Image: "ipfs://img2"},
	}}
	return fc, ff
}

func TestListCharacters_DegradesPerRecord(t *testing.T) {
	fc, ff := fixture()
	fc.ids = append(fc.ids, "4")
	fc.charErrs["4"] = contract.ErrContractRead

	d := New(fc, ff, Options{Workers: 2}, logger.Discard())
	list, err := d.ListCharacters(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 4)

	assert.Equal(t, "1", list[0].ID)
	assert.Equal(t, "Aria the Mystic", list[0].Name)
	assert.False(t, list[0].Placeholder)

	assert.Equal(t, "Captain Nova", list[1].Name)
	assert.Equal(t, "ipfs://img2", list[1].AvatarURI)
	assert.Equal(t, "Brave", list[1].Personality)
	assert.False(t, list[1].Placeholder)

	assert.Equal(t, "Echo", list[2].Name)
	assert.Equal(t, PlaceholderAvatar, list[2].AvatarURI)
	assert.True(t, list[2].Placeholder)

	assert.Equal(t, "4", list[3].ID)
	assert.Equal(t, PlaceholderName, list[3].Name)
	assert.True(t, list[3].Placeholder)
}

func TestListCharacters_IDReadFailure(t *testing.T) {
	fc, ff := fixture()
	c := NewMemoryCache(time.Minute, 100, 0)
	defer c.Close()
	d := New(fc, ff, Options{Cache: c}, logger.Discard())

	fc.listErr = contract.ErrContractRead
	_, err := d.ListCharacters(context.Background())
	assert.ErrorIs(t, err, contract.ErrContractRead)

	fc.listErr = nil
	first, err := d.ListCharacters(context.Background())
	require.NoError(t, err)

	fc.listErr = contract.ErrContractRead
	again, err := d.ListCharacters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestListCharacters_FallsBackToStore(t *testing.T) {
	fc, ff := fixture()
	store := &memStore{items: map[string]models.Character{}}
	d := New(fc, ff, Options{Store: store}, logger.Discard())

	_, err := d.ListCharacters(context.Background())
	require.NoError(t, err)
	assert.Len(t, store.items, 2)

	fc.listErr = contract.ErrContractRead
	list, err := d.ListCharacters(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestGetCharacter(t *testing.T) {
	fc, ff := fixture()
	c := NewMemoryCache(time.Minute, 100, 0)
	defer c.Close()
	d := New(fc, ff, Options{Cache: c}, logger.Discard())
	ctx := context.Background()

	got, err := d.GetCharacter(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Aria the Mystic", got.Name)
	reads := fc.reads

	_, err = d.GetCharacter(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, reads, fc.reads, "second read is served from cache")

	_, err = d.GetCharacter(ctx, "99")
	assert.ErrorIs(t, err, contract.ErrCharacterNotFound)

	fc.charErrs["2"] = contract.ErrContractRead
	got, err = d.GetCharacter(ctx, "2")
	require.NoError(t, err)
	assert.True(t, got.Placeholder)
	assert.Equal(t, PlaceholderName, got.Name)
}

func TestGetCharacter_StoreCoversReadErrors(t *testing.T) {
	fc, ff := fixture()
	store := &memStore{items: map[string]models.Character{
		"2": {ID: "2", Name: "Captain Nova", AvatarURI: "ipfs://img2"},
	}}
	fc.charErrs["2"] = contract.ErrContractRead
	d := New(fc, ff, Options{Store: store}, logger.Discard())

	got, err := d.GetCharacter(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, "Captain Nova", got.Name)
	assert.False(t, got.Placeholder)
}

func TestRedisCache_UnreachableIsMiss(t *testing.T) {
	client := redis.NewClient(redis.Config{Addr: "127.0.0.1:1"})
	defer client.Close()

	c := NewRedisCache(client, time.Minute, logger.Discard())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c.Set(ctx, "k", []byte("v"))
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCuratedAvatarsOverride(t *testing.T) {
	fc, ff := fixture()
	fc.ids = append(fc.ids, "5")
	fc.chars["5"] = &models.Character{ID: "5", Name: " LUFFY ", AvatarURI: "ipfs://generated", TokenURI: "ipfs://meta5", IsPublic: true}
	ff.docs["ipfs://meta5"] = &models.CharacterMetadata{Name: "Luffy", Image: "ipfs://generated"}

	d := New(fc, ff, Options{Avatars: DefaultAvatars("https://app.example.com/")}, logger.Discard())
	list, err := d.ListCharacters(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, "https://app.example.com/images/luffy.png", list[3].AvatarURI)
	assert.Equal(t, "ipfs://img1", list[0].AvatarURI)

	c, err := d.GetCharacter(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/images/luffy.png", c.AvatarURI)

	plain := New(fc, ff, Options{}, logger.Discard())
	c, err = plain.GetCharacter(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, "ipfs://generated", c.AvatarURI)
}
