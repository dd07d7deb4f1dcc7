// Package directory assembles the public character listing from the contract and pinned metadata.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"persona-nft/backend/internal/contract"
	"persona-nft/backend/internal/models"
	"persona-nft/backend/pkg/logger"
)

const (
	// PlaceholderName replaces the name of a record that could not be resolved
	PlaceholderName = "Unknown Character"
	// PlaceholderAvatar replaces a missing avatar
	PlaceholderAvatar = "/placeholder.svg"
	// PlaceholderDescription replaces a missing description
	PlaceholderDescription = "This character's details could not be loaded."

	listingKey      = "listing"
	characterPrefix = "character:"
	defaultWorkers  = 8
)

// ContractReader is the read side of the character contract
type ContractReader interface {
	ListPublicCharacterIDs(ctx context.Context) ([]string, error)
	GetCharacter(ctx context.Context, id string) (*models.Character, error)
}

// MetadataFetcher resolves token URIs
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, uri string) (*models.CharacterMetadata, error)
}

// Recorder counts served records by kind
type Recorder interface {
	DirectoryRecord(kind string)
}

// Options configures a Directory
type Options struct {
	Cache    Cache
	Store    Store
	Recorder Recorder
	Workers  int
	// Avatars overrides the avatar of curated characters on the way out
	Avatars CuratedAvatars
}

// Directory lists and resolves characters
type Directory struct {
	contract ContractReader
	metadata MetadataFetcher
	cache    Cache
	store    Store
	recorder Recorder
	workers  int
	avatars  CuratedAvatars
	log      *logger.Logger
}

// New creates a Directory; Cache, Store and Recorder are optional
func New(reader ContractReader, fetcher MetadataFetcher, opts Options, log *logger.Logger) *Directory {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Directory{
		contract: reader,
		metadata: fetcher,
		cache:    opts.Cache,
		store:    opts.Store,
		recorder: opts.Recorder,
		workers:  opts.Workers,
		avatars:  opts.Avatars,
		log:      log.Component("directory"),
	}
}

// ListCharacters returns every public character in contract order. A record that cannot be
// resolved is replaced by a placeholder. If the id list itself cannot be read, the last good
// listing is returned when one is known.
func (d *Directory) ListCharacters(ctx context.Context) ([]models.Character, error) {
	ids, err := d.contract.ListPublicCharacterIDs(ctx)
	if err != nil {
		if cached, ok := d.cachedListing(ctx); ok {
			d.log.Warn("Serving cached listing", "error", err.Error())
			return d.curate(cached), nil
		}
		return nil, err
	}

	result := make([]models.Character, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			c, err := d.resolve(gctx, id)
			if err != nil {
				c = placeholder(id)
			}
			result[i] = c
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.remember(ctx, listingKey, result)
	return d.curate(result), nil
}

// GetCharacter resolves a single character. ErrCharacterNotFound is returned only when the
// contract has no such token and no copy is cached or stored.
func (d *Directory) GetCharacter(ctx context.Context, id string) (models.Character, error) {
	id = strings.TrimSpace(id)
	c, err := d.resolve(ctx, id)
	if err == nil {
		d.avatars.apply(&c)
		return c, nil
	}
	if errors.Is(err, contract.ErrCharacterNotFound) {
		return models.Character{}, err
	}
	return placeholder(id), nil
}

func (d *Directory) resolve(ctx context.Context, id string) (models.Character, error) {
	if c, ok := d.cachedCharacter(ctx, id); ok {
		d.record("cached")
		return c, nil
	}

	onchain, err := d.contract.GetCharacter(ctx, id)
	if err != nil {
		if stored, ok := d.stored(ctx, id); ok {
			d.record("stored")
			return stored, nil
		}
		d.log.Warn("Character read failed", "character_id", id, "error", err.Error())
		if !errors.Is(err, contract.ErrCharacterNotFound) {
			d.record("placeholder")
		}
		return models.Character{}, err
	}

	c := *onchain
	meta, err := d.metadata.FetchMetadata(ctx, c.TokenURI)
	if err != nil {
		d.log.Warn("Metadata fetch failed", "character_id", id, "token_uri", c.TokenURI, "error", err.Error())
		degrade(&c)
		d.record("placeholder")
		return c, nil
	}

	merge(&c, meta)
	d.record("resolved")
	d.remember(ctx, characterPrefix+id, c)
	if d.store != nil {
		if err := d.store.Save(ctx, c); err != nil {
			d.log.Warn("Character store write failed", "character_id", id, "error", err.Error())
		}
	}
	return c, nil
}

// merge fills fields the chain left empty from the pinned document
func merge(c *models.Character, meta *models.CharacterMetadata) {
	if c.Name == "" {
		c.Name = meta.Name
	}
	if c.Description == "" {
		c.Description = meta.Description
	}
	if c.Personality == "" {
		c.Personality = meta.Personality
	}
	if c.AvatarURI == "" {
		c.AvatarURI = meta.Image
	}
	if c.Name == "" || c.AvatarURI == "" {
		degrade(c)
	}
}

// degrade substitutes placeholder values for whatever is missing
func degrade(c *models.Character) {
	c.Placeholder = true
	if c.Name == "" {
		c.Name = PlaceholderName
	}
	if c.Description == "" {
		c.Description = PlaceholderDescription
	}
	if c.AvatarURI == "" {
		c.AvatarURI = PlaceholderAvatar
	}
}

func (d *Directory) curate(list []models.Character) []models.Character {
	for i := range list {
		d.avatars.apply(&list[i])
	}
	return list
}

func placeholder(id string) models.Character {
	c := models.Character{ID: id}
	degrade(&c)
	return c
}

func (d *Directory) record(kind string) {
	if d.recorder != nil {
		d.recorder.DirectoryRecord(kind)
	}
}

func (d *Directory) stored(ctx context.Context, id string) (models.Character, bool) {
	if d.store == nil {
		return models.Character{}, false
	}
	c, err := d.store.Get(ctx, id)
	if err != nil {
		return models.Character{}, false
	}
	return *c, true
}

func (d *Directory) cachedCharacter(ctx context.Context, id string) (models.Character, bool) {
	var c models.Character
	return c, d.recall(ctx, characterPrefix+id, &c)
}

func (d *Directory) cachedListing(ctx context.Context) ([]models.Character, bool) {
	var list []models.Character
	if d.recall(ctx, listingKey, &list) {
		return list, true
	}
	if d.store != nil {
		stored, err := d.store.ListPublic(ctx)
		if err == nil && len(stored) > 0 {
			return stored, true
		}
	}
	return nil, false
}

func (d *Directory) recall(ctx context.Context, key string, out any) bool {
	if d.cache == nil {
		return false
	}
	b, ok := d.cache.Get(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(b, out) == nil
}

func (d *Directory) remember(ctx context.Context, key string, v any) {
	if d.cache == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	d.cache.Set(ctx, key, b)
}
