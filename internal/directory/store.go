package directory

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"persona-nft/backend/internal/models"
)

// ErrNotStored means the store holds no copy of the record
var ErrNotStored = errors.New("character not stored")

// Store keeps the last resolved copy of each character
type Store interface {
	Save(ctx context.Context, c models.Character) error
	Get(ctx context.Context, id string) (*models.Character, error)
	ListPublic(ctx context.Context) ([]models.Character, error)
}

// GormStore is a Store on a SQL database
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the characters table
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&models.CharacterRecord{})
}

// Save upserts c by token id
func (s *GormStore) Save(ctx context.Context, c models.Character) error {
	rec := models.NewCharacterRecord(c)
	return s.db.WithContext(ctx).
		Clauses(onConflictUpdateAll()).
		Create(&rec).Error
}

func onConflictUpdateAll() clause.OnConflict {
	return clause.OnConflict{UpdateAll: true}
}

// Get returns the stored copy of id
func (s *GormStore) Get(ctx context.Context, id string) (*models.Character, error) {
	var rec models.CharacterRecord
	err := s.db.WithContext(ctx).Where("token_id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotStored
	}
	if err != nil {
		return nil, err
	}
	c := rec.ToCharacter()
	return &c, nil
}

// ListPublic returns every stored public character, oldest mint first
func (s *GormStore) ListPublic(ctx context.Context) ([]models.Character, error) {
	var recs []models.CharacterRecord
	if err := s.db.WithContext(ctx).Where("is_public = ?", true).Order("minted_at asc").Find(&recs).Error; err != nil {
		return nil, err
	}

	result := make([]models.Character, 0, len(recs))
	for _, r := range recs {
		result = append(result, r.ToCharacter())
	}
	return result, nil
}
