package models

import (
	"time"
)

// Character is the read-only projection of an on-chain character token
type Character struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Personality string    `json:"personality"`
	AvatarURI   string    `json:"avatarUrl"`
	Creator     string    `json:"creator"`
	CreatedAt   time.Time `json:"createdAt"`
	IsPublic    bool      `json:"isPublic"`
	TokenURI    string    `json:"tokenUri,omitempty"`
	Placeholder bool      `json:"placeholder,omitempty"`
}

// CharacterMetadata is the JSON document pinned alongside each token
type CharacterMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Personality string `json:"personality"`
	Image       string `json:"image"`
	IsPublic    bool   `json:"isPublic"`
}

// CreateCharacterRequest is the body of a mint request.
// AvatarURL skips avatar generation; AvatarImage is a base64 image to pin as-is.
type CreateCharacterRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description" binding:"required"`
	Personality string `json:"personality" binding:"required"`
	IsPublic    *bool  `json:"isPublic"`
	AvatarURL   string `json:"avatarUrl"`
	AvatarImage string `json:"avatarImage"`
}

// MintResult describes a confirmed mint
type MintResult struct {
	TokenID         string `json:"tokenId,omitempty"`
	TransactionHash string `json:"transactionHash"`
	AvatarURI       string `json:"avatarUrl"`
	TokenURI        string `json:"tokenUri"`
	ExplorerURL     string `json:"explorerUrl,omitempty"`
}

// CharacterRecord is the cached copy of a resolved character kept in Postgres
type CharacterRecord struct {
	TokenID     string `gorm:"primaryKey;size:78"`
	Name        string `gorm:"not null"`
	Description string `gorm:"not null"`
	Personality string `gorm:"not null"`
	AvatarURI   string
	Creator     string `gorm:"size:42;index"`
	TokenURI    string
	IsPublic    bool `gorm:"index"`
	MintedAt    time.Time
	UpdatedAt   time.Time
}

// TableName pins the table name
func (CharacterRecord) TableName() string {
	return "characters"
}

// ToCharacter converts a stored record back into a projection
func (r CharacterRecord) ToCharacter() Character {
	return Character{
		ID:          r.TokenID,
		Name:        r.Name,
		Description: r.Description,
		Personality: r.Personality,
		AvatarURI:   r.AvatarURI,
		Creator:     r.Creator,
		CreatedAt:   r.MintedAt,
		IsPublic:    r.IsPublic,
		TokenURI:    r.TokenURI,
	}
}

// NewCharacterRecord builds a record from a resolved projection
func NewCharacterRecord(c Character) CharacterRecord {
	return CharacterRecord{
		TokenID:     c.ID,
		Name:        c.Name,
		Description: c.Description,
		Personality: c.Personality,
		AvatarURI:   c.AvatarURI,
		Creator:     c.Creator,
		TokenURI:    c.TokenURI,
		IsPublic:    c.IsPublic,
		MintedAt:    c.CreatedAt,
	}
}
