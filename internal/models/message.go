package models

import (
	"time"
)

// ChatMessage is one entry of a chat transcript; transcripts live in memory only
type ChatMessage struct {
	ID              string    `json:"id"`
	Content         string    `json:"content"`
	IsFromCharacter bool      `json:"isFromCharacter"`
	Timestamp       time.Time `json:"timestamp"`
}

// SendMessageRequest is the body of a chat turn
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// CreateSessionRequest opens a chat session for a character
type CreateSessionRequest struct {
	CharacterID string `json:"characterId" binding:"required"`
}
