package chat

import (
	"context"
	"errors"
	"time"

	"persona-nft/backend/ai"
	"persona-nft/backend/internal/models"
	"persona-nft/backend/pkg/cache"
	"persona-nft/backend/pkg/logger"
)

// ErrSessionNotFound is returned for unknown or expired session ids
var ErrSessionNotFound = errors.New("session not found")

// CharacterSource resolves the character a session talks to
type CharacterSource interface {
	GetCharacter(ctx context.Context, id string) (models.Character, error)
}

// MetricsRecorder is the subset of metrics the manager reports to
type MetricsRecorder interface {
	Recorder
	SessionOpened()
	SessionClosed()
}

// ManagerOptions configures a Manager
type ManagerOptions struct {
	IdleTTL      time.Duration
	MaxSessions  int
	ReplyTimeout time.Duration
	Styles       Styles
	Metrics      MetricsRecorder
}

// Manager owns the live sessions. Idle sessions expire after IdleTTL.
type Manager struct {
	characters CharacterSource
	gen        ai.Generator
	opts       ManagerOptions
	sessions   *cache.Cache
	log        *logger.Logger
}

// NewManager creates a session table
func NewManager(characters CharacterSource, gen ai.Generator, opts ManagerOptions, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Discard()
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	if opts.Styles == nil {
		opts.Styles = DefaultStyles()
	}

	m := &Manager{
		characters: characters,
		gen:        gen,
		opts:       opts,
		log:        log.Component("chat"),
		sessions: cache.New(cache.Options{
			DefaultExpiration: opts.IdleTTL,
			CleanupInterval:   opts.IdleTTL / 2,
			MaxItems:          opts.MaxSessions,
		}),
	}
	m.sessions.SetOnEvicted(func(id string, v any) {
		if s, ok := v.(*Session); ok {
			s.Close()
		}
		if m.opts.Metrics != nil {
			m.opts.Metrics.SessionClosed()
		}
	})
	return m
}

// Create opens a session with the character behind characterID
func (m *Manager) Create(ctx context.Context, characterID string) (*Session, error) {
	character, err := m.characters.GetCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	// a placeholder without a creator never came back from the chain
	if character.Placeholder && character.Creator == "" {
		m.log.Warn("Refusing chat with unresolved character", "character_id", characterID)
		return nil, ai.ErrCharacterNotFound
	}

	var recorder Recorder
	if m.opts.Metrics != nil {
		recorder = m.opts.Metrics
	}
	s := NewSession(character, m.gen, SessionOptions{
		Styles:       m.opts.Styles,
		ReplyTimeout: m.opts.ReplyTimeout,
		Recorder:     recorder,
	}, m.log)

	m.sessions.Set(s.ID, s)
	if m.opts.Metrics != nil {
		m.opts.Metrics.SessionOpened()
	}
	m.log.Info("Chat session opened", "session_id", s.ID, "character_id", character.ID, "character", character.Name)
	return s, nil
}

// Get returns a live session and refreshes its idle timer
func (m *Manager) Get(id string) (*Session, error) {
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	m.sessions.Touch(id)
	return v.(*Session), nil
}

// Send posts a user message to a session
func (m *Manager) Send(ctx context.Context, id, text string) (models.ChatMessage, *Notice, error) {
	s, err := m.Get(id)
	if err != nil {
		return models.ChatMessage{}, nil, err
	}
	msg, notice, err := s.SendMessage(ctx, text)
	m.sessions.Touch(id)
	return msg, notice, err
}

// Close tears a session down
func (m *Manager) Close(id string) error {
	if _, ok := m.sessions.Get(id); !ok {
		return ErrSessionNotFound
	}
	m.sessions.Delete(id)
	m.log.Info("Chat session closed", "session_id", id)
	return nil
}

// Count returns the number of tracked sessions
func (m *Manager) Count() int {
	return m.sessions.Count()
}

// Shutdown closes every session and stops the expiry janitor
func (m *Manager) Shutdown() {
	m.sessions.Flush()
	m.sessions.Close()
}
