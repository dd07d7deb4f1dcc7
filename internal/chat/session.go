// Package chat holds in-memory conversations with minted characters.
package chat

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"persona-nft/backend/ai"
	"persona-nft/backend/internal/models"
	"persona-nft/backend/pkg/logger"
)

var (
	// ErrEmptyMessage is returned for blank user input
	ErrEmptyMessage = errors.New("message is empty")
	// ErrReplyPending is returned while a reply is being generated
	ErrReplyPending = errors.New("a reply is already pending")
	// ErrSessionClosed is returned after the session was torn down
	ErrSessionClosed = errors.New("session is closed")
)

// WelcomeMessage seeds every new session
const WelcomeMessage = "Greetings, traveler. I sense you seek knowledge from beyond the veil. What mysteries would you have me illuminate?"

// State is the reply state of a session
type State string

const (
	StateIdle          State = "idle"
	StateAwaitingReply State = "awaiting_reply"
	StateClosed        State = "closed"
)

// Notice is a user-visible generation problem. The transcript never carries it.
type Notice struct {
	Category ai.Category `json:"category"`
	Message  string      `json:"message"`
}

// Recorder receives reply outcomes
type Recorder interface {
	ChatReply(outcome string)
}

// Session is one conversation with one character
type Session struct {
	ID        string
	Character models.Character

	mu       sync.Mutex
	state    State
	messages []models.ChatMessage

	prompt    string
	fallbacks []string
	gen       ai.Generator
	timeout   time.Duration
	recorder  Recorder
	log       *logger.Logger

	now  func() time.Time
	pick func(n int) int
}

// SessionOptions tunes a session
type SessionOptions struct {
	Styles       Styles
	ReplyTimeout time.Duration
	Recorder     Recorder
}

// NewSession starts a conversation seeded with the character's welcome message
func NewSession(character models.Character, gen ai.Generator, opts SessionOptions, log *logger.Logger) *Session {
	if log == nil {
		log = logger.Discard()
	}
	if opts.Styles == nil {
		opts.Styles = DefaultStyles()
	}
	if opts.ReplyTimeout <= 0 {
		opts.ReplyTimeout = 30 * time.Second
	}

	s := &Session{
		ID:        uuid.New().String(),
		Character: character,
		state:     StateIdle,
		prompt:    BuildPrompt(character, opts.Styles),
		fallbacks: fallbackLines(character),
		gen:       gen,
		timeout:   opts.ReplyTimeout,
		recorder:  opts.Recorder,
		now:       time.Now,
		pick:      rand.IntN,
	}
	s.log = log.WithSession(s.ID, character.ID)
	s.messages = []models.ChatMessage{s.message(WelcomeMessage, true)}
	return s
}

func (s *Session) message(content string, fromCharacter bool) models.ChatMessage {
	return models.ChatMessage{
		ID:              uuid.New().String(),
		Content:         content,
		IsFromCharacter: fromCharacter,
		Timestamp:       s.now(),
	}
}

// State reports the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a copy of the transcript, oldest first
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Close ends the session. A reply still in flight is dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosed {
		s.state = StateClosed
		s.log.Debug("Session closed")
	}
}

// SendMessage appends the user's message and the character's reply.
// Generation errors do not fail the call: the reply is a fallback line and the
// returned Notice explains what went wrong.
func (s *Session) SendMessage(ctx context.Context, text string) (models.ChatMessage, *Notice, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.ChatMessage{}, nil, ErrEmptyMessage
	}

	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return models.ChatMessage{}, nil, ErrSessionClosed
	case StateAwaitingReply:
		s.mu.Unlock()
		return models.ChatMessage{}, nil, ErrReplyPending
	}
	history := make([]ai.Turn, 0, len(s.messages))
	for _, m := range s.messages {
		speaker := ai.SpeakerUser
		if m.IsFromCharacter {
			speaker = ai.SpeakerCharacter
		}
		history = append(history, ai.Turn{Speaker: speaker, Text: m.Content})
	}
	s.messages = append(s.messages, s.message(text, false))
	s.state = StateAwaitingReply
	s.mu.Unlock()

	// the caller going away does not cancel generation
	genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	reply, err := s.generate(genCtx, text, history)

	var notice *Notice
	outcome := "ok"
	if err != nil {
		category := ai.Classify(err)
		notice = &Notice{Category: category, Message: category.Message()}
		outcome = "fallback"
		reply = s.fallbacks[s.pick(len(s.fallbacks))]
		s.log.Warn("Reply generation failed, using fallback", "category", string(category), "error", err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return models.ChatMessage{}, nil, ErrSessionClosed
	}
	msg := s.message(reply, true)
	s.messages = append(s.messages, msg)
	s.state = StateIdle

	if s.recorder != nil {
		s.recorder.ChatReply(outcome)
	}
	return msg, notice, nil
}

func (s *Session) generate(ctx context.Context, text string, history []ai.Turn) (string, error) {
	if s.gen == nil {
		return "", ai.ErrMissingAPIKey
	}
	reply, err := s.gen.GenerateReply(ctx, ai.Request{
		SystemPrompt: s.prompt,
		History:      history,
		Message:      text,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", ai.ErrEmptyResponse
	}
	return strings.TrimSpace(reply), nil
}
