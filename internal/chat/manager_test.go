package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-nft/backend/ai"
	"persona-nft/backend/internal/models"
	"persona-nft/backend/pkg/logger"
)

type stubCharacters map[string]models.Character

var errUnknownCharacter = errors.New("unknown character")

func (s stubCharacters) GetCharacter(_ context.Context, id string) (models.Character, error) {
	c, ok := s[id]
	if !ok {
		return models.Character{}, errUnknownCharacter
	}
	return c, nil
}

func newTestManager(ttl time.Duration, rec MetricsRecorder) *Manager {
	chars := stubCharacters{"1": aria}
	return NewManager(chars, &stubGenerator{reply: "Indeed."}, ManagerOptions{IdleTTL: ttl, Metrics: rec}, logger.Discard())
}

func TestManager_Lifecycle(t *testing.T) {
	rec := &countingRecorder{}
	m := newTestManager(time.Minute, rec)
	defer m.Shutdown()

	s, err := m.Create(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Aria the Mystic", s.Character.Name)
	assert.Equal(t, 1, m.Count())

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	reply, notice, err := m.Send(context.Background(), s.ID, "hello")
	require.NoError(t, err)
	assert.Nil(t, notice)
	assert.Equal(t, "Indeed.", reply.Content)

	require.NoError(t, m.Close(s.ID))
	assert.Equal(t, StateClosed, s.State())
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Close(s.ID), ErrSessionNotFound)

	assert.Equal(t, 1, rec.opened)
	assert.Equal(t, 1, rec.closed)
}

func TestManager_UnknownCharacter(t *testing.T) {
	m := newTestManager(time.Minute, nil)
	defer m.Shutdown()

	_, err := m.Create(context.Background(), "404")
	assert.ErrorIs(t, err, errUnknownCharacter)
	assert.Equal(t, 0, m.Count())
}

func TestManager_RejectsUnresolvedCharacter(t *testing.T) {
	unresolved := models.Character{ID: "999999", Name: "Unknown Character", Placeholder: true}
	degraded := models.Character{ID: "5", Name: "Luffy", Creator: "0x1234567890123456789012345678901234567890", Placeholder: true}
	m := NewManager(stubCharacters{"999999": unresolved, "5": degraded}, &stubGenerator{reply: "ok"}, ManagerOptions{IdleTTL: time.Minute}, logger.Discard())
	defer m.Shutdown()

	_, err := m.Create(context.Background(), "999999")
	assert.ErrorIs(t, err, ai.ErrCharacterNotFound)
	assert.Equal(t, ai.CategoryCharacterNotFound, ai.Classify(err))
	assert.Equal(t, 0, m.Count())

	s, err := m.Create(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, "Luffy", s.Character.Name)
}

func TestManager_IdleExpiry(t *testing.T) {
	rec := &countingRecorder{}
	m := newTestManager(20*time.Millisecond, rec)
	defer m.Shutdown()

	s, err := m.Create(context.Background(), "1")
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)
	m.sessions.DeleteExpired()

	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, _, err = m.Send(context.Background(), s.ID, "hello?")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 1, rec.closed)
}

func TestManager_ShutdownClosesSessions(t *testing.T) {
	m := newTestManager(time.Minute, nil)
	s, err := m.Create(context.Background(), "1")
	require.NoError(t, err)

	m.Shutdown()
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, m.Count())
}
