package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"persona-nft/backend/internal/chat"
	"persona-nft/backend/internal/models"
	"persona-nft/backend/pkg/logger"
)

// Sessions is the chat session table
type Sessions interface {
	Create(ctx context.Context, characterID string) (*chat.Session, error)
	Get(id string) (*chat.Session, error)
	Send(ctx context.Context, id, text string) (models.ChatMessage, *chat.Notice, error)
	Close(id string) error
}

// ChatController handles chat session endpoints
type ChatController struct {
	sessions Sessions
}

// NewChatController creates a new chat controller
func NewChatController(sessions Sessions) *ChatController {
	return &ChatController{sessions: sessions}
}

// SessionResponse is the wire form of a session
type SessionResponse struct {
	ID        string               `json:"id"`
	Character models.Character     `json:"character"`
	State     chat.State           `json:"state"`
	Messages  []models.ChatMessage `json:"messages"`
}

// ReplyResponse carries the character's reply and, when generation failed, a notice
type ReplyResponse struct {
	Message models.ChatMessage `json:"message"`
	Notice  *chat.Notice       `json:"notice,omitempty"`
}

// NewSessionResponse renders a session
func NewSessionResponse(s *chat.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		Character: s.Character,
		State:     s.State(),
		Messages:  s.Messages(),
	}
}

// CreateSession opens a session with a character
func (h *ChatController) CreateSession(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(invalidRequest(err))
		return
	}

	session, err := h.sessions.Create(c.Request.Context(), req.CharacterID)
	if err != nil {
		c.Error(ToAppError(err))
		return
	}
	c.JSON(http.StatusCreated, NewSessionResponse(session))
}

// GetSession returns a session transcript
func (h *ChatController) GetSession(c *gin.Context) {
	session, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		c.Error(ToAppError(err))
		return
	}
	c.JSON(http.StatusOK, NewSessionResponse(session))
}

// SendMessage posts a user message and waits for the reply
func (h *ChatController) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(invalidRequest(err))
		return
	}

	id := c.Param("id")
	start := time.Now()
	reply, notice, err := h.sessions.Send(c.Request.Context(), id, req.Content)
	if err != nil {
		c.Error(ToAppError(err))
		return
	}

	log := logger.FromContext(c)
	if notice != nil {
		log.Warn("Reply fell back", "session_id", id, "category", string(notice.Category))
	}
	log.Debug("Reply delivered", "session_id", id, "latency_ms", time.Since(start).Milliseconds())
	c.JSON(http.StatusOK, ReplyResponse{Message: reply, Notice: notice})
}

// CloseSession discards a session
func (h *ChatController) CloseSession(c *gin.Context) {
	if err := h.sessions.Close(c.Param("id")); err != nil {
		c.Error(ToAppError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers the chat routes
func (h *ChatController) RegisterRoutes(rg *gin.RouterGroup, limit gin.HandlerFunc) {
	group := rg.Group("/chat/sessions")
	{
		group.POST("", h.CreateSession)
		group.GET("/:id", h.GetSession)
		group.POST("/:id/messages", limit, h.SendMessage)
		group.DELETE("/:id", h.CloseSession)
	}
}
