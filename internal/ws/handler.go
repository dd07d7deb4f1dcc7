// Package ws serves chat sessions over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"persona-nft/backend/internal/api"
	"persona-nft/backend/internal/chat"
	"persona-nft/backend/internal/models"
	"persona-nft/backend/pkg/errors"
	"persona-nft/backend/pkg/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 16 * 1024

	sendBuffer = 16
)

// Event types pushed to the client
const (
	EventSession = "session"
	EventMessage = "message"
	EventTyping  = "typing"
	EventNotice  = "notice"
	EventError   = "error"
	EventPong    = "pong"
)

// Message is the envelope of every frame in both directions
type Message struct {
	Type    string `json:"type"`
	Content any    `json:"content,omitempty"`
}

type inbound struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Sessions is the chat session table
type Sessions interface {
	Create(ctx context.Context, characterID string) (*chat.Session, error)
	Send(ctx context.Context, id, text string) (models.ChatMessage, *chat.Notice, error)
	Close(id string) error
}

// Client is one socket bound to one chat session
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	session *chat.Session
	out     chan []byte
	done    chan struct{}
	once    sync.Once
	log     *logger.Logger
}

// Hub tracks connected clients and tears their sessions down on disconnect
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	sessions   Sessions
	upgrader   websocket.Upgrader
	mu         sync.RWMutex
	log        *logger.Logger
}

// NewHub creates a hub; allowedOrigins of nil or containing "*" accepts every origin
func NewHub(sessions Sessions, allowedOrigins []string, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		sessions:   sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin:      originChecker(allowedOrigins),
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		log: log.Component("ws"),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// Run processes registrations until ctx is done, then drops every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.quit)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			client.log.Info("Client registered")

		case client := <-h.unregister:
			h.remove(client)

		case <-ctx.Done():
			h.mu.Lock()
			clients := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.Unlock()
			for _, c := range clients {
				h.remove(c)
			}
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()
	if !ok {
		return
	}

	client.stop()
	if err := h.sessions.Close(client.session.ID); err != nil && !stderrors.Is(err, chat.ErrSessionNotFound) {
		client.log.Warn("Session close failed", "error", err.Error())
	}
	client.log.Info("Client unregistered")
}

// ActiveConnections returns the number of connected clients
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWs opens a session for the :characterId path parameter and upgrades the connection
func (h *Hub) ServeWs(c *gin.Context) {
	session, err := h.sessions.Create(c.Request.Context(), c.Param("characterId"))
	if err != nil {
		c.Error(api.ToAppError(err))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		_ = h.sessions.Close(session.ID)
		h.log.Warn("WebSocket upgrade failed", "error", err.Error())
		return
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		session: session,
		out:     make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		log:     h.log.WithSession(session.ID, session.Character.ID),
	}
	select {
	case h.register <- client:
	case <-h.quit:
		_ = h.sessions.Close(session.ID)
		conn.Close()
		return
	}

	go client.writePump()
	client.send(EventSession, map[string]any{
		"id":        session.ID,
		"character": session.Character,
		"messages":  session.Messages(),
	})
	go client.readPump()
}

func (c *Client) stop() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("WebSocket read failed", "error", err.Error())
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.send(EventError, errors.NewBadRequestError(errors.CodeInvalidRequest, "Malformed message"))
			continue
		}

		switch msg.Type {
		case "chat":
			go c.handleChat(msg.Content)
		case "ping":
			c.send(EventPong, nil)
		default:
			c.send(EventError, errors.NewBadRequestError(errors.CodeInvalidRequest, "Unknown message type"))
		}
	}
}

func (c *Client) handleChat(text string) {
	c.send(EventTyping, map[string]bool{"isTyping": true})
	reply, notice, err := c.hub.sessions.Send(context.Background(), c.session.ID, text)
	c.send(EventTyping, map[string]bool{"isTyping": false})

	if err != nil {
		c.send(EventError, api.ToAppError(err))
		return
	}
	c.send(EventMessage, reply)
	if notice != nil {
		c.send(EventNotice, notice)
	}
}

func (c *Client) send(eventType string, content any) {
	data, err := json.Marshal(Message{Type: eventType, Content: content})
	if err != nil {
		c.log.LogError(err, "Failed to encode event", "type", eventType)
		return
	}
	select {
	case c.out <- data:
	case <-c.done:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
