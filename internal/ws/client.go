package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventHandler receives every client-emitted event. The chat service
// implements it; the ws package stays free of business rules.
type EventHandler interface {
	HandleEvent(ctx context.Context, client *Client, evt Event)
}

// Client is one WebSocket connection.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	handler EventHandler

	id     string
	userID uuid.UUID

	rooms map[uuid.UUID]bool
	mu    sync.RWMutex
}

// ID returns the connection ID
func (c *Client) ID() string { return c.id }

// UserID returns the authenticated user behind the connection
func (c *Client) UserID() uuid.UUID { return c.userID }

// Hub returns the owning hub
func (c *Client) Hub() *Hub { return c.hub }

// Send queues a payload for this single connection
func (c *Client) Send(payload []byte) {
	c.hub.trySend(c, payload)
}

// readPump reads client events and hands them to the handler
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error",
					zap.String("conn_id", c.id),
					zap.Error(err),
				)
			}
			break
		}

		var evt Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			c.Send(Encode(EventError, map[string]string{"error": "malformed event"}))
			continue
		}
		if c.handler != nil {
			c.handler.HandleEvent(c.hub.ctx, c, evt)
		}
	}
}

// writePump flushes queued payloads to the connection and keeps the
// ping/pong heartbeat alive
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

			// Drain whatever else is queued before the next select.
			n := len(c.send)
			for range n {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades an authenticated request to a WebSocket connection
func ServeWs(hub *Hub, handler EventHandler, c *gin.Context) {
	raw, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	userID, err := uuid.Parse(raw.(string))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		handler: handler,
		id:      uuid.NewString(),
		userID:  userID,
		rooms:   make(map[uuid.UUID]bool),
	}
	hub.register <- client

	go client.writePump()
	go client.readPump()

	client.Send(Encode(EventConnected, map[string]string{"connection_id": client.id}))
}
