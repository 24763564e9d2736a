package ws

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/armada-chat/armada/middleware/log"
)

// ConnectionListener is told about online transitions. The chat service
// implements it to persist the flag and broadcast user_status_change.
type ConnectionListener interface {
	UserConnected(ctx context.Context, connID string, userID uuid.UUID, first bool)
	UserDisconnected(ctx context.Context, connID string, userID uuid.UUID, last bool)
}

// Hub owns every live WebSocket connection and fans events out to rooms
// and users. One user may hold several connections at once.
type Hub struct {
	clients     map[string]*Client
	userClients map[uuid.UUID]map[string]*Client
	rooms       map[uuid.UUID]map[string]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	listener ConnectionListener
	logger   *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new Hub
func NewHub(log *logger.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]*Client),
		userClients: make(map[uuid.UUID]map[string]*Client),
		rooms:       make(map[uuid.UUID]map[string]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		logger:      log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetListener installs the connection listener. Must be called before Run.
func (h *Hub) SetListener(l ConnectionListener) {
	h.listener = l
}

// Run pumps the register and unregister channels until Stop
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// Stop shuts the hub down and closes every connection
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.clients {
		close(client.send)
		client.conn.Close()
	}
	h.clients = make(map[string]*Client)
	h.userClients = make(map[uuid.UUID]map[string]*Client)
	h.rooms = make(map[uuid.UUID]map[string]*Client)
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	set, ok := h.userClients[client.userID]
	if !ok {
		set = make(map[string]*Client)
		h.userClients[client.userID] = set
	}
	first := len(set) == 0
	set[client.id] = client
	h.mu.Unlock()

	h.logger.Debug("client registered",
		zap.String("conn_id", client.id),
		zap.String("user_id", client.userID.String()),
	)
	if h.listener != nil {
		h.listener.UserConnected(h.ctx, client.id, client.userID, first)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mu.Unlock()
		return
	}
	for roomID := range client.rooms {
		h.removeFromRoomLocked(client, roomID)
	}
	last := false
	if set, ok := h.userClients[client.userID]; ok {
		delete(set, client.id)
		if len(set) == 0 {
			delete(h.userClients, client.userID)
			last = true
		}
	}
	delete(h.clients, client.id)
	close(client.send)
	h.mu.Unlock()

	h.logger.Debug("client unregistered",
		zap.String("conn_id", client.id),
		zap.String("user_id", client.userID.String()),
	)
	if h.listener != nil {
		h.listener.UserDisconnected(h.ctx, client.id, client.userID, last)
	}
}

// JoinRoom subscribes a connection to a room's events
func (h *Hub) JoinRoom(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomID]
	if !ok {
		room = make(map[string]*Client)
		h.rooms[roomID] = room
	}
	room[client.id] = client
	client.mu.Lock()
	client.rooms[roomID] = true
	client.mu.Unlock()
}

// LeaveRoom unsubscribes a connection from a room
func (h *Hub) LeaveRoom(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoomLocked(client, roomID)
}

func (h *Hub) removeFromRoomLocked(client *Client, roomID uuid.UUID) {
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(room, client.id)
	if len(room) == 0 {
		delete(h.rooms, roomID)
	}
	client.mu.Lock()
	delete(client.rooms, roomID)
	client.mu.Unlock()
}

// SendToRoom delivers a payload to every connection subscribed to a room
func (h *Hub) SendToRoom(roomID uuid.UUID, payload []byte) {
	h.SendToRoomExcept(roomID, payload, uuid.Nil)
}

// SendToRoomExcept delivers to a room, skipping every connection of one
// user. Used for messages_read so the reader does not echo itself.
func (h *Hub) SendToRoomExcept(roomID uuid.UUID, payload []byte, exceptUser uuid.UUID) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	for _, client := range room {
		if client.userID == exceptUser {
			continue
		}
		h.trySend(client, payload)
	}
}

// SendToUser delivers a payload to every connection of one user
func (h *Hub) SendToUser(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.userClients[userID] {
		h.trySend(client, payload)
	}
}

// BroadcastExcept delivers a payload to every live connection not held
// by the excepted user. Used for user_status_change so a user's own
// online flip never echoes back to their other tabs.
func (h *Hub) BroadcastExcept(payload []byte, exceptUser uuid.UUID) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.userID == exceptUser {
			continue
		}
		h.trySend(client, payload)
	}
}

func (h *Hub) trySend(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		// Slow consumer; dropping beats blocking the hub.
		h.logger.Warn("client send buffer full, dropping event",
			zap.String("conn_id", client.id),
			zap.String("user_id", client.userID.String()),
		)
	}
}

// OnlineUsers returns every user with at least one live connection
func (h *Hub) OnlineUsers() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]uuid.UUID, 0, len(h.userClients))
	for id := range h.userClients {
		users = append(users, id)
	}
	return users
}

// RoomUsers returns the distinct users subscribed to a room
func (h *Hub) RoomUsers(roomID uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[uuid.UUID]bool)
	for _, client := range h.rooms[roomID] {
		seen[client.userID] = true
	}
	users := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		users = append(users, id)
	}
	return users
}
