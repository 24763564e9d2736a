package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/armada-chat/armada/internal/presence"
	"github.com/armada-chat/armada/internal/repository"
	"github.com/armada-chat/armada/internal/storage"
	"github.com/armada-chat/armada/internal/ws"
	"github.com/armada-chat/armada/middleware/log"
)

const onlineTTL = 5 * time.Minute

// ChatService glues the WebSocket layer to the domain: it handles every
// client-emitted event and tracks online transitions. It implements
// ws.EventHandler and ws.ConnectionListener.
type ChatService struct {
	roomRepo repository.IRoomRepository
	userRepo repository.IUserRepository
	messages *MessageService
	presence *presence.Registry
	hub      *ws.Hub
	redis    storage.RedisClient
	logger   *logger.Logger
}

func NewChatService(
	roomRepo repository.IRoomRepository,
	userRepo repository.IUserRepository,
	messages *MessageService,
	reg *presence.Registry,
	hub *ws.Hub,
	redis storage.RedisClient,
	log *logger.Logger,
) *ChatService {
	return &ChatService{
		roomRepo: roomRepo,
		userRepo: userRepo,
		messages: messages,
		presence: reg,
		hub:      hub,
		redis:    redis,
		logger:   log,
	}
}

// UserConnected records the connection and, on the first one, flips the
// user online and tells everyone.
func (s *ChatService) UserConnected(ctx context.Context, connID string, userID uuid.UUID, first bool) {
	s.presence.Connect(connID, userID)
	if !first {
		return
	}

	now := time.Now().UTC()
	if err := s.userRepo.SetOnline(ctx, userID, true, now); err != nil {
		s.logger.Warn("failed to persist online flag", zap.Error(err))
	}
	if err := s.redis.SetUserOnline(ctx, userID, onlineTTL); err != nil {
		s.logger.Warn("failed to set online marker", zap.Error(err))
	}
	s.hub.BroadcastExcept(ws.Encode(ws.EventUserStatusChange, map[string]any{
		"user_id":   userID,
		"is_online": true,
	}), userID)
}

// UserDisconnected drops the connection and, on the last one, flips the
// user offline.
func (s *ChatService) UserDisconnected(ctx context.Context, connID string, userID uuid.UUID, last bool) {
	s.presence.Disconnect(connID)
	if !last {
		return
	}

	now := time.Now().UTC()
	if err := s.userRepo.SetOnline(ctx, userID, false, now); err != nil {
		s.logger.Warn("failed to persist offline flag", zap.Error(err))
	}
	if err := s.redis.RemoveUserOnline(ctx, userID); err != nil {
		s.logger.Warn("failed to clear online marker", zap.Error(err))
	}
	s.hub.BroadcastExcept(ws.Encode(ws.EventUserStatusChange, map[string]any{
		"user_id":      userID,
		"is_online":    false,
		"last_seen_at": now,
	}), userID)
}

type roomEventPayload struct {
	RoomID uuid.UUID `json:"room_id"`
}

type typingPayload struct {
	RoomID   uuid.UUID `json:"room_id"`
	IsTyping bool      `json:"is_typing"`
}

type markReadPayload struct {
	RoomID     uuid.UUID   `json:"room_id"`
	MessageIDs []uuid.UUID `json:"message_ids"`
}

type sendMessagePayload struct {
	RoomID    uuid.UUID  `json:"room_id"`
	Content   string     `json:"content"`
	ReplyToID *uuid.UUID `json:"reply_to_id"`
}

// HandleEvent dispatches one client-emitted event
func (s *ChatService) HandleEvent(ctx context.Context, client *ws.Client, evt ws.Event) {
	switch evt.Event {
	case ws.EventJoinRoom:
		s.handleJoin(ctx, client, evt.Data)
	case ws.EventLeaveRoom:
		s.handleLeave(client, evt.Data)
	case ws.EventTyping:
		s.handleTyping(ctx, client, evt.Data)
	case ws.EventMarkAsRead:
		s.handleMarkRead(ctx, client, evt.Data)
	case ws.EventSendMessage:
		s.handleSend(ctx, client, evt.Data)
	default:
		s.sendError(client, "unknown event")
	}
}

func (s *ChatService) handleJoin(ctx context.Context, client *ws.Client, data json.RawMessage) {
	var p roomEventPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == uuid.Nil {
		s.sendError(client, "malformed join_room payload")
		return
	}
	ok, err := s.roomRepo.IsMember(ctx, p.RoomID, client.UserID())
	if err != nil || !ok {
		s.sendError(client, "not a member of this room")
		return
	}
	s.hub.JoinRoom(client, p.RoomID)
	s.presence.JoinRoom(client.UserID(), p.RoomID)
}

func (s *ChatService) handleLeave(client *ws.Client, data json.RawMessage) {
	var p roomEventPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == uuid.Nil {
		s.sendError(client, "malformed leave_room payload")
		return
	}
	s.hub.LeaveRoom(client, p.RoomID)
	s.presence.LeaveRoom(client.UserID(), p.RoomID)
}

func (s *ChatService) handleTyping(ctx context.Context, client *ws.Client, data json.RawMessage) {
	var p typingPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == uuid.Nil {
		return
	}
	name := ""
	if u, err := s.userRepo.FindByID(ctx, client.UserID()); err == nil {
		name = u.FullName
	}
	s.BroadcastTyping(p.RoomID, client.UserID(), name, p.IsTyping)
}

// BroadcastTyping relays a member's typing indicator to the rest of the
// room.
func (s *ChatService) BroadcastTyping(roomID, userID uuid.UUID, name string, isTyping bool) {
	s.hub.SendToRoomExcept(roomID, ws.Encode(ws.EventUserTyping, map[string]any{
		"room_id":   roomID,
		"user_id":   userID,
		"full_name": name,
		"is_typing": isTyping,
	}), userID)
}

// BroadcastAgentTyping relays the bot-attributed indicator emitted while
// an agent composes a reply. It goes out as the distinct typing event,
// and bots hold no connections, so nobody is excluded.
func (s *ChatService) BroadcastAgentTyping(roomID, botID uuid.UUID, name string, isTyping bool) {
	s.hub.SendToRoom(roomID, ws.Encode(ws.EventTyping, map[string]any{
		"room_id":   roomID,
		"user_id":   botID,
		"full_name": name,
		"is_typing": isTyping,
	}))
}

func (s *ChatService) handleMarkRead(ctx context.Context, client *ws.Client, data json.RawMessage) {
	var p markReadPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == uuid.Nil {
		s.sendError(client, "malformed mark_as_read payload")
		return
	}
	if _, err := s.messages.MarkRead(ctx, client.UserID(), p.RoomID, p.MessageIDs); err != nil {
		s.sendError(client, err.Error())
	}
}

func (s *ChatService) handleSend(ctx context.Context, client *ws.Client, data json.RawMessage) {
	var p sendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == uuid.Nil {
		s.sendError(client, "malformed send_message payload")
		return
	}
	_, err := s.messages.Post(ctx, client.UserID(), &PostRequest{
		RoomID:    p.RoomID,
		Content:   p.Content,
		ReplyToID: p.ReplyToID,
	})
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			s.sendError(client, ErrRateLimited.Error())
			return
		}
		s.logger.Warn("websocket post failed",
			zap.String("user_id", client.UserID().String()),
			zap.Error(err),
		)
		s.sendError(client, err.Error())
	}
}

func (s *ChatService) sendError(client *ws.Client, msg string) {
	client.Send(ws.Encode(ws.EventError, map[string]string{"error": msg}))
}
