package services

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/armada-chat/armada/internal/agent"
	"github.com/armada-chat/armada/internal/event"
	"github.com/armada-chat/armada/internal/model"
	"github.com/armada-chat/armada/internal/notify"
	"github.com/armada-chat/armada/internal/repository"
	"github.com/armada-chat/armada/internal/storage"
	"github.com/armada-chat/armada/internal/ws"
	"github.com/armada-chat/armada/middleware/log"
)

// EventSink receives room events after the owning transaction commits.
// Kafka in production, an inline worker-pool sink when brokers are absent.
type EventSink interface {
	Publish(ctx context.Context, key string, payload any) error
}

// RateLimiter guards message posting per user.
type RateLimiter interface {
	Allow(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Bridge is told about every user-posted message so it can invoke AI
// agents. Implemented by the agent bridge; runs detached.
type Bridge interface {
	MaybeInvoke(roomID, messageID, senderID uuid.UUID, content string)
}

// mentionPattern matches @"Full Name" and @word mentions anywhere in a
// message.
var mentionPattern = regexp.MustCompile(`@"([^"]+)"|@([\p{L}\p{N}_.\-]+)`)

// MessageService is the single ingestion path for messages: REST posts,
// WebSocket sends and agent replies all land here.
type MessageService struct {
	msgRepo  repository.IMessageRepository
	roomRepo repository.IRoomRepository
	userRepo repository.IUserRepository
	redis    storage.RedisClient
	hub      *ws.Hub
	limiter  RateLimiter
	sink     EventSink
	bridge   Bridge
	logger   *logger.Logger
}

func NewMessageService(
	msgRepo repository.IMessageRepository,
	roomRepo repository.IRoomRepository,
	userRepo repository.IUserRepository,
	redis storage.RedisClient,
	hub *ws.Hub,
	limiter RateLimiter,
	sink EventSink,
	log *logger.Logger,
) *MessageService {
	return &MessageService{
		msgRepo:  msgRepo,
		roomRepo: roomRepo,
		userRepo: userRepo,
		redis:    redis,
		hub:      hub,
		limiter:  limiter,
		sink:     sink,
		logger:   log,
	}
}

// SetBridge installs the agent bridge. Wired after construction because
// the bridge posts replies back through this service.
func (s *MessageService) SetBridge(b Bridge) {
	s.bridge = b
}

// AttachmentInput is file metadata supplied with a post.
type AttachmentInput struct {
	URL      string `json:"url" binding:"required"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// PostRequest carries one new message.
type PostRequest struct {
	RoomID      uuid.UUID         `json:"room_id" binding:"required"`
	Content     string            `json:"content"`
	ReplyToID   *uuid.UUID        `json:"reply_to_id"`
	Attachments []AttachmentInput `json:"attachments"`
}

// MessagePage is one page of a room's history.
type MessagePage struct {
	Items    []*model.Message `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	HasMore  bool             `json:"has_more"`
}

// Post ingests a message: persist, advance the sender's read marker,
// bump room activity, broadcast, then hand off to accounting and the
// agent bridge.
func (s *MessageService) Post(ctx context.Context, senderID uuid.UUID, req *PostRequest) (*model.Message, error) {
	room, err := s.roomRepo.FindByID(ctx, req.RoomID)
	if err != nil {
		return nil, ErrNotFound
	}
	if !room.IsActive {
		return nil, ErrRoomInactive
	}

	fromBot := agent.IsBotID(senderID)
	if !fromBot {
		if err := s.requireMember(ctx, req.RoomID, senderID); err != nil {
			return nil, err
		}
	}

	content := strings.TrimSpace(req.Content)
	if content == "" && len(req.Attachments) == 0 {
		return nil, ErrInvalidInput
	}

	if req.ReplyToID != nil {
		parent, err := s.msgRepo.FindByID(ctx, *req.ReplyToID)
		if err != nil || parent.RoomID != req.RoomID {
			return nil, ErrNotFound
		}
	}

	if s.limiter != nil && !fromBot {
		allowed, err := s.limiter.Allow(ctx, senderID)
		if err != nil {
			s.logger.Warn("rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			return nil, ErrRateLimited
		}
	}

	now := time.Now().UTC()
	seq, err := s.redis.NextSeq(ctx, req.RoomID)
	if err != nil {
		s.logger.Warn("sequence generation failed, falling back to timestamp order",
			zap.String("room_id", req.RoomID.String()),
			zap.Error(err),
		)
		seq = 0
	}

	sender := senderID
	msg := &model.Message{
		ID:        uuid.New(),
		RoomID:    req.RoomID,
		SenderID:  &sender,
		Content:   content,
		ReplyToID: req.ReplyToID,
		State:     model.MessageActive,
		Seq:       seq,
		CreatedAt: now,
	}
	for _, a := range req.Attachments {
		msg.Attachments = append(msg.Attachments, model.Attachment{
			ID:        uuid.New(),
			MessageID: msg.ID,
			URL:       a.URL,
			Filename:  a.Filename,
			MimeType:  a.MimeType,
			Size:      a.Size,
		})
	}

	// Viewing your own message means you have read up to it; the marker
	// advance and the room activity bump commit with the insert.
	var advanceFor *uuid.UUID
	if !fromBot {
		advanceFor = &sender
	}
	mentions := s.resolveMentions(ctx, msg.ID, senderID, content)
	if err := s.msgRepo.Create(ctx, msg, mentions, advanceFor); err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(msg); err == nil {
		if err := s.redis.CacheRecentMessage(ctx, req.RoomID, payload); err != nil {
			s.logger.Warn("failed to cache recent message", zap.Error(err))
		}
	}

	s.broadcastMessage(ctx, msg)

	evt := &event.RoomEvent{
		Kind:       event.KindMessageCreated,
		RoomID:     req.RoomID,
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		Preview:    notify.Preview(content),
		OccurredAt: now,
	}
	if err := s.sink.Publish(ctx, req.RoomID.String(), evt); err != nil {
		s.logger.Error("failed to publish message event",
			zap.String("message_id", msg.ID.String()),
			zap.Error(err),
		)
	}

	if s.bridge != nil && !fromBot {
		s.bridge.MaybeInvoke(req.RoomID, msg.ID, senderID, content)
	}
	return msg, nil
}

func (s *MessageService) broadcastMessage(ctx context.Context, msg *model.Message) {
	senderName := ""
	if msg.SenderID != nil {
		if u, err := s.userRepo.FindByID(ctx, *msg.SenderID); err == nil {
			senderName = u.FullName
		}
	}
	s.hub.SendToRoom(msg.RoomID, ws.Encode(ws.EventNewMessage, map[string]any{
		"message":     msg,
		"sender_name": senderName,
	}))
}

// resolveMentions extracts @mentions from the content and resolves them
// to user rows. Agent invocations are handled by the bridge, not here.
func (s *MessageService) resolveMentions(ctx context.Context, messageID, senderID uuid.UUID, content string) []*model.Mention {
	seen := make(map[uuid.UUID]bool)
	var out []*model.Mention

	for _, m := range mentionPattern.FindAllStringSubmatch(content, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		lower := strings.ToLower(name)
		if lower == "emailai" || lower == "searchai" {
			continue
		}
		user, err := s.userRepo.FindByFullName(ctx, name)
		if err != nil {
			continue
		}
		if user.ID == senderID || seen[user.ID] {
			continue
		}
		seen[user.ID] = true
		out = append(out, &model.Mention{
			ID:              uuid.New(),
			MessageID:       messageID,
			MentionedUserID: user.ID,
		})
	}
	return out
}

// Edit replaces a message's content. Only the sender may edit; deleted
// messages stay deleted.
func (s *MessageService) Edit(ctx context.Context, actorID, messageID uuid.UUID, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrInvalidInput
	}

	msg, err := s.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, ErrNotFound
	}
	if msg.State == model.MessageDeleted {
		return nil, ErrMessageDeleted
	}
	if msg.SenderID == nil || *msg.SenderID != actorID {
		return nil, ErrForbidden
	}

	now := time.Now().UTC()
	if err := s.msgRepo.MarkEdited(ctx, messageID, content, now); err != nil {
		return nil, err
	}
	msg.Content = content
	msg.State = model.MessageEdited
	msg.EditedAt = &now

	s.hub.SendToRoom(msg.RoomID, ws.Encode(ws.EventMessageEdited, map[string]any{
		"message_id": messageID,
		"room_id":    msg.RoomID,
		"content":    content,
		"edited_at":  now,
	}))
	return msg, nil
}

// Delete tags a message deleted. The sender, a room admin or a global
// admin may delete.
func (s *MessageService) Delete(ctx context.Context, actorID, messageID uuid.UUID) error {
	msg, err := s.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return ErrNotFound
	}
	if msg.State == model.MessageDeleted {
		return nil
	}

	if msg.SenderID == nil || *msg.SenderID != actorID {
		if err := s.requireAdmin(ctx, msg.RoomID, actorID); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	if err := s.msgRepo.MarkDeleted(ctx, messageID, now); err != nil {
		return err
	}
	s.hub.SendToRoom(msg.RoomID, ws.Encode(ws.EventMessageDeleted, map[string]any{
		"message_id": messageID,
		"room_id":    msg.RoomID,
		"deleted_at": now,
	}))
	return nil
}

// List returns one page of a room's history, newest first
func (s *MessageService) List(ctx context.Context, userID, roomID uuid.UUID, page, pageSize int) (*MessagePage, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	items, total, err := s.msgRepo.ListByRoom(ctx, roomID, page, pageSize)
	if err != nil {
		return nil, err
	}
	return &MessagePage{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		HasMore:  int64(page*pageSize) < total,
	}, nil
}

// MarkRead receipts messages in the room for the user, zeroes the unread
// counter and tells the other members. An explicit messageIDs list
// receipts only those messages; empty means everything unread. Ids that
// are already receipted, deleted or from another room are skipped, so
// marking twice is harmless.
func (s *MessageService) MarkRead(ctx context.Context, userID, roomID uuid.UUID, messageIDs []uuid.UUID) (int, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return 0, err
	}

	ids, err := s.msgRepo.ListUnreadByRoom(ctx, roomID, userID, nil)
	if err != nil {
		return 0, err
	}
	if len(messageIDs) > 0 {
		want := make(map[uuid.UUID]bool, len(messageIDs))
		for _, id := range messageIDs {
			want[id] = true
		}
		var subset []uuid.UUID
		for _, id := range ids {
			if want[id] {
				subset = append(subset, id)
			}
		}
		ids = subset
	}
	if err := s.msgRepo.CreateReceipts(ctx, userID, ids); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	if err := s.roomRepo.ResetUnread(ctx, roomID, userID, now); err != nil {
		return 0, err
	}

	if len(ids) > 0 {
		s.hub.SendToRoomExcept(roomID, ws.Encode(ws.EventMessagesRead, map[string]any{
			"room_id":     roomID,
			"user_id":     userID,
			"message_ids": ids,
			"read_at":     now,
		}), userID)
	}
	return len(ids), nil
}

// React sets the user's emoji on a message, replacing a previous one
func (s *MessageService) React(ctx context.Context, userID, messageID uuid.UUID, emoji string) error {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return ErrInvalidInput
	}

	msg, err := s.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return ErrNotFound
	}
	if msg.State == model.MessageDeleted {
		return ErrMessageDeleted
	}
	if err := s.requireMember(ctx, msg.RoomID, userID); err != nil {
		return err
	}

	if err := s.msgRepo.SetReaction(ctx, messageID, userID, emoji); err != nil {
		return err
	}
	return s.broadcastReactions(ctx, msg)
}

// Unreact removes the user's reaction from a message. Emoji may be
// empty to remove whatever reaction the user holds.
func (s *MessageService) Unreact(ctx context.Context, userID, messageID uuid.UUID, emoji string) error {
	msg, err := s.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return ErrNotFound
	}
	if err := s.requireMember(ctx, msg.RoomID, userID); err != nil {
		return err
	}
	if err := s.msgRepo.RemoveReaction(ctx, messageID, userID, emoji); err != nil {
		return err
	}
	return s.broadcastReactions(ctx, msg)
}

// Reactions returns the per-emoji tallies of a message
func (s *MessageService) Reactions(ctx context.Context, userID, messageID uuid.UUID) ([]*repository.ReactionCount, error) {
	msg, err := s.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, ErrNotFound
	}
	if err := s.requireMember(ctx, msg.RoomID, userID); err != nil {
		return nil, err
	}
	return s.msgRepo.ReactionSummary(ctx, messageID)
}

// Receipts returns who has read a message
func (s *MessageService) Receipts(ctx context.Context, userID, messageID uuid.UUID) ([]*model.ReadReceipt, error) {
	msg, err := s.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, ErrNotFound
	}
	if err := s.requireMember(ctx, msg.RoomID, userID); err != nil {
		return nil, err
	}
	return s.msgRepo.ListReceipts(ctx, messageID)
}

func (s *MessageService) broadcastReactions(ctx context.Context, msg *model.Message) error {
	summary, err := s.msgRepo.ReactionSummary(ctx, msg.ID)
	if err != nil {
		return err
	}
	s.hub.SendToRoom(msg.RoomID, ws.Encode(ws.EventReactionUpdated, map[string]any{
		"message_id": msg.ID,
		"room_id":    msg.RoomID,
		"reactions":  summary,
	}))
	return nil
}

func (s *MessageService) requireMember(ctx context.Context, roomID, userID uuid.UUID) error {
	ok, err := s.roomRepo.IsMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}

func (s *MessageService) requireAdmin(ctx context.Context, roomID, userID uuid.UUID) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err == nil && user.IsAdmin {
		return nil
	}
	m, err := s.roomRepo.GetMembership(ctx, roomID, userID)
	if err == gorm.ErrRecordNotFound {
		return ErrNotMember
	}
	if err != nil {
		return err
	}
	if !m.IsActive || !m.IsAdmin {
		return ErrForbidden
	}
	return nil
}
