package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/armada-chat/armada/internal/model"
	"github.com/armada-chat/armada/internal/repository"
	"github.com/armada-chat/armada/internal/storage"
	"github.com/armada-chat/armada/internal/ws"
	"github.com/armada-chat/armada/middleware/log"
)

// RoomService handles room lifecycle and membership.
type RoomService struct {
	roomRepo repository.IRoomRepository
	userRepo repository.IUserRepository
	hub      *ws.Hub
	redis    storage.RedisClient
	logger   *logger.Logger
}

func NewRoomService(
	roomRepo repository.IRoomRepository,
	userRepo repository.IUserRepository,
	hub *ws.Hub,
	redis storage.RedisClient,
	log *logger.Logger,
) *RoomService {
	return &RoomService{
		roomRepo: roomRepo,
		userRepo: userRepo,
		hub:      hub,
		redis:    redis,
		logger:   log,
	}
}

// CreateRoomRequest carries a new group or topic room
type CreateRoomRequest struct {
	Name        string      `json:"name" binding:"required"`
	Description string      `json:"description"`
	Kind        string      `json:"kind"`
	MemberIDs   []uuid.UUID `json:"member_ids"`
}

// Create creates a group or topic room with the creator as room admin
func (s *RoomService) Create(ctx context.Context, creatorID uuid.UUID, req *CreateRoomRequest) (*model.Room, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalidInput
	}

	kind := model.RoomKind(req.Kind)
	switch kind {
	case "":
		kind = model.RoomGroup
	case model.RoomGroup, model.RoomTopic:
	default:
		return nil, ErrInvalidInput
	}

	room := &model.Room{
		ID:          uuid.New(),
		Name:        name,
		Description: req.Description,
		Kind:        kind,
		CreatedBy:   creatorID,
		IsActive:    true,
	}

	seen := map[uuid.UUID]bool{creatorID: true}
	var memberIDs []uuid.UUID
	for _, id := range req.MemberIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		memberIDs = append(memberIDs, id)
	}
	found, err := s.userRepo.ListByIDs(ctx, memberIDs)
	if err != nil {
		return nil, err
	}
	if len(found) != len(memberIDs) {
		return nil, ErrNotFound
	}

	members := []*model.Membership{{
		ID:       uuid.New(),
		RoomID:   room.ID,
		UserID:   creatorID,
		IsAdmin:  true,
		IsActive: true,
	}}
	for _, id := range memberIDs {
		members = append(members, &model.Membership{
			ID:       uuid.New(),
			RoomID:   room.ID,
			UserID:   id,
			IsActive: true,
		})
	}

	if err := s.roomRepo.Create(ctx, room, members); err != nil {
		return nil, err
	}
	return room, nil
}

// CreateDirect opens a direct chat between two users, returning the
// existing one when it was already opened before.
func (s *RoomService) CreateDirect(ctx context.Context, userID, peerID uuid.UUID) (*model.Room, error) {
	if userID == peerID {
		return nil, ErrSelfConversation
	}
	peer, err := s.userRepo.FindByID(ctx, peerID)
	if err != nil {
		return nil, ErrNotFound
	}

	if existing, err := s.roomRepo.FindDirect(ctx, userID, peerID); err == nil {
		return existing, nil
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	room := &model.Room{
		ID:        uuid.New(),
		Name:      peer.FullName,
		Kind:      model.RoomDirect,
		CreatedBy: userID,
		IsActive:  true,
	}
	members := []*model.Membership{
		{ID: uuid.New(), RoomID: room.ID, UserID: userID, IsActive: true},
		{ID: uuid.New(), RoomID: room.ID, UserID: peerID, IsActive: true},
	}
	if err := s.roomRepo.Create(ctx, room, members); err != nil {
		return nil, err
	}
	return room, nil
}

// List returns the user's rooms with unread counters, newest activity first
func (s *RoomService) List(ctx context.Context, userID uuid.UUID) ([]*repository.RoomSummary, error) {
	return s.roomRepo.ListForUser(ctx, userID)
}

// RoomDetail is one room plus its cached most recent messages, newest
// first.
type RoomDetail struct {
	Room   *model.Room       `json:"room"`
	Recent []json.RawMessage `json:"recent_messages"`
}

// Get returns one room the user belongs to, with the recent-message
// cache so clients can paint the tail without a history query. A cold or
// unreachable cache degrades to an empty tail.
func (s *RoomService) Get(ctx context.Context, roomID, userID uuid.UUID) (*RoomDetail, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err == gorm.ErrRecordNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	detail := &RoomDetail{Room: room}
	cached, err := s.redis.RecentMessages(ctx, roomID)
	if err != nil {
		s.logger.Warn("failed to read recent cache",
			zap.String("room_id", roomID.String()),
			zap.Error(err),
		)
		return detail, nil
	}
	for _, raw := range cached {
		detail.Recent = append(detail.Recent, json.RawMessage(raw))
	}
	return detail, nil
}

// Members lists the active members of a room
func (s *RoomService) Members(ctx context.Context, roomID, userID uuid.UUID) ([]*model.User, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.roomRepo.ListMemberUsers(ctx, roomID)
}

// AddMember adds a user to a room; any active member of a group or topic
// room may invite
func (s *RoomService) AddMember(ctx context.Context, roomID, actorID, targetID uuid.UUID) error {
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return ErrNotFound
	}
	if room.Kind == model.RoomDirect {
		return ErrForbidden
	}
	if err := s.requireMember(ctx, roomID, actorID); err != nil {
		return err
	}
	if _, err := s.userRepo.FindByID(ctx, targetID); err != nil {
		return ErrNotFound
	}
	return s.roomRepo.AddMember(ctx, &model.Membership{
		ID:       uuid.New(),
		RoomID:   roomID,
		UserID:   targetID,
		IsActive: true,
	})
}

// RemoveMember removes a user from a room: users remove themselves, room
// admins remove anyone
func (s *RoomService) RemoveMember(ctx context.Context, roomID, actorID, targetID uuid.UUID) error {
	if actorID != targetID {
		if err := s.requireRoomAdmin(ctx, roomID, actorID); err != nil {
			return err
		}
	} else if err := s.requireMember(ctx, roomID, actorID); err != nil {
		return err
	}
	return s.roomRepo.RemoveMember(ctx, roomID, targetID)
}

// Delete removes a room and all its content. Only a room admin, the
// creator or a global admin may delete; everyone in the room is told.
func (s *RoomService) Delete(ctx context.Context, roomID, actorID uuid.UUID) error {
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return ErrNotFound
	}
	if room.CreatedBy != actorID {
		if err := s.requireRoomAdmin(ctx, roomID, actorID); err != nil {
			return err
		}
	}

	if err := s.roomRepo.DeleteCascade(ctx, roomID); err != nil {
		return err
	}
	if err := s.redis.DropRecent(ctx, roomID); err != nil {
		s.logger.Warn("failed to drop recent cache", zap.String("room_id", roomID.String()), zap.Error(err))
	}
	if s.hub != nil {
		s.hub.SendToRoom(roomID, ws.Encode(ws.EventRoomDeleted, map[string]string{"room_id": roomID.String()}))
	}
	return nil
}

func (s *RoomService) requireMember(ctx context.Context, roomID, userID uuid.UUID) error {
	ok, err := s.roomRepo.IsMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}

func (s *RoomService) requireRoomAdmin(ctx context.Context, roomID, userID uuid.UUID) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err == nil && user.IsAdmin {
		return nil
	}
	m, err := s.roomRepo.GetMembership(ctx, roomID, userID)
	if err != nil || !m.IsActive {
		return ErrNotMember
	}
	if !m.IsAdmin {
		return ErrForbidden
	}
	return nil
}
