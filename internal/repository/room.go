package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/armada-chat/armada/internal/model"
)

// RoomSummary is a room joined with the requesting user's unread state.
type RoomSummary struct {
	Room        *model.Room `json:"room"`
	UnreadCount int64       `json:"unread_count"`
	LastReadAt  *time.Time  `json:"last_read_at"`
}

// IRoomRepository defines the interface for room and membership data operations
type IRoomRepository interface {
	Create(ctx context.Context, room *model.Room, members []*model.Membership) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Room, error)
	FindDirect(ctx context.Context, a, b uuid.UUID) (*model.Room, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*RoomSummary, error)

	AddMember(ctx context.Context, m *model.Membership) error
	RemoveMember(ctx context.Context, roomID, userID uuid.UUID) error
	GetMembership(ctx context.Context, roomID, userID uuid.UUID) (*model.Membership, error)
	ListMembers(ctx context.Context, roomID uuid.UUID) ([]*model.Membership, error)
	ListMemberUsers(ctx context.Context, roomID uuid.UUID) ([]*model.User, error)
	IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)

	IncrementUnread(ctx context.Context, roomID uuid.UUID, except []uuid.UUID) error
	ResetUnread(ctx context.Context, roomID, userID uuid.UUID, at time.Time) error

	DeleteCascade(ctx context.Context, roomID uuid.UUID) error
}

// RoomRepository implements IRoomRepository interface
type RoomRepository struct {
	db *gorm.DB
}

// NewRoomRepository creates a new IRoomRepository instance
func NewRoomRepository(db *gorm.DB) IRoomRepository {
	return &RoomRepository{db: db}
}

// Create creates a room together with its initial memberships in one transaction
func (r *RoomRepository) Create(ctx context.Context, room *model.Room, members []*model.Membership) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		for _, m := range members {
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByID finds a room by ID
func (r *RoomRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Room, error) {
	var room model.Room
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// FindDirect returns the existing direct room between two users, if any
func (r *RoomRepository) FindDirect(ctx context.Context, a, b uuid.UUID) (*model.Room, error) {
	var room model.Room
	err := r.db.WithContext(ctx).
		Table("rooms").
		Where("rooms.kind = ? AND rooms.is_active = ?", model.RoomDirect, true).
		Where("EXISTS (SELECT 1 FROM memberships m1 WHERE m1.room_id = rooms.id AND m1.user_id = ?)", a).
		Where("EXISTS (SELECT 1 FROM memberships m2 WHERE m2.room_id = rooms.id AND m2.user_id = ?)", b).
		First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ListForUser retrieves the rooms a user belongs to, newest activity first,
// carrying that user's unread counter and last read marker
func (r *RoomRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*RoomSummary, error) {
	type row struct {
		model.Room
		UnreadCount int64
		LastReadAt  *time.Time
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Table("rooms").
		Select("rooms.*, memberships.unread_count, memberships.last_read_at").
		Joins("JOIN memberships ON memberships.room_id = rooms.id").
		Where("memberships.user_id = ? AND memberships.is_active = ? AND rooms.is_active = ?", userID, true, true).
		Order("rooms.updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*RoomSummary, 0, len(rows))
	for i := range rows {
		room := rows[i].Room
		out = append(out, &RoomSummary{
			Room:        &room,
			UnreadCount: rows[i].UnreadCount,
			LastReadAt:  rows[i].LastReadAt,
		})
	}
	return out, nil
}

// AddMember adds a user to a room, reactivating a previous membership if one exists
func (r *RoomRepository) AddMember(ctx context.Context, m *model.Membership) error {
	var existing model.Membership
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", m.RoomID, m.UserID).
		First(&existing).Error
	if err == nil {
		return r.db.WithContext(ctx).
			Model(&model.Membership{}).
			Where("id = ?", existing.ID).
			Update("is_active", true).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// RemoveMember marks a membership inactive; the row survives for rejoin
func (r *RoomRepository) RemoveMember(ctx context.Context, roomID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("is_active", false).Error
}

// GetMembership retrieves a single membership row
func (r *RoomRepository) GetMembership(ctx context.Context, roomID, userID uuid.UUID) (*model.Membership, error) {
	var m model.Membership
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMembers retrieves the active memberships of a room
func (r *RoomRepository) ListMembers(ctx context.Context, roomID uuid.UUID) ([]*model.Membership, error) {
	var members []*model.Membership
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND is_active = ?", roomID, true).
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// ListMemberUsers retrieves the users who are active members of a room
func (r *RoomRepository) ListMemberUsers(ctx context.Context, roomID uuid.UUID) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).
		Table("users").
		Joins("JOIN memberships ON users.id = memberships.user_id").
		Where("memberships.room_id = ? AND memberships.is_active = ?", roomID, true).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// IsMember checks if a user is an active member of a room
func (r *RoomRepository) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("room_id = ? AND user_id = ? AND is_active = ?", roomID, userID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// IncrementUnread bumps the unread counter of every active member except the
// listed ones. Runs as a single UPDATE so concurrent posts never lose counts.
func (r *RoomRepository) IncrementUnread(ctx context.Context, roomID uuid.UUID, except []uuid.UUID) error {
	q := r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("room_id = ? AND is_active = ?", roomID, true)
	if len(except) > 0 {
		q = q.Where("user_id NOT IN ?", except)
	}
	return q.Update("unread_count", gorm.Expr("unread_count + 1")).Error
}

// ResetUnread zeroes the unread counter and advances the last read marker
func (r *RoomRepository) ResetUnread(ctx context.Context, roomID, userID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Updates(map[string]any{"unread_count": 0, "last_read_at": at}).Error
}

// DeleteCascade removes a room and everything under it. Reply links are
// nulled first so the message delete never trips the self reference.
func (r *RoomRepository) DeleteCascade(ctx context.Context, roomID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msgIDs := tx.Model(&model.Message{}).Select("id").Where("room_id = ?", roomID)

		if err := tx.Model(&model.Message{}).
			Where("room_id = ?", roomID).
			Update("reply_to_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id IN (?)", msgIDs).Delete(&model.Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id IN (?)", msgIDs).Delete(&model.ReadReceipt{}).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id IN (?)", msgIDs).Delete(&model.Mention{}).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id IN (?)", msgIDs).Delete(&model.Attachment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&model.Membership{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", roomID).Delete(&model.Room{}).Error
	})
}
