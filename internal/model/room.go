package model

import (
	"time"

	"github.com/google/uuid"
)

type RoomKind string

const (
	RoomDirect RoomKind = "direct"
	RoomGroup  RoomKind = "group"
	RoomTopic  RoomKind = "topic"
)

// Room is a conversation container: a direct chat, a group chat, or a
// topic under a channel. UpdatedAt is bumped on every posted message so
// room lists can sort by recency.
type Room struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"not null;type:varchar(255)" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Kind        RoomKind  `gorm:"not null;type:varchar(16);default:'group'" json:"kind"`
	CreatedBy   uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"updated_at"`
}

func (Room) TableName() string {
	return "rooms"
}

// Membership ties a user to a room and carries that user's unread state
// for the room. UnreadCount is maintained transactionally by the
// accounting pass, never recomputed from the message table.
type Membership struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RoomID  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_room_user" json:"room_id"`
	UserID  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_room_user" json:"user_id"`
	IsAdmin bool      `gorm:"not null;default:false" json:"is_admin"`

	// IsActive false means the user left the room; the row is kept so
	// rejoining restores history access without a new identity.
	IsActive bool `gorm:"not null;default:true" json:"is_active"`

	UnreadCount int64      `gorm:"not null;default:0" json:"unread_count"`
	LastReadAt  *time.Time `json:"last_read_at"`

	JoinedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"joined_at"`
}

func (Membership) TableName() string {
	return "memberships"
}
