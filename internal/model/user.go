package model

import (
	"time"

	"github.com/google/uuid"
)

// User is an account. Agent accounts carry IsBot and a reserved ID.
type User struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email          string    `gorm:"uniqueIndex;not null;type:varchar(255)" json:"email"`
	FullName       string    `gorm:"type:varchar(255)" json:"full_name"`
	HashedPassword string    `gorm:"type:varchar(255)" json:"-"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	IsAdmin        bool      `gorm:"not null;default:false" json:"is_admin"`
	IsBot          bool      `gorm:"not null;default:false" json:"is_bot"`

	// Online state is mutated only by the presence registry and is not
	// authoritative across restarts: everyone is offline until they reconnect.
	IsOnline   bool       `gorm:"not null;default:false" json:"is_online"`
	LastSeenAt *time.Time `json:"last_seen_at"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// PushSubscription is one device token for a user. A user may hold several
// concurrent subscriptions; dispatch fans out to all of them.
type PushSubscription struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Endpoint string    `gorm:"not null;type:text" json:"endpoint"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (PushSubscription) TableName() string {
	return "push_subscriptions"
}
