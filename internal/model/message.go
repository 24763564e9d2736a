package model

import (
	"time"

	"github.com/google/uuid"
)

type MessageState string

const (
	MessageActive  MessageState = "active"
	MessageEdited  MessageState = "edited"
	MessageDeleted MessageState = "deleted"
)

// Message is one posted message. Deletion is a state transition, not a
// row delete: deleted rows stay so reply chains keep their anchors.
// Seq is a per-room sequence issued by Redis and breaks CreatedAt ties.
type Message struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RoomID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_room_created" json:"room_id"`
	SenderID *uuid.UUID `gorm:"type:uuid;index" json:"sender_id"`
	Content  string     `gorm:"not null;type:text" json:"content"`

	ReplyToID *uuid.UUID   `gorm:"type:uuid;index" json:"reply_to_id"`
	State     MessageState `gorm:"not null;type:varchar(16);default:'active'" json:"state"`
	EditedAt  *time.Time   `json:"edited_at"`
	DeletedAt *time.Time   `json:"deleted_at"`

	Seq       int64     `gorm:"not null;default:0" json:"seq"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_room_created" json:"created_at"`

	Attachments []Attachment `gorm:"foreignKey:MessageID" json:"attachments,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}

// Attachment is file metadata attached to a message. Uploads happen
// elsewhere; we only persist the pointer.
type Attachment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;index" json:"message_id"`
	URL       string    `gorm:"not null;type:text" json:"url"`
	Filename  string    `gorm:"type:varchar(255)" json:"filename"`
	MimeType  string    `gorm:"type:varchar(127)" json:"mime_type"`
	Size      int64     `gorm:"not null;default:0" json:"size"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Attachment) TableName() string {
	return "attachments"
}

// Mention records that a message named a user with @.
type Mention struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID       uuid.UUID `gorm:"type:uuid;not null;index" json:"message_id"`
	MentionedUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"mentioned_user_id"`
	IsRead          bool      `gorm:"not null;default:false" json:"is_read"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Mention) TableName() string {
	return "mentions"
}

// Reaction holds at most one emoji per user per message: reacting again
// replaces the emoji rather than adding a second row.
type Reaction struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_reaction_message_user" json:"message_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reaction_message_user" json:"user_id"`
	Emoji     string    `gorm:"not null;type:varchar(32)" json:"emoji"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Reaction) TableName() string {
	return "reactions"
}

// ReadReceipt marks that a user has read a message. Creation is
// idempotent: marking twice leaves a single row.
type ReadReceipt struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_receipt_message_user" json:"message_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_receipt_message_user" json:"user_id"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ReadReceipt) TableName() string {
	return "read_receipts"
}
