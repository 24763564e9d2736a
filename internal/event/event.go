// Package event defines the payloads carried on the room-events topic.
// They are published after the owning transaction commits; consumers run
// the unread accounting and notification dispatch.
package event

import (
	"time"

	"github.com/google/uuid"
)

const (
	KindMessageCreated = "message.created"
	KindRoomDeleted    = "room.deleted"
)

// RoomEvent is one occurrence in a room.
type RoomEvent struct {
	Kind       string     `json:"kind"`
	RoomID     uuid.UUID  `json:"room_id"`
	MessageID  uuid.UUID  `json:"message_id,omitempty"`
	SenderID   *uuid.UUID `json:"sender_id,omitempty"`
	Preview    string     `json:"preview,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
