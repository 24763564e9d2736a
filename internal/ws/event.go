package ws

import (
	"encoding/json"
	"time"
)

// Event names carried on the wire. Clients emit the set below the blank
// line; the server emits the rest. EventTyping goes both ways: clients
// send it to relay their own indicator, the server sends it for
// bot-attributed typing while an agent composes a reply.
const (
	EventConnected        = "connected"
	EventNewMessage       = "new_message"
	EventMessageEdited    = "message_edited"
	EventMessageDeleted   = "message_deleted"
	EventMessagesRead     = "messages_read"
	EventReactionUpdated  = "reaction_updated"
	EventUserTyping       = "user_typing"
	EventUserStatusChange = "user_status_change"
	EventRoomDeleted      = "room_deleted"
	EventGlobalAlert      = "global_message_alert"
	EventAIError          = "ai_error"
	EventError            = "error"

	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventTyping      = "typing"
	EventMarkAsRead  = "mark_as_read"
	EventSendMessage = "send_message"
)

// Event is the wire envelope: an event name plus a JSON payload.
type Event struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Encode marshals an envelope with the given payload. Marshal failures
// surface as an error event so a broken payload never goes silent.
func Encode(event string, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		raw, _ = json.Marshal(map[string]string{"error": err.Error()})
		event = EventError
	}
	out, _ := json.Marshal(Event{Event: event, Data: raw, Timestamp: time.Now().UTC()})
	return out
}
