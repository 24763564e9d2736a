package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armada-chat/armada/middleware/log"
)

func newTestClient(h *Hub, userID uuid.UUID) *Client {
	return &Client{
		hub:    h,
		send:   make(chan []byte, 16),
		id:     uuid.NewString(),
		userID: userID,
		rooms:  make(map[uuid.UUID]bool),
	}
}

type recordingListener struct {
	connected    []bool
	disconnected []bool
}

func (l *recordingListener) UserConnected(_ context.Context, _ string, _ uuid.UUID, first bool) {
	l.connected = append(l.connected, first)
}

func (l *recordingListener) UserDisconnected(_ context.Context, _ string, _ uuid.UUID, last bool) {
	l.disconnected = append(l.disconnected, last)
}

func TestRegisterUnregisterListener(t *testing.T) {
	h := NewHub(logger.NewNopLogger())
	l := &recordingListener{}
	h.SetListener(l)

	user := uuid.New()
	c1 := newTestClient(h, user)
	c2 := newTestClient(h, user)

	h.registerClient(c1)
	h.registerClient(c2)
	require.Equal(t, []bool{true, false}, l.connected)
	assert.Len(t, h.OnlineUsers(), 1)

	h.unregisterClient(c1)
	h.unregisterClient(c2)
	require.Equal(t, []bool{false, true}, l.disconnected)
	assert.Empty(t, h.OnlineUsers())
}

func TestSendToRoomExcept(t *testing.T) {
	h := NewHub(logger.NewNopLogger())
	alice, bob := uuid.New(), uuid.New()
	room := uuid.New()

	ca := newTestClient(h, alice)
	cb := newTestClient(h, bob)
	h.registerClient(ca)
	h.registerClient(cb)
	h.JoinRoom(ca, room)
	h.JoinRoom(cb, room)

	h.SendToRoomExcept(room, Encode(EventMessagesRead, map[string]string{"room_id": room.String()}), alice)

	assert.Empty(t, ca.send, "the excluded user gets nothing")
	require.Len(t, cb.send, 1)

	var evt Event
	require.NoError(t, json.Unmarshal(<-cb.send, &evt))
	assert.Equal(t, EventMessagesRead, evt.Event)
}

func TestBroadcastExceptUser(t *testing.T) {
	h := NewHub(logger.NewNopLogger())
	alice, bob := uuid.New(), uuid.New()

	a1 := newTestClient(h, alice)
	a2 := newTestClient(h, alice)
	cb := newTestClient(h, bob)
	h.registerClient(a1)
	h.registerClient(a2)
	h.registerClient(cb)

	h.BroadcastExcept(Encode(EventUserStatusChange, map[string]any{"user_id": alice, "is_online": true}), alice)

	assert.Empty(t, a1.send, "no echo to the user's own connections")
	assert.Empty(t, a2.send)
	require.Len(t, cb.send, 1)

	var evt Event
	require.NoError(t, json.Unmarshal(<-cb.send, &evt))
	assert.Equal(t, EventUserStatusChange, evt.Event)
}

func TestSendToUserHitsAllConnections(t *testing.T) {
	h := NewHub(logger.NewNopLogger())
	user := uuid.New()
	c1 := newTestClient(h, user)
	c2 := newTestClient(h, user)
	h.registerClient(c1)
	h.registerClient(c2)

	h.SendToUser(user, Encode(EventGlobalAlert, map[string]string{"preview": "hi"}))
	assert.Len(t, c1.send, 1)
	assert.Len(t, c2.send, 1)
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	h := NewHub(logger.NewNopLogger())
	user := uuid.New()
	room := uuid.New()
	c := newTestClient(h, user)
	h.registerClient(c)
	h.JoinRoom(c, room)

	h.LeaveRoom(c, room)
	h.SendToRoom(room, Encode(EventNewMessage, nil))
	assert.Empty(t, c.send)
	assert.Empty(t, h.RoomUsers(room))
}

func TestUnregisterClearsRooms(t *testing.T) {
	h := NewHub(logger.NewNopLogger())
	user := uuid.New()
	room := uuid.New()
	c := newTestClient(h, user)
	h.registerClient(c)
	h.JoinRoom(c, room)

	h.unregisterClient(c)
	assert.Empty(t, h.RoomUsers(room))
}

func TestSlowConsumerDoesNotBlock(t *testing.T) {
	h := NewHub(logger.NewNopLogger())
	user := uuid.New()
	room := uuid.New()
	c := newTestClient(h, user)
	h.registerClient(c)
	h.JoinRoom(c, room)

	for i := 0; i < cap(c.send)+10; i++ {
		h.SendToRoom(room, []byte("x"))
	}
	assert.Len(t, c.send, cap(c.send), "overflow is dropped, not blocking")
}
