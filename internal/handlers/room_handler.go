package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/armada-chat/armada/internal/services"
)

// RoomHandler serves room lifecycle and membership.
type RoomHandler struct {
	roomService *services.RoomService
}

func NewRoomHandler(roomService *services.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// Create opens a group or topic room
func (h *RoomHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req services.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	room, err := h.roomService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, room)
}

type createDirectRequest struct {
	PeerID uuid.UUID `json:"peer_id" binding:"required"`
}

// CreateDirect opens (or returns) the direct chat with another user
func (h *RoomHandler) CreateDirect(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req createDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	room, err := h.roomService.CreateDirect(c.Request.Context(), userID, req.PeerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, room)
}

// List returns the user's rooms with unread counters
func (h *RoomHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	rooms, err := h.roomService.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, rooms)
}

// Get returns one room
func (h *RoomHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	detail, err := h.roomService.Get(c.Request.Context(), roomID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, detail)
}

// Members lists the active members of a room
func (h *RoomHandler) Members(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	members, err := h.roomService.Members(c.Request.Context(), roomID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, members)
}

type memberRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// AddMember adds a user to the room
func (h *RoomHandler) AddMember(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.roomService.AddMember(c.Request.Context(), roomID, actorID, req.UserID); err != nil {
		respondError(c, err)
		return
	}
	respond(c, gin.H{"room_id": roomID, "user_id": req.UserID})
}

// RemoveMember removes a user from the room
func (h *RoomHandler) RemoveMember(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathUUID(c, "userId")
	if !ok {
		return
	}
	if err := h.roomService.RemoveMember(c.Request.Context(), roomID, actorID, targetID); err != nil {
		respondError(c, err)
		return
	}
	respond(c, gin.H{"room_id": roomID, "user_id": targetID})
}

// Delete removes a room and everything under it
func (h *RoomHandler) Delete(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.roomService.Delete(c.Request.Context(), roomID, actorID); err != nil {
		respondError(c, err)
		return
	}
	respond(c, gin.H{"room_id": roomID})
}
