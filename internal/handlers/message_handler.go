package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/armada-chat/armada/internal/services"
)

// MessageHandler serves message posting, history, receipts and reactions.
type MessageHandler struct {
	messageService *services.MessageService
}

func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// Post ingests a new message
func (h *MessageHandler) Post(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req services.PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	msg, err := h.messageService.Post(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, msg)
}

// List returns one page of a room's history
func (h *MessageHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	result, err := h.messageService.List(c.Request.Context(), userID, roomID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, result)
}

type editRequest struct {
	Content string `json:"content" binding:"required"`
}

// Edit replaces a message's content
func (h *MessageHandler) Edit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	messageID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	msg, err := h.messageService.Edit(c.Request.Context(), userID, messageID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, msg)
}

// Delete tags a message deleted
func (h *MessageHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	messageID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.messageService.Delete(c.Request.Context(), userID, messageID); err != nil {
		respondError(c, err)
		return
	}
	respond(c, gin.H{"message_id": messageID})
}

type markReadRequest struct {
	MessageIDs []uuid.UUID `json:"message_ids"`
}

// MarkRead receipts messages in a room for the caller. An omitted body
// or empty message_ids marks everything unread.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req markReadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	n, err := h.messageService.MarkRead(c.Request.Context(), userID, roomID, req.MessageIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, gin.H{"room_id": roomID, "marked": n})
}

type reactRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// React sets the caller's emoji on a message
func (h *MessageHandler) React(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	messageID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req reactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.messageService.React(c.Request.Context(), userID, messageID, req.Emoji); err != nil {
		respondError(c, err)
		return
	}
	respond(c, gin.H{"message_id": messageID, "emoji": req.Emoji})
}

// Unreact clears the caller's reaction
func (h *MessageHandler) Unreact(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	messageID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	emoji := c.Param("emoji")
	if err := h.messageService.Unreact(c.Request.Context(), userID, messageID, emoji); err != nil {
		respondError(c, err)
		return
	}
	respond(c, gin.H{"message_id": messageID, "emoji": emoji})
}

// Reactions returns the per-emoji tallies of a message
func (h *MessageHandler) Reactions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	messageID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	summary, err := h.messageService.Reactions(c.Request.Context(), userID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, summary)
}

// Receipts returns who has read a message
func (h *MessageHandler) Receipts(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	messageID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	receipts, err := h.messageService.Receipts(c.Request.Context(), userID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, receipts)
}
