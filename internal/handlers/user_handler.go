package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/armada-chat/armada/internal/services"
)

// UserHandler serves profiles, admin toggles and push subscriptions.
type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Me returns the authenticated user's profile
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	user, err := h.userService.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, user)
}

// Get returns one user's profile
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	user, err := h.userService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, user)
}

type setAdminRequest struct {
	IsAdmin bool `json:"is_admin"`
}

// SetAdmin grants or revokes the admin flag on a target user
func (h *UserHandler) SetAdmin(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	targetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req setAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.userService.SetAdmin(c.Request.Context(), actorID, targetID, req.IsAdmin); err != nil {
		respondError(c, err)
		return
	}
	respond(c, gin.H{"user_id": targetID, "is_admin": req.IsAdmin})
}

// Deactivate disables a target account
func (h *UserHandler) Deactivate(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	targetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.userService.Deactivate(c.Request.Context(), actorID, targetID); err != nil {
		respondError(c, err)
		return
	}
	respond(c, gin.H{"user_id": targetID, "is_active": false})
}

type subscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// Subscribe registers a push endpoint for the authenticated user
func (h *UserHandler) Subscribe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sub, err := h.userService.Subscribe(c.Request.Context(), userID, req.Endpoint)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, sub)
}

// Unsubscribe removes a push endpoint
func (h *UserHandler) Unsubscribe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.userService.Unsubscribe(c.Request.Context(), userID, req.Endpoint); err != nil {
		respondError(c, err)
		return
	}
	respond(c, gin.H{"endpoint": req.Endpoint})
}

// Subscriptions lists the authenticated user's push endpoints
func (h *UserHandler) Subscriptions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	subs, err := h.userService.Subscriptions(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, subs)
}
