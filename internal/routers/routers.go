package routers

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/armada-chat/armada/internal/handlers"
	"github.com/armada-chat/armada/internal/middlewares"
	"github.com/armada-chat/armada/internal/services"
	"github.com/armada-chat/armada/internal/ws"
	"github.com/armada-chat/armada/middleware/jwt"
	"github.com/armada-chat/armada/middleware/log"
)

// SetupRoutes wires every route onto the engine
func SetupRoutes(
	r *gin.Engine,
	log *logger.Logger,
	tokens *jwt.TokenManager,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	roomHandler *handlers.RoomHandler,
	messageHandler *handlers.MessageHandler,
	hub *ws.Hub,
	chatService *services.ChatService,
) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Trace-Id"}
	r.Use(cors.New(corsConfig))
	r.Use(logger.RequestLogger(log))

	auth := middlewares.AuthMiddleware(tokens)

	// WebSocket upgrade; the token arrives as ?token= on this route.
	r.GET("/ws", auth, func(c *gin.Context) {
		ws.ServeWs(hub, chatService, c)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	userGroup := api.Group("/users", auth)
	{
		userGroup.GET("/me", userHandler.Me)
		userGroup.GET("/:id", userHandler.Get)
		userGroup.PATCH("/:id/admin", userHandler.SetAdmin)
		userGroup.POST("/:id/deactivate", userHandler.Deactivate)

		userGroup.GET("/me/subscriptions", userHandler.Subscriptions)
		userGroup.POST("/me/subscriptions", userHandler.Subscribe)
		userGroup.DELETE("/me/subscriptions", userHandler.Unsubscribe)
	}

	roomGroup := api.Group("/rooms", auth)
	{
		roomGroup.POST("", roomHandler.Create)
		roomGroup.POST("/direct", roomHandler.CreateDirect)
		roomGroup.GET("", roomHandler.List)
		roomGroup.GET("/:id", roomHandler.Get)
		roomGroup.DELETE("/:id", roomHandler.Delete)

		roomGroup.GET("/:id/members", roomHandler.Members)
		roomGroup.POST("/:id/members", roomHandler.AddMember)
		roomGroup.DELETE("/:id/members/:userId", roomHandler.RemoveMember)

		roomGroup.GET("/:id/messages", messageHandler.List)
		roomGroup.POST("/:id/read", messageHandler.MarkRead)
	}

	messageGroup := api.Group("/messages", auth)
	{
		messageGroup.POST("", messageHandler.Post)
		messageGroup.PATCH("/:id", messageHandler.Edit)
		messageGroup.DELETE("/:id", messageHandler.Delete)

		messageGroup.GET("/:id/reactions", messageHandler.Reactions)
		messageGroup.POST("/:id/reactions", messageHandler.React)
		messageGroup.DELETE("/:id/reactions/:emoji", messageHandler.Unreact)

		messageGroup.GET("/:id/receipts", messageHandler.Receipts)
	}
}
