package main

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/thereayou/pulse/internal/handlers"
	"github.com/thereayou/pulse/internal/middleware"
	"github.com/thereayou/pulse/pkg/auth"
)

func APIEndpoints(
	r *gin.Engine,
	jwtMgr *auth.JWTManager,
	rdb *redis.Client,
	authH *handlers.AuthHandler,
	userH *handlers.UserHandler,
	chatH *handlers.ChatHandler,
	notifH *handlers.NotificationHandler,
	wsH *handlers.WebSocketHandler,
) {
	// Auth endpoints
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", authH.Register)
		authGroup.POST("/login", authH.Login)
		authGroup.POST("/logout", authH.Logout)
	}

	// API endpoints
	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtMgr, rdb))
	{
		api.GET("/users/me", userH.GetMe)
		api.PUT("/users/me", userH.UpdateMe)
		api.GET("/users/search", userH.SearchUsers)
		api.GET("/users/:id", userH.GetUser)

		api.POST("/chats", chatH.CreateChat)
		api.POST("/chats/direct", chatH.CreateDirectChat)
		api.GET("/chats", chatH.GetMyChats)
		api.GET("/chats/:id", chatH.GetChat)
		api.PUT("/chats/:id", chatH.UpdateChat)
		api.POST("/chats/:id/participants", chatH.AddParticipant)
		api.DELETE("/chats/:id/participants/:userId", chatH.RemoveParticipant)
		api.POST("/chats/:id/leave", chatH.LeaveChat)
		api.PUT("/chats/:id/admins", chatH.SetAdmin)
		api.GET("/chats/:id/messages", chatH.GetChatMessages)

		api.PUT("/messages/:id", chatH.EditMessage)
		api.GET("/messages/:id/edits", chatH.GetMessageEdits)

		api.GET("/notifications", notifH.GetNotifications)
		api.PUT("/notifications/read", notifH.MarkAllRead)
		api.PUT("/notifications/:id/read", notifH.MarkRead)
		api.DELETE("/notifications/read", notifH.DeleteRead)
		api.DELETE("/notifications/:id", notifH.Delete)
	}

	// WebSocket
	r.GET("/ws", middleware.WSAuthMiddleware(jwtMgr, rdb), wsH.HandleWebSocket)
}
