package api

import (
	"chat-server/auth"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the boundary endpoints. Route names follow the
// original client contract.
func (h *Handler) RegisterRoutes(router *gin.Engine, resolver *auth.Resolver) {
	router.POST("/api/register", h.Register)
	router.POST("/api/login", h.Login)

	authorized := router.Group("/api", RequireAuth(resolver))
	{
		authorized.GET("/user-list", h.ListUsers)
		authorized.POST("/create-room", h.CreateRoom)
		authorized.GET("/room-list", h.RoomList)
		authorized.PATCH("/add-user-to-room/:pk", h.AddUsersToRoom)
		authorized.GET("/rooms/:pk/messages", h.RoomMessages)
		authorized.POST("/rooms/:pk/messages", h.PostMessage)
	}
}
