// Package api is the request-response boundary: registration, login,
// room CRUD and membership management. It writes through the same
// gateway as the WebSocket core, so both surfaces observe one consistent
// membership and message store, and membership changes made here reach
// live subscribers through the gateway's change events.
package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"chat-server/domain"
	"chat-server/errors"
	"chat-server/services"
	"chat-server/storage"
	"chat-server/views"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type Handler struct {
	authService services.IAuthService
	chatService services.IChatService
	gateway     storage.IGateway
	log         *slog.Logger
}

func NewHandler(authService services.IAuthService, chatService services.IChatService,
	gateway storage.IGateway, log *slog.Logger) *Handler {
	return &Handler{
		authService: authService,
		chatService: chatService,
		gateway:     gateway,
		log:         log,
	}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	token, err := h.authService.Register(req.Email, req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"status":  "success",
		"token":   token,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	token, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "token": token})
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.gateway.ListUsers()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"users":  lo.Map(users, func(u domain.Identity, _ int) views.UserView { return views.FromIdentity(u) }),
	})
}

type createRoomRequest struct {
	Name      string `json:"name"`
	IsPrivate bool   `json:"is_private"`
	IsGroup   bool   `json:"is_group"`
}

func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	identity := currentIdentity(c)
	room, err := h.chatService.CreateRoom(identity, req.Name, req.IsPrivate, req.IsGroup)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Room created",
		"status":  "success",
		"room":    h.roomView(room),
	})
}

func (h *Handler) RoomList(c *gin.Context) {
	identity := currentIdentity(c)
	rooms, err := h.gateway.ListRoomsByCreator(identity.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"rooms":  lo.Map(rooms, func(r domain.Room, _ int) views.RoomView { return h.roomView(r) }),
	})
}

type addUsersRequest struct {
	UserIDs []string `json:"user_ids" binding:"required,min=1"`
}

// AddUsersToRoom is creator-only. Every id is resolved before any
// membership is touched, so a request naming an unknown user changes
// nothing. Each successful add raises a change event that reaches the
// added user's notification group.
func (h *Handler) AddUsersToRoom(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("pk"))
	if err != nil || roomID <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "room not found"})
		return
	}

	var req addUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	room, err := h.gateway.GetRoom(domain.RoomID(roomID))
	if err != nil {
		h.fail(c, err)
		return
	}

	identity := currentIdentity(c)
	if room.CreatorID != identity.ID {
		c.JSON(http.StatusForbidden, gin.H{
			"status":  "unauthorized",
			"message": "Only the creator can add new users",
		})
		return
	}

	var notFound []string
	usersToAdd := make([]domain.Identity, 0, len(req.UserIDs))
	for _, id := range req.UserIDs {
		user, err := h.gateway.ResolveUser(id)
		if err != nil {
			notFound = append(notFound, id)
			continue
		}
		usersToAdd = append(usersToAdd, user)
	}
	if len(notFound) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "users do not exist",
			"missing": notFound,
		})
		return
	}

	for _, user := range usersToAdd {
		if _, err := h.gateway.AddMember(domain.RoomID(roomID), user.ID); err != nil {
			h.fail(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"message": "Added users " + lo.Reduce(usersToAdd, func(acc string, u domain.Identity, i int) string {
			if i > 0 {
				return acc + ", " + u.Username
			}
			return acc + u.Username
		}, "") + " to the room",
	})
}

// RoomMessages is the request-response variant of history replay.
func (h *Handler) RoomMessages(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("pk"))
	if err != nil || roomID <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "room not found"})
		return
	}

	identity := currentIdentity(c)
	if _, err := h.chatService.Authorize(identity, domain.RoomID(roomID)); err != nil {
		h.fail(c, err)
		return
	}

	messages, err := h.chatService.History(domain.RoomID(roomID))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "messages": messages})
}

type postMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// PostMessage is the request-response variant of create_message; the
// persisted message still fans out to live connections via the change
// event listeners.
func (h *Handler) PostMessage(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("pk"))
	if err != nil || roomID <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "room not found"})
		return
	}

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	identity := currentIdentity(c)
	message, err := h.chatService.CreateMessage(identity, domain.RoomID(roomID), req.Message)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":  "success",
		"message": views.FromMessage(message, identity),
	})
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := errors.MapToHTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"status": "error", "message": "internal error"})
		return
	}
	c.JSON(status, gin.H{"status": "error", "message": err.Error()})
}

// roomView assembles the full serialized room, including history and the
// derived last_message, matching the field set clients rely on.
func (h *Handler) roomView(room domain.Room) views.RoomView {
	creator, err := h.gateway.ResolveUser(room.CreatorID)
	if err != nil {
		creator = domain.Identity{ID: room.CreatorID}
	}

	members := make([]domain.Identity, 0, len(room.MemberIDs))
	for _, id := range room.MemberIDs {
		member, err := h.gateway.ResolveUser(id)
		if err != nil {
			member = domain.Identity{ID: id}
		}
		members = append(members, member)
	}

	messages, err := h.chatService.History(room.ID)
	if err != nil {
		h.log.Error("room history failed", "room_id", int(room.ID), "error", err)
		messages = nil
	}

	return views.FromRoom(room, creator, members, messages)
}
