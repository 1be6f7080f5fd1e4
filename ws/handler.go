package ws

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"chat-server/auth"
	"chat-server/domain"
	"chat-server/hub"
	"chat-server/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Close codes for handshake failures. The connection is closed with no
// payload beyond the close frame itself.
const (
	closeUnauthenticated = 4401
	closeForbidden       = 4403
)

type Handler struct {
	resolver *auth.Resolver
	svc      services.IChatService
	cfg      hub.Config
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(resolver *auth.Resolver, svc services.IChatService, cfg hub.Config, log *slog.Logger) *Handler {
	return &Handler{
		resolver: resolver,
		svc:      svc,
		cfg:      cfg,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes mounts the two WebSocket endpoint families.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/ws/chat/:room_id", h.RoomEndpoint)
	router.GET("/ws/notifications", h.NotificationEndpoint)
}

// RoomEndpoint runs the connection lifecycle of the room messaging
// endpoint: resolve the bearer token, authorize the path room, join its
// broadcast group, replay history, then hand the socket to the protocol
// state machine. Authentication or authorization failure closes the
// connection immediately, before any history is sent.
func (h *Handler) RoomEndpoint(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("room_id"))
	if err != nil || roomID <= 0 {
		c.Status(http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	identity := h.resolver.Resolve(c.Query("token"))
	if identity.IsAnonymous() {
		h.closeNow(conn, closeUnauthenticated)
		return
	}

	client := hub.NewClient(uuid.NewString(), conn, h.cfg, h.log)
	if err := h.svc.Connect(client, identity, domain.RoomID(roomID)); err != nil {
		h.log.Info("room handshake rejected",
			"user_id", identity.ID, "room_id", roomID, "error", err)
		h.closeNow(conn, closeForbidden)
		return
	}

	session := NewSession(client, identity, domain.RoomID(roomID), stateJoined, h.svc, h.log)

	go client.WritePump()

	// Initial history replay, only to this connection.
	if messages, err := h.svc.History(domain.RoomID(roomID)); err != nil {
		h.log.Error("history replay failed", "room_id", roomID, "error", err)
	} else {
		session.sendHistory(messages)
	}

	go client.ReadPump(session.Handle, func() {
		h.svc.Disconnect(client)
	})

	h.log.Info("client connected to room",
		"client_id", client.ID, "user_id", identity.ID, "room_id", roomID)
}

// NotificationEndpoint scopes a connection to the caller's own identity
// for out-of-band alerts. Anonymous callers are closed immediately. The
// session stays in the pre-join state, where room creation is accepted.
func (h *Handler) NotificationEndpoint(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	identity := h.resolver.Resolve(c.Query("token"))
	if identity.IsAnonymous() {
		h.closeNow(conn, closeUnauthenticated)
		return
	}

	client := hub.NewClient(uuid.NewString(), conn, h.cfg, h.log)
	if err := h.svc.ConnectUser(client, identity); err != nil {
		h.closeNow(conn, closeForbidden)
		return
	}

	session := NewSession(client, identity, 0, stateAuthenticated, h.svc, h.log)

	go client.WritePump()
	go client.ReadPump(session.Handle, func() {
		h.svc.Disconnect(client)
	})

	h.log.Info("client connected to notifications", "client_id", client.ID, "user_id", identity.ID)
}

func (h *Handler) closeNow(conn *websocket.Conn, code int) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""), deadline)
	_ = conn.Close()
}
