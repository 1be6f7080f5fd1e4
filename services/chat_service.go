//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"log/slog"

	"chat-server/domain"
	"chat-server/domain/event"
	"chat-server/errors"
	"chat-server/hub"
	"chat-server/observer"
	"chat-server/storage"
	"chat-server/views"
)

type IChatService interface {
	Authorize(identity domain.Identity, roomID domain.RoomID) (domain.Room, error)
	Connect(c *hub.Client, identity domain.Identity, roomID domain.RoomID) error
	ConnectUser(c *hub.Client, identity domain.Identity) error
	Disconnect(c *hub.Client)
	CreateRoom(identity domain.Identity, name string, isPrivate, isGroup bool) (domain.Room, error)
	JoinRoom(c *hub.Client, identity domain.Identity, roomID domain.RoomID, requestID string) (domain.Room, error)
	LeaveRoom(c *hub.Client, identity domain.Identity, roomID domain.RoomID) error
	CreateMessage(identity domain.Identity, roomID domain.RoomID, text string) (domain.Message, error)
	History(roomID domain.RoomID) ([]views.MessageView, error)
}

// ChatService coordinates the gateway, the broadcast fabric and the
// subscription registry on behalf of both the WebSocket protocol and the
// request-response boundary, so the two surfaces observe one consistent
// membership and message store.
type ChatService struct {
	gateway  storage.IGateway
	hub      *hub.Hub
	registry *observer.Registry
	log      *slog.Logger
}

func NewChatService(gateway storage.IGateway, h *hub.Hub, registry *observer.Registry, log *slog.Logger) *ChatService {
	return &ChatService{gateway: gateway, hub: h, registry: registry, log: log}
}

// Authorize re-reads the room and applies the single access predicate.
// Results are never cached; membership may have changed since the
// caller's last action.
func (s *ChatService) Authorize(identity domain.Identity, roomID domain.RoomID) (domain.Room, error) {
	if identity.IsAnonymous() {
		return domain.Room{}, errors.ErrAnonymous
	}
	room, err := s.gateway.GetRoom(roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if !room.CanAccess(identity) {
		return domain.Room{}, errors.ErrNotAMember
	}
	return room, nil
}

// Connect performs the handshake-time authorization for the room
// messaging endpoint and joins the connection to the room's broadcast
// group. Failure here is fatal to the connection.
func (s *ChatService) Connect(c *hub.Client, identity domain.Identity, roomID domain.RoomID) error {
	if _, err := s.Authorize(identity, roomID); err != nil {
		return err
	}
	s.hub.Join(event.RoomGroup(roomID), c)
	return nil
}

// ConnectUser joins the connection to the caller's own notification
// group, used for out-of-band alerts unrelated to a specific room.
func (s *ChatService) ConnectUser(c *hub.Client, identity domain.Identity) error {
	if identity.IsAnonymous() {
		return errors.ErrAnonymous
	}
	s.hub.Join(event.UserGroup(identity.ID), c)
	return nil
}

// Disconnect tears the connection down: subscriptions first, then group
// memberships, then the outbound channel. The order guarantees that no
// fan-out started after this point can reference the dead connection.
func (s *ChatService) Disconnect(c *hub.Client) {
	s.registry.DropClient(c)
	s.hub.DropClient(c)
	c.Close()
}

func (s *ChatService) CreateRoom(identity domain.Identity, name string, isPrivate, isGroup bool) (domain.Room, error) {
	return s.gateway.CreateRoom(name, identity, isPrivate, isGroup)
}

// JoinRoom authorizes the caller, records the membership durably, and
// only then registers the connection with the broadcast fabric and the
// subscription registry under the supplied request id. The durable step
// goes first: if it is refused, the connection must not hold any
// ephemeral room state. Calling it twice for the same connection and
// room changes nothing.
func (s *ChatService) JoinRoom(c *hub.Client, identity domain.Identity, roomID domain.RoomID, requestID string) (domain.Room, error) {
	if _, err := s.Authorize(identity, roomID); err != nil {
		return domain.Room{}, err
	}

	room, err := s.gateway.AddMember(roomID, identity.ID)
	if err != nil {
		return domain.Room{}, err
	}

	group := event.RoomGroup(roomID)
	s.hub.Join(group, c)
	s.registry.Subscribe(c, group, requestID)
	return room, nil
}

// LeaveRoom is the exact inverse of JoinRoom: membership removal, then
// subscription revocation, then broadcast group departure.
func (s *ChatService) LeaveRoom(c *hub.Client, identity domain.Identity, roomID domain.RoomID) error {
	if _, err := s.gateway.RemoveMember(roomID, identity.ID); err != nil {
		return err
	}

	group := event.RoomGroup(roomID)
	s.registry.UnsubscribeGroup(c, group)
	s.hub.Leave(group, c)
	return nil
}

// CreateMessage relies on the gateway's authoritative membership check;
// the resulting change event reaches subscribers through the registered
// listeners, not through this call path.
func (s *ChatService) CreateMessage(identity domain.Identity, roomID domain.RoomID, text string) (domain.Message, error) {
	return s.gateway.CreateMessage(roomID, identity, text)
}

// History replays the full room history in creation order, serialized
// for the requesting connection only.
func (s *ChatService) History(roomID domain.RoomID) ([]views.MessageView, error) {
	messages, err := s.gateway.ListMessages(roomID)
	if err != nil {
		return nil, err
	}
	return views.FromMessages(messages, s.gateway.ResolveUser), nil
}
