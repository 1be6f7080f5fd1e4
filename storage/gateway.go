//go:generate go run go.uber.org/mock/mockgen -source=gateway.go -destination=../mocks/mock_gateway.go -package=mocks
// Package storage hosts the persistence gateway: the only component that
// touches durable state. Every successful write emits a typed change
// event to the registered listeners, which is how the subscription
// registry and the room broadcaster learn about mutations without being
// woven into the storage layer itself.
package storage

import (
	"log/slog"
	"time"

	"chat-server/domain"
	"chat-server/domain/event"
	"chat-server/errors"
	"chat-server/repositories"
	"chat-server/views"

	"github.com/google/uuid"
)

// Listener consumes change events raised after durable writes. Listener
// failures are the listener's own concern; the gateway never lets a
// notification error undo a committed write.
type Listener interface {
	OnChange(e event.ChangeEvent)
}

type IGateway interface {
	Register(l Listener)
	GetRoom(id domain.RoomID) (domain.Room, error)
	CreateRoom(name string, creator domain.Identity, isPrivate, isGroup bool) (domain.Room, error)
	AddMember(id domain.RoomID, userID string) (domain.Room, error)
	RemoveMember(id domain.RoomID, userID string) (domain.Room, error)
	ListRoomsByCreator(creatorID string) ([]domain.Room, error)
	CreateMessage(id domain.RoomID, author domain.Identity, text string) (domain.Message, error)
	ListMessages(id domain.RoomID) ([]domain.Message, error)
	ResolveUser(userID string) (domain.Identity, error)
	ListUsers() ([]domain.Identity, error)
}

type Gateway struct {
	users     repositories.IUserRepository
	rooms     repositories.IRoomRepository
	messages  repositories.IMessageRepository
	listeners []Listener
	log       *slog.Logger
}

// NewGateway wires the repositories together. Listeners are registered
// during startup, before the first connection is accepted, so the slice
// needs no locking afterwards.
func NewGateway(users repositories.IUserRepository, rooms repositories.IRoomRepository,
	messages repositories.IMessageRepository, log *slog.Logger) *Gateway {
	return &Gateway{users: users, rooms: rooms, messages: messages, log: log}
}

func (g *Gateway) Register(l Listener) {
	g.listeners = append(g.listeners, l)
}

func (g *Gateway) emit(e event.ChangeEvent) {
	for _, l := range g.listeners {
		l.OnChange(e)
	}
}

func (g *Gateway) GetRoom(id domain.RoomID) (domain.Room, error) {
	return g.rooms.GetRoom(id)
}

func (g *Gateway) CreateRoom(name string, creator domain.Identity, isPrivate, isGroup bool) (domain.Room, error) {
	if creator.IsAnonymous() {
		return domain.Room{}, errors.ErrAnonymous
	}
	return g.rooms.CreateRoom(name, creator.ID, isPrivate, isGroup)
}

// AddMember emits MemberAdded only when the repository reports that the
// member set actually grew inside its transaction, so two racing adds of
// the same user produce exactly one event.
func (g *Gateway) AddMember(id domain.RoomID, userID string) (domain.Room, error) {
	room, added, err := g.rooms.AddMember(id, userID)
	if err != nil {
		return domain.Room{}, err
	}
	if !added {
		return room, nil // idempotent, no event
	}

	g.emit(event.MemberAdded{Room: room.ID, RoomName: room.Name, UserID: userID})
	return room, nil
}

func (g *Gateway) RemoveMember(id domain.RoomID, userID string) (domain.Room, error) {
	room, removed, err := g.rooms.RemoveMember(id, userID)
	if err != nil {
		return domain.Room{}, err
	}
	if !removed {
		return room, nil // no-op, no event
	}

	g.emit(event.MemberRemoved{Room: room.ID, RoomName: room.Name, UserID: userID})
	return room, nil
}

func (g *Gateway) ListRoomsByCreator(creatorID string) ([]domain.Room, error) {
	return g.rooms.ListRoomsByCreator(creatorID)
}

// CreateMessage persists a message after re-checking that the author is
// still the creator or a current member. This check is authoritative and
// independent of whatever the caller verified earlier: membership can be
// revoked between the caller's authorization check and this write.
func (g *Gateway) CreateMessage(id domain.RoomID, author domain.Identity, text string) (domain.Message, error) {
	if err := domain.ValidateText(text); err != nil {
		return domain.Message{}, err
	}

	room, err := g.rooms.GetRoom(id)
	if err != nil {
		return domain.Message{}, err
	}
	if !room.CanAccess(author) {
		return domain.Message{}, errors.ErrNotAMember
	}

	message := domain.Message{
		ID:        uuid.New(),
		Room:      id,
		SenderID:  author.ID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := g.messages.StoreMessage(message); err != nil {
		return domain.Message{}, err
	}

	g.emit(event.MessageCreated{Room: id, View: views.FromMessage(message, author)})
	return message, nil
}

func (g *Gateway) ListMessages(id domain.RoomID) ([]domain.Message, error) {
	return g.messages.ListMessages(id)
}

// ResolveUser loads the public identity behind a user id.
func (g *Gateway) ResolveUser(userID string) (domain.Identity, error) {
	user, err := g.users.GetUserByID(userID)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{ID: user.ID, Email: user.Email, Username: user.Username}, nil
}

func (g *Gateway) ListUsers() ([]domain.Identity, error) {
	users, err := g.users.ListUsers()
	if err != nil {
		return nil, err
	}
	identities := make([]domain.Identity, 0, len(users))
	for _, u := range users {
		identities = append(identities, domain.Identity{ID: u.ID, Email: u.Email, Username: u.Username})
	}
	return identities, nil
}
