package services

import (
	"encoding/json"
	"log/slog"
	"testing"

	"chat-server/domain"
	"chat-server/errors"
	"chat-server/hub"
	"chat-server/observer"
	"chat-server/repositories"
	"chat-server/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type chatFixture struct {
	svc      *ChatService
	gateway  *storage.Gateway
	hub      *hub.Hub
	registry *observer.Registry
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rooms, err := repositories.NewRoomRepository(db, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rooms.Close() })

	gateway := storage.NewGateway(
		repositories.NewUserRepository(db),
		rooms,
		repositories.NewMessageRepository(db, slog.Default(), nil),
		slog.Default(),
	)

	h := hub.NewHub(slog.Default())
	registry := observer.NewRegistry(slog.Default())
	gateway.Register(registry)

	return &chatFixture{
		svc:      NewChatService(gateway, h, registry, slog.Default()),
		gateway:  gateway,
		hub:      h,
		registry: registry,
	}
}

func newConnection() *hub.Client {
	return hub.NewClient(uuid.NewString(), nil, hub.DefaultConfig(), slog.Default())
}

// drainRequestIDs empties the connection's outbound buffer and returns
// the request_id of every notification envelope found there.
func drainRequestIDs(t *testing.T, c *hub.Client) []string {
	t.Helper()
	var ids []string
	for {
		select {
		case payload := <-c.Outbound():
			var envelope struct {
				Type      string `json:"type"`
				RequestID string `json:"request_id"`
			}
			require.NoError(t, json.Unmarshal(payload, &envelope))
			if envelope.Type == "notification" {
				ids = append(ids, envelope.RequestID)
			}
		default:
			return ids
		}
	}
}

func identity(name string) domain.Identity {
	return domain.Identity{ID: name + "-id", Email: name + "@example.com", Username: name}
}

func TestChatService_Authorize(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	alice := identity("alice")
	room, err := f.svc.CreateRoom(alice, "general", false, true)
	req.NoError(err)

	t.Run("creator is authorized", func(t *testing.T) {
		got, err := f.svc.Authorize(alice, room.ID)
		require.NoError(t, err)
		require.Equal(t, room.ID, got.ID)
	})

	t.Run("anonymous is never authorized", func(t *testing.T) {
		_, err := f.svc.Authorize(domain.Anonymous, room.ID)
		require.ErrorIs(t, err, errors.ErrAnonymous)
	})

	t.Run("non member is rejected", func(t *testing.T) {
		_, err := f.svc.Authorize(identity("mallory"), room.ID)
		require.ErrorIs(t, err, errors.ErrNotAMember)
	})

	t.Run("unknown room is reported as such", func(t *testing.T) {
		_, err := f.svc.Authorize(alice, 99)
		require.ErrorIs(t, err, errors.ErrRoomNotFound)
	})
}

func TestChatService_Message_Reaches_Every_Subscribed_Connection(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	alice, bob := identity("alice"), identity("bob")
	room, err := f.svc.CreateRoom(alice, "general", false, true)
	req.NoError(err)
	_, err = f.gateway.AddMember(room.ID, bob.ID)
	req.NoError(err)

	connA, connB := newConnection(), newConnection()
	_, err = f.svc.JoinRoom(connA, alice, room.ID, "req-alice")
	req.NoError(err)
	_, err = f.svc.JoinRoom(connB, bob, room.ID, "req-bob")
	req.NoError(err)
	drainRequestIDs(t, connA) // discard membership noise
	drainRequestIDs(t, connB)

	_, err = f.svc.CreateMessage(alice, room.ID, "hello everyone")
	req.NoError(err)

	req.Equal([]string{"req-alice"}, drainRequestIDs(t, connA))
	req.Equal([]string{"req-bob"}, drainRequestIDs(t, connB))
}

func TestChatService_Join_Twice_Delivers_Once(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	alice := identity("alice")
	room, err := f.svc.CreateRoom(alice, "general", false, true)
	req.NoError(err)

	conn := newConnection()
	_, err = f.svc.JoinRoom(conn, alice, room.ID, "req-1")
	req.NoError(err)
	_, err = f.svc.JoinRoom(conn, alice, room.ID, "req-1")
	req.NoError(err)
	drainRequestIDs(t, conn)

	_, err = f.svc.CreateMessage(alice, room.ID, "hello")
	req.NoError(err)

	req.Equal([]string{"req-1"}, drainRequestIDs(t, conn))
}

func TestChatService_Leave_Room_Stops_Notifications(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	alice, bob := identity("alice"), identity("bob")
	room, err := f.svc.CreateRoom(alice, "general", false, true)
	req.NoError(err)
	_, err = f.gateway.AddMember(room.ID, bob.ID)
	req.NoError(err)

	connB := newConnection()
	_, err = f.svc.JoinRoom(connB, bob, room.ID, "req-bob")
	req.NoError(err)
	drainRequestIDs(t, connB)

	req.NoError(f.svc.LeaveRoom(connB, bob, room.ID))
	drainRequestIDs(t, connB)

	_, err = f.svc.CreateMessage(alice, room.ID, "bob is gone")
	req.NoError(err)

	req.Empty(drainRequestIDs(t, connB))

	// Membership was durably revoked, so bob cannot post any more.
	_, err = f.svc.CreateMessage(bob, room.ID, "still here?")
	req.ErrorIs(err, errors.ErrNotAMember)
}

func TestChatService_Disconnect_Removes_Connection_Everywhere(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	alice, bob := identity("alice"), identity("bob")
	room, err := f.svc.CreateRoom(alice, "general", false, true)
	req.NoError(err)
	_, err = f.gateway.AddMember(room.ID, bob.ID)
	req.NoError(err)

	connA, connB := newConnection(), newConnection()
	_, err = f.svc.JoinRoom(connA, alice, room.ID, "req-alice")
	req.NoError(err)
	_, err = f.svc.JoinRoom(connB, bob, room.ID, "req-bob")
	req.NoError(err)
	drainRequestIDs(t, connA)
	drainRequestIDs(t, connB)

	f.svc.Disconnect(connB)
	req.Zero(f.registry.Subscriptions(connB))

	// A disconnected peer never aborts fan-out to the remaining ones.
	_, err = f.svc.CreateMessage(alice, room.ID, "carry on")
	req.NoError(err)
	req.Equal([]string{"req-alice"}, drainRequestIDs(t, connA))

	// Bob's durable membership survives the dropped connection.
	got, err := f.gateway.GetRoom(room.ID)
	req.NoError(err)
	req.True(got.IsMember(bob.ID))
}

func TestChatService_Connect_Requires_Access(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	alice := identity("alice")
	room, err := f.svc.CreateRoom(alice, "general", false, true)
	req.NoError(err)

	req.NoError(f.svc.Connect(newConnection(), alice, room.ID))
	req.ErrorIs(f.svc.Connect(newConnection(), identity("mallory"), room.ID), errors.ErrNotAMember)
	req.ErrorIs(f.svc.ConnectUser(newConnection(), domain.Anonymous), errors.ErrAnonymous)
}

func TestChatService_History_Is_Ordered_And_View_Shaped(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	alice := identity("alice")
	room, err := f.svc.CreateRoom(alice, "general", false, true)
	req.NoError(err)

	for _, text := range []string{"first", "second", "third"} {
		_, err = f.svc.CreateMessage(alice, room.ID, text)
		req.NoError(err)
	}

	history, err := f.svc.History(room.ID)
	req.NoError(err)
	req.Len(history, 3)
	req.Equal("first", history[0].Text)
	req.Equal("third", history[2].Text)
	// The sender is unknown to the user store, so the view falls back to
	// an id-only author instead of dropping the message.
	req.Equal(alice.ID, history[0].User.ID)
	req.Empty(history[0].User.Username)
}

func TestChatService_Rejected_Join_Leaves_No_Ephemeral_State(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	// Build a full private room that no longer holds its creator: alice
	// retains access as creator, but rejoining must hit the member cap.
	alice, bob, clara := identity("alice"), identity("bob"), identity("clara")
	room, err := f.svc.CreateRoom(alice, "tete-a-tete", true, false)
	req.NoError(err)
	_, err = f.gateway.AddMember(room.ID, bob.ID)
	req.NoError(err)
	_, err = f.gateway.RemoveMember(room.ID, alice.ID)
	req.NoError(err)
	_, err = f.gateway.AddMember(room.ID, clara.ID)
	req.NoError(err)

	conn := newConnection()
	_, err = f.svc.JoinRoom(conn, alice, room.ID, "req-alice")
	req.ErrorIs(err, errors.ErrRoomFull)

	// The refused connection holds no broadcast group and no subscription.
	req.Zero(f.hub.Groups(conn))
	req.Zero(f.registry.Subscriptions(conn))

	// Fan-out therefore never reaches it.
	_, err = f.svc.CreateMessage(bob, room.ID, "just us")
	req.NoError(err)
	req.Empty(drainRequestIDs(t, conn))
}
