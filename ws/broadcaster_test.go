package ws

import (
	"encoding/json"
	"log/slog"
	"testing"

	"chat-server/domain/event"
	"chat-server/hub"
	"chat-server/views"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newHubClient(t *testing.T, h *hub.Hub, groups ...string) *hub.Client {
	t.Helper()
	c := hub.NewClient(uuid.NewString(), nil, hub.DefaultConfig(), slog.Default())
	for _, group := range groups {
		h.Join(group, c)
	}
	return c
}

func drainFrames(c *hub.Client) [][]byte {
	var frames [][]byte
	for {
		select {
		case payload := <-c.Outbound():
			frames = append(frames, payload)
		default:
			return frames
		}
	}
}

func TestBroadcaster_Message_Created_Reaches_The_Room_Group_Only(t *testing.T) {
	req := require.New(t)
	h := hub.NewHub(slog.Default())
	broadcaster := NewBroadcaster(h, slog.Default())

	member := newHubClient(t, h, event.RoomGroup(1))
	other := newHubClient(t, h, event.RoomGroup(2))

	broadcaster.OnChange(event.MessageCreated{
		Room: 1,
		View: views.MessageView{ID: "m1", Room: 1, Text: "hello"},
	})

	frames := drainFrames(member)
	req.Len(frames, 1)
	var envelope chatMessageEnvelope
	req.NoError(json.Unmarshal(frames[0], &envelope))
	req.Equal(TypeChatMessage, envelope.Type)
	req.Equal("hello", envelope.Message.Text)

	req.Empty(drainFrames(other))
}

func TestBroadcaster_Member_Added_Alerts_The_User_Group(t *testing.T) {
	req := require.New(t)
	h := hub.NewHub(slog.Default())
	broadcaster := NewBroadcaster(h, slog.Default())

	added := newHubClient(t, h, event.UserGroup("bob-id"))
	roomMember := newHubClient(t, h, event.RoomGroup(1))

	broadcaster.OnChange(event.MemberAdded{Room: 1, RoomName: "general", UserID: "bob-id"})

	frames := drainFrames(added)
	req.Len(frames, 1)
	var envelope alertEnvelope
	req.NoError(json.Unmarshal(frames[0], &envelope))
	req.Equal(TypeNotification, envelope.Type)
	req.Equal("update", envelope.Action)

	// Room members learn about membership through the subscription
	// registry, not through this broadcast path.
	req.Empty(drainFrames(roomMember))
}

func TestBroadcaster_Member_Removed_Is_Not_Broadcast(t *testing.T) {
	req := require.New(t)
	h := hub.NewHub(slog.Default())
	broadcaster := NewBroadcaster(h, slog.Default())

	member := newHubClient(t, h, event.RoomGroup(1))

	broadcaster.OnChange(event.MemberRemoved{Room: 1, RoomName: "general", UserID: "bob-id"})

	req.Empty(drainFrames(member))
}
