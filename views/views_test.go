package views

import (
	"fmt"
	"testing"
	"time"

	"chat-server/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestFromMessage_Carries_Both_Timestamp_Forms(t *testing.T) {
	req := require.New(t)

	at := time.Date(2025, time.March, 7, 14, 30, 5, 0, time.UTC)
	message := domain.Message{
		ID:        uuid.New(),
		Room:      3,
		SenderID:  "alice-id",
		Text:      "hello",
		CreatedAt: at,
	}
	author := domain.Identity{ID: "alice-id", Email: "alice@example.com", Username: "alice"}

	view := FromMessage(message, author)

	req.Equal(message.ID.String(), view.ID)
	req.Equal(3, view.Room)
	req.Equal("hello", view.Text)
	req.Equal("alice", view.User.Username)
	req.Equal("2025-03-07T14:30:05Z", view.CreatedAt)
	req.Equal("07-03-2025 14:30:05", view.CreatedAtFormatted)
}

func TestFromMessages_Falls_Back_To_Id_Only_Author(t *testing.T) {
	req := require.New(t)

	messages := []domain.Message{
		{ID: uuid.New(), Room: 1, SenderID: "known-id", Text: "first", CreatedAt: time.Now()},
		{ID: uuid.New(), Room: 1, SenderID: "ghost-id", Text: "second", CreatedAt: time.Now()},
	}
	resolve := func(id string) (domain.Identity, error) {
		if id == "known-id" {
			return domain.Identity{ID: id, Username: "alice"}, nil
		}
		return domain.Identity{}, fmt.Errorf("no such user")
	}

	views := FromMessages(messages, resolve)

	req.Len(views, 2)
	req.Equal("alice", views[0].User.Username)
	req.Equal("ghost-id", views[1].User.ID)
	req.Empty(views[1].User.Username)
}

func TestFromRoom_Last_Message_Tracks_The_Tail(t *testing.T) {
	req := require.New(t)

	room := domain.Room{ID: 2, Name: "general", CreatorID: "alice-id", IsGroup: true}
	creator := domain.Identity{ID: "alice-id", Username: "alice"}
	members := []domain.Identity{creator, {ID: "bob-id", Username: "bob"}}

	t.Run("empty history has no last message", func(t *testing.T) {
		view := FromRoom(room, creator, members, nil)
		require.Nil(t, view.LastMessage)
		require.Len(t, view.CurrentUsers, 2)
	})

	messages := []MessageView{{ID: "m1", Text: "first"}, {ID: "m2", Text: "second"}}
	view := FromRoom(room, creator, members, messages)

	req.Equal(2, view.PK)
	req.Equal("general", view.Name)
	req.True(view.IsGroup)
	req.NotNil(view.LastMessage)
	req.Equal("second", view.LastMessage.Text)
}
