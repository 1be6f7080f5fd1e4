// Package views holds the serialized forms of domain entities sent to
// clients. Field sets are part of the client contract and must not change.
package views

import (
	"time"

	"chat-server/domain"

	"github.com/samber/lo"
)

// createdAtLayout is the human-formatted timestamp carried next to the
// machine-readable one, kept for client compatibility.
const createdAtLayout = "02-01-2006 15:04:05"

type UserView struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type MessageView struct {
	ID                 string   `json:"id"`
	Room               int      `json:"room"`
	Text               string   `json:"text"`
	User               UserView `json:"user"`
	CreatedAt          string   `json:"created_at"`
	CreatedAtFormatted string   `json:"created_at_formatted"`
}

type RoomView struct {
	PK           int           `json:"pk"`
	Name         string        `json:"name"`
	Messages     []MessageView `json:"messages"`
	CurrentUsers []UserView    `json:"current_users"`
	LastMessage  *MessageView  `json:"last_message"`
	Creator      UserView      `json:"creator"`
	IsPrivate    bool          `json:"is_private"`
	IsGroup      bool          `json:"is_group"`
}

func FromIdentity(i domain.Identity) UserView {
	return UserView{ID: i.ID, Email: i.Email, Username: i.Username}
}

func FromMessage(m domain.Message, author domain.Identity) MessageView {
	return MessageView{
		ID:                 m.ID.String(),
		Room:               int(m.Room),
		Text:               m.Text,
		User:               FromIdentity(author),
		CreatedAt:          m.CreatedAt.UTC().Format(time.RFC3339),
		CreatedAtFormatted: m.CreatedAt.UTC().Format(createdAtLayout),
	}
}

// FromMessages maps a history slice, preserving order. The resolve
// function turns a sender id into its identity; unknown senders fall
// back to an id-only view rather than dropping the message.
func FromMessages(messages []domain.Message, resolve func(string) (domain.Identity, error)) []MessageView {
	return lo.Map(messages, func(m domain.Message, _ int) MessageView {
		author, err := resolve(m.SenderID)
		if err != nil {
			author = domain.Identity{ID: m.SenderID}
		}
		return FromMessage(m, author)
	})
}

func FromRoom(room domain.Room, creator domain.Identity, members []domain.Identity, messages []MessageView) RoomView {
	var last *MessageView
	if len(messages) > 0 {
		last = &messages[len(messages)-1]
	}
	return RoomView{
		PK:           int(room.ID),
		Name:         room.Name,
		Messages:     messages,
		CurrentUsers: lo.Map(members, func(m domain.Identity, _ int) UserView { return FromIdentity(m) }),
		LastMessage:  last,
		Creator:      FromIdentity(creator),
		IsPrivate:    room.IsPrivate,
		IsGroup:      room.IsGroup,
	}
}
