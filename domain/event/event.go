// Package event defines the typed change events emitted by the storage
// gateway after a successful durable write. Listeners (the subscription
// registry, the room broadcaster) receive them through an explicit
// registration contract rather than hooks woven into the storage layer.
package event

import (
	"fmt"

	"chat-server/domain"
	"chat-server/views"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// RoomGroup names the broadcast group of a room.
func RoomGroup(id domain.RoomID) string {
	return fmt.Sprintf("room__%d", id)
}

// UserGroup names the per-user notification group.
func UserGroup(userID string) string {
	return fmt.Sprintf("user__%s", userID)
}

// ChangeEvent carries enough information to determine the affected groups
// and the payload to serialize. Data returns an already view-shaped value
// so listeners never reach back into storage.
type ChangeEvent interface {
	Groups() []string
	Action() Action
	PK() any
	Data() any
}

// MessageCreated is raised after a message has been persisted.
type MessageCreated struct {
	Room domain.RoomID
	View views.MessageView
}

func (e MessageCreated) Groups() []string { return []string{RoomGroup(e.Room)} }
func (e MessageCreated) Action() Action   { return ActionCreate }
func (e MessageCreated) PK() any          { return e.View.ID }
func (e MessageCreated) Data() any        { return e.View }

// MemberAdded is raised after a user has been added to a room's member
// set. It targets both the room subscribers and the added user's own
// notification group, so out-of-band alerts reach users who are not
// connected to the room itself.
type MemberAdded struct {
	Room     domain.RoomID
	RoomName string
	UserID   string
}

func (e MemberAdded) Groups() []string {
	return []string{RoomGroup(e.Room), UserGroup(e.UserID)}
}
func (e MemberAdded) Action() Action { return ActionUpdate }
func (e MemberAdded) PK() any        { return int(e.Room) }
func (e MemberAdded) Data() any {
	return map[string]any{"room": int(e.Room), "name": e.RoomName, "user": e.UserID, "event": "member_added"}
}

// MemberRemoved is raised after a user has left a room.
type MemberRemoved struct {
	Room     domain.RoomID
	RoomName string
	UserID   string
}

func (e MemberRemoved) Groups() []string { return []string{RoomGroup(e.Room)} }
func (e MemberRemoved) Action() Action   { return ActionUpdate }
func (e MemberRemoved) PK() any          { return int(e.Room) }
func (e MemberRemoved) Data() any {
	return map[string]any{"room": int(e.Room), "name": e.RoomName, "user": e.UserID, "event": "member_removed"}
}
