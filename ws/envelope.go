package ws

import (
	"encoding/json"
	"log/slog"

	"chat-server/domain/event"
	"chat-server/hub"
	"chat-server/views"
)

// Outbound envelope types. The type tag is the client's dispatch key.
const (
	TypeChatMessage    = "chat_message"
	TypeMessageHistory = "message_history"
	TypeNotification   = "notification"
	TypeError          = "error"
)

type chatMessageEnvelope struct {
	Type    string            `json:"type"`
	Message views.MessageView `json:"message"`
}

type historyEnvelope struct {
	Type     string              `json:"type"`
	Messages []views.MessageView `json:"messages"`
}

type errorEnvelope struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type alertEnvelope struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	PK     any    `json:"pk"`
	Data   any    `json:"data"`
}

func marshalError(message string) []byte {
	payload, _ := json.Marshal(errorEnvelope{Type: TypeError, Message: message})
	return payload
}

// Broadcaster turns gateway change events into plain room-group and
// user-group traffic: persisted messages become chat_message envelopes
// for everyone joined to the room, and membership changes become
// out-of-band alerts on the affected user's notification group.
// Correlation-tagged delivery is the subscription registry's job, not
// this one's. Implements storage.Listener.
type Broadcaster struct {
	hub *hub.Hub
	log *slog.Logger
}

func NewBroadcaster(h *hub.Hub, log *slog.Logger) *Broadcaster {
	return &Broadcaster{hub: h, log: log}
}

func (b *Broadcaster) OnChange(e event.ChangeEvent) {
	switch ev := e.(type) {
	case event.MessageCreated:
		payload, err := json.Marshal(chatMessageEnvelope{Type: TypeChatMessage, Message: ev.View})
		if err != nil {
			b.log.Error("chat_message envelope failed", "error", err)
			return
		}
		b.hub.Send(event.RoomGroup(ev.Room), payload)

	case event.MemberAdded:
		payload, err := json.Marshal(alertEnvelope{
			Type:   TypeNotification,
			Action: string(ev.Action()),
			PK:     ev.PK(),
			Data:   ev.Data(),
		})
		if err != nil {
			b.log.Error("notification envelope failed", "error", err)
			return
		}
		b.hub.Send(event.UserGroup(ev.UserID), payload)
	}
}
