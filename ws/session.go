// Package ws implements the per-connection protocol state machine:
// authenticate, authorize, join, exchange, leave, with explicit failure
// semantics at each phase. Everything recoverable answers with an error
// envelope and keeps the connection open; only handshake failures close
// the socket.
package ws

import (
	"encoding/json"
	"errors"
	"log/slog"

	apperrors "chat-server/errors"

	"chat-server/domain"
	"chat-server/hub"
	"chat-server/services"
	"chat-server/views"
)

type state int

const (
	// stateAuthenticated: identity resolved, not attached to a room.
	// Room creation is accepted only in this pre-join state.
	stateAuthenticated state = iota
	// stateJoined: attached to a room, either the path room of the
	// messaging endpoint or one joined later via join_room/create.
	stateJoined
)

// inbound is the parsed client envelope. Fields are action-specific;
// absent ones stay zero-valued and each handler validates its own.
type inbound struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	PK        int    `json:"pk"`
	Message   string `json:"message"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"is_private"`
	IsGroup   bool   `json:"is_group"`
}

type actionFunc func(*Session, inbound)

type action struct {
	states map[state]struct{}
	fn     actionFunc
}

// dispatch is the closed set of action tags, built once at package
// initialization. Unknown tags fail with a recoverable error instead of
// silently doing nothing.
var dispatch = map[string]action{
	"chat_message":   {states: joinedOnly, fn: (*Session).handleChatMessage},
	"get_messages":   {states: joinedOnly, fn: (*Session).handleGetMessages},
	"create_message": {states: joinedOnly, fn: (*Session).handleCreateMessage},
	"join_room":      {states: anyState, fn: (*Session).handleJoinRoom},
	"leave_room":     {states: anyState, fn: (*Session).handleLeaveRoom},
	"create":         {states: preJoinOnly, fn: (*Session).handleCreate},
}

var (
	joinedOnly  = map[state]struct{}{stateJoined: {}}
	preJoinOnly = map[state]struct{}{stateAuthenticated: {}}
	anyState    = map[state]struct{}{stateAuthenticated: {}, stateJoined: {}}
)

// Session is the per-connection protocol driver. Handle runs on the
// connection's single read goroutine, so session state needs no locking;
// shared structures (hub, registry, gateway) guard themselves.
type Session struct {
	client   *hub.Client
	identity domain.Identity
	room     domain.RoomID // path room of the messaging endpoint; 0 otherwise
	state    state
	svc      services.IChatService
	log      *slog.Logger
}

func NewSession(client *hub.Client, identity domain.Identity, room domain.RoomID,
	initial state, svc services.IChatService, log *slog.Logger) *Session {
	return &Session{
		client:   client,
		identity: identity,
		room:     room,
		state:    initial,
		svc:      svc,
		log:      log,
	}
}

// Handle processes one inbound frame. Malformed payloads and unknown
// action names are recoverable per-message errors.
func (s *Session) Handle(payload []byte) {
	var in inbound
	if err := json.Unmarshal(payload, &in); err != nil {
		s.sendError("invalid message format")
		return
	}

	act, ok := dispatch[in.Type]
	if !ok {
		s.sendError("unknown action: " + in.Type)
		return
	}
	if _, ok := act.states[s.state]; !ok {
		s.sendError("action not available in the current state: " + in.Type)
		return
	}

	act.fn(s, in)
}

func (s *Session) handleChatMessage(in inbound) {
	s.createMessage(s.room, in.Message)
}

func (s *Session) handleCreateMessage(in inbound) {
	room := domain.RoomID(in.PK)
	if room == 0 {
		room = s.room
	}
	s.createMessage(room, in.Message)
}

func (s *Session) createMessage(room domain.RoomID, text string) {
	// Reject empty text locally, before any storage access.
	if err := domain.ValidateText(text); err != nil {
		s.sendError(err.Error())
		return
	}

	if _, err := s.svc.CreateMessage(s.identity, room, text); err != nil {
		// A persistence rejection stays silent to the group; only the
		// originating connection hears about it.
		s.log.Debug("message rejected", "client_id", s.client.ID, "room_id", int(room), "error", err)
		s.sendError(userFacing(err))
	}
}

func (s *Session) handleGetMessages(in inbound) {
	messages, err := s.svc.History(s.room)
	if err != nil {
		s.sendError(userFacing(err))
		return
	}
	s.sendHistory(messages)
}

func (s *Session) handleJoinRoom(in inbound) {
	if in.PK == 0 {
		s.sendError("join_room requires a pk")
		return
	}
	if _, err := s.svc.JoinRoom(s.client, s.identity, domain.RoomID(in.PK), in.RequestID); err != nil {
		s.sendError(userFacing(err))
		return
	}
	// A successful join makes this the session's active room, which
	// unlocks the message actions on any endpoint.
	s.room = domain.RoomID(in.PK)
	s.state = stateJoined
}

func (s *Session) handleLeaveRoom(in inbound) {
	if in.PK == 0 {
		s.sendError("leave_room requires a pk")
		return
	}
	if err := s.svc.LeaveRoom(s.client, s.identity, domain.RoomID(in.PK)); err != nil {
		s.sendError(userFacing(err))
		return
	}
	// Leaving the active room puts the session back in the pre-join
	// state; leaving any other room does not affect it.
	if domain.RoomID(in.PK) == s.room {
		s.room = 0
		s.state = stateAuthenticated
	}
}

func (s *Session) handleCreate(in inbound) {
	room, err := s.svc.CreateRoom(s.identity, in.Name, in.IsPrivate, in.IsGroup)
	if err != nil {
		s.sendError(userFacing(err))
		return
	}
	// Creating a room immediately joins it under the same request id,
	// so the creator's first live query covers their new room.
	if _, err := s.svc.JoinRoom(s.client, s.identity, room.ID, in.RequestID); err != nil {
		s.sendError(userFacing(err))
		return
	}
	s.room = room.ID
	s.state = stateJoined
}

func (s *Session) sendHistory(messages []views.MessageView) {
	payload, err := json.Marshal(historyEnvelope{Type: TypeMessageHistory, Messages: messages})
	if err != nil {
		s.log.Error("history envelope failed", "error", err)
		return
	}
	if !s.client.Enqueue(payload) {
		s.log.Warn("dropping history for unreachable client", "client_id", s.client.ID)
	}
}

func (s *Session) sendError(message string) {
	if !s.client.Enqueue(marshalError(message)) {
		s.log.Warn("dropping error reply for unreachable client", "client_id", s.client.ID)
	}
}

// userFacing hides infrastructure detail behind domain errors: known
// sentinels surface verbatim, anything else is reported generically and
// logged server-side.
func userFacing(err error) string {
	for _, sentinel := range []error{
		apperrors.ErrRoomNotFound, apperrors.ErrNotAMember, apperrors.ErrRoomFull,
		apperrors.ErrEmptyMessage, apperrors.ErrMessageTooLong, apperrors.ErrAnonymous,
		apperrors.ErrNotCreator,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}
