// Package domain contains core concepts of the chat system.
// This file defines Message entities and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"strings"
	"time"

	"chat-server/errors"

	"github.com/google/uuid"
)

// MaxMessageLength bounds message text, counted in runes.
const MaxMessageLength = 500

// Message represents an immutable chat event. The creation timestamp is
// assigned at persistence time; messages are never updated or deleted.
type Message struct {
	ID        uuid.UUID
	Room      RoomID
	SenderID  string
	Text      string
	CreatedAt time.Time
}

// ValidateText rejects empty or whitespace-only text and text above the
// length cap. The check is local: callers must not touch storage when it
// fails.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.ErrEmptyMessage
	}
	if len([]rune(text)) > MaxMessageLength {
		return errors.ErrMessageTooLong
	}
	return nil
}
