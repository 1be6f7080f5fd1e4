//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat-server/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	ListMessages(room domain.RoomID) ([]domain.Message, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// diskMessage is the storage representation of a message.
type diskMessage struct {
	ID      string `json:"id"`
	Room    int    `json:"room"`
	Author  string `json:"author"`
	Content string `json:"content"`
	At      int64  `json:"at"` // unix nanoseconds
}

// messageKey is formatted as "msg:{room_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%d:%019d:%s", m.Room, m.CreatedAt.UnixNano(), m.ID))
}

// StoreMessage persists a message in BadgerDB.
func (m MessageRepository) StoreMessage(message domain.Message) error {
	data, err := json.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), data)
	})
}

// ListMessages returns the room history in creation order, oldest first.
// Thanks to the padded timestamp in the key, messages are naturally
// sorted by time. When limitMessages is configured, only the most recent
// messages are kept: the scan walks backwards from the newest key and the
// collected slice is reversed before returning.
func (m MessageRepository) ListMessages(room domain.RoomID) ([]domain.Message, error) {
	var collected []diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%d:", room)
		prefix := []byte(prefixStr)

		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key for this room, then walk back.
		seekKey := append([]byte{}, prefix...)
		seekKey = append(seekKey, []byte("9999999999999999999")...)

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(collected) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			var dm diskMessage
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &dm)
			})
			if err != nil {
				return err
			}
			collected = append(collected, dm)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Reverse scan yields newest first; history is replayed oldest first.
	messages := lo.Reverse(lo.Map(collected, func(dm diskMessage, _ int) domain.Message {
		return toMessage(dm)
	}))
	return messages, nil
}

func fromMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:      message.ID.String(),
		Room:    int(message.Room),
		Author:  message.SenderID,
		Content: message.Text,
		At:      message.CreatedAt.UnixNano(),
	}
}

func toMessage(dm diskMessage) domain.Message {
	id, err := uuid.Parse(dm.ID)
	if err != nil {
		id = uuid.Nil
	}
	return domain.Message{
		ID:        id,
		Room:      domain.RoomID(dm.Room),
		SenderID:  dm.Author,
		Text:      dm.Content,
		CreatedAt: time.Unix(0, dm.At).UTC(),
	}
}
