//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"chat-server/domain"
	"chat-server/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type IRoomRepository interface {
	CreateRoom(name, creatorID string, isPrivate, isGroup bool) (domain.Room, error)
	GetRoom(id domain.RoomID) (domain.Room, error)
	AddMember(id domain.RoomID, userID string) (domain.Room, bool, error)
	RemoveMember(id domain.RoomID, userID string) (domain.Room, bool, error)
	ListRoomsByCreator(creatorID string) ([]domain.Room, error)
	Close() error
}

// maxTxnRetries bounds the retry loop around badger write conflicts when
// two connections mutate the same room's member set simultaneously.
const maxTxnRetries = 5

type RoomRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) (*RoomRepository, error) {
	seq, err := db.GetSequence([]byte("seq:room"), 16)
	if err != nil {
		return nil, fmt.Errorf("room sequence: %w", err)
	}
	return &RoomRepository{db: db, seq: seq, log: log}, nil
}

// Close releases the unused tail of the id sequence.
func (r *RoomRepository) Close() error {
	return r.seq.Release()
}

// diskRoom is the storage representation of a room.
type diskRoom struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	CreatorID string   `json:"creator_id"`
	IsPrivate bool     `json:"is_private"`
	IsGroup   bool     `json:"is_group"`
	MemberIDs []string `json:"member_ids"`
}

func roomKey(id domain.RoomID) []byte {
	return []byte(fmt.Sprintf("room:%d", id))
}

// CreateRoom allocates the next room id and persists the room with the
// creator already present in the member set, mirroring the boundary
// contract that a creator always sees their own room.
func (r *RoomRepository) CreateRoom(name, creatorID string, isPrivate, isGroup bool) (domain.Room, error) {
	next, err := r.seq.Next()
	if err != nil {
		return domain.Room{}, fmt.Errorf("room id allocation: %w", err)
	}
	// Sequence starts at 0; room pks start at 1 like the rest of the system.
	id := int(next) + 1

	room := diskRoom{
		ID:        id,
		Name:      name,
		CreatorID: creatorID,
		IsPrivate: isPrivate,
		IsGroup:   isGroup,
		MemberIDs: []string{creatorID},
	}

	data, err := json.Marshal(room)
	if err != nil {
		return domain.Room{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(domain.RoomID(id)), data)
	})
	if err != nil {
		return domain.Room{}, err
	}

	return toRoom(room), nil
}

func (r *RoomRepository) GetRoom(id domain.RoomID) (domain.Room, error) {
	var room diskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		return readRoom(txn, id, &room)
	})
	if err != nil {
		return domain.Room{}, err
	}
	return toRoom(room), nil
}

// AddMember appends the user to the member set inside a single
// transaction and reports whether the set actually grew. The
// private-room cap is checked against the state read in that same
// transaction, so a concurrent add cannot slip past the limit: badger
// detects the conflict and the losing transaction is retried against
// the updated member set. When two racing calls add the same user,
// exactly one of them observes the change.
func (r *RoomRepository) AddMember(id domain.RoomID, userID string) (domain.Room, bool, error) {
	return r.mutate(id, func(room *diskRoom) (bool, error) {
		if lo.Contains(room.MemberIDs, userID) {
			return false, nil // idempotent
		}
		if room.IsPrivate && !room.IsGroup && len(room.MemberIDs) >= domain.MaxPrivateMembers {
			return false, errors.ErrRoomFull
		}
		room.MemberIDs = append(room.MemberIDs, userID)
		return true, nil
	})
}

// RemoveMember reports false when the user was not a member.
func (r *RoomRepository) RemoveMember(id domain.RoomID, userID string) (domain.Room, bool, error) {
	return r.mutate(id, func(room *diskRoom) (bool, error) {
		trimmed := lo.Without(room.MemberIDs, userID)
		if len(trimmed) == len(room.MemberIDs) {
			return false, nil
		}
		room.MemberIDs = trimmed
		return true, nil
	})
}

// mutate runs apply against the room read inside the write transaction.
// apply reports whether it changed the room; the flag is taken from the
// final attempt only, since a retried transaction re-runs apply against
// fresh state.
func (r *RoomRepository) mutate(id domain.RoomID, apply func(*diskRoom) (bool, error)) (domain.Room, bool, error) {
	var room diskRoom
	var changed bool

	for attempt := 0; ; attempt++ {
		err := r.db.Update(func(txn *badger.Txn) error {
			room = diskRoom{}
			changed = false
			if err := readRoom(txn, id, &room); err != nil {
				return err
			}
			var err error
			if changed, err = apply(&room); err != nil {
				return err
			}
			if !changed {
				return nil
			}
			data, err := json.Marshal(room)
			if err != nil {
				return err
			}
			return txn.Set(roomKey(id), data)
		})

		if err == badger.ErrConflict && attempt < maxTxnRetries {
			r.log.Debug("room write conflict, retrying", "room_id", int(id), "attempt", attempt+1)
			continue
		}
		if err != nil {
			return domain.Room{}, false, err
		}
		return toRoom(room), changed, nil
	}
}

func (r *RoomRepository) ListRoomsByCreator(creatorID string) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("room:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var room diskRoom
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &room)
			})
			if err != nil {
				return err
			}
			if room.CreatorID == creatorID {
				rooms = append(rooms, toRoom(room))
			}
		}
		return nil
	})
	return rooms, err
}

func readRoom(txn *badger.Txn, id domain.RoomID, out *diskRoom) error {
	item, err := txn.Get(roomKey(id))
	if err == badger.ErrKeyNotFound {
		return errors.ErrRoomNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func toRoom(d diskRoom) domain.Room {
	return domain.Room{
		ID:        domain.RoomID(d.ID),
		Name:      d.Name,
		CreatorID: d.CreatorID,
		IsPrivate: d.IsPrivate,
		IsGroup:   d.IsGroup,
		MemberIDs: d.MemberIDs,
	}
}
