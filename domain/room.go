package domain

// RoomID identifies a room. IDs are allocated by the room repository.
type RoomID int

// MaxPrivateMembers caps the member set of a private non-group room.
const MaxPrivateMembers = 2

// Room is a named broadcast scope with a durable member set.
// The member set is mutated by join/leave actions and by the
// request-response boundary; both go through the same gateway.
type Room struct {
	ID        RoomID
	Name      string
	CreatorID string
	IsPrivate bool
	IsGroup   bool
	MemberIDs []string
}

// IsMember reports whether the given user id is in the current member set.
func (r Room) IsMember(userID string) bool {
	for _, id := range r.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// CanAccess is the single authorization predicate of the system: the
// creator and current members may read and write the room. It must be
// re-evaluated against freshly loaded room state on every privileged
// action, because membership can change between a join and a later send.
func (r Room) CanAccess(identity Identity) bool {
	if identity.IsAnonymous() {
		return false
	}
	return r.CreatorID == identity.ID || r.IsMember(identity.ID)
}

// CanAddMember enforces the private-room invariant: a private non-group
// room never holds more than MaxPrivateMembers members.
func (r Room) CanAddMember(userID string) bool {
	if r.IsMember(userID) {
		return true
	}
	if r.IsPrivate && !r.IsGroup {
		return len(r.MemberIDs) < MaxPrivateMembers
	}
	return true
}
