// Package domain contains core concepts of the chat system.
// This file defines resolved identities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

// Identity is the result of resolving a bearer token. It is immutable for
// the lifetime of the connection that carries it.
type Identity struct {
	ID       string
	Email    string
	Username string
}

// Anonymous is the sentinel identity used when a token is absent, invalid
// or expired. It is never authorized for room access.
var Anonymous = Identity{}

func (i Identity) IsAnonymous() bool {
	return i.ID == ""
}
