/*
Package user contains the identity of a logged-in chat participant.

A User is created by a successful login, never changes afterwards, and is
dropped when the connection that owns it goes away.
*/
package user

import "github.com/google/uuid"

// User represents the identity information of a chat participant.
// Field order is the wire order.
type User struct {

	// SessionID is the identifier issued at login, unique among live sessions.
	SessionID uuid.UUID `json:"id"`

	// Name is the trimmed display name, unique among logged-in peers.
	Name string `json:"name"`
}
