package ws

import "github.com/google/uuid"

// newConnID labels a socket for the lifetime of its connection. The id
// only ever shows up in logs and audit events.
func newConnID() string {
	return uuid.NewString()
}
