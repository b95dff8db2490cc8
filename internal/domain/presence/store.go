// Package presence tracks live client connections and the room each one is
// currently viewing.
package presence

import (
	"context"

	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
)

// Store holds presence state. Operations on unknown connections are no-ops.
// A connection belongs to exactly one user and has at most one active room.
type Store interface {
	// Register binds connID to userID. Re-registering is idempotent; a
	// connection re-registered under another user moves to that user.
	Register(ctx context.Context, userID ids.UserID, connID ids.ConnectionID) error
	Unregister(ctx context.Context, connID ids.ConnectionID) error
	SetActiveRoom(ctx context.Context, connID ids.ConnectionID, roomID ids.RoomID) error
	ClearActiveRoom(ctx context.Context, connID ids.ConnectionID) error
	// IsUserViewingRoom is true when any live connection of the user has roomID active.
	IsUserViewingRoom(ctx context.Context, userID ids.UserID, roomID ids.RoomID) (bool, error)
	UserConnections(ctx context.Context, userID ids.UserID) ([]ids.ConnectionID, error)
	// Touch extends the lifetime of a connection's record.
	Touch(ctx context.Context, connID ids.ConnectionID) error
}
