package domain

import "context"

// PlayerRepository defines the data-access contract for session membership.
type PlayerRepository interface {
	// ListBySession returns the players of a session joined with their user
	// records, in join order.
	ListBySession(ctx context.Context, sessionID int64) ([]PlayerRow, error)

	// Add inserts a player with the given pick.
	Add(ctx context.Context, sessionID, userID int64, pick int) error

	// Remove deletes the user's player row for the session and returns the
	// number of rows removed (0 when the user was not a player).
	Remove(ctx context.Context, sessionID, userID int64) (int64, error)

	// RemoveAllForUser deletes the user's player rows across all sessions.
	RemoveAllForUser(ctx context.Context, userID int64) error

	// ExistsInActiveSession reports whether the user holds a player slot in
	// an ACTIVE session.
	ExistsInActiveSession(ctx context.Context, userID int64) (bool, error)
}
