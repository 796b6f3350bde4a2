package domain

import "context"

// QueueRepository defines the data-access contract for the waiting list.
type QueueRepository interface {
	// ListBySession returns the queue of a session joined with user records,
	// FIFO (ascending id).
	ListBySession(ctx context.Context, sessionID int64) ([]QueueRow, error)

	// Add appends the user to the session's queue.
	Add(ctx context.Context, sessionID, userID int64) error

	// RemoveByID deletes a single queue entry by its row id.
	RemoveByID(ctx context.Context, id int64) error

	// Remove deletes the user's queue rows for the session.
	Remove(ctx context.Context, sessionID, userID int64) error

	// RemoveAllForUser deletes the user's queue rows across all sessions.
	RemoveAllForUser(ctx context.Context, userID int64) error

	// ExistsInActiveSession reports whether the user is queued for an ACTIVE
	// session.
	ExistsInActiveSession(ctx context.Context, userID int64) (bool, error)
}
