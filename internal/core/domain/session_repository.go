package domain

import (
	"context"
	"time"
)

// SessionRepository defines the data-access contract for session lifecycle
// operations. Status transitions are conditional updates: the store commits a
// transition only when the row is still in the expected source status, so two
// racing callers cannot both move the same session.
type SessionRepository interface {
	// FindActive returns the ACTIVE session, or (nil, nil) when there is none.
	FindActive(ctx context.Context) (*SessionRow, error)

	// FindLatestPending returns the most recently created PENDING session,
	// or (nil, nil) when there is none.
	FindLatestPending(ctx context.Context) (*SessionRow, error)

	// FindByID returns the session with the given id, or (nil, nil) when it
	// does not exist.
	FindByID(ctx context.Context, id int64) (*SessionRow, error)

	// CreatePending inserts a new PENDING session. When another PENDING
	// session already exists the insert is a no-op and (nil, nil) is
	// returned; callers re-read via FindLatestPending.
	CreatePending(ctx context.Context, startedBy *int64) (*SessionRow, error)

	// Activate moves the session from PENDING to ACTIVE, recording start and
	// expiry times. Returns (nil, nil) when the session is no longer PENDING,
	// i.e. the compare-and-set lost.
	Activate(ctx context.Context, id int64, startedAt, endsAt time.Time) (*SessionRow, error)

	// Complete atomically moves the session to ENDED with the given winning
	// number, marks every player whose pick equals it as a winner, and
	// increments those users' win counts. Returns false when the session was
	// already ENDED or absent, in which case nothing is applied.
	Complete(ctx context.Context, id int64, winningNumber int) (bool, error)

	// Delete removes the session and, via cascade, its players and queue.
	Delete(ctx context.Context, id int64) error

	// FindExpired returns every ACTIVE session whose expiry time is before
	// the given instant.
	FindExpired(ctx context.Context, now time.Time) ([]SessionRow, error)

	// ListPending returns every PENDING session.
	ListPending(ctx context.Context) ([]SessionRow, error)

	// ListEnded returns ENDED sessions, newest first.
	ListEnded(ctx context.Context) ([]SessionRow, error)
}
