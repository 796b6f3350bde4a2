// Package domain holds the entity rows and the data-access contracts the
// Logic layer is built on. Implementations live in internal/core/repository
// (Postgres) and internal/core/memory (tests). The Logic layer depends on
// these interfaces only, never on SQL or pgx directly.
package domain

import "time"

// SessionStatus is the lifecycle phase of a round.
type SessionStatus string

const (
	StatusPending SessionStatus = "PENDING"
	StatusActive  SessionStatus = "ACTIVE"
	StatusEnded   SessionStatus = "ENDED"
)

// SessionRow represents a session (round) record.
// StartedAt, EndsAt, WinningNumber and StartedByID are nil until the
// corresponding transition has happened.
type SessionRow struct {
	ID            int64          `json:"id"`
	Status        SessionStatus  `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
	StartedAt     *time.Time     `json:"startedAt"`
	EndsAt        *time.Time     `json:"endsAt"`
	WinningNumber *int           `json:"winnerNumber"`
	StartedByID   *int64         `json:"startedById"`
}

// PlayerRow represents a session membership, joined with the owning user
// for display. A user holds at most one PlayerRow per session.
type PlayerRow struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"sessionId"`
	UserID    int64     `json:"userId"`
	Pick      int       `json:"pick"`
	IsWinner  bool      `json:"isWinner"`
	JoinedAt  time.Time `json:"joinedAt"`
	Username  string    `json:"username"`
	FullName  *string   `json:"fullName"`
}

// QueueRow represents a waiting-list entry for a full session. FIFO order
// is the insertion order of the rows (ascending id).
type QueueRow struct {
	ID        int64   `json:"id"`
	SessionID int64   `json:"sessionId"`
	UserID    int64   `json:"userId"`
	Username  string  `json:"username"`
	FullName  *string `json:"fullName"`
}

// SessionView is a session together with its loaded members, the shape the
// facade returns to callers.
type SessionView struct {
	SessionRow
	Players []PlayerRow `json:"players"`
	Queue   []QueueRow  `json:"queue"`
}

// HasPlayer reports whether the user holds a player slot in this view.
func (v *SessionView) HasPlayer(userID int64) bool {
	for _, p := range v.Players {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// HasQueued reports whether the user is on the waiting list in this view.
func (v *SessionView) HasQueued(userID int64) bool {
	for _, q := range v.Queue {
		if q.UserID == userID {
			return true
		}
	}
	return false
}
