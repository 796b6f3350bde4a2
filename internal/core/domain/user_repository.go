package domain

import (
	"context"
	"time"
)

// UserRow represents a user record.
type UserRow struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	FullName       *string   `json:"fullName"`
	Wins           int       `json:"wins"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// LeaderboardRow is one entry of a wins ranking.
type LeaderboardRow struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	FullName *string `json:"fullName"`
	Wins     int     `json:"wins"`
}

// UserRepository defines the data-access contract for user operations.
type UserRepository interface {
	// Create inserts a new user and returns the created row.
	Create(ctx context.Context, username string, fullName *string) (*UserRow, error)

	// GetByUsername returns the user matching the given username.
	// Returns (nil, nil) when no user is found.
	GetByUsername(ctx context.Context, username string) (*UserRow, error)

	// GetByID returns the user with the given id, or (nil, nil).
	GetByID(ctx context.Context, id int64) (*UserRow, error)

	// TouchActivity sets the user's last-activity timestamp to now.
	TouchActivity(ctx context.Context, userID int64) error

	// CountActiveSince returns how many users have been active at or after
	// the given instant.
	CountActiveSince(ctx context.Context, since time.Time) (int, error)

	// ListInactiveSince returns users whose last activity is before the
	// given cutoff.
	ListInactiveSince(ctx context.Context, cutoff time.Time) ([]UserRow, error)

	// TopByWins returns users ordered by cumulative wins, descending.
	TopByWins(ctx context.Context, limit int) ([]LeaderboardRow, error)

	// TopWinnersSince ranks users by winner rows of sessions created at or
	// after the given instant.
	TopWinnersSince(ctx context.Context, since time.Time, limit int) ([]LeaderboardRow, error)
}
