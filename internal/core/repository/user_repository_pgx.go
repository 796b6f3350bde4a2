package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/lobby-service/internal/core/domain"
)

const userColumns = `id, username, full_name, wins, last_activity_at, created_at`

// PgxUserRepository implements domain.UserRepository using pgxpool.
type PgxUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PgxUserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PgxUserRepository {
	return &PgxUserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*domain.UserRow, error) {
	var u domain.UserRow
	err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Wins, &u.LastActivityAt, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user and returns the created row.
func (r *PgxUserRepository) Create(ctx context.Context, username string, fullName *string) (*domain.UserRow, error) {
	query := `INSERT INTO users (username, full_name) VALUES ($1, $2) RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, query, username, fullName))
}

// GetByUsername returns the user matching the given username.
// Returns (nil, nil) when no user is found.
func (r *PgxUserRepository) GetByUsername(ctx context.Context, username string) (*domain.UserRow, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.pool.QueryRow(ctx, query, username))
}

// GetByID returns the user with the given id, or (nil, nil).
func (r *PgxUserRepository) GetByID(ctx context.Context, id int64) (*domain.UserRow, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// TouchActivity sets the user's last-activity timestamp to now.
func (r *PgxUserRepository) TouchActivity(ctx context.Context, userID int64) error {
	query := `UPDATE users SET last_activity_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}

// CountActiveSince returns how many users have been active at or after the
// given instant.
func (r *PgxUserRepository) CountActiveSince(ctx context.Context, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM users WHERE last_activity_at >= $1`

	var count int
	if err := r.pool.QueryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListInactiveSince returns users whose last activity is before the cutoff.
func (r *PgxUserRepository) ListInactiveSince(ctx context.Context, cutoff time.Time) ([]domain.UserRow, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE last_activity_at < $1`

	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UserRow
	for rows.Next() {
		var u domain.UserRow
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.Wins, &u.LastActivityAt, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// TopByWins returns users ordered by cumulative wins, descending.
func (r *PgxUserRepository) TopByWins(ctx context.Context, limit int) ([]domain.LeaderboardRow, error) {
	query := `SELECT id, username, full_name, wins FROM users ORDER BY wins DESC LIMIT $1`
	return r.queryLeaderboard(ctx, query, limit)
}

// TopWinnersSince ranks users by winner rows of sessions created at or after
// the given instant.
func (r *PgxUserRepository) TopWinnersSince(ctx context.Context, since time.Time, limit int) ([]domain.LeaderboardRow, error) {
	query := `
		SELECT u.id, u.username, u.full_name, COUNT(*) AS wins
		FROM session_players p
		JOIN sessions s ON p.session_id = s.id
		JOIN users u ON p.user_id = u.id
		WHERE p.is_winner AND s.created_at >= $1
		GROUP BY u.id, u.username, u.full_name
		ORDER BY wins DESC
		LIMIT $2`
	return r.queryLeaderboard(ctx, query, since, limit)
}

func (r *PgxUserRepository) queryLeaderboard(ctx context.Context, query string, args ...any) ([]domain.LeaderboardRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LeaderboardRow
	for rows.Next() {
		var e domain.LeaderboardRow
		if err := rows.Scan(&e.ID, &e.Username, &e.FullName, &e.Wins); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
