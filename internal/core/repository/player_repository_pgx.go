package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/lobby-service/internal/core/domain"
)

// PgxPlayerRepository implements domain.PlayerRepository using pgxpool.
type PgxPlayerRepository struct {
	pool *pgxpool.Pool
}

// NewPlayerRepository creates a new PgxPlayerRepository.
func NewPlayerRepository(pool *pgxpool.Pool) *PgxPlayerRepository {
	return &PgxPlayerRepository{pool: pool}
}

// ListBySession returns the players of a session joined with their users,
// in join order.
func (r *PgxPlayerRepository) ListBySession(ctx context.Context, sessionID int64) ([]domain.PlayerRow, error) {
	query := `
		SELECT p.id, p.session_id, p.user_id, p.pick, p.is_winner, p.joined_at,
		       u.username, u.full_name
		FROM session_players p
		JOIN users u ON p.user_id = u.id
		WHERE p.session_id = $1
		ORDER BY p.id`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PlayerRow
	for rows.Next() {
		var p domain.PlayerRow
		if err := rows.Scan(&p.ID, &p.SessionID, &p.UserID, &p.Pick, &p.IsWinner, &p.JoinedAt, &p.Username, &p.FullName); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Add inserts a player with the given pick.
func (r *PgxPlayerRepository) Add(ctx context.Context, sessionID, userID int64, pick int) error {
	query := `INSERT INTO session_players (session_id, user_id, pick) VALUES ($1, $2, $3)`
	_, err := r.pool.Exec(ctx, query, sessionID, userID, pick)
	return err
}

// Remove deletes the user's player row for the session and reports how many
// rows were removed.
func (r *PgxPlayerRepository) Remove(ctx context.Context, sessionID, userID int64) (int64, error) {
	query := `DELETE FROM session_players WHERE session_id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, query, sessionID, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RemoveAllForUser deletes the user's player rows across all sessions.
func (r *PgxPlayerRepository) RemoveAllForUser(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM session_players WHERE user_id = $1`, userID)
	return err
}

// ExistsInActiveSession reports whether the user holds a player slot in an
// ACTIVE session.
func (r *PgxPlayerRepository) ExistsInActiveSession(ctx context.Context, userID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM session_players p
			JOIN sessions s ON p.session_id = s.id
			WHERE p.user_id = $1 AND s.status = 'ACTIVE'
		)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
