package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/lobby-service/internal/core/domain"
)

// PgxQueueRepository implements domain.QueueRepository using pgxpool.
type PgxQueueRepository struct {
	pool *pgxpool.Pool
}

// NewQueueRepository creates a new PgxQueueRepository.
func NewQueueRepository(pool *pgxpool.Pool) *PgxQueueRepository {
	return &PgxQueueRepository{pool: pool}
}

// ListBySession returns the queue of a session joined with user records,
// FIFO (ascending id).
func (r *PgxQueueRepository) ListBySession(ctx context.Context, sessionID int64) ([]domain.QueueRow, error) {
	query := `
		SELECT q.id, q.session_id, q.user_id, u.username, u.full_name
		FROM session_queue q
		JOIN users u ON q.user_id = u.id
		WHERE q.session_id = $1
		ORDER BY q.id`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.QueueRow
	for rows.Next() {
		var q domain.QueueRow
		if err := rows.Scan(&q.ID, &q.SessionID, &q.UserID, &q.Username, &q.FullName); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// Add appends the user to the session's queue.
func (r *PgxQueueRepository) Add(ctx context.Context, sessionID, userID int64) error {
	query := `INSERT INTO session_queue (session_id, user_id) VALUES ($1, $2)`
	_, err := r.pool.Exec(ctx, query, sessionID, userID)
	return err
}

// RemoveByID deletes a single queue entry by its row id.
func (r *PgxQueueRepository) RemoveByID(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM session_queue WHERE id = $1`, id)
	return err
}

// Remove deletes the user's queue rows for the session.
func (r *PgxQueueRepository) Remove(ctx context.Context, sessionID, userID int64) error {
	query := `DELETE FROM session_queue WHERE session_id = $1 AND user_id = $2`
	_, err := r.pool.Exec(ctx, query, sessionID, userID)
	return err
}

// RemoveAllForUser deletes the user's queue rows across all sessions.
func (r *PgxQueueRepository) RemoveAllForUser(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM session_queue WHERE user_id = $1`, userID)
	return err
}

// ExistsInActiveSession reports whether the user is queued for an ACTIVE
// session.
func (r *PgxQueueRepository) ExistsInActiveSession(ctx context.Context, userID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM session_queue q
			JOIN sessions s ON q.session_id = s.id
			WHERE q.user_id = $1 AND s.status = 'ACTIVE'
		)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
