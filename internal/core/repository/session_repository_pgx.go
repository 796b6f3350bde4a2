package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/lobby-service/internal/core/domain"
)

const sessionColumns = `id, status, created_at, started_at, ends_at, winning_number, started_by_id`

// PgxSessionRepository implements domain.SessionRepository using pgxpool.
type PgxSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new PgxSessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *PgxSessionRepository {
	return &PgxSessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*domain.SessionRow, error) {
	var s domain.SessionRow
	err := row.Scan(&s.ID, &s.Status, &s.CreatedAt, &s.StartedAt, &s.EndsAt, &s.WinningNumber, &s.StartedByID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// FindActive returns the ACTIVE session, or (nil, nil) when there is none.
func (r *PgxSessionRepository) FindActive(ctx context.Context) (*domain.SessionRow, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE status = 'ACTIVE'`
	return scanSession(r.pool.QueryRow(ctx, query))
}

// FindLatestPending returns the most recently created PENDING session, or
// (nil, nil) when there is none.
func (r *PgxSessionRepository) FindLatestPending(ctx context.Context) (*domain.SessionRow, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE status = 'PENDING' ORDER BY id DESC LIMIT 1`
	return scanSession(r.pool.QueryRow(ctx, query))
}

// FindByID returns the session with the given id, or (nil, nil).
func (r *PgxSessionRepository) FindByID(ctx context.Context, id int64) (*domain.SessionRow, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	return scanSession(r.pool.QueryRow(ctx, query, id))
}

// CreatePending inserts a new PENDING session. The sessions_one_pending
// index rejects a second PENDING row; ON CONFLICT turns that race into a
// no-op and the caller re-reads.
func (r *PgxSessionRepository) CreatePending(ctx context.Context, startedBy *int64) (*domain.SessionRow, error) {
	query := `
		INSERT INTO sessions (status, started_by_id) VALUES ('PENDING', $1)
		ON CONFLICT DO NOTHING
		RETURNING ` + sessionColumns
	return scanSession(r.pool.QueryRow(ctx, query, startedBy))
}

// Activate moves the session from PENDING to ACTIVE. The WHERE clause is the
// compare-and-set: a session no longer PENDING matches nothing and (nil, nil)
// is returned.
func (r *PgxSessionRepository) Activate(ctx context.Context, id int64, startedAt, endsAt time.Time) (*domain.SessionRow, error) {
	query := `
		UPDATE sessions SET status = 'ACTIVE', started_at = $2, ends_at = $3
		WHERE id = $1 AND status = 'PENDING'
		RETURNING ` + sessionColumns
	return scanSession(r.pool.QueryRow(ctx, query, id, startedAt, endsAt))
}

// Complete ends the session in a single transaction: compare-and-set to
// ENDED, mark winners, increment win counts. The CAS guards the whole
// transaction, so a retry after a transient failure cannot double-increment
// anyone's wins.
func (r *PgxSessionRepository) Complete(ctx context.Context, id int64, winningNumber int) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE sessions SET status = 'ENDED', winning_number = $2
		WHERE id = $1 AND status <> 'ENDED'`, id, winningNumber)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE session_players SET is_winner = true
		WHERE session_id = $1 AND pick = $2`, id, winningNumber)
	if err != nil {
		return false, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET wins = wins + 1
		WHERE id IN (
			SELECT user_id FROM session_players
			WHERE session_id = $1 AND pick = $2
		)`, id, winningNumber)
	if err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

// Delete removes the session; players and queue rows cascade.
func (r *PgxSessionRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// FindExpired returns ACTIVE sessions whose expiry time has passed.
func (r *PgxSessionRepository) FindExpired(ctx context.Context, now time.Time) ([]domain.SessionRow, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE status = 'ACTIVE' AND ends_at < $1`
	return r.querySessions(ctx, query, now)
}

// ListPending returns every PENDING session.
func (r *PgxSessionRepository) ListPending(ctx context.Context) ([]domain.SessionRow, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE status = 'PENDING'`
	return r.querySessions(ctx, query)
}

// ListEnded returns ENDED sessions, newest first.
func (r *PgxSessionRepository) ListEnded(ctx context.Context) ([]domain.SessionRow, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE status = 'ENDED' ORDER BY created_at DESC`
	return r.querySessions(ctx, query)
}

func (r *PgxSessionRepository) querySessions(ctx context.Context, query string, args ...any) ([]domain.SessionRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SessionRow
	for rows.Next() {
		var s domain.SessionRow
		if err := rows.Scan(&s.ID, &s.Status, &s.CreatedAt, &s.StartedAt, &s.EndsAt, &s.WinningNumber, &s.StartedByID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
