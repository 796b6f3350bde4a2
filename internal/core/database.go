// Package core owns the database connection pool and the boot-time schema
// migration.
package core

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema executed at boot. The partial unique indexes on sessions(status)
// are the store-level guard for the "at most one PENDING and at most one
// ACTIVE session" invariant: a racing second insert or activation fails at
// the index instead of producing a duplicate.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    username text NOT NULL UNIQUE,
    full_name text,
    wins integer NOT NULL DEFAULT 0,
    last_activity_at timestamptz NOT NULL DEFAULT NOW(),
    created_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sessions (
    id bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    status text NOT NULL DEFAULT 'PENDING',
    created_at timestamptz NOT NULL DEFAULT NOW(),
    started_at timestamptz,
    ends_at timestamptz,
    winning_number integer,
    started_by_id bigint REFERENCES users(id)
);

CREATE UNIQUE INDEX IF NOT EXISTS sessions_one_pending
ON sessions (status) WHERE status = 'PENDING';

CREATE UNIQUE INDEX IF NOT EXISTS sessions_one_active
ON sessions (status) WHERE status = 'ACTIVE';

CREATE TABLE IF NOT EXISTS session_players (
    id bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    session_id bigint NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    user_id bigint NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    pick integer NOT NULL,
    is_winner boolean NOT NULL DEFAULT false,
    joined_at timestamptz NOT NULL DEFAULT NOW(),
    CONSTRAINT session_players_member_unique UNIQUE (session_id, user_id)
);

CREATE TABLE IF NOT EXISTS session_queue (
    id bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    session_id bigint NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    user_id bigint NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    CONSTRAINT session_queue_member_unique UNIQUE (session_id, user_id)
);

CREATE INDEX IF NOT EXISTS users_last_activity_idx ON users (last_activity_at);
CREATE INDEX IF NOT EXISTS sessions_status_ends_at_idx ON sessions (status, ends_at);
`

// Connect builds a pgx connection pool from DATABASE_URL and runs the boot
// migration.
func Connect(ctx context.Context) (*pgxpool.Pool, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migration: %w", err)
	}

	return pool, nil
}

// Migrate applies the schema. Every statement is idempotent, so running it
// on every boot is safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
