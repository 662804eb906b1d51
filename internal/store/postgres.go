package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clarivox/clarivox/internal/learn"
)

// Schema is the SQL DDL for the learning snapshot table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS learning_snapshots (
    id         TEXT PRIMARY KEY,
    state      JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Compile-time interface check.
var _ learn.Store = (*PostgresStore)(nil)

// PostgresStore keeps the learning snapshot in a single-row PostgreSQL
// table, one row per instance ID, replaced on every save.
type PostgresStore struct {
	db DB
	id string
}

// NewPostgresStore creates a store over db. id distinguishes multiple
// instances sharing one table; pass "" for the default single-instance row.
// The caller is responsible for calling [PostgresStore.Migrate] before
// issuing queries.
func NewPostgresStore(db DB, id string) *PostgresStore {
	if id == "" {
		id = "default"
	}
	return &PostgresStore{db: db, id: id}
}

// Migrate executes the [Schema] DDL against the database.
func (ps *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := ps.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// SaveSnapshot implements [learn.Store].
func (ps *PostgresStore) SaveSnapshot(ctx context.Context, data []byte) error {
	const query = `
		INSERT INTO learning_snapshots (id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`

	if _, err := ps.db.Exec(ctx, query, ps.id, data); err != nil {
		return fmt.Errorf("store: postgres save: %w", err)
	}
	return nil
}

// LoadSnapshot implements [learn.Store].
func (ps *PostgresStore) LoadSnapshot(ctx context.Context) ([]byte, error) {
	const query = `SELECT state FROM learning_snapshots WHERE id = $1`

	var data []byte
	err := ps.db.QueryRow(ctx, query, ps.id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, learn.ErrNoSnapshot
		}
		return nil, fmt.Errorf("store: postgres load: %w", err)
	}
	return data, nil
}
