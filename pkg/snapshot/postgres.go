package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresPool is the subset of *pgxpool.Pool used by PostgresStore.
type PostgresPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// DefaultPostgresTable is the table used when none is configured.
const DefaultPostgresTable = "joint_snapshots"

// PostgresStore keeps the latest snapshot of each session in PostgreSQL.
// The table is created if missing:
//
//	CREATE TABLE joint_snapshots (
//	    path TEXT PRIMARY KEY,
//	    data BYTEA NOT NULL,
//	    saved_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	pool   PostgresPool
	table  string
	closed atomic.Bool
}

// PostgresStoreOption configures PostgresStore behavior.
type PostgresStoreOption func(*PostgresStore)

// WithPostgresTable sets the table name.
// Default: "joint_snapshots".
func WithPostgresTable(name string) PostgresStoreOption {
	return func(s *PostgresStore) {
		if name != "" {
			s.table = name
		}
	}
}

// NewPostgresStore creates a PostgreSQL-backed store and ensures its table
// exists.
func NewPostgresStore(ctx context.Context, pool PostgresPool, opts ...PostgresStoreOption) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool, table: DefaultPostgresTable}
	for _, opt := range opts {
		opt(s)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		path TEXT PRIMARY KEY,
		data BYTEA NOT NULL,
		saved_at TIMESTAMPTZ NOT NULL
	)`, s.ident())
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("snapshot: create table %s: %w", s.table, err)
	}
	return s, nil
}

func (s *PostgresStore) ident() string {
	return pgx.Identifier{s.table}.Sanitize()
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, name string, data []byte, savedAt time.Time) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (path, data, saved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (path) DO UPDATE SET
			data = EXCLUDED.data,
			saved_at = EXCLUDED.saved_at
	`, s.ident())
	_, err := s.pool.Exec(ctx, query, name, data, savedAt.UTC())
	return err
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context, name string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	var data []byte
	query := fmt.Sprintf(`SELECT data FROM %s WHERE path = $1`, s.ident())
	err := s.pool.QueryRow(ctx, query, name).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE path = $1`, s.ident()), name)
	return err
}

// Close implements Store and closes the pool.
func (s *PostgresStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.pool.Close()
	return nil
}
