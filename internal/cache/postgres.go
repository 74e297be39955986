package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// PgxPool is the subset of *pgxpool.Pool used by PostgresBackend.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresBackend keeps snapshots as rows of a Postgres table.
type PostgresBackend struct {
	pool    PgxPool
	closeFn func()
}

// NewPostgresBackend connects to Postgres and verifies the connection.
func NewPostgresBackend(ctx context.Context, connString string) (*PostgresBackend, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresBackend{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS cache_snapshots (
	name       TEXT PRIMARY KEY,
	payload    BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the snapshot table if needed.
func (b *PostgresBackend) Migrate(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (b *PostgresBackend) Close() error {
	if b.closeFn != nil {
		b.closeFn()
	}
	return nil
}

// Location returns the table row holding the snapshot.
func (b *PostgresBackend) Location(name string) string {
	return "postgres://cache_snapshots/" + name
}

// Load returns the snapshot row, or nil if absent.
func (b *PostgresBackend) Load(ctx context.Context, name string) ([]byte, error) {
	var payload []byte
	err := b.pool.QueryRow(ctx,
		`SELECT payload FROM cache_snapshots WHERE name = $1`, name,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: load %s", name)
	}
	return payload, nil
}

// Save upserts the snapshot row.
func (b *PostgresBackend) Save(ctx context.Context, name string, data []byte) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO cache_snapshots (name, payload, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET payload = $2, updated_at = $3`,
		name, data, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save %s", name)
}
