package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/stationmap-cli/internal/model"
)

// PgxPool is the subset of pgxpool.Pool the cache needs; pgxmock satisfies it.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresCache implements Cache and RunRecorder on a shared Postgres
// database, for deployments where several operators share one geocode cache.
type PostgresCache struct {
	pool PgxPool
}

// NewPostgres connects to Postgres and runs migrations.
func NewPostgres(ctx context.Context, dsn string) (*PostgresCache, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	s := &PostgresCache{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresFromPool wraps an existing pool (tests use pgxmock here).
func NewPostgresFromPool(pool PgxPool) *PostgresCache {
	return &PostgresCache{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	key          TEXT PRIMARY KEY,
	found        BOOLEAN NOT NULL,
	house_number TEXT NOT NULL DEFAULT '',
	street       TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL DEFAULT '',
	postal_code  TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL DEFAULT '',
	cached_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	region            TEXT NOT NULL,
	total             INTEGER NOT NULL,
	complete          INTEGER NOT NULL,
	auto_resolved     INTEGER NOT NULL,
	user_resolved     INTEGER NOT NULL,
	unresolved        INTEGER NOT NULL,
	ambiguous         INTEGER NOT NULL,
	extraction_errors INTEGER NOT NULL,
	finished_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Migrate creates the cache and run tables.
func (s *PostgresCache) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close implements Cache.
func (s *PostgresCache) Close() error {
	s.pool.Close()
	return nil
}

// Get implements Cache.
func (s *PostgresCache) Get(ctx context.Context, key string) (*Entry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT key, found, house_number, street, city, state, postal_code, source, cached_at
		 FROM geocode_cache WHERE key = $1`,
		key,
	)

	var e Entry
	err := row.Scan(&e.Key, &e.Found, &e.Address.HouseNumber, &e.Address.Street,
		&e.Address.City, &e.Address.State, &e.Address.PostalCode, &e.Source, &e.CachedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cache entry")
	}
	return &e, nil
}

// Put implements Cache.
func (s *PostgresCache) Put(ctx context.Context, entry Entry) error {
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO geocode_cache (key, found, house_number, street, city, state, postal_code, source, cached_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (key) DO UPDATE SET
			found = EXCLUDED.found,
			house_number = EXCLUDED.house_number,
			street = EXCLUDED.street,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			postal_code = EXCLUDED.postal_code,
			source = EXCLUDED.source,
			cached_at = EXCLUDED.cached_at`,
		entry.Key, entry.Found, entry.Address.HouseNumber, entry.Address.Street,
		entry.Address.City, entry.Address.State, entry.Address.PostalCode,
		entry.Source, entry.CachedAt,
	)
	return eris.Wrap(err, "postgres: put cache entry")
}

// RecordRun implements RunRecorder.
func (s *PostgresCache) RecordRun(ctx context.Context, region string, summary model.Summary) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runs (id, region, total, complete, auto_resolved, user_resolved, unresolved, ambiguous, extraction_errors, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, region, summary.Total, summary.Complete, summary.AutoResolved,
		summary.UserResolved, summary.Unresolved, summary.Ambiguous,
		summary.ExtractionErrors, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: record run")
	}
	return id, nil
}
