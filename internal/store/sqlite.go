package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/stationmap-cli/internal/model"
)

// SQLiteCache implements Cache and RunRecorder using modernc.org/sqlite,
// giving geocode results a life beyond one run.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteCache{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	key          TEXT PRIMARY KEY,
	found        INTEGER NOT NULL,
	house_number TEXT NOT NULL DEFAULT '',
	street       TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL DEFAULT '',
	postal_code  TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL DEFAULT '',
	cached_at    DATETIME NOT NULL DEFAULT (datetime('now'))
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
	finished_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_region ON runs(region);
`

// Migrate creates the cache and run tables.
func (s *SQLiteCache) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close implements Cache.
func (s *SQLiteCache) Close() error {
	return s.db.Close()
}

// Get implements Cache.
func (s *SQLiteCache) Get(ctx context.Context, key string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, found, house_number, street, city, state, postal_code, source, cached_at
		 FROM geocode_cache WHERE key = ?`,
		key,
	)

	var e Entry
	var found int
	err := row.Scan(&e.Key, &found, &e.Address.HouseNumber, &e.Address.Street,
		&e.Address.City, &e.Address.State, &e.Address.PostalCode, &e.Source, &e.CachedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cache entry")
	}
	e.Found = found != 0
	return &e, nil
}

// Put implements Cache. Existing entries are overwritten; last writer wins.
func (s *SQLiteCache) Put(ctx context.Context, entry Entry) error {
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now().UTC()
	}
	found := 0
	if entry.Found {
		found = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (key, found, house_number, street, city, state, postal_code, source, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			found = excluded.found,
			house_number = excluded.house_number,
			street = excluded.street,
			city = excluded.city,
			state = excluded.state,
			postal_code = excluded.postal_code,
			source = excluded.source,
			cached_at = excluded.cached_at`,
		entry.Key, found, entry.Address.HouseNumber, entry.Address.Street,
		entry.Address.City, entry.Address.State, entry.Address.PostalCode,
		entry.Source, entry.CachedAt,
	)
	return eris.Wrap(err, "sqlite: put cache entry")
}

// RecordRun implements RunRecorder.
func (s *SQLiteCache) RecordRun(ctx context.Context, region string, summary model.Summary) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, region, total, complete, auto_resolved, user_resolved, unresolved, ambiguous, extraction_errors, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, region, summary.Total, summary.Complete, summary.AutoResolved,
		summary.UserResolved, summary.Unresolved, summary.Ambiguous,
		summary.ExtractionErrors, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: record run")
	}
	return id, nil
}
