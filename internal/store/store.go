// Package store provides the geocode cache boundary: an external key-value
// store, in-memory for a single run or backed by sqlite/postgres for reuse
// across runs.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/stationmap-cli/internal/config"
	"github.com/sells-group/stationmap-cli/internal/model"
)

// Entry is a cached geocode outcome. Found=false records a definitive
// "no result" so repeated useless calls are avoided. Entries are pure
// memoization: never evicted within a run.
type Entry struct {
	Key      string        `json:"key"`
	Found    bool          `json:"found"`
	Address  model.Address `json:"address"`
	Source   string        `json:"source,omitempty"`
	CachedAt time.Time     `json:"cached_at"`
}

// Cache is the persistence interface for geocode results. Get returns
// (nil, nil) when the key is absent. Implementations must be safe for
// concurrent use; last-writer-wins on the same key is acceptable since
// entries are idempotent once resolved.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, entry Entry) error
	Close() error
}

// RunRecorder persists end-of-run summaries. Implemented by the durable
// backends; the in-memory cache does not record runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, region string, summary model.Summary) (string, error)
}

// Open builds a Cache from config.
func Open(ctx context.Context, cfg config.StoreConfig) (Cache, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		s, err := NewSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close() //nolint:errcheck
			return nil, err
		}
		return s, nil
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
