package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/stationmap-cli/internal/model"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	missing, err := m.Get(ctx, "rev:0.00000,0.00000")
	require.NoError(t, err)
	assert.Nil(t, missing, "absent key is (nil, nil), not an error")

	entry := Entry{
		Key:     "rev:33.93123,-117.95123",
		Found:   true,
		Address: model.Address{Street: "N Idaho St", City: "La Habra"},
		Source:  "reverse",
	}
	require.NoError(t, m.Put(ctx, entry))

	got, err := m.Get(ctx, entry.Key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Found)
	assert.Equal(t, "N Idaho St", got.Address.Street)
	assert.False(t, got.CachedAt.IsZero(), "Put stamps CachedAt")
	assert.Equal(t, 1, m.Len())
}

func TestMemoryCacheLastWriterWins(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Put(ctx, Entry{Key: "k", Found: false}))
	require.NoError(t, m.Put(ctx, Entry{Key: "k", Found: true, Source: "user"}))

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Found)
	assert.Equal(t, "user", got.Source)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Put(ctx, Entry{Key: "shared", Found: true})
			_, _ = m.Get(ctx, "shared")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, m.Len())
}
