package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Region: "la-habra",
		Regions: map[string]RegionConfig{
			"la-habra": {
				CenterLat:    33.93,
				CenterLon:    -117.95,
				Thresholds:   []float64{40233.6, 80467.2, 120700.8, 160934.4},
				BufferMeters: 200,
			},
		},
		Geocode:   GeocodeConfig{UserAgent: "stationmap-test/1.0", MinIntervalMS: 1100},
		Reconcile: ReconcileConfig{Concurrency: 1, CoordPrecision: 5},
		Store:     StoreConfig{Driver: "sqlite", Path: "cache.db"},
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "la-habra", cfg.Region)
	require.Contains(t, cfg.Regions, "la-habra")
	assert.InDelta(t, 33.93, cfg.Regions["la-habra"].CenterLat, 0.001)
	assert.Len(t, cfg.Regions["la-habra"].Thresholds, 4)
	assert.Equal(t, 1100, cfg.Geocode.MinIntervalMS)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 1, cfg.Reconcile.Concurrency)
	assert.Equal(t, 5, cfg.Reconcile.CoordPrecision)
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejectsUnknownRegion(t *testing.T) {
	cfg := validConfig()
	cfg.Region = "atlantis"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "atlantis")
	assert.Contains(t, err.Error(), "la-habra", "error lists the available regions")
}

func TestValidateRejectsMissingUserAgent(t *testing.T) {
	cfg := validConfig()
	cfg.Geocode.UserAgent = "   "
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonIncreasingThresholds(t *testing.T) {
	cfg := validConfig()
	region := cfg.Regions["la-habra"]
	region.Thresholds = []float64{1000, 1000, 5000}
	cfg.Regions["la-habra"] = region
	assert.Error(t, cfg.Validate())

	region.Thresholds = nil
	cfg.Regions["la-habra"] = region
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsOutOfBoundsCenter(t *testing.T) {
	cfg := validConfig()
	region := cfg.Regions["la-habra"]
	region.CenterLat = 91
	cfg.Regions["la-habra"] = region
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeBuffer(t *testing.T) {
	cfg := validConfig()
	region := cfg.Regions["la-habra"]
	region.BufferMeters = -1
	cfg.Regions["la-habra"] = region
	assert.Error(t, cfg.Validate())
}

func TestValidateStoreDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "redis"
	assert.Error(t, cfg.Validate())

	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""
	assert.Error(t, cfg.Validate(), "postgres requires a database url")

	cfg.Store.DatabaseURL = "postgres://localhost/stationmap"
	assert.NoError(t, cfg.Validate())

	cfg.Store.Driver = "memory"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsZeroConcurrency(t *testing.T) {
	cfg := validConfig()
	cfg.Reconcile.Concurrency = 0
	assert.Error(t, cfg.Validate())
}

func TestGeocodeRetryConfig(t *testing.T) {
	g := GeocodeConfig{MaxRetries: 2}
	assert.Equal(t, 3, g.RetryConfig().MaxAttempts, "two retries after the first attempt")

	g.MaxRetries = 0
	assert.Equal(t, 1, g.RetryConfig().MaxAttempts, "zero disables retrying")
}

func TestValidateRejectsNegativeMaxRetries(t *testing.T) {
	cfg := validConfig()
	cfg.Geocode.MaxRetries = -1
	assert.Error(t, cfg.Validate())
}

func TestRingLabel(t *testing.T) {
	region := validConfig().Regions["la-habra"]

	assert.Equal(t, "0-25 miles", region.RingLabel(0))
	assert.Equal(t, "25-50 miles", region.RingLabel(1))
	assert.Equal(t, "75-100 miles", region.RingLabel(3))
	assert.Equal(t, "outside", region.RingLabel(-1))
	assert.Equal(t, "outside", region.RingLabel(4))
}

func TestRegionNamesSorted(t *testing.T) {
	cfg := validConfig()
	cfg.Regions["brea"] = cfg.Regions["la-habra"]
	cfg.Regions["anaheim"] = cfg.Regions["la-habra"]

	assert.Equal(t, []string{"anaheim", "brea", "la-habra"}, cfg.RegionNames())
}
