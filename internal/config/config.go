// Package config loads and validates pipeline configuration.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/stationmap-cli/internal/resilience"
)

const metersPerMile = 1609.344

// Config holds the full application configuration.
type Config struct {
	Region    string                  `yaml:"region" mapstructure:"region"`
	Regions   map[string]RegionConfig `yaml:"regions" mapstructure:"regions"`
	Geocode   GeocodeConfig           `yaml:"geocode" mapstructure:"geocode"`
	Reconcile ReconcileConfig         `yaml:"reconcile" mapstructure:"reconcile"`
	Store     StoreConfig             `yaml:"store" mapstructure:"store"`
	Export    ExportConfig            `yaml:"export" mapstructure:"export"`
	Log       LogConfig               `yaml:"log" mapstructure:"log"`
}

// RegionConfig describes one named region: a center point and an ascending
// set of ring thresholds in meters, with a boundary buffer width.
type RegionConfig struct {
	CenterLat    float64   `yaml:"center_lat" mapstructure:"center_lat"`
	CenterLon    float64   `yaml:"center_lon" mapstructure:"center_lon"`
	Thresholds   []float64 `yaml:"thresholds_m" mapstructure:"thresholds_m"`
	BufferMeters float64   `yaml:"buffer_m" mapstructure:"buffer_m"`
}

// RingLabel returns a human label for a ring index, in miles to match the
// downstream marketing exports. The outside sentinel maps to "outside".
func (r RegionConfig) RingLabel(ring int) string {
	if ring < 0 || ring >= len(r.Thresholds) {
		return "outside"
	}
	inner := 0.0
	if ring > 0 {
		inner = r.Thresholds[ring-1] / metersPerMile
	}
	outer := r.Thresholds[ring] / metersPerMile
	return fmt.Sprintf("%g-%g miles", round1(inner), round1(outer))
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

// GeocodeConfig configures the geocoding service boundary.
type GeocodeConfig struct {
	// UserAgent identifies this client to the provider. Required by the
	// provider's usage policy; validation fails without it.
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	MinIntervalMS int    `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries    int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// MinInterval returns the minimum delay between provider calls.
func (g GeocodeConfig) MinInterval() time.Duration {
	return time.Duration(g.MinIntervalMS) * time.Millisecond
}

// Timeout returns the per-call HTTP timeout.
func (g GeocodeConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// RetryConfig returns the retry policy for geocode calls. MaxRetries counts
// retries after the first attempt, so zero disables retrying entirely.
func (g GeocodeConfig) RetryConfig() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = g.MaxRetries + 1
	return cfg
}

// ReconcileConfig configures the address reconciliation stage.
type ReconcileConfig struct {
	Interactive     bool `yaml:"interactive" mapstructure:"interactive"`
	ForwardFallback bool `yaml:"forward_fallback" mapstructure:"forward_fallback"`
	InPlace         bool `yaml:"in_place" mapstructure:"in_place"`
	Concurrency     int  `yaml:"concurrency" mapstructure:"concurrency"`
	CoordPrecision  int  `yaml:"coord_precision" mapstructure:"coord_precision"`
}

// StoreConfig configures the geocode cache backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ExportConfig configures output locations.
type ExportConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STATIONMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("region", "la-habra")
	v.SetDefault("regions.la-habra.center_lat", 33.93)
	v.SetDefault("regions.la-habra.center_lon", -117.95)
	// 25/50/75/100 miles.
	v.SetDefault("regions.la-habra.thresholds_m", []float64{40233.6, 80467.2, 120700.8, 160934.4})
	v.SetDefault("regions.la-habra.buffer_m", 200.0)
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.min_interval_ms", 1100)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.max_retries", 2)
	v.SetDefault("reconcile.concurrency", 1)
	v.SetDefault("reconcile.coord_precision", 5)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "geocode_cache.db")
	v.SetDefault("export.output_dir", "outputs")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks run-level invariants. It fails fast, before any processing
// or side effects.
func (c *Config) Validate() error {
	if len(c.Regions) == 0 {
		return eris.New("config: no regions configured")
	}
	if c.Region != "" {
		if _, ok := c.Regions[c.Region]; !ok {
			return eris.Errorf("config: unknown region %q (have: %s)", c.Region, strings.Join(c.RegionNames(), ", "))
		}
	}
	for name, r := range c.Regions {
		if err := r.Validate(); err != nil {
			return eris.Wrapf(err, "config: region %s", name)
		}
	}
	if strings.TrimSpace(c.Geocode.UserAgent) == "" {
		return eris.New("config: geocode.user_agent is required by the provider's usage policy")
	}
	if c.Geocode.MinIntervalMS < 0 {
		return eris.New("config: geocode.min_interval_ms must be non-negative")
	}
	if c.Geocode.MaxRetries < 0 {
		return eris.New("config: geocode.max_retries must be non-negative")
	}
	switch c.Store.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for the postgres driver")
		}
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Reconcile.Concurrency < 1 {
		return eris.New("config: reconcile.concurrency must be at least 1")
	}
	return nil
}

// Validate checks a single region's invariants.
func (r RegionConfig) Validate() error {
	if r.CenterLat < -90 || r.CenterLat > 90 || r.CenterLon < -180 || r.CenterLon > 180 {
		return eris.Errorf("center (%f, %f) out of bounds", r.CenterLat, r.CenterLon)
	}
	if len(r.Thresholds) == 0 {
		return eris.New("no ring thresholds")
	}
	prev := 0.0
	for i, t := range r.Thresholds {
		if t <= prev {
			return eris.Errorf("thresholds must be strictly increasing (index %d: %g after %g)", i, t, prev)
		}
		prev = t
	}
	if r.BufferMeters < 0 {
		return eris.New("buffer width must be non-negative")
	}
	return nil
}

// RegionNames returns the configured region names, sorted.
func (c *Config) RegionNames() []string {
	names := make([]string, 0, len(c.Regions))
	for name := range c.Regions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
