// Package geocode provides reverse and forward geocoding via Nominatim.
package geocode

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/stationmap-cli/internal/resilience"
)

// Result holds the structured address returned by a provider. Matched=false
// is a definitive "no result", not an error.
type Result struct {
	HouseNumber string
	Street      string
	City        string
	State       string
	PostalCode  string
	DisplayName string
	Source      string
	Matched     bool
}

// Client is the geocoding capability boundary: reverse lookup by coordinate
// and forward lookup by free-text query. Implementations are rate-limited
// and safe for concurrent use.
type Client interface {
	Reverse(ctx context.Context, lat, lon float64) (*Result, error)
	Forward(ctx context.Context, query string) (*Result, error)
}

// Option configures the Nominatim client.
type Option func(*nominatim)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(n *nominatim) {
		n.httpClient = hc
	}
}

// WithBaseURL overrides the Nominatim endpoint (self-hosted instances, tests).
func WithBaseURL(u string) Option {
	return func(n *nominatim) {
		n.baseURL = u
	}
}

// WithMinInterval sets the minimum delay between provider calls. The limiter
// is shared by all callers of this client, so concurrent lookups still
// respect the provider's policy as one budget.
func WithMinInterval(d time.Duration) Option {
	return func(n *nominatim) {
		if d > 0 {
			n.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithRetryConfig overrides the retry policy for transient failures.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(n *nominatim) {
		n.retry = cfg
	}
}
