package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/stationmap-cli/internal/resilience"
)

const reverseBody = `{
	"display_name": "600, North Idaho Street, La Habra, Orange County, CA, 90631, United States",
	"address": {
		"house_number": "600",
		"road": "North Idaho Street",
		"city": "La Habra",
		"state": "California",
		"postcode": "90631"
	}
}`

func fastOpts(serverURL string) []Option {
	return []Option{
		WithBaseURL(serverURL),
		WithMinInterval(time.Millisecond),
		WithRetryConfig(resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
			JitterFraction: 0,
			RateLimitFloor: time.Millisecond,
		}),
	}
}

func TestNewNominatimRequiresUserAgent(t *testing.T) {
	_, err := NewNominatim("")
	assert.Error(t, err)
}

func TestReverseSuccess(t *testing.T) {
	var gotUA atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "33.93", r.URL.Query().Get("lat"))
		fmt.Fprint(w, reverseBody)
	}))
	defer server.Close()

	client, err := NewNominatim("stationmap-test/1.0", fastOpts(server.URL)...)
	require.NoError(t, err)

	result, err := client.Reverse(context.Background(), 33.93, -117.95)
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, "600", result.HouseNumber)
	assert.Equal(t, "North Idaho Street", result.Street)
	assert.Equal(t, "La Habra", result.City)
	assert.Equal(t, "California", result.State)
	assert.Equal(t, "90631", result.PostalCode)
	assert.Equal(t, "nominatim", result.Source)
	assert.Equal(t, "stationmap-test/1.0", gotUA.Load())
}

func TestReverseUnableToGeocodeIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"error": "Unable to geocode"}`)
	}))
	defer server.Close()

	client, err := NewNominatim("stationmap-test/1.0", fastOpts(server.URL)...)
	require.NoError(t, err)

	result, err := client.Reverse(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestReverseLocalityFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"display_name": "Fire Station, Some Town, CA",
			"address": {"town": "Some Town", "state": "California"}
		}`)
	}))
	defer server.Close()

	client, err := NewNominatim("stationmap-test/1.0", fastOpts(server.URL)...)
	require.NoError(t, err)

	result, err := client.Reverse(context.Background(), 33.93, -117.95)
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, "Some Town", result.City, "town stands in when no city is present")
}

func TestForwardSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Station 191, La Habra", r.URL.Query().Get("q"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		fmt.Fprintf(w, "[%s]", reverseBody)
	}))
	defer server.Close()

	client, err := NewNominatim("stationmap-test/1.0", fastOpts(server.URL)...)
	require.NoError(t, err)

	result, err := client.Forward(context.Background(), "Station 191, La Habra")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, "La Habra", result.City)
}

func TestForwardEmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client, err := NewNominatim("stationmap-test/1.0", fastOpts(server.URL)...)
	require.NoError(t, err)

	result, err := client.Forward(context.Background(), "nowhere at all")
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestReverseRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, reverseBody)
	}))
	defer server.Close()

	client, err := NewNominatim("stationmap-test/1.0", fastOpts(server.URL)...)
	require.NoError(t, err)

	result, err := client.Reverse(context.Background(), 33.93, -117.95)
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, int32(3), calls.Load())
}

func TestReverseRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, reverseBody)
	}))
	defer server.Close()

	client, err := NewNominatim("stationmap-test/1.0", fastOpts(server.URL)...)
	require.NoError(t, err)

	result, err := client.Reverse(context.Background(), 33.93, -117.95)
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, int32(2), calls.Load())
}

func TestReverseGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewNominatim("stationmap-test/1.0", fastOpts(server.URL)...)
	require.NoError(t, err)

	_, err = client.Reverse(context.Background(), 33.93, -117.95)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestReverseDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client, err := NewNominatim("stationmap-test/1.0", fastOpts(server.URL)...)
	require.NoError(t, err)

	_, err = client.Reverse(context.Background(), 33.93, -117.95)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "4xx other than 429 is permanent")
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-1"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))

	// HTTP-date form.
	future := time.Now().Add(90 * time.Second).UTC().Format(http.TimeFormat)
	got := parseRetryAfter(future)
	assert.Greater(t, got, 80*time.Second)
	assert.LessOrEqual(t, got, 90*time.Second)

	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	assert.Equal(t, time.Duration(0), parseRetryAfter(past))
}

func TestRetryConfigLimitsAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewNominatim("stationmap-test/1.0",
		WithBaseURL(server.URL),
		WithMinInterval(time.Millisecond),
		WithRetryConfig(resilience.RetryConfig{
			MaxAttempts:    1,
			InitialBackoff: time.Millisecond,
			JitterFraction: 0,
			RateLimitFloor: time.Millisecond,
		}),
	)
	require.NoError(t, err)

	_, err = client.Reverse(context.Background(), 33.93, -117.95)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "a single-attempt policy never retries")
}

func TestReverseContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewNominatim("stationmap-test/1.0", fastOpts(server.URL)...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Reverse(ctx, 33.93, -117.95)
	assert.Error(t, err)
}
