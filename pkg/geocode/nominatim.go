package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/stationmap-cli/internal/resilience"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// nominatimAddress is the address block in a Nominatim jsonv2 response.
type nominatimAddress struct {
	HouseNumber string `json:"house_number"`
	Road        string `json:"road"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
	Hamlet      string `json:"hamlet"`
	State       string `json:"state"`
	Postcode    string `json:"postcode"`
}

// locality picks the best-available city-level name, in Nominatim's
// preference order.
func (a nominatimAddress) locality() string {
	for _, v := range []string{a.City, a.Town, a.Village, a.Hamlet} {
		if v != "" {
			return v
		}
	}
	return ""
}

type nominatimPlace struct {
	DisplayName string           `json:"display_name"`
	Address     nominatimAddress `json:"address"`
	Error       string           `json:"error"`
}

type nominatim struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NewNominatim creates a rate-limited Nominatim client. The userAgent string
// is required by the provider's usage policy and must identify the operator.
func NewNominatim(userAgent string, opts ...Option) (Client, error) {
	if userAgent == "" {
		return nil, eris.New("geocode: identifying user agent is required")
	}
	n := &nominatim{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(rate.Every(1100*time.Millisecond), 1),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Reverse implements Client.
func (n *nominatim) Reverse(ctx context.Context, lat, lon float64) (*Result, error) {
	params := url.Values{
		"format":         {"jsonv2"},
		"lat":            {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":            {strconv.FormatFloat(lon, 'f', -1, 64)},
		"addressdetails": {"1"},
	}
	cfg := n.retry
	cfg.OnRetry = resilience.RetryLogger("nominatim", "reverse")
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Result, error) {
		var place nominatimPlace
		if err := n.get(ctx, "/reverse", params, &place); err != nil {
			return nil, err
		}
		// Nominatim reports "Unable to geocode" inline rather than via status.
		if place.Error != "" || place.DisplayName == "" {
			return &Result{Matched: false, Source: "nominatim"}, nil
		}
		return placeToResult(place), nil
	})
}

// Forward implements Client.
func (n *nominatim) Forward(ctx context.Context, query string) (*Result, error) {
	params := url.Values{
		"format":         {"jsonv2"},
		"q":              {query},
		"addressdetails": {"1"},
		"limit":          {"1"},
	}
	cfg := n.retry
	cfg.OnRetry = resilience.RetryLogger("nominatim", "forward")
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Result, error) {
		var places []nominatimPlace
		if err := n.get(ctx, "/search", params, &places); err != nil {
			return nil, err
		}
		if len(places) == 0 {
			return &Result{Matched: false, Source: "nominatim"}, nil
		}
		return placeToResult(places[0]), nil
	})
}

// get performs one rate-limited request and decodes the JSON response into out.
func (n *nominatim) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "geocode: rate limit wait")
	}

	reqURL := n.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests {
			return resilience.NewRateLimitError(err, parseRetryAfter(resp.Header.Get("Retry-After")))
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "geocode: read body")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "geocode: parse response")
	}
	return nil
}

func placeToResult(place nominatimPlace) *Result {
	r := &Result{
		HouseNumber: place.Address.HouseNumber,
		Street:      place.Address.Road,
		City:        place.Address.locality(),
		State:       place.Address.State,
		PostalCode:  place.Address.Postcode,
		DisplayName: place.DisplayName,
		Source:      "nominatim",
		Matched:     true,
	}
	zap.L().Debug("geocode result",
		zap.String("display_name", r.DisplayName),
		zap.Bool("has_house_number", r.HouseNumber != ""),
	)
	return r
}

// parseRetryAfter handles both Retry-After forms: delta-seconds and HTTP-date.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
