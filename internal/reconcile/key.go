package reconcile

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/stationmap-cli/internal/model"
)

// CoordKey builds a cache key from a coordinate rounded to precision decimal
// places, so nearby lookups (and re-runs) share one provider call.
func CoordKey(lat, lon float64, precision int) string {
	if precision < 0 {
		precision = 0
	}
	return fmt.Sprintf("rev:%.*f,%.*f", precision, lat, precision, lon)
}

// QueryKey builds a cache key from a normalized forward-lookup query.
func QueryKey(query string) string {
	return "fwd:" + NormalizeQuery(query)
}

// NormalizeQuery canonicalizes free-text query input: NFC normalization,
// case folding, and whitespace collapsing.
func NormalizeQuery(query string) string {
	q := norm.NFC.String(query)
	q = strings.ToLower(q)
	return strings.Join(strings.Fields(q), " ")
}

// ForwardQuery assembles text-search context for a feature from its name and
// whatever address parts are already known.
func ForwardQuery(f *model.Feature) string {
	parts := []string{f.Name()}
	if f.Address.City != "" {
		parts = append(parts, f.Address.City)
	} else if city := f.Tags["addr:city"]; city != "" {
		parts = append(parts, city)
	}
	if f.Address.State != "" {
		parts = append(parts, f.Address.State)
	}
	return strings.Join(parts, ", ")
}
