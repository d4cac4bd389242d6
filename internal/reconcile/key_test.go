package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/stationmap-cli/internal/model"
)

func TestCoordKeyRounding(t *testing.T) {
	// Coordinates closer than the precision collapse to one key.
	a := CoordKey(33.931234567, -117.951234567, 5)
	b := CoordKey(33.931234999, -117.951234001, 5)
	assert.Equal(t, a, b)
	assert.Equal(t, "rev:33.93123,-117.95123", a)

	// Higher precision separates them again.
	assert.NotEqual(t,
		CoordKey(33.931234567, -117.95, 7),
		CoordKey(33.931234999, -117.95, 7),
	)
}

func TestCoordKeyNegativePrecision(t *testing.T) {
	assert.Equal(t, "rev:34,-118", CoordKey(33.93, -117.95, -3))
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "station 191, la habra, ca", NormalizeQuery("  Station   191, La Habra,\tCA "))
	assert.Equal(t, "", NormalizeQuery("   "))
}

func TestQueryKey(t *testing.T) {
	assert.Equal(t, QueryKey("Station 191, La Habra"), QueryKey("station  191, la habra"))
	assert.Equal(t, "fwd:station 191", QueryKey("Station 191"))
}

func TestForwardQuery(t *testing.T) {
	f := &model.Feature{
		Tags:    map[string]string{"name": "Station 191"},
		Address: model.Address{City: "La Habra", State: "CA"},
	}
	assert.Equal(t, "Station 191, La Habra, CA", ForwardQuery(f))

	// Falls back to the addr:city tag when the address has no city yet.
	f = &model.Feature{
		Tags: map[string]string{"name": "Station 2", "addr:city": "Brea"},
	}
	assert.Equal(t, "Station 2, Brea", ForwardQuery(f))

	// Nameless features still produce a usable query.
	f = &model.Feature{}
	assert.Equal(t, "Unnamed Fire Station", ForwardQuery(f))
}
