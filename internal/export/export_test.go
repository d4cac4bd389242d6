package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/stationmap-cli/internal/config"
	"github.com/sells-group/stationmap-cli/internal/extract"
	"github.com/sells-group/stationmap-cli/internal/model"
)

func testRegion() config.RegionConfig {
	return config.RegionConfig{
		CenterLat:    33.93,
		CenterLon:    -117.95,
		Thresholds:   []float64{40233.6, 80467.2},
		BufferMeters: 200,
	}
}

func testFeatures() []*model.Feature {
	return []*model.Feature{
		{
			ID:             "node/1",
			Lat:            33.93,
			Lon:            -117.95,
			Tags:           map[string]string{"amenity": "fire_station", "name": "Station 191"},
			Ring:           0,
			DistanceMeters: 500,
			Address: model.Address{
				HouseNumber: "600", Street: "N Idaho St",
				City: "La Habra", State: "CA", PostalCode: "90631",
			},
			Decision: model.Decision{Status: model.StatusComplete, Source: model.SourceOriginal},
		},
		{
			ID:             "node/2",
			Lat:            34.2,
			Lon:            -117.9,
			Tags:           map[string]string{"amenity": "fire_station"},
			Ring:           1,
			RingAmbiguous:  true,
			DistanceMeters: 40300,
			Decision:       model.Decision{Status: model.StatusUnresolved},
		},
		{
			ID:             "node/3",
			Lat:            35.0,
			Lon:            -117.0,
			Ring:           model.RingOutside,
			DistanceMeters: 170000,
			Decision:       model.Decision{Status: model.StatusUnresolved},
		},
	}
}

func TestWriteGeoJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "stations.geojson")
	require.NoError(t, WriteGeoJSON(testFeatures(), testRegion(), path))

	src, err := extract.OpenGeoJSON(path)
	require.NoError(t, err)
	defer src.Close() //nolint:errcheck

	features, err := extract.Drain(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, features, 3)

	first := features[0]
	assert.Equal(t, "node/1", first.ID)
	assert.Equal(t, 0, first.Ring)
	assert.InDelta(t, 500, first.DistanceMeters, 0.01)
	assert.True(t, first.Address.Complete(), "the address survives the round trip")
	assert.Equal(t, model.StatusComplete, first.Decision.Status)

	second := features[1]
	assert.Equal(t, 1, second.Ring)
	assert.True(t, second.RingAmbiguous)

	third := features[2]
	assert.Equal(t, model.RingOutside, third.Ring)
}

func TestWriteRingCSVs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rings_csv")
	require.NoError(t, WriteRingCSVs(testFeatures(), testRegion(), dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"stations_0-25_miles.csv",
		"stations_25-50_miles.csv",
		"stations_outside.csv",
	}, names)

	f, err := os.Open(filepath.Join(dir, "stations_0-25_miles.csv"))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus one station")
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "node/1", rows[1][0])
	assert.Equal(t, "Station 191", rows[1][1])
	assert.Equal(t, "0-25 miles", rows[1][6])
	assert.Equal(t, "90631", rows[1][11])
	assert.Equal(t, "true", rows[1][14], "complete features export as resolved")
}

func TestWriteCSVSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.csv")
	require.NoError(t, WriteCSV(testFeatures(), testRegion(), path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.xlsx")
	require.NoError(t, WriteXLSX(testFeatures(), testRegion(), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestWriteGeoJSONEmptyInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.geojson")
	require.NoError(t, WriteGeoJSON(nil, testRegion(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "FeatureCollection")
}
