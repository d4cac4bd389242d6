// Package export serializes reconciled features for downstream use:
// GeoJSON for mapping tools, per-ring CSVs and an XLSX workbook for the
// marketing/CRM handoff.
package export

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/stationmap-cli/internal/config"
	"github.com/sells-group/stationmap-cli/internal/model"
)

// featureProperties flattens the observable contract onto GeoJSON properties:
// id, tags, ring, address fields, decision source, ambiguous, resolved.
func featureProperties(f *model.Feature, region config.RegionConfig) map[string]any {
	props := map[string]any{
		"id":         f.ID,
		"name":       f.Name(),
		"ring":       f.Ring,
		"ring_label": region.RingLabel(f.Ring),
		"distance_m": f.DistanceMeters,
		"status":     string(f.Decision.Status),
		"resolved":   f.Decision.Resolved(),
		"ambiguous":  f.Decision.Ambiguous,
	}
	if f.RingAmbiguous {
		props["ring_ambiguous"] = true
	}
	if f.Decision.Source != "" {
		props["source"] = string(f.Decision.Source)
	}
	if len(f.Tags) > 0 {
		props["tags"] = f.Tags
	}
	for key, val := range map[string]string{
		"house_number": f.Address.HouseNumber,
		"street":       f.Address.Street,
		"city":         f.Address.City,
		"state":        f.Address.State,
		"postal_code":  f.Address.PostalCode,
	} {
		if val != "" {
			props[key] = val
		}
	}
	return props
}

// WriteGeoJSON writes features as a GeoJSON FeatureCollection.
func WriteGeoJSON(features []*model.Feature, region config.RegionConfig, path string) error {
	fc := &geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(features)),
	}
	for _, f := range features {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         f.ID,
			Geometry:   geom.NewPointFlat(geom.XY, []float64{f.Lon, f.Lat}),
			Properties: featureProperties(f, region),
		})
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal geojson")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: mkdir for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}
