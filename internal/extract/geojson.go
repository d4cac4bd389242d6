package extract

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"

	"github.com/sells-group/stationmap-cli/internal/model"
)

// geojsonSource streams features out of a GeoJSON FeatureCollection using a
// token decoder, so large collections are not held in memory at once.
type geojsonSource struct {
	path    string
	file    *os.File
	dec     *json.Decoder
	started bool
	index   int64
}

// OpenGeoJSON opens a GeoJSON feature collection for streaming traversal.
// It reads both raw extracts and this pipeline's own annotated outputs.
func OpenGeoJSON(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: open geojson %s", path)
	}
	return &geojsonSource{path: path, file: f, dec: json.NewDecoder(f)}, nil
}

// start walks the decoder to the opening bracket of the "features" array,
// skipping every other top-level member.
func (s *geojsonSource) start() error {
	tok, err := s.dec.Token()
	if err != nil {
		return s.fail(err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return s.fail(eris.New("not a JSON object"))
	}

	for s.dec.More() {
		keyTok, err := s.dec.Token()
		if err != nil {
			return s.fail(err)
		}
		key, _ := keyTok.(string)
		if key != "features" {
			var skip json.RawMessage
			if err := s.dec.Decode(&skip); err != nil {
				return s.fail(err)
			}
			continue
		}
		open, err := s.dec.Token()
		if err != nil {
			return s.fail(err)
		}
		if delim, ok := open.(json.Delim); !ok || delim != '[' {
			return s.fail(eris.New(`"features" is not an array`))
		}
		return nil
	}
	return s.fail(eris.New(`no "features" member found`))
}

// Next implements Source.
func (s *geojsonSource) Next() (*model.Feature, error) {
	if !s.started {
		if err := s.start(); err != nil {
			return nil, err
		}
		s.started = true
	}

	for s.dec.More() {
		var raw json.RawMessage
		if err := s.dec.Decode(&raw); err != nil {
			return nil, s.fail(err)
		}
		s.index++

		gf, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, s.fail(err)
		}
		point, ok := gf.Geometry.(orb.Point)
		if !ok {
			continue // only point features carry stations
		}
		return s.toFeature(gf, point), nil
	}
	return nil, io.EOF
}

// toFeature restores a model.Feature from GeoJSON properties, tolerating
// foreign files that carry none of the pipeline's annotations.
func (s *geojsonSource) toFeature(gf *geojson.Feature, point orb.Point) *model.Feature {
	props := gf.Properties

	f := &model.Feature{
		Lon:  point[0],
		Lat:  point[1],
		Tags: map[string]string{},
		Ring: model.RingOutside,
		Decision: model.Decision{
			Status: model.StatusPending,
		},
	}

	f.ID = props.MustString("id", "")
	if f.ID == "" {
		if id, ok := gf.ID.(string); ok {
			f.ID = id
		} else {
			f.ID = fmt.Sprintf("%s#%d", s.path, s.index)
		}
	}

	if tags, ok := props["tags"].(map[string]any); ok {
		for k, v := range tags {
			if sv, ok := v.(string); ok {
				f.Tags[k] = sv
			}
		}
	}
	if name := props.MustString("name", ""); name != "" && f.Tags["name"] == "" {
		f.Tags["name"] = name
	}

	if ring, ok := props["ring"].(float64); ok {
		f.Ring = int(ring)
	}
	if d, ok := props["distance_m"].(float64); ok {
		f.DistanceMeters = d
	}
	if amb, ok := props["ring_ambiguous"].(bool); ok {
		f.RingAmbiguous = amb
	}

	f.Address = model.Address{
		HouseNumber: props.MustString("house_number", ""),
		Street:      props.MustString("street", ""),
		City:        props.MustString("city", ""),
		State:       props.MustString("state", ""),
		PostalCode:  props.MustString("postal_code", ""),
	}
	if f.Address.Empty() {
		// Raw OSM-style extracts keep address data in tags.
		f.Address = addressFromTags(f.Tags)
	}

	if status := props.MustString("status", ""); status != "" {
		f.Decision.Status = model.ReconcileStatus(status)
	}
	if source := props.MustString("source", ""); source != "" {
		f.Decision.Source = model.DecisionSource(source)
	}
	if amb, ok := props["ambiguous"].(bool); ok {
		f.Decision.Ambiguous = amb
	}

	return f
}

func (s *geojsonSource) fail(err error) error {
	return &ExtractionError{
		Path:    s.path,
		Element: s.index,
		Offset:  s.dec.InputOffset(),
		Err:     err,
	}
}

// Close implements Source.
func (s *geojsonSource) Close() error {
	return s.file.Close()
}
