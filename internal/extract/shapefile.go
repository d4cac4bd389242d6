package extract

import (
	"fmt"
	"io"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/stationmap-cli/internal/model"
)

// shpSource iterates point records in a shapefile. Attribute columns become
// tags; non-point shapes are skipped and counted.
type shpSource struct {
	path    string
	reader  *shp.Reader
	fields  []string
	index   int64
	skipped int
}

// OpenShapefile opens a point shapefile for streaming traversal.
func OpenShapefile(path string) (Source, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: open shapefile %s", path)
	}

	fields := make([]string, len(reader.Fields()))
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		fields[i] = strings.ToLower(name)
	}

	return &shpSource{path: path, reader: reader, fields: fields}, nil
}

// Next implements Source.
func (s *shpSource) Next() (*model.Feature, error) {
	for s.reader.Next() {
		n, shape := s.reader.Shape()
		s.index = int64(n)

		point, ok := shape.(*shp.Point)
		if !ok {
			s.skipped++
			continue
		}

		tags := make(map[string]string, len(s.fields))
		for i, name := range s.fields {
			val := strings.TrimSpace(strings.TrimRight(s.reader.Attribute(i), "\x00"))
			if val != "" {
				tags[name] = val
			}
		}

		id := tags["id"]
		if id == "" {
			id = fmt.Sprintf("%s#%d", s.path, n)
		}

		return &model.Feature{
			ID:   id,
			Lat:  point.Y,
			Lon:  point.X,
			Tags: tags,
			Ring: model.RingOutside,
			Address: model.Address{
				HouseNumber: tags["house_num"],
				Street:      tags["street"],
				City:        tags["city"],
				State:       tags["state"],
				PostalCode:  tags["zip"],
			},
			Decision: model.Decision{
				Status: model.StatusPending,
			},
		}, nil
	}

	if err := s.reader.Err(); err != nil {
		return nil, &ExtractionError{Path: s.path, Element: s.index, Err: err}
	}
	if s.skipped > 0 {
		zap.L().Debug("skipped non-point shapefile records",
			zap.String("path", s.path),
			zap.Int("skipped", s.skipped),
		)
		s.skipped = 0
	}
	return nil, io.EOF
}

// Close implements Source.
func (s *shpSource) Close() error {
	return s.reader.Close()
}
