package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/stationmap-cli/internal/model"
)

// pbfSource streams nodes out of an OSM .pbf extract. Ways and relations are
// skipped at the decoder, so memory stays bounded by one block at a time.
type pbfSource struct {
	path    string
	file    *os.File
	scanner *osmpbf.Scanner
	nodes   int64
}

// OpenPBF opens an OSM PBF extract for streaming node traversal.
func OpenPBF(ctx context.Context, path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: open pbf %s", path)
	}

	scanner := osmpbf.New(ctx, f, runtime.GOMAXPROCS(-1))
	scanner.SkipWays = true
	scanner.SkipRelations = true

	return &pbfSource{path: path, file: f, scanner: scanner}, nil
}

// Next implements Source.
func (s *pbfSource) Next() (*model.Feature, error) {
	for s.scanner.Scan() {
		node, ok := s.scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		s.nodes++

		tags := node.Tags.Map()
		return &model.Feature{
			ID:      fmt.Sprintf("node/%d", int64(node.ID)),
			Lat:     node.Lat,
			Lon:     node.Lon,
			Tags:    tags,
			Ring:    model.RingOutside,
			Address: addressFromTags(tags),
			Decision: model.Decision{
				Status: model.StatusPending,
			},
		}, nil
	}

	if err := s.scanner.Err(); err != nil {
		zap.L().Error("pbf scan failed",
			zap.String("path", s.path),
			zap.Int64("nodes_seen", s.nodes),
			zap.Error(err),
		)
		return nil, &ExtractionError{Path: s.path, Element: s.nodes, Err: err}
	}
	return nil, io.EOF
}

// Close implements Source.
func (s *pbfSource) Close() error {
	s.scanner.Close() //nolint:errcheck
	return s.file.Close()
}
