// Package extract streams point features out of geographic data extracts
// (OSM PBF, GeoJSON, shapefile) without materializing the full dataset.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/stationmap-cli/internal/model"
)

// Source is a pull cursor over point features. Next returns io.EOF when the
// sequence is exhausted; the sequence is finite and single-pass.
type Source interface {
	Next() (*model.Feature, error)
	Close() error
}

// ExtractionError marks corrupt or unreadable source data. It carries the
// position where parsing failed so the operator can inspect the extract.
type ExtractionError struct {
	Path    string
	Element int64 // element/record index, when the format counts elements
	Offset  int64 // byte offset, when known
	Err     error
}

func (e *ExtractionError) Error() string {
	pos := fmt.Sprintf("element %d", e.Element)
	if e.Offset > 0 {
		pos = fmt.Sprintf("byte offset %d", e.Offset)
	}
	return fmt.Sprintf("extract %s: %s at %s: %v", e.Path, "parse failed", pos, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Predicate selects features by tag. An empty Value matches key presence.
type Predicate struct {
	Key   string
	Value string
}

// ParsePredicate parses "key=value" (or bare "key") predicate syntax.
func ParsePredicate(s string) (Predicate, error) {
	key, value, _ := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if key == "" {
		return Predicate{}, eris.Errorf("extract: invalid tag predicate %q", s)
	}
	return Predicate{Key: key, Value: strings.TrimSpace(value)}, nil
}

// Match reports whether tags satisfy the predicate.
func (p Predicate) Match(tags map[string]string) bool {
	v, ok := tags[p.Key]
	if !ok {
		return false
	}
	return p.Value == "" || v == p.Value
}

// Extractor filters a Source by predicate and deduplicates feature IDs,
// keeping the first occurrence. It is itself a Source.
type Extractor struct {
	src  Source
	pred Predicate
	seen map[string]struct{}
}

// Filter wraps src with predicate filtering and dedupe.
func Filter(src Source, pred Predicate) *Extractor {
	return &Extractor{src: src, pred: pred, seen: make(map[string]struct{})}
}

// Next returns the next matching feature, discarding non-matching records
// immediately. Duplicate IDs are logged and skipped, not failed.
func (e *Extractor) Next() (*model.Feature, error) {
	for {
		f, err := e.src.Next()
		if err != nil {
			return nil, err
		}
		if !e.pred.Match(f.Tags) {
			continue
		}
		if _, dup := e.seen[f.ID]; dup {
			zap.L().Warn("duplicate feature id, keeping first occurrence",
				zap.String("id", f.ID),
			)
			continue
		}
		e.seen[f.ID] = struct{}{}
		return f, nil
	}
}

// Close implements Source.
func (e *Extractor) Close() error { return e.src.Close() }

// Open builds a Source for a single extract file, chosen by extension.
func Open(ctx context.Context, path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pbf":
		return OpenPBF(ctx, path)
	case ".geojson", ".json":
		return OpenGeoJSON(path)
	case ".shp":
		return OpenShapefile(path)
	default:
		return nil, eris.Errorf("extract: unsupported input type %q", filepath.Ext(path))
	}
}

// OpenDir builds one Source over every supported file in dir, processed in
// lexical order.
func OpenDir(ctx context.Context, dir string) (Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read dir %s", dir)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".pbf", ".geojson", ".json", ".shp":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, eris.Errorf("extract: no supported input files in %s", dir)
	}
	sort.Strings(paths)
	return &multiSource{ctx: ctx, paths: paths}, nil
}

// multiSource chains per-file sources, opening each lazily. A corrupt file
// aborts that file only: the remaining paths still stream, and the last
// per-file failure is surfaced once the sequence is exhausted so callers can
// report it.
type multiSource struct {
	ctx     context.Context
	paths   []string
	current Source
	lastErr error
}

func (m *multiSource) Next() (*model.Feature, error) {
	for {
		if m.current == nil {
			if len(m.paths) == 0 {
				if err := m.lastErr; err != nil {
					m.lastErr = nil
					return nil, err
				}
				return nil, io.EOF
			}
			src, err := Open(m.ctx, m.paths[0])
			m.paths = m.paths[1:]
			if err != nil {
				return nil, err
			}
			m.current = src
		}
		f, err := m.current.Next()
		if err == io.EOF {
			m.current.Close() //nolint:errcheck
			m.current = nil
			continue
		}
		var exErr *ExtractionError
		if errors.As(err, &exErr) {
			zap.L().Error("extract failed, continuing with next file",
				zap.String("path", exErr.Path),
				zap.Error(err),
			)
			m.lastErr = err
			m.current.Close() //nolint:errcheck
			m.current = nil
			continue
		}
		return f, err
	}
}

func (m *multiSource) Close() error {
	if m.current != nil {
		return m.current.Close()
	}
	return nil
}

// Drain pulls src to exhaustion. On extraction failure it returns the
// features produced before the failure alongside the error; the caller
// decides whether to keep them (fail-soft).
func Drain(ctx context.Context, src Source) ([]*model.Feature, error) {
	var features []*model.Feature
	for {
		if err := ctx.Err(); err != nil {
			return features, err
		}
		f, err := src.Next()
		if err == io.EOF {
			return features, nil
		}
		if err != nil {
			return features, err
		}
		features = append(features, f)
	}
}

// addressFromTags maps OSM addr:* tags onto the address fields.
func addressFromTags(tags map[string]string) model.Address {
	return model.Address{
		HouseNumber: tags["addr:housenumber"],
		Street:      tags["addr:street"],
		City:        tags["addr:city"],
		State:       tags["addr:state"],
		PostalCode:  tags["addr:postcode"],
	}
}
