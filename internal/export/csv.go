package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/stationmap-cli/internal/config"
	"github.com/sells-group/stationmap-cli/internal/model"
)

var csvHeader = []string{
	"id", "name", "lat", "lon", "distance_m", "ring", "ring_label",
	"house_number", "street", "city", "state", "postal_code",
	"source", "ambiguous", "resolved",
}

func csvRow(f *model.Feature, region config.RegionConfig) []string {
	return []string{
		f.ID,
		f.Name(),
		strconv.FormatFloat(f.Lat, 'f', 6, 64),
		strconv.FormatFloat(f.Lon, 'f', 6, 64),
		strconv.FormatFloat(f.DistanceMeters, 'f', 1, 64),
		strconv.Itoa(f.Ring),
		region.RingLabel(f.Ring),
		f.Address.HouseNumber,
		f.Address.Street,
		f.Address.City,
		f.Address.State,
		f.Address.PostalCode,
		string(f.Decision.Source),
		strconv.FormatBool(f.Decision.Ambiguous),
		strconv.FormatBool(f.Decision.Resolved()),
	}
}

// WriteRingCSVs writes one CSV per ring into dir, named by ring label.
// Rings with no stations produce no file. Outside-sentinel features go to
// stations_outside.csv.
func WriteRingCSVs(features []*model.Feature, region config.RegionConfig, dir string) error {
	byRing := make(map[int][]*model.Feature)
	for _, f := range features {
		byRing[f.Ring] = append(byRing[f.Ring], f)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "export: mkdir %s", dir)
	}

	for ring, group := range byRing {
		label := strings.ReplaceAll(region.RingLabel(ring), " ", "_")
		path := filepath.Join(dir, fmt.Sprintf("stations_%s.csv", label))
		if err := writeCSV(path, group, region); err != nil {
			return err
		}
		zap.L().Info("ring csv written",
			zap.String("path", path),
			zap.Int("stations", len(group)),
		)
	}
	return nil
}

// WriteCSV writes all features into a single CSV file.
func WriteCSV(features []*model.Feature, region config.RegionConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: mkdir for %s", path)
	}
	return writeCSV(path, features, region)
}

func writeCSV(path string, features []*model.Feature, region config.RegionConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, feat := range features {
		if err := w.Write(csvRow(feat, region)); err != nil {
			return eris.Wrapf(err, "export: write csv row %s", feat.ID)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "export: flush csv")
}
