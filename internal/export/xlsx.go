package export

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/stationmap-cli/internal/config"
	"github.com/sells-group/stationmap-cli/internal/model"
)

// WriteXLSX writes one workbook with a sheet per ring, for the CRM handoff.
func WriteXLSX(features []*model.Feature, region config.RegionConfig, path string) error {
	byRing := make(map[int][]*model.Feature)
	for _, f := range features {
		byRing[f.Ring] = append(byRing[f.Ring], f)
	}

	rings := make([]int, 0, len(byRing))
	for ring := range byRing {
		rings = append(rings, ring)
	}
	sort.Ints(rings)
	// The outside sentinel sorts first; list it last in the workbook.
	if len(rings) > 0 && rings[0] == model.RingOutside {
		rings = append(rings[1:], model.RingOutside)
	}

	file := xlsx.NewFile()
	for _, ring := range rings {
		sheet, err := file.AddSheet(region.RingLabel(ring))
		if err != nil {
			return eris.Wrapf(err, "export: add sheet for ring %d", ring)
		}

		header := sheet.AddRow()
		for _, col := range csvHeader {
			header.AddCell().SetString(col)
		}
		for _, f := range byRing[ring] {
			row := sheet.AddRow()
			for _, val := range csvRow(f, region) {
				row.AddCell().SetString(val)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: mkdir for %s", path)
	}
	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
