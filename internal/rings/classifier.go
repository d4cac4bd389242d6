// Package rings assigns distance-ring indexes to features around a region
// center, with buffered boundary filtering.
package rings

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"go.uber.org/zap"

	"github.com/sells-group/stationmap-cli/internal/config"
	"github.com/sells-group/stationmap-cli/internal/model"
)

// Classifier bins features into distance rings. One earth model (spherical
// haversine) is used for every feature in a run, so thresholds stay
// comparable across the whole region.
type Classifier struct {
	center     orb.Point
	thresholds []float64
	buffer     float64
}

// New builds a Classifier from a validated region config.
func New(region config.RegionConfig) *Classifier {
	return &Classifier{
		center:     orb.Point{region.CenterLon, region.CenterLat},
		thresholds: region.Thresholds,
		buffer:     region.BufferMeters,
	}
}

// Classify annotates f with its ring index, distance, and ambiguity flag.
//
// The nominal ring is the smallest i with d <= t_i; beyond the last
// threshold the feature is outside. A distance within the buffer of a
// threshold boundary is ambiguous: the feature goes to the farther ring of
// the two, which overcounts near boundaries rather than undercounting.
func (c *Classifier) Classify(f *model.Feature) {
	d := geo.DistanceHaversine(c.center, orb.Point{f.Lon, f.Lat})
	f.DistanceMeters = d

	ring := model.RingOutside
	for i, t := range c.thresholds {
		if d <= t {
			ring = i
			break
		}
	}

	ambiguous := false
	if c.buffer > 0 {
		switch {
		case ring == model.RingOutside:
			// Just past the outermost threshold: still outside, but flagged.
			last := c.thresholds[len(c.thresholds)-1]
			ambiguous = d-last <= c.buffer
		case c.thresholds[ring]-d <= c.buffer:
			// Near the outer edge of the nominal ring: push outward.
			ambiguous = true
			if ring+1 < len(c.thresholds) {
				ring++
			} else {
				ring = model.RingOutside
			}
		case ring > 0 && d-c.thresholds[ring-1] <= c.buffer:
			// Near the inner edge: the nominal ring already is the outer
			// side of that boundary, so only the flag changes.
			ambiguous = true
		}
	}

	f.Ring = ring
	f.RingAmbiguous = ambiguous

	if ambiguous {
		zap.L().Debug("boundary-ambiguous ring assignment",
			zap.String("id", f.ID),
			zap.Float64("distance_m", d),
			zap.Int("ring", ring),
		)
	}
}

// ClassifyAll classifies every feature and returns the ambiguous count.
func (c *Classifier) ClassifyAll(features []*model.Feature) int {
	ambiguous := 0
	for _, f := range features {
		c.Classify(f)
		if f.RingAmbiguous {
			ambiguous++
		}
	}
	return ambiguous
}

// Rings returns the number of configured rings.
func (c *Classifier) Rings() int { return len(c.thresholds) }
