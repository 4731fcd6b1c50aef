package observations

import (
	"time"

	"github.com/kjstillabower/wind-alert/internal/models"
)

// Observation is one station reading.
type Observation struct {
	Timestamp time.Time
	Speed     float64
	Direction float64
}

// HazardMatcher decides whether a reading is inside the hazard band.
type HazardMatcher interface {
	IsHazardous(speed, direction float64) bool
}

// ObservedHazards returns readings at or after since that carry both speed and
// direction and fall inside the hazard band, oldest first.
func ObservedHazards(series models.ObservationSeries, m HazardMatcher, since time.Time) []Observation {
	var out []Observation
	cutoff := since.Unix()
	for _, ts := range series.Timestamps() {
		if ts < cutoff {
			continue
		}
		speed, dir, ok := series.At(ts)
		if !ok || !m.IsHazardous(speed, dir) {
			continue
		}
		out = append(out, Observation{Timestamp: time.Unix(ts, 0).UTC(), Speed: speed, Direction: dir})
	}
	return out
}
