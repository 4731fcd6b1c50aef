// Package reconcile judges matured predictions against observed station readings.
package reconcile

import (
	"math"
	"time"

	"github.com/kjstillabower/wind-alert/internal/models"
)

// Defaults used when a Reconciler field is zero.
const (
	DefaultTolerance          = 30 * time.Minute
	DefaultSpeedRelTolerance  = 0.2
	DefaultDirectionTolerance = 30.0
)

// Reconciler matches a prediction to the closest observation within Tolerance.
// Directions are compared as plain numbers, so 350 and 5 are 345 degrees apart.
type Reconciler struct {
	Tolerance          time.Duration
	SpeedRelTolerance  float64
	DirectionTolerance float64
}

// New returns a Reconciler with the default tolerances.
func New() Reconciler {
	return Reconciler{
		Tolerance:          DefaultTolerance,
		SpeedRelTolerance:  DefaultSpeedRelTolerance,
		DirectionTolerance: DefaultDirectionTolerance,
	}
}

// WasAccurate reports whether the observation closest to p (within Tolerance, ties to
// the earlier one) agrees with p on both speed and direction. No usable observation
// means false.
func (r Reconciler) WasAccurate(p models.WindPrediction, series models.ObservationSeries) bool {
	r = r.withDefaults()

	obsSpeed, obsDir, ok := r.closest(p.Timestamp.Unix(), series)
	if !ok {
		return false
	}
	speedOK := math.Abs(obsSpeed-p.Speed) <= r.SpeedRelTolerance*p.Speed
	dirOK := math.Abs(obsDir-p.Direction) <= r.DirectionTolerance
	return speedOK && dirOK
}

func (r Reconciler) closest(target int64, series models.ObservationSeries) (speed, direction float64, found bool) {
	tol := int64(r.Tolerance / time.Second)
	best := int64(-1)
	for _, ts := range series.Timestamps() {
		d := ts - target
		if d < 0 {
			d = -d
		}
		if d > tol {
			continue
		}
		s, dir, ok := series.At(ts)
		if !ok {
			continue
		}
		// Timestamps are ascending, so a strict comparison keeps the earlier one on ties.
		if best < 0 || d < best {
			best = d
			speed, direction, found = s, dir, true
		}
	}
	return speed, direction, found
}

func (r Reconciler) withDefaults() Reconciler {
	if r.Tolerance <= 0 {
		r.Tolerance = DefaultTolerance
	}
	if r.SpeedRelTolerance <= 0 {
		r.SpeedRelTolerance = DefaultSpeedRelTolerance
	}
	if r.DirectionTolerance <= 0 {
		r.DirectionTolerance = DefaultDirectionTolerance
	}
	return r
}
