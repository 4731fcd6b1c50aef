package models

import (
	"sort"
	"time"
)

// WindPrediction is a single forecast timestep produced by a forecast source.
type WindPrediction struct {
	Speed     float64   `json:"speed"`     // m/s
	Direction float64   `json:"direction"` // degrees, [0,360)
	Timestamp time.Time `json:"timestamp"`
	SourceID  string    `json:"sourceId"`
}

// ObservationSeries holds station readings keyed by epoch seconds.
type ObservationSeries struct {
	Speeds     map[int64]float64
	Directions map[int64]float64
}

// NewObservationSeries returns an empty series ready for use.
func NewObservationSeries() ObservationSeries {
	return ObservationSeries{
		Speeds:     make(map[int64]float64),
		Directions: make(map[int64]float64),
	}
}

// At returns the speed and direction recorded at ts. ok is false unless both are present.
func (s ObservationSeries) At(ts int64) (speed, direction float64, ok bool) {
	speed, okS := s.Speeds[ts]
	direction, okD := s.Directions[ts]
	return speed, direction, okS && okD
}

// Timestamps returns the epoch seconds that carry a speed reading, ascending.
func (s ObservationSeries) Timestamps() []int64 {
	out := make([]int64, 0, len(s.Speeds))
	for ts := range s.Speeds {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of speed readings.
func (s ObservationSeries) Len() int {
	return len(s.Speeds)
}

// SourceAccuracy is the durable per-source accuracy record.
type SourceAccuracy struct {
	SourceID      string `json:"model_name"`
	AccurateCount int    `json:"accuracy_count"`
	TotalCount    int    `json:"total_predictions"`
}
