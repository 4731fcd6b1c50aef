package models

import (
	"slices"
	"testing"
)

func TestObservationSeries_At(t *testing.T) {
	s := NewObservationSeries()
	s.Speeds[100] = 4.2
	s.Directions[100] = 250
	s.Speeds[200] = 3.1

	speed, dir, ok := s.At(100)
	if !ok || speed != 4.2 || dir != 250 {
		t.Errorf("At(100) = %v, %v, %v", speed, dir, ok)
	}
	if _, _, ok := s.At(200); ok {
		t.Error("At(200) ok without a direction reading")
	}
	if _, _, ok := s.At(300); ok {
		t.Error("At(300) ok for a missing timestamp")
	}
}

func TestObservationSeries_Timestamps(t *testing.T) {
	s := NewObservationSeries()
	for _, ts := range []int64{300, 100, 200} {
		s.Speeds[ts] = 1
	}
	s.Directions[400] = 90

	if got := s.Timestamps(); !slices.Equal(got, []int64{100, 200, 300}) {
		t.Errorf("Timestamps() = %v", got)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
	if n := (ObservationSeries{}).Len(); n != 0 {
		t.Errorf("zero series Len() = %d", n)
	}
}
