// Package conditions decides whether a wind reading falls inside the hazard band
// and names the direction zone it blows from.
package conditions

import "fmt"

// Thresholds are inclusive bounds of the hazard band.
type Thresholds struct {
	SpeedMin     float64 `yaml:"speed_min" validate:"gte=0"`
	SpeedMax     float64 `yaml:"speed_max" validate:"gtefield=SpeedMin"`
	DirectionMin float64 `yaml:"direction_min" validate:"gte=0,lte=360"`
	DirectionMax float64 `yaml:"direction_max" validate:"gtefield=DirectionMin,lte=360"`
}

// DefaultThresholds is the 3-5 m/s south-west to west band.
var DefaultThresholds = Thresholds{
	SpeedMin:     3.0,
	SpeedMax:     5.0,
	DirectionMin: 240,
	DirectionMax: 300,
}

// Zone is a named, inclusive direction range.
type Zone struct {
	Name string  `yaml:"name" validate:"required"`
	Min  float64 `yaml:"min" validate:"gte=0,lte=360"`
	Max  float64 `yaml:"max" validate:"gtefield=Min,lte=360"`
}

// DefaultZones splits the hazard band into its northern and southern parts.
// Zones are evaluated in order, so 270 belongs to "school".
var DefaultZones = []Zone{
	{Name: "school", Min: 270, Max: 300},
	{Name: "plaza", Min: 240, Max: 270},
}

// Matcher applies the configured thresholds and zones. Safe for concurrent use.
type Matcher struct {
	thresholds Thresholds
	zones      []Zone
}

// NewMatcher returns a Matcher. A nil zones slice disables zone naming.
func NewMatcher(t Thresholds, zones []Zone) *Matcher {
	z := make([]Zone, len(zones))
	copy(z, zones)
	return &Matcher{thresholds: t, zones: z}
}

// Thresholds returns the configured hazard band.
func (m *Matcher) Thresholds() Thresholds {
	return m.thresholds
}

// IsHazardous reports whether speed and direction both fall inside the band.
func (m *Matcher) IsHazardous(speed, direction float64) bool {
	t := m.thresholds
	return t.SpeedMin <= speed && speed <= t.SpeedMax &&
		t.DirectionMin <= direction && direction <= t.DirectionMax
}

// ClassifyZone returns the first zone containing direction, or a generic label.
func (m *Matcher) ClassifyZone(direction float64) string {
	for _, z := range m.zones {
		if z.Min <= direction && direction <= z.Max {
			return z.Name
		}
	}
	return fmt.Sprintf("direction %.0f°", direction)
}
