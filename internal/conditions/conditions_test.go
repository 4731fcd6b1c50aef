package conditions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatcher_IsHazardous_BoundEdges(t *testing.T) {
	m := NewMatcher(DefaultThresholds, DefaultZones)

	tests := []struct {
		name      string
		speed     float64
		direction float64
		want      bool
	}{
		{"speed at min", 3.0, 260, true},
		{"speed at max", 5.0, 260, true},
		{"direction at min", 4.0, 240, true},
		{"direction at max", 4.0, 300, true},
		{"all corners", 3.0, 300, true},
		{"speed below min", 2.0, 260, false},
		{"speed above max", 6.0, 260, false},
		{"direction below min", 4.0, 239, false},
		{"direction above max", 4.0, 301, false},
		{"calm", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.IsHazardous(tt.speed, tt.direction))
		})
	}
}

func TestMatcher_ClassifyZone(t *testing.T) {
	m := NewMatcher(DefaultThresholds, DefaultZones)

	assert.Equal(t, "school", m.ClassifyZone(285))
	assert.Equal(t, "school", m.ClassifyZone(270), "boundary belongs to the first zone")
	assert.Equal(t, "school", m.ClassifyZone(300))
	assert.Equal(t, "plaza", m.ClassifyZone(240))
	assert.Equal(t, "plaza", m.ClassifyZone(269.5))
	assert.Equal(t, "direction 180°", m.ClassifyZone(180))
}

func TestMatcher_ClassifyZone_CustomZones(t *testing.T) {
	m := NewMatcher(DefaultThresholds, []Zone{{Name: "north beach", Min: 0, Max: 45}})

	assert.Equal(t, "north beach", m.ClassifyZone(10))
	assert.Equal(t, "direction 250°", m.ClassifyZone(250))
}

func TestNewMatcher_CopiesZones(t *testing.T) {
	zones := []Zone{{Name: "a", Min: 0, Max: 10}}
	m := NewMatcher(DefaultThresholds, zones)
	zones[0].Name = "mutated"

	assert.Equal(t, "a", m.ClassifyZone(5))
}
