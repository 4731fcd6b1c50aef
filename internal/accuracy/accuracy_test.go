package accuracy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kjstillabower/wind-alert/internal/models"
)

func TestRecordEvaluation(t *testing.T) {
	acc := models.SourceAccuracy{SourceID: "OpenWeather"}

	acc = RecordEvaluation(acc, true)
	acc = RecordEvaluation(acc, false)
	acc = RecordEvaluation(acc, true)

	assert.Equal(t, models.SourceAccuracy{SourceID: "OpenWeather", AccurateCount: 2, TotalCount: 3}, acc)
}

func TestRecordEvaluation_DoesNotMutateInput(t *testing.T) {
	orig := models.SourceAccuracy{SourceID: "x", AccurateCount: 1, TotalCount: 1}
	_ = RecordEvaluation(orig, true)
	assert.Equal(t, 1, orig.TotalCount)
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name string
		acc  models.SourceAccuracy
		want float64
	}{
		{"no evaluations", models.SourceAccuracy{}, 0},
		{"none accurate", models.SourceAccuracy{TotalCount: 4}, 0},
		{"all accurate", models.SourceAccuracy{AccurateCount: 3, TotalCount: 3}, 100},
		{"two of three", models.SourceAccuracy{AccurateCount: 2, TotalCount: 3}, 200.0 / 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Percentage(tt.acc), 1e-9)
		})
	}
}

func TestSnapshot_Get(t *testing.T) {
	s := Snapshot{"a": {SourceID: "a", AccurateCount: 1, TotalCount: 2}}
	assert.Equal(t, 2, s.Get("a").TotalCount)
	assert.Equal(t, models.SourceAccuracy{SourceID: "b"}, s.Get("b"))
}

func TestDecode(t *testing.T) {
	data := []byte(`{
  "OpenMeteo-gfs_seamless": {"model_name": "OpenMeteo-gfs_seamless", "accuracy_count": 3, "total_predictions": 5},
  "OpenWeather": {"accuracy_count": 0, "total_predictions": 0}
}`)
	s, err := Decode(data)
	assert.NoError(t, err)
	assert.Equal(t, Snapshot{
		"OpenMeteo-gfs_seamless": {SourceID: "OpenMeteo-gfs_seamless", AccurateCount: 3, TotalCount: 5},
		"OpenWeather":            {SourceID: "OpenWeather"},
	}, s)

	empty, err := Decode(nil)
	assert.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"x": {"accuracy_count": 4, "total_predictions": 3}}`))
	assert.ErrorContains(t, err, "invalid counters for x")
}

func TestEncode_SortedAndStable(t *testing.T) {
	s := Snapshot{
		"b": {SourceID: "b", AccurateCount: 1, TotalCount: 1},
		"a": {SourceID: "a"},
	}
	data, err := Encode(s)
	assert.NoError(t, err)
	assert.Equal(t, `{
  "a": {
    "model_name": "a",
    "accuracy_count": 0,
    "total_predictions": 0
  },
  "b": {
    "model_name": "b",
    "accuracy_count": 1,
    "total_predictions": 1
  }
}
`, string(data))
}
