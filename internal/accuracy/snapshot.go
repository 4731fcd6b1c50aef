package accuracy

import (
	"encoding/json"
	"fmt"

	"github.com/kjstillabower/wind-alert/internal/models"
)

// Snapshot maps source id to its accuracy record. A missing entry means zero counters.
type Snapshot map[string]models.SourceAccuracy

// Get returns the entry for sourceID, zero-valued with SourceID set when absent.
func (s Snapshot) Get(sourceID string) models.SourceAccuracy {
	if acc, ok := s[sourceID]; ok {
		return acc
	}
	return models.SourceAccuracy{SourceID: sourceID}
}

// Encode renders s as indented JSON. Map keys are sorted, so equal snapshots encode
// to identical bytes.
func Encode(s Snapshot) ([]byte, error) {
	if s == nil {
		s = Snapshot{}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a stored snapshot. Empty input is an empty snapshot.
func Decode(data []byte) (Snapshot, error) {
	out := Snapshot{}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	for id, acc := range out {
		if acc.SourceID == "" {
			acc.SourceID = id
		}
		if acc.AccurateCount < 0 || acc.TotalCount < 0 || acc.AccurateCount > acc.TotalCount {
			return nil, fmt.Errorf("decode snapshot: invalid counters for %s: %d/%d", id, acc.AccurateCount, acc.TotalCount)
		}
		out[id] = acc
	}
	return out, nil
}
