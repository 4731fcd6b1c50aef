// Package accuracy keeps per-source prediction accuracy counters and persists them
// as one JSON snapshot.
package accuracy

import "github.com/kjstillabower/wind-alert/internal/models"

// RecordEvaluation returns acc with one more evaluated prediction.
func RecordEvaluation(acc models.SourceAccuracy, wasAccurate bool) models.SourceAccuracy {
	acc.TotalCount++
	if wasAccurate {
		acc.AccurateCount++
	}
	return acc
}

// Percentage returns 100*accurate/total, or 0 when nothing was evaluated.
func Percentage(acc models.SourceAccuracy) float64 {
	if acc.TotalCount == 0 {
		return 0
	}
	return 100 * float64(acc.AccurateCount) / float64(acc.TotalCount)
}
