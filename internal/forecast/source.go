// Package forecast normalizes forecast provider responses into wind predictions.
package forecast

import (
	"context"
	"errors"
	"fmt"

	"github.com/kjstillabower/wind-alert/internal/models"
)

// Source is one provider/model combination.
type Source interface {
	// ID is the stable, human-readable source id stamped on every prediction.
	ID() string
	// Fetch returns the source's hourly (or coarser) wind predictions for the point.
	// Failures are *FetchError or *DataFormatError.
	Fetch(ctx context.Context, lat, lon string) ([]models.WindPrediction, error)
}

var (
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
	ErrCircuitOpen     = errors.New("circuit breaker open")
)

// FetchError reports that a source could not be reached or answered with a failure.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch forecast from %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Category returns the metric label for the underlying failure.
func (e *FetchError) Category() ErrorCategory {
	return CategorizeError(e.Err)
}

// DataFormatError reports an internally inconsistent provider payload.
type DataFormatError struct {
	Source string
	Detail string
}

func (e *DataFormatError) Error() string {
	return fmt.Sprintf("invalid data format from %s: %s", e.Source, e.Detail)
}
