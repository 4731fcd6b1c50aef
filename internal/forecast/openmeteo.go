package forecast

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/wind-alert/internal/models"
)

const (
	DefaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

	// openMeteoTimeLayout is the hourly time format returned with timezone=GMT.
	openMeteoTimeLayout = "2006-01-02T15:04"
)

// DefaultOpenMeteoModels are the model variants polled when none are configured.
var DefaultOpenMeteoModels = []string{
	"best_match",
	"ecmwf_ifs04",
	"metno_nordic",
	"gfs_seamless",
	"gem_seamless",
}

// OpenMeteoSource fetches hourly 10 m wind for one Open-Meteo model variant.
type OpenMeteoSource struct {
	model   string
	baseURL string
	days    int
	client  *http.Client
	breaker *HostBreaker
	logger  *zap.Logger
}

// NewOpenMeteoSource returns a source for model. breaker may be shared between variants
// and may be nil. days is the forecast_days parameter (3 when <= 0).
func NewOpenMeteoSource(client *http.Client, baseURL, model string, days int, breaker *HostBreaker, logger *zap.Logger) *OpenMeteoSource {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	if days <= 0 {
		days = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenMeteoSource{
		model:   model,
		baseURL: baseURL,
		days:    days,
		client:  client,
		breaker: breaker,
		logger:  logger,
	}
}

// ID returns "OpenMeteo-<model>".
func (s *OpenMeteoSource) ID() string {
	return "OpenMeteo-" + s.model
}

type openMeteoResponse struct {
	Hourly struct {
		Time          []string   `json:"time"`
		WindSpeed     []*float64 `json:"windspeed_10m"`
		WindDirection []*float64 `json:"winddirection_10m"`
	} `json:"hourly"`
}

// Fetch implements Source.
func (s *OpenMeteoSource) Fetch(ctx context.Context, lat, lon string) ([]models.WindPrediction, error) {
	params := url.Values{}
	params.Set("latitude", lat)
	params.Set("longitude", lon)
	params.Set("hourly", "windspeed_10m,winddirection_10m")
	params.Set("windspeed_unit", "ms")
	params.Set("forecast_days", strconv.Itoa(s.days))
	params.Set("timezone", "GMT")
	params.Set("models", s.model)

	var payload openMeteoResponse
	err := throughBreaker(s.breaker, func() error {
		return getJSON(ctx, s.client, s.ID(), s.baseURL, params, &payload)
	})
	if err != nil {
		recordOutcome(s.ID(), err)
		return nil, &FetchError{Source: s.ID(), Err: err}
	}

	preds, err := s.normalize(payload)
	recordOutcome(s.ID(), err)
	if err != nil {
		return nil, err
	}
	return preds, nil
}

func (s *OpenMeteoSource) normalize(payload openMeteoResponse) ([]models.WindPrediction, error) {
	h := payload.Hourly
	if len(h.Time) != len(h.WindSpeed) || len(h.Time) != len(h.WindDirection) {
		return nil, &DataFormatError{
			Source: s.ID(),
			Detail: fmt.Sprintf("inconsistent data lengths: time=%d speed=%d direction=%d",
				len(h.Time), len(h.WindSpeed), len(h.WindDirection)),
		}
	}

	preds := make([]models.WindPrediction, 0, len(h.Time))
	for i, raw := range h.Time {
		if h.WindSpeed[i] == nil || h.WindDirection[i] == nil {
			continue
		}
		ts, err := time.ParseInLocation(openMeteoTimeLayout, raw, time.UTC)
		if err != nil {
			s.logger.Debug("skipping invalid data point", zap.String("source", s.ID()), zap.String("time", raw), zap.Error(err))
			continue
		}
		preds = append(preds, models.WindPrediction{
			Speed:     *h.WindSpeed[i],
			Direction: *h.WindDirection[i],
			Timestamp: ts,
			SourceID:  s.ID(),
		})
	}
	return preds, nil
}
