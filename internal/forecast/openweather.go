package forecast

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/kjstillabower/wind-alert/internal/models"
)

const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5/forecast"

// OpenWeatherSource reads the OpenWeatherMap 5 day / 3 hour forecast.
type OpenWeatherSource struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewOpenWeatherSource returns the OpenWeather source. An empty apiKey is rejected by
// the provider with 401, which surfaces as a FetchError.
func NewOpenWeatherSource(client *http.Client, apiKey, baseURL string) *OpenWeatherSource {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherURL
	}
	return &OpenWeatherSource{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  client,
	}
}

// ID returns "OpenWeather".
func (s *OpenWeatherSource) ID() string {
	return "OpenWeather"
}

type openWeatherResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Wind *struct {
			Speed *float64 `json:"speed"`
			Deg   *float64 `json:"deg"`
		} `json:"wind"`
	} `json:"list"`
}

// Fetch implements Source.
func (s *OpenWeatherSource) Fetch(ctx context.Context, lat, lon string) ([]models.WindPrediction, error) {
	params := url.Values{}
	params.Set("lat", lat)
	params.Set("lon", lon)
	params.Set("appid", s.apiKey)
	params.Set("units", "metric")

	var payload openWeatherResponse
	err := getJSON(ctx, s.client, s.ID(), s.baseURL, params, &payload)
	recordOutcome(s.ID(), err)
	if err != nil {
		return nil, &FetchError{Source: s.ID(), Err: err}
	}

	preds := make([]models.WindPrediction, 0, len(payload.List))
	for _, item := range payload.List {
		if item.Wind == nil || item.Wind.Speed == nil || item.Wind.Deg == nil {
			continue
		}
		preds = append(preds, models.WindPrediction{
			Speed:     *item.Wind.Speed,
			Direction: *item.Wind.Deg,
			Timestamp: time.Unix(item.Dt, 0).UTC(),
			SourceID:  s.ID(),
		})
	}
	return preds, nil
}
