// Package observations reads historical wind readings from the weather station's
// history API.
package observations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/wind-alert/internal/models"
	"github.com/kjstillabower/wind-alert/internal/observability"
)

// stationTimeLayout is the start_date / end_date format of the history API.
const stationTimeLayout = "2006-01-02 15:04:05"

// APIError is a failed history call. Code is the API's own code, or -1 when the
// request never produced a usable response.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("station history error (code %d): %s", e.Code, e.Msg)
}

// StationConfig configures NewStationClient.
type StationConfig struct {
	BaseURL        string
	ApplicationKey string
	APIKey         string
	MAC            string
	// Location is the station's local zone used for start_date/end_date. Defaults to UTC.
	Location *time.Location
}

// StationClient fetches wind history for one station.
type StationClient struct {
	client *http.Client
	cfg    StationConfig
	logger *zap.Logger
}

// NewStationClient returns a client for the configured station.
func NewStationClient(client *http.Client, cfg StationConfig, logger *zap.Logger) *StationClient {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StationClient{client: client, cfg: cfg, logger: logger}
}

type historyResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type windHistory struct {
	Wind struct {
		WindSpeed struct {
			List map[string]flexFloat `json:"list"`
		} `json:"wind_speed"`
		WindDirection struct {
			List map[string]flexFloat `json:"list"`
		} `json:"wind_direction"`
	} `json:"wind"`
}

// FetchObservations returns 30-minute wind readings between start and end.
// Failures are always *APIError.
func (c *StationClient) FetchObservations(ctx context.Context, start, end time.Time) (models.ObservationSeries, error) {
	series, err := c.fetch(ctx, start, end)
	if err != nil {
		status := "api_error"
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == -1 {
			status = "transport_error"
		}
		observability.ObservationFetchTotal.WithLabelValues(status).Inc()
		return models.ObservationSeries{}, err
	}
	observability.ObservationFetchTotal.WithLabelValues("success").Inc()
	return series, nil
}

func (c *StationClient) fetch(ctx context.Context, start, end time.Time) (models.ObservationSeries, error) {
	params := url.Values{}
	params.Set("application_key", c.cfg.ApplicationKey)
	params.Set("api_key", c.cfg.APIKey)
	params.Set("mac", c.cfg.MAC)
	params.Set("start_date", start.In(c.cfg.Location).Format(stationTimeLayout))
	params.Set("end_date", end.In(c.cfg.Location).Format(stationTimeLayout))
	params.Set("cycle_type", "30min")
	params.Set("call_back", "wind")
	params.Set("wind_speed_unitid", "6")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return models.ObservationSeries{}, &APIError{Code: -1, Msg: observability.RedactURLError(err).Error()}
	}
	req.Header.Set("Accept", "application/json")
	if runID := observability.RunIDFromContext(ctx); runID != "" {
		req.Header.Set("X-Correlation-ID", runID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.ObservationSeries{}, &APIError{Code: -1, Msg: observability.RedactURLError(err).Error()}
	}
	defer resp.Body.Close()
	c.logger.Debug("station history response", zap.Int("status", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return models.ObservationSeries{}, &APIError{Code: -1, Msg: err.Error()}
	}

	var payload historyResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return models.ObservationSeries{}, &APIError{Code: -1, Msg: fmt.Sprintf("HTTP %d: %v", resp.StatusCode, err)}
	}
	if payload.Code != 0 {
		return models.ObservationSeries{}, &APIError{Code: payload.Code, Msg: payload.Msg}
	}

	return c.parseSeries(payload.Data)
}

func (c *StationClient) parseSeries(raw json.RawMessage) (models.ObservationSeries, error) {
	series := models.NewObservationSeries()

	// The API returns "data": [] when the window has no readings.
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("[]")) {
		return series, nil
	}

	var hist windHistory
	if err := json.Unmarshal(trimmed, &hist); err != nil {
		return models.ObservationSeries{}, &APIError{Code: -1, Msg: "parse wind history: " + err.Error()}
	}

	fill := func(dst map[int64]float64, src map[string]flexFloat) {
		for k, v := range src {
			ts, err := strconv.ParseInt(k, 10, 64)
			if err != nil || !v.valid {
				c.logger.Debug("skipping invalid station reading", zap.String("timestamp", k))
				continue
			}
			dst[ts] = v.value
		}
	}
	fill(series.Speeds, hist.Wind.WindSpeed.List)
	fill(series.Directions, hist.Wind.WindDirection.List)
	return series, nil
}

// flexFloat accepts a JSON number or a numeric string. Anything else decodes as invalid.
type flexFloat struct {
	value float64
	valid bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		*f = flexFloat{}
		return nil
	}
	*f = flexFloat{value: v, valid: true}
	return nil
}
