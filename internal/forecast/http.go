package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kjstillabower/wind-alert/internal/observability"
)

// maxBodyBytes caps provider payloads; 3 days hourly is a few KB.
const maxBodyBytes = 4 << 20

// getJSON performs a single GET against baseURL with params and decodes the JSON body into out.
func getJSON(ctx context.Context, client *http.Client, sourceID, baseURL string, params url.Values, out any) error {
	start := time.Now()
	defer func() {
		observability.ForecastFetchDuration.WithLabelValues(sourceID).Observe(time.Since(start).Seconds())
	}()

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid API URL: %w", err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if runID := observability.RunIDFromContext(ctx); runID != "" {
		req.Header.Set("X-Correlation-ID", runID)
	}

	resp, err := client.Do(req)
	if err != nil {
		err = observability.RedactURLError(err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("request timeout: %w", err)
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := handleErrorResponse(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, resp.StatusCode)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

// recordOutcome counts a finished fetch under its source and outcome label.
func recordOutcome(sourceID string, err error) {
	status := "success"
	if err != nil {
		status = string(CategorizeError(err))
	}
	observability.ForecastFetchTotal.WithLabelValues(sourceID, status).Inc()
}
