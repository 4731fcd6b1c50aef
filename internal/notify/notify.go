// Package notify delivers the run report to the configured recipients.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kjstillabower/wind-alert/internal/observability"
)

const DefaultCallMeBotURL = "https://api.callmebot.com/whatsapp.php"

// Recipient is one message destination. Name is only used in logs.
type Recipient struct {
	Name   string
	Phone  string
	APIKey string
}

// Complete reports whether the recipient has the credentials needed to send.
func (r Recipient) Complete() bool {
	return r.Phone != "" && r.APIKey != ""
}

// Sender delivers one text to one recipient.
type Sender interface {
	Send(ctx context.Context, r Recipient, text string) error
}

// CallMeBotSender sends WhatsApp messages through the CallMeBot GET API.
type CallMeBotSender struct {
	client  *http.Client
	baseURL string
}

// NewCallMeBotSender returns a sender posting to baseURL (DefaultCallMeBotURL when empty).
func NewCallMeBotSender(client *http.Client, baseURL string) *CallMeBotSender {
	if baseURL == "" {
		baseURL = DefaultCallMeBotURL
	}
	return &CallMeBotSender{client: client, baseURL: baseURL}
}

// Send implements Sender. Only HTTP 200 counts as delivered.
func (s *CallMeBotSender) Send(ctx context.Context, r Recipient, text string) error {
	params := url.Values{}
	params.Set("phone", r.Phone)
	params.Set("text", text)
	params.Set("apikey", r.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", observability.RedactURLError(err))
	}
	if runID := observability.RunIDFromContext(ctx); runID != "" {
		req.Header.Set("X-Correlation-ID", runID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", observability.RedactURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: HTTP %d", resp.StatusCode)
	}
	return nil
}
