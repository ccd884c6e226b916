// Package twilio is a minimal REST client for placing outbound calls.
// Only the call-creation endpoint is covered; call flow and capture
// arrive via webhooks handled elsewhere.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	AccountSID string        `split_words:"true" required:"true"`
	AuthToken  string        `split_words:"true" required:"true"`
	FromNumber string        `split_words:"true" required:"true"`
	BaseURL    string        `split_words:"true" default:"https://api.twilio.com/2010-04-01"`
	Timeout    time.Duration `split_words:"true" default:"15s"`
}

type Client struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	accountSID := strings.TrimSpace(cfg.AccountSID)
	if accountSID == "" {
		return nil, errors.New("twilio account sid is required")
	}
	authToken := strings.TrimSpace(cfg.AuthToken)
	if authToken == "" {
		return nil, errors.New("twilio auth token is required")
	}
	fromNumber := strings.TrimSpace(cfg.FromNumber)
	if fromNumber == "" {
		return nil, errors.New("twilio from number is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid twilio base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

type callResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// PlaceCall creates an outbound call that fetches its voice flow from
// flowURL. Returns the provider-assigned call sid used to correlate
// the captured result.
func (c *Client) PlaceCall(ctx context.Context, to string, flowURL string) (string, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return "", errors.New("destination number is required")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.fromNumber)
	form.Set("Url", flowURL)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build call request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute call request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read call response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("twilio status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed callResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode call response: %w", err)
	}
	if strings.TrimSpace(parsed.SID) == "" {
		return "", errors.New("call response missing sid")
	}

	return parsed.SID, nil
}
