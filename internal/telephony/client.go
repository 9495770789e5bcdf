package telephony

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

	"github.com/rs/zerolog/log"
)

// ErrMissingCredential is returned when the client is constructed without
// an account SID or auth token.
var ErrMissingCredential = errors.New("telephony: missing account SID or auth token")

const defaultAPIBase = "https://api.twilio.com"

// Config holds Twilio REST credentials.
type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	Timeout    time.Duration

	// BaseURL overrides the Twilio API endpoint. Tests point this at a
	// local server.
	BaseURL string
}

// Client calls the Twilio REST API to create outbound calls and update
// in-progress ones.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a Twilio REST client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, ErrMissingCredential
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAPIBase
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// CreateCall initiates an outbound call to the given number. When the call
// is answered the provider fetches TwiML from webhookURL.
func (c *Client) CreateCall(ctx context.Context, toNumber, webhookURL string) (string, error) {
	form := url.Values{}
	form.Set("To", toNumber)
	form.Set("From", c.cfg.FromNumber)
	form.Set("Url", webhookURL)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", c.cfg.BaseURL, c.cfg.AccountSID)
	body, err := c.post(ctx, endpoint, form)
	if err != nil {
		return "", err
	}

	var created struct {
		Sid string `json:"sid"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("telephony: decode response: %w", err)
	}

	sid := created.Sid
	log.Info().
		Str("component", "telephony").
		Str("callSid", sid).
		Str("to", toNumber).
		Msg("Outbound call created")
	return sid, nil
}

// UpdateCallMarkup replaces the in-progress call's instruction document,
// interrupting whatever the call is currently doing.
func (c *Client) UpdateCallMarkup(ctx context.Context, callSID, markup string) error {
	form := url.Values{}
	form.Set("Twiml", markup)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls/%s.json", c.cfg.BaseURL, c.cfg.AccountSID, callSID)
	if _, err := c.post(ctx, endpoint, form); err != nil {
		return err
	}

	log.Info().
		Str("component", "telephony").
		Str("callSid", callSID).
		Msg("Live call updated")
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("telephony: build request: %w", err)
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telephony: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("telephony: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("telephony: provider returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
