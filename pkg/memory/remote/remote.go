// Package remote implements the memory write path against the Omi
// conversation API.
//
// Each [memory.Record] is posted as a conversation with
// text_source "audio_transcript"; the service responds with the created
// conversation id. The client is the primary [memory.Writer] in the
// pipeline; when it fails, internal/resilience falls back to the local
// append-only log.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/k00jax/omi/pkg/memory"
)

// DefaultBaseURL is the Omi MCP API endpoint used when no base URL is
// configured.
const DefaultBaseURL = "https://api.omi.com/mcp"

// defaultTimeout bounds a single conversation create, connection setup
// included.
const defaultTimeout = 30 * time.Second

// Client posts memory records to the Omi conversation API.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ memory.Writer = (*Client)(nil)

// Option configures a [Client].
type Option func(*Client)

// WithTimeout overrides the default 30-second HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client entirely. Useful for
// injecting custom transports in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a remote memory client. baseURL may be empty, in which case
// [DefaultBaseURL] is used. apiKey must be non-empty; it is sent as a Bearer
// token on every request.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("remote memory: api key must not be empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// conversationRequest is the JSON body for POST {base}/create_omi_conversation.
type conversationRequest struct {
	Text           string              `json:"text"`
	UserID         string              `json:"user_id"`
	TextSource     string              `json:"text_source"`
	TextSourceSpec string              `json:"text_source_spec"`
	StartedAt      string              `json:"started_at"`
	FinishedAt     string              `json:"finished_at"`
	Geolocation    *memory.Geolocation `json:"geolocation,omitempty"`
}

// Write implements [memory.Writer]. It posts rec as a new conversation and
// succeeds only on an HTTP 200 response carrying the created conversation id.
//
// The record's capture time is sent as both started_at and finished_at: a
// captured utterance is treated as an instantaneous conversation.
func (c *Client) Write(ctx context.Context, rec memory.Record) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	stamp := created.UTC().Format(time.RFC3339)

	body, err := json.Marshal(conversationRequest{
		Text:           rec.Text,
		UserID:         rec.UserID,
		TextSource:     "audio_transcript",
		TextSourceSpec: "omi_sdk_" + rec.Category,
		StartedAt:      stamp,
		FinishedAt:     stamp,
		Geolocation:    rec.Geolocation,
	})
	if err != nil {
		return fmt.Errorf("remote memory: marshal request: %w", err)
	}

	url := c.baseURL + "/create_omi_conversation"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("remote memory: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remote memory: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remote memory: unexpected status %d", resp.StatusCode)
	}

	var result struct {
		ID any `json:"id"`
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&result); err != nil {
		return fmt.Errorf("remote memory: decode response: %w", err)
	}
	if result.ID == nil {
		return fmt.Errorf("remote memory: response missing conversation id")
	}

	slog.Debug("memory: conversation created",
		"id", fmt.Sprint(result.ID),
		"category", rec.Category,
		"user_id", rec.UserID)
	return nil
}
