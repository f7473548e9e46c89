package remote_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/k00jax/omi/pkg/memory"
	"github.com/k00jax/omi/pkg/memory/remote"
)

// capturedRequest records what the test server received from a single Write.
type capturedRequest struct {
	Method        string
	Path          string
	Authorization string
	ContentType   string
	Body          []byte
}

// captureServer starts a test HTTP server that records the most recent request
// and replies with the given status code and response body.
func captureServer(t *testing.T, status int, responseBody string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Method = r.Method
		captured.Path = r.URL.Path
		captured.Authorization = r.Header.Get("Authorization")
		captured.ContentType = r.Header.Get("Content-Type")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read request body: %v", err)
		}
		captured.Body = body

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, responseBody)
	}))
	return srv, captured
}

// TestNew_EmptyAPIKey verifies that a client cannot be constructed without an
// API key.
func TestNew_EmptyAPIKey(t *testing.T) {
	_, err := remote.New("http://localhost:1234", "")
	if err == nil {
		t.Fatal("expected error for empty api key, got nil")
	}
}

// TestWrite_PayloadAndAuth verifies the full conversation create request:
// method, path, auth header, and every payload field.
func TestWrite_PayloadAndAuth(t *testing.T) {
	srv, captured := captureServer(t, http.StatusOK, `{"id": 1234}`)
	defer srv.Close()

	c, err := remote.New(srv.URL, "test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	rec := memory.Record{
		Text:      "buy more coffee filters",
		UserID:    "user-7",
		Category:  "note",
		CreatedAt: created,
	}
	if err := c.Write(context.Background(), rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if captured.Method != http.MethodPost {
		t.Errorf("method: got %q, want POST", captured.Method)
	}
	if captured.Path != "/create_omi_conversation" {
		t.Errorf("path: got %q, want /create_omi_conversation", captured.Path)
	}
	if captured.Authorization != "Bearer test-key" {
		t.Errorf("authorization: got %q, want %q", captured.Authorization, "Bearer test-key")
	}
	if captured.ContentType != "application/json" {
		t.Errorf("content-type: got %q, want application/json", captured.ContentType)
	}

	var payload struct {
		Text           string `json:"text"`
		UserID         string `json:"user_id"`
		TextSource     string `json:"text_source"`
		TextSourceSpec string `json:"text_source_spec"`
		StartedAt      string `json:"started_at"`
		FinishedAt     string `json:"finished_at"`
	}
	if err := json.Unmarshal(captured.Body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Text != rec.Text {
		t.Errorf("text: got %q, want %q", payload.Text, rec.Text)
	}
	if payload.UserID != "user-7" {
		t.Errorf("user_id: got %q, want %q", payload.UserID, "user-7")
	}
	if payload.TextSource != "audio_transcript" {
		t.Errorf("text_source: got %q, want %q", payload.TextSource, "audio_transcript")
	}
	if payload.TextSourceSpec != "omi_sdk_note" {
		t.Errorf("text_source_spec: got %q, want %q", payload.TextSourceSpec, "omi_sdk_note")
	}
	wantStamp := "2026-03-14T09:30:00Z"
	if payload.StartedAt != wantStamp {
		t.Errorf("started_at: got %q, want %q", payload.StartedAt, wantStamp)
	}
	if payload.FinishedAt != wantStamp {
		t.Errorf("finished_at: got %q, want %q", payload.FinishedAt, wantStamp)
	}
}

// TestWrite_GeolocationIncluded verifies that a record with a location sends
// the geolocation object.
func TestWrite_GeolocationIncluded(t *testing.T) {
	srv, captured := captureServer(t, http.StatusOK, `{"id": 1}`)
	defer srv.Close()

	c, err := remote.New(srv.URL, "test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec := memory.Record{
		Text:        "met the contractor on site",
		UserID:      "user-7",
		Category:    "note",
		Geolocation: &memory.Geolocation{Latitude: 37.7749, Longitude: -122.4194},
	}
	if err := c.Write(context.Background(), rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var payload struct {
		Geolocation *struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"geolocation"`
	}
	if err := json.Unmarshal(captured.Body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Geolocation == nil {
		t.Fatal("geolocation missing from payload")
	}
	if payload.Geolocation.Latitude != 37.7749 || payload.Geolocation.Longitude != -122.4194 {
		t.Errorf("geolocation: got (%v, %v), want (37.7749, -122.4194)",
			payload.Geolocation.Latitude, payload.Geolocation.Longitude)
	}
}

// TestWrite_GeolocationOmitted verifies that a record without a location does
// not include a geolocation key at all.
func TestWrite_GeolocationOmitted(t *testing.T) {
	srv, captured := captureServer(t, http.StatusOK, `{"id": 1}`)
	defer srv.Close()

	c, err := remote.New(srv.URL, "test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := c.Write(context.Background(), memory.Record{Text: "plain note"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(captured.Body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if _, ok := payload["geolocation"]; ok {
		t.Error("geolocation key present in payload, want omitted")
	}
}

// TestWrite_ZeroCreatedAt verifies that a zero capture time is replaced with
// the current time rather than sent as the zero timestamp.
func TestWrite_ZeroCreatedAt(t *testing.T) {
	srv, captured := captureServer(t, http.StatusOK, `{"id": 1}`)
	defer srv.Close()

	c, err := remote.New(srv.URL, "test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	before := time.Now().UTC().Add(-time.Minute)
	if err := c.Write(context.Background(), memory.Record{Text: "note"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var payload struct {
		StartedAt string `json:"started_at"`
	}
	if err := json.Unmarshal(captured.Body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	got, err := time.Parse(time.RFC3339, payload.StartedAt)
	if err != nil {
		t.Fatalf("started_at %q is not RFC3339: %v", payload.StartedAt, err)
	}
	if got.Before(before) || got.After(time.Now().UTC().Add(time.Minute)) {
		t.Errorf("started_at %v not near current time", got)
	}
}

// TestWrite_StringID verifies that a string conversation id is accepted; the
// API contract only requires the id to be present.
func TestWrite_StringID(t *testing.T) {
	srv, _ := captureServer(t, http.StatusOK, `{"id": "conv_abc123"}`)
	defer srv.Close()

	c, err := remote.New(srv.URL, "test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Write(context.Background(), memory.Record{Text: "note"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

// TestWrite_ServerError verifies that a non-200 status is reported as an error
// naming the status code.
func TestWrite_ServerError(t *testing.T) {
	srv, _ := captureServer(t, http.StatusInternalServerError, `{"error": "boom"}`)
	defer srv.Close()

	c, err := remote.New(srv.URL, "test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = c.Write(context.Background(), memory.Record{Text: "note"})
	if err == nil {
		t.Fatal("expected error for 500 response, got nil")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error %q does not name the status code", err)
	}
}

// TestWrite_MissingID verifies that a 200 response without a conversation id
// is treated as a failure.
func TestWrite_MissingID(t *testing.T) {
	srv, _ := captureServer(t, http.StatusOK, `{}`)
	defer srv.Close()

	c, err := remote.New(srv.URL, "test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Write(context.Background(), memory.Record{Text: "note"}); err == nil {
		t.Fatal("expected error for response without id, got nil")
	}
}

// TestWrite_MalformedJSON verifies that an unparseable 200 response body is
// treated as a failure.
func TestWrite_MalformedJSON(t *testing.T) {
	srv, _ := captureServer(t, http.StatusOK, `not-json`)
	defer srv.Close()

	c, err := remote.New(srv.URL, "test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Write(context.Background(), memory.Record{Text: "note"}); err == nil {
		t.Fatal("expected error for malformed response, got nil")
	}
}

// TestWrite_TrailingSlashBaseURL verifies that a base URL with a trailing
// slash still produces the correct request path.
func TestWrite_TrailingSlashBaseURL(t *testing.T) {
	srv, captured := captureServer(t, http.StatusOK, `{"id": 1}`)
	defer srv.Close()

	c, err := remote.New(srv.URL+"/", "test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Write(context.Background(), memory.Record{Text: "note"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if captured.Path != "/create_omi_conversation" {
		t.Errorf("path: got %q, want /create_omi_conversation", captured.Path)
	}
}

// TestWrite_ContextCancelled verifies that Write respects context cancellation
// rather than waiting out the full HTTP timeout.
func TestWrite_ContextCancelled(t *testing.T) {
	// stopCh signals the handler to return so httptest.Server.Close() doesn't
	// block waiting for a hung goroutine.
	stopCh := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-stopCh:
		}
	}))
	// Defers run LIFO: close(stopCh) fires first, unblocking the handler so that
	// the subsequent srv.Close() can drain connections without hanging.
	defer srv.Close()
	defer close(stopCh)

	c, err := remote.New(srv.URL, "test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := c.Write(ctx, memory.Record{Text: "note"}); err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}
