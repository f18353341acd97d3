package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/anchor/internal/ingest"
	"github.com/claude/anchor/internal/motion"
)

const maxAttempts = 3

// Client sends trace data to the anchord server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the anchord server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		backoff: time.Second,
	}
}

// SendMotion POSTs a batch of samples to the motion ingest endpoint.
func (c *Client) SendMotion(ctx context.Context, samples []motion.Sample) (*ingest.Result, error) {
	payload := ingest.MotionPayload{Samples: make([]ingest.SamplePayload, len(samples))}
	for i, s := range samples {
		payload.Samples[i] = ingest.SamplePayload{X: s.X, Y: s.Y, Z: s.Z}
	}
	var result ingest.Result
	if err := c.post(ctx, "/api/v1/ingest/motion", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendVisibility POSTs a visibility change.
func (c *Client) SendVisibility(ctx context.Context, hidden bool) (*ingest.Result, error) {
	var result ingest.Result
	if err := c.post(ctx, "/api/v1/ingest/visibility", ingest.VisibilityPayload{Hidden: hidden}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartSession starts a session of the given minutes so replayed samples
// have a listener.
func (c *Client) StartSession(ctx context.Context, minutes, sessionType string) error {
	body := map[string]string{"duration": minutes, "session_type": sessionType}
	return c.post(ctx, "/api/v1/session/start", body, nil)
}

// post sends v as JSON and decodes the response into out when non-nil.
// Network errors and 5xx responses are retried up to 3 times with
// exponential backoff; other non-200 responses fail immediately.
func (c *Client) post(ctx context.Context, path string, v, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff << (attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("decoding %s response: %w", path, err)
			}
			return nil
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%s failed (status %d): %s", path, resp.StatusCode, bytes.TrimSpace(body))
		default:
			return fmt.Errorf("%s rejected (status %d): %s", path, resp.StatusCode, bytes.TrimSpace(body))
		}
	}

	return fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}
