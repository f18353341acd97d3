package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/anchor/internal/ledger"
	"github.com/claude/anchor/internal/models"
)

// HTTPClient implements DataSource by calling the anchord REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// the stats live in a running daemon (possibly reached over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

func getJSON[T any](ctx context.Context, c *HTTPClient, path string, params url.Values, what string) (T, error) {
	var v T
	body, err := c.get(ctx, path, params)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("httpclient: decode %s: %w", what, err)
	}
	return v, nil
}

func (c *HTTPClient) Stats(ctx context.Context) (models.UserStats, error) {
	return getJSON[models.UserStats](ctx, c, "/api/v1/stats", nil, "stats")
}

func (c *HTTPClient) History(ctx context.Context, limit int) ([]models.SessionLog, error) {
	var params url.Values
	if limit > 0 {
		params = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	return getJSON[[]models.SessionLog](ctx, c, "/api/v1/history", params, "history")
}

func (c *HTTPClient) Rank(ctx context.Context) (ledger.RankInfo, error) {
	return getJSON[ledger.RankInfo](ctx, c, "/api/v1/rank", nil, "rank")
}

func (c *HTTPClient) GoalProgress(ctx context.Context) (models.GoalProgress, error) {
	return getJSON[models.GoalProgress](ctx, c, "/api/v1/goal/today", nil, "goal progress")
}

func (c *HTTPClient) Weekly(ctx context.Context) (models.WeeklySummary, error) {
	return getJSON[models.WeeklySummary](ctx, c, "/api/v1/summary/weekly", nil, "weekly summary")
}
