package smoketest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/arena/pkg/logger"
)

const idempotencyHeader = "Idempotency-Key"

// Client wraps http.Client with JSON helpers for the arena API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client with timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

// do sends one request. A status other than want becomes a *StatusError;
// out, when non-nil, receives the decoded body.
func (c *Client) do(ctx context.Context, method, path string, body any, header http.Header, want int, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(ctx, "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != want {
		var e struct {
			Code string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Code: e.Code}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// Health calls /health.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, http.StatusOK, &out); err != nil {
		return err
	}
	if out.Status != "ok" {
		return checkFailed("health status %q", out.Status)
	}
	return nil
}

// DBCheck calls /db-check.
func (c *Client) DBCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/db-check", nil, nil, http.StatusOK, nil)
}

// AddEntrant registers a boxer.
func (c *Client) AddEntrant(ctx context.Context, b Boxer) (Entrant, error) {
	var e Entrant
	err := c.do(ctx, http.MethodPost, "/entrants", b, nil, http.StatusCreated, &e)
	return e, err
}

// GetEntrant fetches one entrant by id.
func (c *Client) GetEntrant(ctx context.Context, id int64) (Entrant, error) {
	var e Entrant
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/entrants/%d", id), nil, nil, http.StatusOK, &e)
	return e, err
}

// GetEntrantByName fetches the live entrant with this name.
func (c *Client) GetEntrantByName(ctx context.Context, name string) (Entrant, error) {
	var e Entrant
	err := c.do(ctx, http.MethodGet, "/entrants/by-name/"+url.PathEscape(name), nil, nil, http.StatusOK, &e)
	return e, err
}

// DeleteEntrant soft-deletes an entrant.
func (c *Client) DeleteEntrant(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/entrants/%d", id), nil, nil, http.StatusNoContent, nil)
}

// ListEntrants lists live entrants.
func (c *Client) ListEntrants(ctx context.Context) ([]Entrant, error) {
	var out []Entrant
	err := c.do(ctx, http.MethodGet, "/entrants", nil, nil, http.StatusOK, &out)
	return out, err
}

// ClearArena empties the arena.
func (c *Client) ClearArena(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/arena", nil, nil, http.StatusNoContent, nil)
}

// EnterByID places an entrant in the arena by id.
func (c *Client) EnterByID(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, "/arena/entrants", map[string]int64{"id": id}, nil, http.StatusOK, nil)
}

// EnterByName places an entrant in the arena by name.
func (c *Client) EnterByName(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/arena/entrants", map[string]string{"name": name}, nil, http.StatusOK, nil)
}

// Arena returns the arena state.
func (c *Client) Arena(ctx context.Context) (Arena, error) {
	var a Arena
	err := c.do(ctx, http.MethodGet, "/arena", nil, nil, http.StatusOK, &a)
	return a, err
}

// Fight resolves the arena under an idempotency key.
func (c *Client) Fight(ctx context.Context, key string) (Fight, error) {
	var f Fight
	h := http.Header{}
	h.Set(idempotencyHeader, key)
	err := c.do(ctx, http.MethodPost, "/arena/fight", nil, h, http.StatusOK, &f)
	return f, err
}

// Leaderboard fetches the ranking by metric including zero-fight entrants.
func (c *Client) Leaderboard(ctx context.Context, metric string) ([]Standing, error) {
	var out []Standing
	err := c.do(ctx, http.MethodGet, "/leaderboard?include_zero=true&sort="+metric, nil, nil, http.StatusOK, &out)
	return out, err
}

// IsStatus reports whether err is a *StatusError with this status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
