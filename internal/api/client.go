package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/motodash/cluster/internal/dashboard"
	"github.com/motodash/cluster/internal/model"
	"github.com/motodash/cluster/internal/telemetry"
)

const (
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
)

// ErrNotFound is returned by the client on a 404 answer.
var ErrNotFound = errors.New("not found")

// Client talks to a running dashboard server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	// initialBackoff is the first reconnect delay of Stream.
	initialBackoff time.Duration
}

// New creates a new API client.
func New(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		logger:         logger,
		initialBackoff: time.Second,
	}
}

// Healthcheck checks if the dashboard server is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// do sends body as JSON (when non-nil) and decodes the answer into out
// (when non-nil). Non-2xx answers become errors carrying the server message.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, e.Message)
		}
		return fmt.Errorf("%s %s returned status %d: %s", method, path, resp.StatusCode, e.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// MotorcycleData fetches one random telemetry snapshot.
func (c *Client) MotorcycleData(ctx context.Context) (telemetry.Record, error) {
	var r telemetry.Record
	err := c.do(ctx, http.MethodGet, "/api/motorcycle/data", nil, &r)
	return r, err
}

// Dashboard fetches the live engine view.
func (c *Client) Dashboard(ctx context.Context) (dashboard.View, error) {
	var v dashboard.View
	err := c.do(ctx, http.MethodGet, "/api/dashboard", nil, &v)
	return v, err
}

// Settings fetches the settings of userID, created with defaults if absent.
func (c *Client) Settings(ctx context.Context, userID string) (model.Settings, error) {
	var s model.Settings
	err := c.do(ctx, http.MethodGet, "/api/settings/"+url.PathEscape(userID), nil, &s)
	return s, err
}

// TripHistory fetches the most recent ended trips of userID.
func (c *Client) TripHistory(ctx context.Context, userID string, limit int) ([]model.Trip, error) {
	var trips []model.Trip
	path := fmt.Sprintf("/api/trips/history/%s?limit=%d", url.PathEscape(userID), limit)
	err := c.do(ctx, http.MethodGet, path, nil, &trips)
	return trips, err
}

// SendAction dispatches a user action on the server's engine.
func (c *Client) SendAction(ctx context.Context, command string, args ...string) error {
	return c.do(ctx, http.MethodPost, "/api/dashboard/actions/"+url.PathEscape(command),
		actionRequest{Args: args}, nil)
}

// Layout fetches the raw layout blob stored under key.
func (c *Client) Layout(ctx context.Context, key string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.do(ctx, http.MethodGet, "/api/layout/"+url.PathEscape(key), nil, &raw)
	return raw, err
}

// SaveLayout replaces the layout blob stored under key.
func (c *Client) SaveLayout(ctx context.Context, key string, data json.RawMessage) error {
	return c.do(ctx, http.MethodPut, "/api/layout/"+url.PathEscape(key), data, nil)
}

// ResetLayout deletes the layout stored under key.
func (c *Client) ResetLayout(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/api/layout/"+url.PathEscape(key), nil, nil)
}

func (c *Client) streamURL() (string, error) {
	u, err := url.Parse(c.baseURL + "/api/telemetry/stream")
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

// Stream calls fn with every record pushed by the server until ctx is
// cancelled. Dropped connections are re-dialled with exponential backoff;
// Stream gives up after maxReconnect consecutive failures.
func (c *Client) Stream(ctx context.Context, fn func(telemetry.Record)) error {
	wsURL, err := c.streamURL()
	if err != nil {
		return err
	}

	backoff := c.initialBackoff
	failures := 0
	for {
		conn, _, err := ws.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err == nil {
			failures = 0
			backoff = c.initialBackoff
			err = c.readStream(ctx, conn, fn)
		}
		if ctx.Err() != nil {
			return nil
		}

		failures++
		if failures > maxReconnect {
			return fmt.Errorf("stream reconnect failed after %d attempts: %w", maxReconnect, err)
		}
		c.logger.Warn("Stream interrupted, reconnecting", "attempt", failures, "backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Client) readStream(ctx context.Context, conn *ws.Conn, fn func(telemetry.Record)) error {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(writeWait))
		_ = conn.Close()
	})
	defer stop()
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("stream read: %w", err)
		}
		var r telemetry.Record
		if err := json.Unmarshal(msg, &r); err != nil {
			c.logger.Debug("Skipping malformed stream message", "error", err)
			continue
		}
		fn(r)
	}
}
