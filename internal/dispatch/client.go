package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"bcast/internal/model"
	logx "bcast/pkg/logx"
)

// ClientConfig configures the pull side.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerSec int
}

// APIError is a non-2xx engine response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("engine returned %d", e.Status)
	}
	return fmt.Sprintf("engine returned %d: %s", e.Status, e.Body)
}

// IsNotFound reports whether err is an engine 404.
func IsNotFound(err error) bool {
	var api *APIError
	return errors.As(err, &api) && api.Status == http.StatusNotFound
}

// Client talks to the engine's HTTP API. Safe for concurrent use.
type Client struct {
	mu      sync.Mutex
	base    string
	http    *http.Client
	limiter *rate.Limiter

	log logx.Logger
}

func NewClient(cfg ClientConfig, log logx.Logger) *Client {
	c := &Client{log: log}
	c.Apply(cfg)
	return c
}

// Apply swaps the client configuration at runtime.
func (c *Client) Apply(cfg ClientConfig) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	c.mu.Lock()
	c.base = strings.TrimRight(cfg.BaseURL, "/")
	c.http = &http.Client{Timeout: timeout}
	c.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	c.mu.Unlock()
}

// Create submits a new broadcast definition and returns the engine id.
func (c *Client) Create(ctx context.Context, sub model.Submission) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/broadcasts", sub, &out); err != nil {
		return "", fmt.Errorf("create broadcast: %w", err)
	}
	return out.ID, nil
}

// Start asks the engine to begin dispatching. Idempotent on the engine side.
func (c *Client) Start(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodPost, "/api/broadcasts/"+id+"/start", nil, nil); err != nil {
		return fmt.Errorf("start broadcast %s: %w", id, err)
	}
	return nil
}

// Stop halts dispatching. Stopping a non-running broadcast is a no-op.
func (c *Client) Stop(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodPost, "/api/broadcasts/"+id+"/stop", nil, nil); err != nil {
		return fmt.Errorf("stop broadcast %s: %w", id, err)
	}
	return nil
}

// Delete removes a broadcast that has not started running.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/broadcasts/"+id, nil, nil); err != nil {
		return fmt.Errorf("delete broadcast %s: %w", id, err)
	}
	return nil
}

// Campaign fetches a point-in-time campaign snapshot.
func (c *Client) Campaign(ctx context.Context, id string) (model.Campaign, error) {
	var out model.Campaign
	if err := c.do(ctx, http.MethodGet, "/api/broadcasts/"+id, nil, &out); err != nil {
		return model.Campaign{}, fmt.Errorf("get broadcast %s: %w", id, err)
	}
	return out, nil
}

// Recipients fetches the per-recipient snapshot.
func (c *Client) Recipients(ctx context.Context, id string) ([]model.Recipient, error) {
	var out []model.Recipient
	if err := c.do(ctx, http.MethodGet, "/api/broadcasts/"+id+"/recipients", nil, &out); err != nil {
		return nil, fmt.Errorf("get recipients %s: %w", id, err)
	}
	return out, nil
}

// Progress fetches the aggregate counters snapshot.
func (c *Client) Progress(ctx context.Context, id string) (model.Counters, error) {
	var out model.Counters
	if err := c.do(ctx, http.MethodGet, "/api/broadcasts/"+id+"/progress", nil, &out); err != nil {
		return model.Counters{}, fmt.Errorf("get progress %s: %w", id, err)
	}
	return out, nil
}

// Queue fetches the execution queue snapshot.
func (c *Client) Queue(ctx context.Context) (model.QueueUpdateEvent, error) {
	var out model.QueueUpdateEvent
	if err := c.do(ctx, http.MethodGet, "/api/queue", nil, &out); err != nil {
		return model.QueueUpdateEvent{}, fmt.Errorf("get queue: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	c.mu.Lock()
	base := c.base
	client := c.http
	lim := c.limiter
	c.mu.Unlock()

	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.log.Trace("engine request",
		logx.String("method", method),
		logx.String("path", path),
		logx.Int("status", resp.StatusCode),
		logx.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Cap the echoed body; it is only for operator-facing errors.
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
