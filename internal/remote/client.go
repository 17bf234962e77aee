// Package remote is a small JSON-over-HTTP client shared by the remote inference backends.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/hyperjump/kanoon/pkg/utils"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
	maxErrorBody      = 512
)

// StatusError is returned when the remote service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote returned status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	Timeout    time.Duration
	MaxRetries int
	Logger     *zap.Logger
}

// Client posts JSON payloads to a base URL and decodes JSON responses.
type Client struct {
	baseURL    string
	apiKey     string
	http       *http.Client
	maxRetries int
	logger     *zap.Logger
}

// NewClient builds a client. When APIKeyEnv is set, the named variable must be non-empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("remote: base URL is required")
	}
	var key string
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("remote: missing API key in env %s", cfg.APIKeyEnv)
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	} else if retries == 0 {
		retries = defaultMaxRetries
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     key,
		http:       &http.Client{Timeout: timeout},
		maxRetries: retries,
		logger:     utils.OrNop(cfg.Logger),
	}, nil
}

// BaseURL returns the URL requests are resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

// PostJSON sends in as JSON to path and decodes the response into out.
// 429 and 5xx responses and transport errors are retried with exponential backoff.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, body, out)
}

// GetJSON fetches path and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	url := c.baseURL + path
	var hint time.Duration
	b := c.backoff(&hint)
	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if attempt > 0 {
			c.logger.Debug("retrying remote request", zap.String("url", url), zap.Int("attempt", attempt))
		}
		attempt++
		err := c.once(ctx, method, url, body, out)
		if err == nil {
			return nil
		}
		hint = retryAfter(err)
		if retryable(err) && ctx.Err() == nil {
			return retry.RetryableError(err)
		}
		return err
	})
}

// backoff is exponential from 200ms, capped at 5s, limited to maxRetries retries. A
// Retry-After hint from the last response replaces the computed delay.
func (c *Client) backoff(hint *time.Duration) retry.Backoff {
	b := retry.NewExponential(200 * time.Millisecond)
	b = retry.WithCappedDuration(5*time.Second, b)
	b = retry.WithMaxRetries(uint64(c.maxRetries), b)
	return retry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := b.Next()
		if stop {
			return 0, true
		}
		if *hint > 0 {
			d = *hint
		}
		return d, false
	})
}

func (c *Client) once(ctx context.Context, method, url string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &retryAfterError{
			StatusError: &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))},
			after:       parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// retryAfterError carries the server's Retry-After hint alongside the status.
type retryAfterError struct {
	*StatusError
	after time.Duration
}

func (e *retryAfterError) Unwrap() error { return e.StatusError }

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	// Decode failures are not transient.
	return !strings.HasPrefix(err.Error(), "failed to decode")
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func retryAfter(err error) time.Duration {
	var ra *retryAfterError
	if errors.As(err, &ra) {
		return ra.after
	}
	return 0
}
