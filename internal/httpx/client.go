// Package httpx wraps net/http with bounded timeouts and retry with backoff
// for the external data providers.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 8 << 20

// Options tune the retrying client.
type Options struct {
	Timeout         time.Duration
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	UserAgent       string
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.Status)
	}
	return fmt.Sprintf("http status %d: %s", e.Status, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// IsStatus reports whether err is a StatusError carrying the given code.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

// Client issues JSON requests with retries on network errors, 429 and 5xx.
type Client struct {
	http   *http.Client
	opts   Options
	logger zerolog.Logger
}

// New constructs a Client, filling unset options with defaults.
func New(opts Options, logger zerolog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 300 * time.Millisecond
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 5 * time.Second
	}
	return &Client{
		http:   &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		logger: logger,
	}
}

// GetJSON fetches url and decodes a 2xx JSON body into out.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	return c.SendJSON(ctx, http.MethodGet, url, headers, nil, out)
}

// SendJSON encodes payload (if any), sends it, and decodes the response into out (if non-nil).
func (c *Client) SendJSON(ctx context.Context, method, url string, headers map[string]string, payload, out any) error {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = encoded
	}

	respBody, err := c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
	if err != nil {
		return err
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Do executes the request produced by build, rebuilding it for every attempt,
// and returns the body of the first 2xx response.
func (c *Client) Do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.InitialInterval
	policy.MaxInterval = c.opts.MaxInterval
	policy.MaxElapsedTime = 0

	attempt := 0
	var result []byte
	operation := func() error {
		attempt++
		req, err := build(ctx)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		if req.Header.Get("User-Agent") == "" && c.opts.UserAgent != "" {
			req.Header.Set("User-Agent", c.opts.UserAgent)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.logger.Debug().Err(err).Int("attempt", attempt).Str("url", redact(req.URL.String())).Msg("request failed")
			return err
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			statusErr := &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
			if statusErr.Retryable() {
				c.logger.Debug().Int("status", resp.StatusCode).Int("attempt", attempt).Str("url", redact(req.URL.String())).Msg("retryable status")
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		result = payload
		return nil
	}

	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.opts.MaxRetries)), ctx)
	if err := backoff.Retry(operation, retry); err != nil {
		return nil, err
	}
	return result, nil
}

// redact strips query strings, which carry api keys for some providers.
func redact(raw string) string {
	if idx := strings.IndexByte(raw, '?'); idx >= 0 {
		return raw[:idx]
	}
	return raw
}
