package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/pulse"
)

// maxResponseBytes caps upstream response bodies.
const maxResponseBytes = 8 << 20

// Client wraps an http.Client with the retry and error-classification
// policy shared by every adapter: transient and rate-limited failures
// are retried with exponential backoff, auth and schema failures are
// not.
type Client struct {
	http    *http.Client
	retries int
	backoff time.Duration
	logger  *zap.Logger
}

// NewClient builds a Client. backoff is the first retry delay; each
// subsequent attempt doubles it.
func NewClient(timeout time.Duration, retries int, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		retries: retries,
		backoff: 500 * time.Millisecond,
		logger:  logger,
	}
}

// Do executes req with the retry policy and returns the response body.
func (c *Client) Do(ctx context.Context, req *http.Request) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		body, err := c.once(ctx, req)
		if err == nil {
			return body, nil
		}
		if !pulse.KindOf(err).Retryable() || attempt >= c.retries {
			return nil, err
		}
		delay := c.backoff << attempt
		c.logger.Warn("upstream request failed, retrying",
			zap.String("url", req.URL.Redacted()),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, pulse.NewError(pulse.KindTransientNetwork, ctx.Err())
		}
	}
}

func (c *Client) once(ctx context.Context, req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req.Clone(ctx))
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, pulse.Errorf(pulse.KindTransientNetwork, "read response: %w", err)
	}
	if kindErr := classifyStatus(resp.StatusCode); kindErr != nil {
		return nil, kindErr
	}
	return body, nil
}

// GetJSON fetches url and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return pulse.Errorf(pulse.KindInternal, "build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	body, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return pulse.Errorf(pulse.KindMalformedResponse, "decode %s: %w", req.URL.Host, err)
	}
	return nil
}

// GetRaw fetches url and returns the raw body.
func (c *Client) GetRaw(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, pulse.Errorf(pulse.KindInternal, "build request: %w", err)
	}
	return c.Do(ctx, req)
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return pulse.Errorf(pulse.KindTransientNetwork, "timeout: %w", err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return pulse.NewError(pulse.KindTransientNetwork, err)
	}
	return pulse.Errorf(pulse.KindTransientNetwork, "request: %w", err)
}

func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return pulse.Errorf(pulse.KindRateLimited, "upstream returned %d", code)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return pulse.Errorf(pulse.KindAuthRequired, "upstream returned %d", code)
	case code >= 500:
		return pulse.Errorf(pulse.KindUpstreamUnavailable, "upstream returned %d", code)
	default:
		return pulse.Errorf(pulse.KindMalformedResponse, "unexpected status %d", code)
	}
}

// ClassifyBilibiliCode maps the platform's business codes onto error
// kinds. Code -412 (and HTTP 412) is the platform's rate limit.
func ClassifyBilibiliCode(code int64, message string) error {
	switch code {
	case 0:
		return nil
	case -412, 412:
		return pulse.Errorf(pulse.KindRateLimited, "bilibili code %d: %s", code, message)
	case -101, -111, -401:
		return pulse.Errorf(pulse.KindAuthRequired, "bilibili code %d: %s", code, message)
	default:
		return pulse.Errorf(pulse.KindUpstreamUnavailable, "bilibili code %d: %s", code, message)
	}
}
