package irisfast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// HeaderProvider allows injecting per-request headers
type HeaderProvider func() map[string]string

// Client talks to the Iris HTTP API.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

// WithRetry sets the attempt count for idempotent calls; 1 disables retries.
func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetConfig reads the bridge configuration; used as a health probe.
func (c *Client) GetConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := c.call(ctx, fasthttp.MethodGet, "/config", nil, &cfg, true); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SendText posts a text reply into room. Replies are not idempotent, so they
// are never retried.
func (c *Client) SendText(ctx context.Context, room, message string) error {
	req := ReplyRequest{Type: "text", Room: room, Data: message}
	return c.call(ctx, fasthttp.MethodPost, "/reply", req, nil, false)
}

func (c *Client) call(ctx context.Context, method, path string, in, out any, idempotent bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	if err := c.prepare(req, method, path, in); err != nil {
		return err
	}

	attempts := 1
	if idempotent && c.retryMax > 1 {
		attempts = c.retryMax
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		retryable, err := c.do(ctx, req, resp, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || attempt == attempts {
			break
		}
		if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) prepare(req *fasthttp.Request, method, path string, in any) error {
	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}
	if in == nil {
		return nil
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req.SetBody(payload)
	return nil
}

// do performs one attempt and reports whether a failure may be retried.
func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response, out any) (bool, error) {
	if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
		return true, fmt.Errorf("request failed: %w", err)
	}
	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return shouldRetryStatus(status), fmt.Errorf("iris api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return false, fmt.Errorf("decode response: %w", err)
		}
	}
	return false, nil
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDuration doubles from 100ms and stops growing after six attempts.
func backoffDuration(attempt int) time.Duration {
	attempt = min(max(attempt, 1), 6)
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
