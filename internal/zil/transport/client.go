package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zilezarach/torrentcli/internal/logctx"
	"github.com/zilezarach/torrentcli/internal/retry"
	"github.com/zilezarach/torrentcli/internal/telemetry"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultAttempts = 3
	defaultBaseWait = time.Second

	userAgent = "TorrentCLI/2.0"
)

// Client is the resilient HTTP layer in front of the aggregator. It holds
// transport configuration only; all domain state lives with its callers.
type Client struct {
	baseURL  string
	timeout  time.Duration
	attempts uint
	baseWait time.Duration
	tel      *telemetry.Telemetry

	mu         sync.Mutex
	httpClient *http.Client
}

type Option func(*Client)

// WithTimeout sets the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithAttempts sets the retry budget for transient failures.
func WithAttempts(n uint) Option {
	return func(c *Client) { c.attempts = n }
}

// WithBaseWait sets the first backoff wait; subsequent waits double it.
func WithBaseWait(d time.Duration) Option {
	return func(c *Client) { c.baseWait = d }
}

// WithTelemetry records request and retry metrics on the given instance.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(c *Client) { c.tel = tel }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  trimTrailingSlash(baseURL),
		timeout:  defaultTimeout,
		attempts: defaultAttempts,
		baseWait: defaultBaseWait,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.httpClient = newHTTPClient()

	return c
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}

	return s
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(&http.Transport{}),
	}
}

// RequestOption tweaks a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	timeout time.Duration
}

// WithRequestTimeout overrides the client timeout for one request. Mirror
// resolution uses this; it can take far longer than a search.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) { o.timeout = d }
}

// Request performs one aggregator call with retries and returns the raw JSON
// body. Transient failures (5xx, connection loss, timeouts) are retried up
// to the attempt budget with deterministic exponential backoff; a 404 maps
// to NotFoundError and other 4xx to ClientError with no retry. Once the
// budget is spent the last cause is wrapped in ExhaustedError.
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, opts ...RequestOption) (json.RawMessage, error) {
	logger := logctx.LoggerFromContext(ctx).With("method", method, "path", path)

	ro := requestOptions{timeout: c.timeout}
	for _, opt := range opts {
		opt(&ro)
	}

	endpoint := c.baseURL + path

	var body json.RawMessage

	policy := retry.Policy{
		Attempts:  c.attempts,
		Delay:     c.baseWait,
		Backoff:   retry.Exponential,
		Retryable: Retryable,
		OnRetry: func(attempt uint, wait time.Duration, err error) {
			logger.Warn("aggregator request failed, retrying", "attempt", attempt, "wait", wait.String(), "err", err)
			c.tel.RecordAPIRetry(path)
		},
	}

	err := policy.Do(ctx, func() error {
		b, err := c.do(ctx, method, endpoint, query, ro.timeout)
		if err != nil {
			var connErr *ConnectionError
			if errors.As(err, &connErr) {
				// Stale sockets must not be reused after a connection-level
				// failure; rebuild the underlying transport.
				c.resetConnections()
			}

			return err
		}

		body = b

		return nil
	})
	if err != nil {
		if Retryable(err) {
			return nil, &ExhaustedError{Endpoint: endpoint, Attempts: c.attempts, Err: err}
		}

		return nil, err
	}

	return body, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, timeout time.Duration) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build aggregator request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()

	resp, err := c.client().Do(req)
	if err != nil {
		c.tel.RecordAPIRequest(method, endpoint, "error", time.Since(start))

		return nil, classifyNetError(endpoint, timeout, err)
	}
	defer resp.Body.Close()

	c.tel.RecordAPIRequest(method, endpoint, fmt.Sprintf("%d", resp.StatusCode), time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &NotFoundError{Endpoint: endpoint}
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &ServerError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	case resp.StatusCode >= http.StatusBadRequest:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return nil, &ClientError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(b)}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyNetError(endpoint, timeout, err)
	}

	return json.RawMessage(b), nil
}

func (c *Client) client() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.httpClient
}

func (c *Client) resetConnections() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.httpClient.CloseIdleConnections()
	c.httpClient = newHTTPClient()
}

func classifyNetError(endpoint string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Endpoint: endpoint, Timeout: timeout, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Endpoint: endpoint, Timeout: timeout, Err: err}
	}

	return &ConnectionError{Endpoint: endpoint, Err: err}
}
