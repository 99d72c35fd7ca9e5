package transport

import (
	"errors"
	"fmt"
	"time"
)

// NotFoundError reports a 404 from the aggregator. It is never retried.
type NotFoundError struct {
	Endpoint string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("aggregator endpoint not found: %s", e.Endpoint)
}

// ClientError reports a non-404 4xx from the aggregator. The request was
// understood and rejected, so it is never retried.
type ClientError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *ClientError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("aggregator rejected request to %s (HTTP %d): %s", e.Endpoint, e.StatusCode, e.Body)
	}

	return fmt.Sprintf("aggregator rejected request to %s (HTTP %d)", e.Endpoint, e.StatusCode)
}

// ServerError reports a 5xx from the aggregator.
type ServerError struct {
	Endpoint   string
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("aggregator server error on %s (HTTP %d)", e.Endpoint, e.StatusCode)
}

// ConnectionError reports a connection-level failure (refused, reset,
// broken pipe) while talking to the aggregator.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("could not connect to aggregator at %s: %v (is the service running?)", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TimeoutError reports a request that exceeded its deadline.
type TimeoutError struct {
	Endpoint string
	Timeout  time.Duration
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("aggregator request to %s timed out after %s", e.Endpoint, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// ExhaustedError reports that the retry budget ran out. It carries the last
// underlying cause and the endpoint so callers can say which service failed.
type ExhaustedError struct {
	Endpoint string
	Attempts uint
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("aggregator request to %s failed after %d attempts: %v (is the service running?)", e.Endpoint, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Retryable reports whether err is transient: 5xx responses, connection
// failures and timeouts are retried, everything else fails immediately.
func Retryable(err error) bool {
	var (
		srv  *ServerError
		conn *ConnectionError
		to   *TimeoutError
	)

	return errors.As(err, &srv) || errors.As(err, &conn) || errors.As(err, &to)
}
