package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// scope says whose fault a non-200 answer is.
type scope int

const (
	// scopeService: the endpoint describes the whole service.
	scopeService scope = iota
	// scopeDevice: the endpoint describes one device; a bad answer says
	// nothing about the other devices.
	scopeDevice
)

// statusError is a non-200 answer from the device service.
type statusError struct {
	code  int
	scope scope
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d", e.code)
}

func (e *statusError) Unwrap() error {
	switch {
	case e.code == http.StatusTooManyRequests:
		return errRateLimited
	case e.code >= 500:
		return errServerError
	default:
		return errUnexpected
	}
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// serviceHealthy is the breaker's success test. Transport failures, rate
// limiting and 5xx on service-wide endpoints count against the service;
// anything a single device answered does not, nor does a caller giving up.
func serviceHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	if se.code == http.StatusTooManyRequests {
		return false
	}
	return se.scope == scopeDevice || se.code < 500
}

// resilientClient runs GET requests with retries, exponential backoff and a
// circuit breaker shared by every endpoint of one upstream.
type resilientClient struct {
	http    *http.Client
	backoff BackoffConfig
	circuit *gobreaker.CircuitBreaker
}

func newResilientClient(name string, client *http.Client, backoff BackoffConfig) *resilientClient {
	return &resilientClient{
		http:    client,
		backoff: backoff,
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:         name,
			MaxRequests:  5,
			Interval:     1 * time.Minute,
			Timeout:      2 * time.Minute,
			IsSuccessful: serviceHealthy,
		}),
	}
}

// get fetches u and returns the response of the first 200 answer. 4xx
// answers other than 429 are final.
func (c *resilientClient) get(ctx context.Context, u string, sc scope) (*http.Response, error) {
	if c.http == nil {
		return nil, errNoHTTPClient
	}
	if c.backoff.MaxRetries < 0 || c.backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := c.attempt(ctx, u, sc)
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, err
		}
		if attempt >= c.backoff.MaxRetries {
			return nil, err
		}

		timer := time.NewTimer(c.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *resilientClient) attempt(ctx context.Context, u string, sc scope) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	out, err := c.circuit.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}
		// drain so the connection goes back to the pool
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &statusError{code: resp.StatusCode, scope: sc}
	})
	if err != nil {
		return nil, err
	}
	return out.(*http.Response), nil
}

// delay doubles from InitialInterval and is capped by MaxInterval when set.
func (c *resilientClient) delay(attempt int) time.Duration {
	d := c.backoff.InitialInterval << attempt
	if c.backoff.MaxInterval > 0 && (d > c.backoff.MaxInterval || d <= 0) {
		d = c.backoff.MaxInterval
	}
	return d
}
