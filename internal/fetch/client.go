package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vaughan-dsouza/postagg/internal/logging"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	// HTTPClient defaults to a client with a 30s overall timeout.
	HTTPClient *http.Client
	// BreakerFailures is the number of consecutive failures that opens the
	// breaker for a host.
	BreakerFailures uint32
	// BreakerTimeout is how long a breaker stays open before probing again.
	BreakerTimeout time.Duration
	Logger         logging.Logger
}

// Client is an HTTP Doer with one circuit breaker per upstream host. It never
// retries.
type Client struct {
	http     *http.Client
	failures uint32
	timeout  time.Duration
	logger   logging.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.TwoStepCircuitBreaker
}

func NewClient(opts ClientOptions) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Client{
		http:     opts.HTTPClient,
		failures: opts.BreakerFailures,
		timeout:  opts.BreakerTimeout,
		logger:   opts.Logger,
		breakers: make(map[string]*gobreaker.TwoStepCircuitBreaker),
	}
}

func (c *Client) breaker(host string) *gobreaker.TwoStepCircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[host]; ok {
		return cb
	}
	cb := gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     c.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				logging.String("host", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()))
		},
	})
	c.breakers[host] = cb
	return cb
}

// State reports the breaker state for host. Hosts never contacted are closed.
func (c *Client) State(host string) gobreaker.State {
	c.mu.Lock()
	cb, ok := c.breakers[host]
	c.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}

// Do sends req through the breaker for its host. Transport errors, 5xx
// responses and expired deadlines count as failures; 5xx responses are still
// returned to the caller. A request cancelled by its caller is not recorded
// while the breaker is closed, and fails the probe while it is half-open.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	cb := c.breaker(req.URL.Host)

	done, err := cb.Allow()
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	switch {
	case err != nil && errors.Is(req.Context().Err(), context.Canceled):
		if cb.State() == gobreaker.StateHalfOpen {
			done(false)
		}
		return nil, err
	case err != nil:
		done(false)
		return nil, err
	case resp.StatusCode >= http.StatusInternalServerError:
		done(false)
		return resp, nil
	}
	done(true)
	return resp, nil
}
