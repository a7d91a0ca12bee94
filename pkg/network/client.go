// Package network performs the outbound fetches of the offline layer.
//
// A fetch either yields a complete response snapshot (any HTTP status, including
// 4xx and 5xx) or a *FetchError when no response could be obtained at all. The
// serving strategies rely on that split: only a FetchError triggers a fallback.
package network

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/DoctorThink/ourcreativity-sub001/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for network fetches.
var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_fetches_total",
		Help: "Total network fetches by outcome (HTTP status class or error class)",
	}, []string{"outcome"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "offline_fetch_duration_seconds",
		Help:    "Network fetch duration in seconds by method",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method"})
)

// Config holds the client configuration.
type Config struct {
	// Transport performs the round trips (default: http.DefaultTransport)
	Transport http.RoundTripper

	// Timeout bounds one fetch including reading the body (0 = no timeout)
	Timeout time.Duration

	// Retry is used by FetchWithRetry only
	Retry RetryConfig
}

// DefaultConfig returns a configuration without timeout.
func DefaultConfig() Config {
	return Config{
		Transport: http.DefaultTransport,
		Retry:     DefaultRetryConfig(),
	}
}

// Client fetches complete responses from the network.
type Client struct {
	transport http.RoundTripper
	timeout   time.Duration
	retry     RetryConfig
	logger    zerolog.Logger
}

// New creates a new network client.
func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	return &Client{
		transport: cfg.Transport,
		timeout:   cfg.Timeout,
		retry:     cfg.Retry,
		logger:    logger,
	}
}

// Transport returns the underlying round tripper, for requests that must
// reach the network unbuffered.
func (c *Client) Transport() http.RoundTripper {
	return c.transport
}

// Fetch performs a single round trip and buffers the full response.
// An HTTP error status is returned as a normal entry; a *FetchError is
// returned only when no response was obtained.
func (c *Client) Fetch(ctx context.Context, req *http.Request) (*cache.Entry, error) {
	startTime := time.Now()
	defer func() {
		fetchDuration.WithLabelValues(req.Method).Observe(time.Since(startTime).Seconds())
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.transport.RoundTrip(req.Clone(ctx))
	if err != nil {
		return nil, c.fail(req, err)
	}

	entry, err := cache.ResponseToEntry(resp)
	if err != nil {
		return nil, c.fail(req, err)
	}

	fetchesTotal.WithLabelValues(statusClass(entry.StatusCode)).Inc()
	c.logger.Debug().
		Str("url", req.URL.String()).
		Int("status_code", entry.StatusCode).
		Dur("duration", time.Since(startTime)).
		Msg("Fetched from network")

	return entry, nil
}

// FetchWithRetry is Fetch with jittered exponential backoff on network failures.
func (c *Client) FetchWithRetry(ctx context.Context, req *http.Request) (*cache.Entry, error) {
	var entry *cache.Entry
	err := retryWithBackoff(ctx, c.retry, c.logger, func() error {
		var fetchErr error
		entry, fetchErr = c.Fetch(ctx, req)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (c *Client) fail(req *http.Request, err error) error {
	fetchErr := &FetchError{
		URL:        req.URL.String(),
		ErrorClass: classifyError(err),
		Err:        err,
	}
	fetchesTotal.WithLabelValues(string(fetchErr.ErrorClass)).Inc()
	c.logger.Debug().
		Err(err).
		Str("url", fetchErr.URL).
		Str("error_class", string(fetchErr.ErrorClass)).
		Msg("Network fetch failed")
	return fmt.Errorf("network: %w", fetchErr)
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "invalid"
	}
	return strconv.Itoa(code/100) + "xx"
}
