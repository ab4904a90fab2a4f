package experiments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/DensusHere/mywallet-sub001/errors"
	"github.com/DensusHere/mywallet-sub001/metric"
)

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

const maxBodySize = 1 << 20

// Fetcher returns the experiment assignments visible to token.
type Fetcher interface {
	Fetch(ctx context.Context, token string) (map[string]int, error)
}

// Client fetches experiment assignments over HTTP. The endpoint answers a GET
// with a JSON object mapping experiment ids to assigned groups.
type Client struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *metric.Metrics
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit limits outbound requests to r per second with the given burst.
func WithRateLimit(r float64, burst int) ClientOption {
	return func(c *Client) {
		if r <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records request outcomes in the registry's core metrics.
func WithMetrics(registry *metric.MetricsRegistry) ClientOption {
	return func(c *Client) {
		if registry != nil {
			c.metrics = registry.CoreMetrics()
		}
	}
}

// NewClient creates a client for the assignments endpoint at url.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Client", "NewClient", "validate url")
	}
	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(1), 3),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "experiments")
	return c, nil
}

// Fetch performs one GET. An empty token sends no Authorization header.
// Network failures and non-2xx statuses are transient; an undecodable body
// is invalid.
func (c *Client) Fetch(ctx context.Context, token string) (map[string]int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrRateLimited, err),
				"Client", "Fetch", "wait for rate limiter")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Client", "Fetch", "create request")
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe("error")
		return nil, errors.WrapTransient(err, "Client", "Fetch", "send request")
	}
	defer resp.Body.Close()

	c.observe(strconv.Itoa(resp.StatusCode))
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "Fetch", "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("experiments request failed",
			"status", resp.StatusCode, "request_id", requestID)
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusUnauthorized {
			cause = fmt.Errorf("%w: %v", errors.ErrUnauthenticated, cause)
		}
		return nil, errors.WrapTransient(cause, "Client", "Fetch", "check status")
	}

	var assignments map[string]int
	if err := json.Unmarshal(body, &assignments); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"Client", "Fetch", "decode assignments")
	}
	if assignments == nil {
		assignments = map[string]int{}
	}
	c.logger.Debug("fetched experiment assignments",
		"count", len(assignments), "request_id", requestID)
	return assignments, nil
}

func (c *Client) observe(status string) {
	if c.metrics != nil {
		c.metrics.ExperimentRequests.WithLabelValues(status).Inc()
	}
}
