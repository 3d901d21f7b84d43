package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Client is a rate-limited JSON-over-HTTP GET client for the upstream REST API
type Client struct {
	BaseURL     string
	ApiKey      string
	RateLimiter *rate.Limiter
	MaxRetries  int
	RetryDelay  time.Duration
	HTTPTimeout time.Duration
	Logger      *zerolog.Logger
	HTTPClient  *http.Client
}

// NewClient creates a new REST client. A non-positive rateLimit disables rate limiting.
func NewClient(baseURL, apiKey string, rateLimit float64, maxRetries int, retryDelay, httpTimeout time.Duration, logger *zerolog.Logger) *Client {
	limit := rate.Inf
	if rateLimit > 0 {
		limit = rate.Limit(rateLimit)
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		ApiKey:      apiKey,
		RateLimiter: rate.NewLimiter(limit, 1),
		MaxRetries:  maxRetries,
		RetryDelay:  retryDelay,
		HTTPTimeout: httpTimeout,
		Logger:      logger,
		HTTPClient: &http.Client{
			Timeout: httpTimeout,
			Transport: &CustomTransport{
				Base:   http.DefaultTransport,
				ApiKey: apiKey,
			},
		},
	}
}

// CustomTransport adds API key authentication to HTTP requests
type CustomTransport struct {
	Base   http.RoundTripper
	ApiKey string
}

func (t *CustomTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")
	if t.ApiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.ApiKey)
	}
	return t.Base.RoundTrip(req)
}

// Get issues a GET for path and decodes the JSON body into generic values.
// Numbers are kept as json.Number so base-unit integers survive decoding intact.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (any, error) {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	c.Logger.Debug().
		Str("url", endpoint).
		Msg("Making REST call")

	if err := c.RateLimiter.Wait(ctx); err != nil {
		return nil, &FetchError{URL: endpoint, Err: fmt.Errorf("rate limit wait: %w", err)}
	}

	var body any
	err := c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return &FetchError{URL: endpoint, Err: err}
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return &FetchError{URL: endpoint, Err: err}
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		if resp.StatusCode != http.StatusOK {
			return &FetchError{URL: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("HTTP error: %s", resp.Status)}
		}

		dec := json.NewDecoder(resp.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			return &DecodeError{URL: endpoint, Err: err}
		}
		return nil
	})

	if err != nil {
		c.Logger.Error().
			Err(err).
			Str("url", endpoint).
			Msg("REST call failed")
		return nil, err
	}

	return body, nil
}

// retry runs fn up to MaxRetries times. Decode errors are not retried.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i < c.MaxRetries; i++ {
		if err = fn(); err == nil {
			return nil
		}

		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) || i == c.MaxRetries-1 {
			return err
		}

		select {
		case <-ctx.Done():
			return &FetchError{Err: ctx.Err()}
		case <-time.After(c.RetryDelay):
		}
	}
	return err
}

// Close closes the HTTP client connections
func (c *Client) Close() {
	if c.HTTPClient != nil {
		c.HTTPClient.CloseIdleConnections()
	}
}
