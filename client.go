package main

// SPDX-License-Identifier: GPL-3.0-only

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// HTTP client retry constants.
	defaultRetryCount    = 3
	defaultRetryInterval = 5 * time.Second

	httpTimeout = 15 * time.Second

	// The sites block obvious bot user agents, so we send a desktop
	// browser string plus a Referer pointing at the site itself.
	httpUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

var (
	ErrHTTPStatusNotOK = errors.New("HTTP request failed with non-200 status")
	ErrHTTPNotFound    = errors.New("HTTP 404 Not Found")
)

// Client is an abstract HTTP client.  In prod, this wraps http.Client.  In
// test, it is a TestClient mock.
type Client interface {
	Get(ctx context.Context, uri string) ([]byte, error)
}

// HTTPClient is a concrete implementation of the Client interface which
// performs GETs with retry logic and the fixed headers the target sites
// expect.
type HTTPClient struct {
	logger        *slog.Logger
	client        *http.Client
	referer       string
	tryCount      int
	retryInterval time.Duration
}

// NewHTTPClient creates a new HTTPClient instance with default retry
// settings.  The defaults are appropriate for prod use, and are overridden
// for tests.
//
// Parameters:
//   - logger: Logger instance
//   - referer: Value for the Referer header, normally the site base URL
//
// Returns:
//   - *HTTPClient: A new HTTPClient instance ready for use
func NewHTTPClient(logger *slog.Logger, referer string) *HTTPClient {
	return &HTTPClient{
		logger:        logger,
		client:        &http.Client{},
		referer:       referer,
		tryCount:      defaultRetryCount,
		retryInterval: defaultRetryInterval,
	}
}

// SetRetryPolicy configures the retry behavior for failed HTTP requests.
// This method is intended for integration testing where we don't actually
// want to wait between retries.
//
// Parameters:
//   - count: Number of attempts before giving up
//   - interval: Time to wait between attempts
func (h *HTTPClient) SetRetryPolicy(count int, interval time.Duration) {
	h.tryCount = count
	h.retryInterval = interval
}

// Get performs an HTTP GET request with automatic retries.  If the initial
// request fails, it will retry up to the configured number of times with
// delays between attempts.  Retrying stops early if the context is
// canceled.
//
// Parameters:
//   - ctx: Context for cancellation
//   - uri: The URL to fetch
//
// Returns:
//   - []byte: The response body content
//   - error: The final error if all retry attempts fail, nil on success
func (h *HTTPClient) Get(ctx context.Context, uri string) ([]byte, error) {
	h.logger.Debug("HTTPClient GET", "uri", uri)
	var lastErr error
	for attempt := 0; attempt < h.tryCount; attempt++ {
		data, err := h.get(ctx, uri)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		h.logger.Info("HTTPClient GET failed attempt", "uri", uri, "attempt", attempt, "error", err)
		time.Sleep(h.retryInterval)
	}
	h.logger.Error("HTTPClient GET all attempts failed", "uri", uri, "error", lastErr)
	return nil, lastErr
}

// get performs a single HTTP GET request without retries.  This is used
// inside the public Get method's retry loop.
func (h *HTTPClient) get(ctx context.Context, uri string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, httpTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", httpUserAgent)
	req.Header.Set("Referer", h.referer)

	response, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET failed: %w", err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("resource not found: %w", ErrHTTPNotFound)
	}

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrHTTPStatusNotOK, response.Status)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}
