// Package client is the Go SDK for the BioMapper mapping API served by
// "biomapper serve".
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/BioMapper/pkg/errors"
)

const Version = "0.1.0"

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debugf(format string, args ...interface{}) {}
func (noopLogger) Infof(format string, args ...interface{})  {}
func (noopLogger) Errorf(format string, args ...interface{}) {}

// Client talks to one BioMapper API endpoint.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	apiKey       string
	userAgent    string
	logger       Logger
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
}

// APIError is a non-2xx reply.
type APIError struct {
	StatusCode int              `json:"status_code"`
	Code       errors.ErrorCode `json:"code"`
	Message    string           `json:"message"`
	Detail     string           `json:"detail,omitempty"`
	RequestID  string           `json:"request_id"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("biomapper: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg + " [request_id=" + e.RequestID + "]"
}

func (e *APIError) IsRateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

func (e *APIError) IsServerError() bool { return e.StatusCode >= 500 && e.StatusCode < 600 }

// IsAborted reports whether the server ran the pipeline and it ended ABORTED.
func (e *APIError) IsAborted() bool { return e.Code == errors.ErrCodePipelineAborted }

// errorEnvelope is the server's error body.  Result is only present when a
// mapping run was aborted.
type errorEnvelope struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Detail  string           `json:"detail"`
	Result  json.RawMessage  `json:"result"`
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.InvalidParam("base URL is required")
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "invalid base URL").WithDetail(baseURL)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, errors.InvalidParam("base URL scheme must be http or https").WithDetail(baseURL)
	}

	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 10 * time.Minute},
		userAgent:    fmt.Sprintf("biomapper-go-sdk/%s", Version),
		logger:       noopLogger{},
		retryMax:     3,
		retryWaitMin: 500 * time.Millisecond,
		retryWaitMax: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the endpoint the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// do performs a request with retries and decodes a 2xx body into result.  On
// a non-2xx reply it returns an *APIError plus the raw error envelope.
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) (*errorEnvelope, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	fullURL := c.baseURL + path

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal request body")
		}
	}

	var lastErr error
	var lastEnv *errorEnvelope
	retryAfter := time.Duration(-1)
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			wait := retryAfter
			if wait < 0 {
				wait = c.calculateBackoff(attempt)
			}
			retryAfter = -1
			c.logger.Debugf("retry attempt %d after %v", attempt, wait)
			if err := sleep(ctx, wait); err != nil {
				return lastEnv, err
			}
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "failed to create request")
		}

		requestID := uuid.New().String()
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("X-Request-ID", requestID)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return lastEnv, ctx.Err()
			}
			c.logger.Errorf("request failed: %v", err)
			lastErr = errors.Wrap(err, errors.ErrCodeServiceUnavailable, "request failed").WithDetail(fullURL)
			continue
		}
		c.logger.Debugf("%s %s %d (%v)", method, path, resp.StatusCode, time.Since(start))

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to read response body")
		}

		if resp.StatusCode < 400 {
			if result != nil && len(respBody) > 0 {
				if err := json.Unmarshal(respBody, result); err != nil {
					return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal response")
				}
			}
			return nil, nil
		}

		env := &errorEnvelope{}
		apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: requestID}
		if err := json.Unmarshal(respBody, env); err == nil && env.Code != "" {
			apiErr.Code, apiErr.Message, apiErr.Detail = env.Code, env.Message, env.Detail
		} else {
			apiErr.Code = errors.ErrCodeExternalService
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		lastErr, lastEnv = apiErr, env

		if resp.StatusCode == http.StatusTooManyRequests {
			seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
			if err != nil || seconds < 0 {
				return env, apiErr
			}
			c.logger.Infof("rate limited, retrying after %d seconds", seconds)
			retryAfter = time.Duration(seconds) * time.Second
			continue
		}
		if !shouldRetry(resp.StatusCode, env) {
			return env, apiErr
		}
	}
	return lastEnv, lastErr
}

// shouldRetry retries gateway-class failures.  An aborted run carries its
// partial result and is final.
func shouldRetry(status int, env *errorEnvelope) bool {
	if len(env.Result) > 0 {
		return false
	}
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.retryWaitMin * time.Duration(1<<uint(attempt-1))
	if backoff > c.retryWaitMax {
		backoff = c.retryWaitMax
	}
	if quarter := int64(backoff / 4); quarter > 0 {
		backoff += time.Duration(rand.Int63n(quarter))
	}
	return backoff
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

//Personal.AI order the ending
