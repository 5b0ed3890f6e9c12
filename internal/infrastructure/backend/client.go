// Package backend is the HTTP transport to the ERP backend that owns the stock ledger.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/erp/stockflow/internal/infrastructure/logger"
	"github.com/erp/stockflow/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config configures the backend client
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	RateLimitQPS   float64 // 0 disables throttling
	RateLimitBurst int
	UserAgent      string
}

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxRetries  int
	RetryDelay  time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	ShouldRetry func(method string, resp *http.Response, err error) bool
}

// DefaultRetryConfig returns the default retry configuration.
// Only reads are retried: a POST that timed out may already have created a voucher.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Multiplier: 2.0,
		ShouldRetry: func(method string, resp *http.Response, err error) bool {
			if method != http.MethodGet {
				return false
			}
			if err != nil {
				return true
			}
			return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		},
	}
}

type authTokenKey struct{}

// WithAuthToken attaches the caller's bearer token so it is forwarded on every backend call
func WithAuthToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, authTokenKey{}, token)
}

// AuthTokenFromContext returns the bearer token attached by WithAuthToken
func AuthTokenFromContext(ctx context.Context) string {
	if token, ok := ctx.Value(authTokenKey{}).(string); ok {
		return token
	}
	return ""
}

// Client executes JSON requests against the backend with throttling, retries and a span per call
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	userAgent   string
	retryConfig RetryConfig
	limiter     *rate.Limiter
	log         *zap.Logger
}

// NewClient creates a backend client. A nil retryCfg selects DefaultRetryConfig.
func NewClient(cfg Config, retryCfg *RetryConfig, log *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "stockflow/1.0"
	}
	retry := DefaultRetryConfig()
	if retryCfg != nil {
		retry = *retryCfg
	}
	if retry.ShouldRetry == nil {
		retry.ShouldRetry = DefaultRetryConfig().ShouldRetry
	}
	if retry.MaxRetries < 0 {
		retry.MaxRetries = 0
	}
	if retry.Multiplier < 1 {
		retry.Multiplier = 1
	}
	if log == nil {
		log = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RateLimitQPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitQPS), burst)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		httpClient:  &http.Client{Transport: transport, Timeout: cfg.Timeout},
		baseURL:     base,
		userAgent:   cfg.UserAgent,
		retryConfig: retry,
		limiter:     limiter,
		log:         log,
	}, nil
}

// Request is one backend call
type Request struct {
	Operation string
	Method    string
	Path      string
	Query     url.Values
	Body      any
}

// Response is a successful (2xx) backend response
type Response struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
	Attempts   int
}

// Do executes req. Any failure, including a non-2xx status, is returned as a *TransportError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	ctx, span := telemetry.StartSpan(ctx, "backend."+req.Operation,
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("http.method", req.Method),
		telemetry.WithAttribute("http.route", req.Path),
	)
	defer span.End()

	resp, err := c.do(ctx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, "http.status_code", resp.StatusCode)
	telemetry.SetAttribute(span, "backend.attempts", resp.Attempts)
	telemetry.SetOK(span)
	return resp, nil
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	fail := func(status int, detail string, err error) *TransportError {
		return &TransportError{Operation: req.Operation, StatusCode: status, Detail: detail, Err: err}
	}

	u := c.buildURL(req.Path, req.Query)

	var body []byte
	if req.Body != nil {
		var err error
		body, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fail(0, "", fmt.Errorf("marshaling request body: %w", err))
		}
	}

	var lastErr *TransportError
	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.calculateBackoff(attempt)
			logger.WithLogger(ctx, c.log).Warn("Retrying backend request",
				zap.String("operation", req.Operation),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, fail(0, "", ctx.Err())
			case <-time.After(delay):
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fail(0, "", fmt.Errorf("rate limiter: %w", err))
			}
		}

		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, bodyReader)
		if err != nil {
			return nil, fail(0, "", fmt.Errorf("creating HTTP request: %w", err))
		}
		c.setHeaders(ctx, httpReq, body != nil)

		start := time.Now()
		httpResp, err := c.httpClient.Do(httpReq)
		duration := time.Since(start)

		if err != nil {
			lastErr = fail(0, "", err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			if attempt < c.retryConfig.MaxRetries && c.retryConfig.ShouldRetry(req.Method, nil, err) {
				continue
			}
			return nil, lastErr
		}

		respBody, readErr := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		if readErr != nil {
			lastErr = fail(httpResp.StatusCode, "", fmt.Errorf("reading response body: %w", readErr))
		} else if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
			lastErr = fail(httpResp.StatusCode, parseDetail(respBody), nil)
		} else {
			logger.WithLogger(ctx, c.log).Debug("Backend request completed",
				zap.String("operation", req.Operation),
				zap.Int("status", httpResp.StatusCode),
				zap.Duration("duration", duration),
			)
			return &Response{
				StatusCode: httpResp.StatusCode,
				Body:       respBody,
				Duration:   duration,
				Attempts:   attempt + 1,
			}, nil
		}

		if attempt < c.retryConfig.MaxRetries && c.retryConfig.ShouldRetry(req.Method, httpResp, nil) {
			continue
		}
		return nil, lastErr
	}
	return nil, lastErr
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, operation, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, Request{Operation: operation, Method: http.MethodGet, Path: path, Query: query})
}

// Post performs a POST request with a JSON body
func (c *Client) Post(ctx context.Context, operation, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Operation: operation, Method: http.MethodPost, Path: path, Body: body})
}

// BaseURL returns the configured backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) buildURL(path string, query url.Values) string {
	// path is in escaped form so escaped ids survive the join
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) setHeaders(ctx context.Context, req *http.Request, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := AuthTokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if requestID := logger.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
}

// calculateBackoff returns the exponential delay for attempt with +/-25% jitter
func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryConfig.RetryDelay) * math.Pow(c.retryConfig.Multiplier, float64(attempt-1))
	if c.retryConfig.MaxDelay > 0 && delay > float64(c.retryConfig.MaxDelay) {
		delay = float64(c.retryConfig.MaxDelay)
	}
	jitter := delay * 0.25
	delay += (rand.Float64()*2 - 1) * jitter
	return time.Duration(delay)
}
