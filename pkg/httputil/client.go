package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/wonny/sentiment-ls/pkg/config"
	"github.com/wonny/sentiment-ls/pkg/logger"
)

// DefaultUserAgent is sent unless overridden; some upstreams reject Go's default
const DefaultUserAgent = "Mozilla/5.0 (compatible; sentiment-ls/1.0)"

const (
	defaultTimeout    = 30 * time.Second
	breakerTripAfter  = 5
	breakerStatWindow = time.Minute
)

// Limiter blocks until a request may be sent.
// Satisfied by *rate.Limiter and by *redis.RateLimiter.
type Limiter interface {
	Wait(ctx context.Context) error
}

// StatusError is returned for a final non-2xx response
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// backoff doubles the delay after each failed attempt, capped at ceiling.
// max == 0 sends each request once.
type backoff struct {
	max     int
	initial time.Duration
	ceiling time.Duration
}

func (b backoff) delay(attempt int) time.Duration {
	d := b.initial << attempt
	if d <= 0 || d > b.ceiling {
		return b.ceiling
	}
	return d
}

// Client sends upstream requests for the data sources.
// Order per request: limiter → breaker → attempts with backoff.
// ⭐ SSOT: 모든 HTTP 요청은 이 클라이언트를 통해서만 수행
type Client struct {
	httpClient *http.Client
	logger     *logger.Logger
	retry      backoff
	limiter    Limiter
	breaker    *gobreaker.CircuitBreaker
	userAgent  string
}

// New creates a client with 3 retries (1s doubling up to 10s) and a 30s timeout
func New(cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     log,
		retry:      backoff{max: 3, initial: time.Second, ceiling: 10 * time.Second},
		userAgent:  DefaultUserAgent,
	}
}

// NewWithTimeout is New with a custom request timeout
func NewWithTimeout(cfg *config.Config, log *logger.Logger, timeout time.Duration) *Client {
	c := New(cfg, log)
	c.httpClient.Timeout = timeout
	return c
}

// WithRetry sets the retry count and the first backoff delay
func (c *Client) WithRetry(maxRetries int, initialDelay time.Duration) *Client {
	c.retry.max = maxRetries
	c.retry.initial = initialDelay
	return c
}

// DisableRetry sends each request once
func (c *Client) DisableRetry() *Client {
	c.retry.max = 0
	return c
}

// WithLimiter sets a shared limiter (e.g. the Redis sliding window)
func (c *Client) WithLimiter(l Limiter) *Client {
	c.limiter = l
	return c
}

// WithLocalRateLimit limits this process to perSecond requests (0 = unlimited)
func (c *Client) WithLocalRateLimit(perSecond int) *Client {
	c.limiter = nil
	if perSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return c
}

// WithBreaker opens after consecutive failed requests and half-opens after timeout.
// One failed request is one breaker failure, however many attempts it took.
func (c *Client) WithBreaker(name string, timeout time.Duration) *Client {
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: breakerStatWindow,
		Timeout:  timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripAfter
		},
		IsSuccessful: func(err error) bool {
			// 호출자 취소는 업스트림 장애가 아님
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
	return c
}

// WithUserAgent overrides the User-Agent header
func (c *Client) WithUserAgent(ua string) *Client {
	c.userAgent = ua
	return c
}

// Get sends a GET. A 5xx/429 still failing after retries is a *StatusError;
// other statuses are returned to the caller.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build GET %s: %w", url, err)
	}
	return c.do(req)
}

// GetJSON decodes a 2xx JSON body into dest
func (c *Client) GetJSON(ctx context.Context, url string, dest interface{}) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return &StatusError{StatusCode: resp.StatusCode, URL: url}
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode JSON from %s: %w", url, err)
	}
	return nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := time.Now()
	resp, err := c.guarded(req)

	log := c.logger.WithFields(map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"duration": time.Since(start),
	})
	if err != nil {
		log.WithError(err).Error("HTTP request failed")
		return nil, err
	}
	log.WithField("status_code", resp.StatusCode).Debug("HTTP request completed")
	return resp, nil
}

// guarded runs the attempts through the breaker when one is configured
func (c *Client) guarded(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.attempts(req)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.attempts(req)
	})
	if err != nil {
		return nil, err
	}
	return out.(*http.Response), nil
}

// attempts sends req up to retry.max+1 times while the failure is retryable
func (c *Client) attempts(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}

		resp, err := c.httpClient.Do(req)
		if err == nil && !IsRetryableError(resp.StatusCode) {
			return resp, nil
		}
		if err == nil {
			drain(resp)
			err = &StatusError{StatusCode: resp.StatusCode, URL: req.URL.String()}
		}
		if attempt >= c.retry.max || req.Context().Err() != nil {
			return nil, err
		}

		wait := c.retry.delay(attempt)
		c.logger.WithError(err).WithFields(map[string]interface{}{
			"attempt": attempt + 1,
			"delay":   wait,
			"url":     req.URL.String(),
		}).Warn("Retrying HTTP request")

		t := time.NewTimer(wait)
		select {
		case <-req.Context().Done():
			t.Stop()
			return nil, req.Context().Err()
		case <-t.C:
		}
	}
}

// IsRetryableError reports whether a status is worth retrying (5xx, 429)
func IsRetryableError(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
