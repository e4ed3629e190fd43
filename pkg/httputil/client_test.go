package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wonny/sentiment-ls/pkg/config"
	"github.com/wonny/sentiment-ls/pkg/logger"
)

func newTestClient() *Client {
	return New(&config.Config{Env: "development"}, logger.Nop())
}

func TestNew(t *testing.T) {
	client := newTestClient()

	if client.httpClient == nil {
		t.Error("Expected http.Client to be initialized")
	}
	if client.retry.max != 3 {
		t.Errorf("retries = %d, want 3", client.retry.max)
	}
	if client.userAgent != DefaultUserAgent {
		t.Errorf("userAgent = %q, want %q", client.userAgent, DefaultUserAgent)
	}
}

func TestNewWithTimeout(t *testing.T) {
	timeout := 5 * time.Second
	client := NewWithTimeout(&config.Config{}, logger.Nop(), timeout)

	if client.httpClient.Timeout != timeout {
		t.Errorf("Timeout = %v, want %v", client.httpClient.Timeout, timeout)
	}
}

func TestWithRetry(t *testing.T) {
	client := newTestClient().WithRetry(5, 2*time.Second)

	if client.retry.max != 5 {
		t.Errorf("retries = %d, want 5", client.retry.max)
	}
	if client.retry.initial != 2*time.Second {
		t.Errorf("initial delay = %v, want 2s", client.retry.initial)
	}

	if newTestClient().DisableRetry().retry.max != 0 {
		t.Error("Expected retry to be disabled")
	}
}

func TestBackoffDelay(t *testing.T) {
	b := backoff{max: 5, initial: 100 * time.Millisecond, ceiling: time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{70, time.Second},
	}

	for _, tt := range tests {
		if got := b.delay(tt.attempt); got != tt.want {
			t.Errorf("delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET request, got %s", r.Method)
		}
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	var out struct {
		Status string `json:"status"`
	}
	if err := newTestClient().GetJSON(context.Background(), server.URL, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if out.Status != "ok" {
		t.Errorf("Status = %q, want ok", out.Status)
	}
}

func TestGetJSON_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	err := newTestClient().GetJSON(context.Background(), server.URL, &struct{}{})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("GetJSON() error = %v, want 404 StatusError", err)
	}
}

func TestRetryOn5xx(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := newTestClient().WithRetry(3, 10*time.Millisecond)

	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Request failed after retries: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestRetryExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient().WithRetry(1, time.Millisecond).Get(context.Background(), server.URL)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Errorf("Get() error = %v, want 502 StatusError", err)
	}
}

func TestBreakerOpens(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient().DisableRetry().WithBreaker("test", time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := client.Get(ctx, server.URL); err == nil {
			t.Fatalf("attempt %d: expected error", i)
		}
	}

	_, err := client.Get(ctx, server.URL)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Get() error = %v, want ErrOpenState", err)
	}
	if got := atomic.LoadInt32(&hits); got != 5 {
		t.Errorf("server hits = %d, want 5", got)
	}
}

func TestLocalRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	client := newTestClient().WithLocalRateLimit(20)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		resp, err := client.Get(ctx, server.URL)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		resp.Body.Close()
	}
	// burst 1 at 20/s: the 2nd and 3rd requests wait ~50ms each
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("elapsed = %v, expected rate limiting", elapsed)
	}

	if newTestClient().WithLocalRateLimit(0).limiter != nil {
		t.Error("WithLocalRateLimit(0) should disable limiting")
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		statusCode int
		want       bool
	}{
		{200, false},
		{400, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.statusCode), func(t *testing.T) {
			if got := IsRetryableError(tt.statusCode); got != tt.want {
				t.Errorf("IsRetryableError(%d) = %v, want %v", tt.statusCode, got, tt.want)
			}
		})
	}
}
