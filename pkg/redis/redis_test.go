package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wonny/sentiment-ls/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if client.Enabled() {
		t.Error("Expected client to be disabled")
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := PerSecond(Disabled(), "test", "yahoo", 2)

	allowed, retry, err := limiter.Allow(context.Background())
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Error("Expected request to be allowed when Redis disabled")
	}
	if retry != 0 {
		t.Errorf("retry = %v, want 0", retry)
	}

	// never blocks when disabled
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	for i := 0; i < 5; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(Disabled(), "test")
	ctx := context.Background()

	var result string
	found, err := cache.Get(ctx, "key", &result)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Expected cache miss when Redis disabled")
	}
	if err := cache.Set(ctx, "key", "value", TTLShort); err != nil {
		t.Errorf("Set() error = %v", err)
	}
	if err := cache.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestRemember_Disabled(t *testing.T) {
	cache := NewCache(Disabled(), "test")
	ctx := context.Background()

	calls := 0
	load := func(context.Context) ([]float64, error) {
		calls++
		return []float64{1, 2}, nil
	}

	for i := 0; i < 2; i++ {
		got, err := Remember(ctx, cache, "closes", TTLCloses, load)
		if err != nil {
			t.Fatalf("Remember() error = %v", err)
		}
		if len(got) != 2 {
			t.Errorf("Remember() = %v, want 2 values", got)
		}
	}
	if calls != 2 {
		t.Errorf("load calls = %d, want 2 without a live cache", calls)
	}

	var nilCache *Cache
	if _, err := Remember(ctx, nilCache, "closes", TTLCloses, load); err != nil {
		t.Errorf("Remember(nil cache) error = %v", err)
	}
}

func TestRemember_LoadError(t *testing.T) {
	want := errors.New("upstream down")
	_, err := Remember(context.Background(), NewCache(Disabled(), "test"), "k", TTLShort,
		func(context.Context) (int, error) { return 0, want })
	if !errors.Is(err, want) {
		t.Errorf("Remember() error = %v, want %v", err, want)
	}
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		fn       func() string
		expected string
	}{
		{"LastMetricsKey", LastMetricsKey, "metrics:last"},
		{"ClosesKey", func() string { return ClosesKey("AAPL", "2024-01-01", "2024-03-31") }, "closes:AAPL:2024-01-01:2024-03-31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPerSecond(t *testing.T) {
	l := PerSecond(Disabled(), "sentiment-ls", "yahoo", 4)
	if l.limit != 4 || l.window != time.Second {
		t.Errorf("PerSecond() = limit %d window %v", l.limit, l.window)
	}
	if l.key != "sentiment-ls:ratelimit:yahoo" {
		t.Errorf("key = %q", l.key)
	}
}
