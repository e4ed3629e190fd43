package httputil_test

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/sentiment-ls/pkg/config"
	"github.com/wonny/sentiment-ls/pkg/httputil"
	"github.com/wonny/sentiment-ls/pkg/logger"
)

// Example_upstream demonstrates the settings used for a rate-limited JSON upstream
func Example_upstream() {
	cfg := &config.Config{Env: "production", LogLevel: "info"}
	log := logger.New(cfg)

	client := httputil.NewWithTimeout(cfg, log, 10*time.Second).
		WithRetry(2, 500*time.Millisecond).
		WithLocalRateLimit(2).
		WithBreaker("yahoo", time.Minute)

	var payload map[string]interface{}
	if err := client.GetJSON(context.Background(), "https://api.example.com/data", &payload); err != nil {
		fmt.Printf("Request failed: %v\n", err)
	}
}
