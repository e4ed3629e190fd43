package config_test

import (
	"fmt"

	"github.com/wonny/sentiment-ls/pkg/config"
)

// Example shows which parts of a research run are active for the loaded environment
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("strategy=%s panel=%s reports=%s\n",
		cfg.Research.StrategyPath, cfg.Research.PanelPath, cfg.Research.ReportsDir)

	if !cfg.Database.Enabled() {
		fmt.Println("run history: off (DATABASE_URL empty)")
	}
	if !cfg.Redis.Enabled {
		fmt.Println("shared rate limit: off, per-process limiter only")
	}
	fmt.Printf("yahoo %d req/s, news %d req/s\n", cfg.Yahoo.RateLimit, cfg.News.RateLimit)
}
