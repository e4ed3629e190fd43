package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (optional: DB 기능은 DATABASE_URL 이 있을 때만 활성화)
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Data sources
	Yahoo YahooConfig
	News  NewsConfig

	// Research run
	Research ResearchConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// YahooConfig holds the price chart API configuration
type YahooConfig struct {
	BaseURL   string
	RateLimit int // requests per second, 0 = unlimited
}

// NewsConfig holds the headline listing configuration
type NewsConfig struct {
	BaseURL   string
	RateLimit int
}

// ResearchConfig holds file locations for a research run
type ResearchConfig struct {
	StrategyPath string // YAML run config
	PanelPath    string // 센티먼트 패널 CSV
	ReportsDir   string // metrics.json, equity curve
}

// Load reads configuration from the environment (and .env when present)
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Yahoo: YahooConfig{
			BaseURL:   getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
			RateLimit: getEnvAsInt("PRICE_RATE_LIMIT", 2),
		},

		News: NewsConfig{
			BaseURL:   getEnv("NEWS_BASE_URL", ""),
			RateLimit: getEnvAsInt("NEWS_RATE_LIMIT", 1),
		},

		Research: ResearchConfig{
			StrategyPath: getEnv("STRATEGY_CONFIG", "configs/strategy.yaml"),
			PanelPath:    getEnv("PANEL_PATH", "data/sentiment_panel.csv"),
			ReportsDir:   getEnv("REPORTS_DIR", "reports"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate reports every invalid value at once
func (c *Config) validate() error {
	var errs []error

	switch c.Env {
	case "development", "staging", "production":
	default:
		errs = append(errs, fmt.Errorf("ENV %q: want development, staging or production", c.Env))
	}
	if c.Env == "production" && !c.Database.Enabled() {
		errs = append(errs, errors.New("DATABASE_URL is required in production"))
	}
	if c.Yahoo.RateLimit < 0 || c.News.RateLimit < 0 {
		errs = append(errs, errors.New("rate limits must be >= 0"))
	}
	if c.Research.ReportsDir == "" {
		errs = append(errs, errors.New("REPORTS_DIR must not be empty"))
	}

	return errors.Join(errs...)
}

// loadEnvFile loads the first .env found next to the working dir or the binary
func loadEnvFile() {
	paths := []string{".env"}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		paths = append(paths, filepath.Join(dir, ".env"), filepath.Join(dir, "..", ".env"))
	}

	for _, path := range paths {
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
}

// envOr parses key with parse, falling back to def when unset or malformed
func envOr[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func str(s string) (string, error) { return s, nil }

func getEnv(key, def string) string { return envOr(key, def, str) }
func getEnvAsInt(key string, def int) int { return envOr(key, def, strconv.Atoi) }
func getEnvAsBool(key string, def bool) bool { return envOr(key, def, strconv.ParseBool) }
func getEnvAsDuration(key string, def time.Duration) time.Duration {
	return envOr(key, def, time.ParseDuration)
}
