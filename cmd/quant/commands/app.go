package commands

import (
	"fmt"
	"time"

	"github.com/wonny/sentiment-ls/internal/audit"
	"github.com/wonny/sentiment-ls/internal/contracts"
	"github.com/wonny/sentiment-ls/internal/external/news"
	"github.com/wonny/sentiment-ls/internal/external/yahoo"
	"github.com/wonny/sentiment-ls/internal/metrics"
	"github.com/wonny/sentiment-ls/internal/pipeline"
	"github.com/wonny/sentiment-ls/internal/s0_data"
	"github.com/wonny/sentiment-ls/internal/strategyconfig"
	"github.com/wonny/sentiment-ls/pkg/config"
	"github.com/wonny/sentiment-ls/pkg/database"
	"github.com/wonny/sentiment-ls/pkg/httputil"
	"github.com/wonny/sentiment-ls/pkg/logger"
	"github.com/wonny/sentiment-ls/pkg/redis"
)

// app holds the wired collaborators shared by the commands
// ⭐ SSOT: 의존성 조립은 여기서만
type app struct {
	cfg      *config.Config
	strategy *strategyconfig.Config
	log      *logger.Logger

	redis    *redis.Client
	db       *database.DB      // nil = DB 비활성
	runs     *audit.Repository // nil = DB 비활성
	store    *audit.MetricsStore
	registry *metrics.Registry
	orch     *pipeline.Orchestrator
}

// newApp loads env + strategy config and wires every collaborator.
// Redis and the database are optional: a failed connection is logged and the feature is skipped.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	path := strategyFile
	if path == "" {
		path = cfg.Research.StrategyPath
	}
	strategy, snap, err := strategyconfig.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load strategy %s: %w", path, err)
	}
	if strategy.Data.PanelPath == "" {
		strategy.Data.PanelPath = cfg.Research.PanelPath
	}
	if strategy.Reports.OutDir == "" {
		strategy.Reports.OutDir = cfg.Research.ReportsDir
	}

	a := &app{
		cfg:      cfg,
		strategy: strategy,
		log:      log,
		registry: metrics.NewRegistry(),
	}

	// 1. Redis (캐시 + 분산 rate limit)
	a.redis, err = redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		a.redis = redis.Disabled()
	}
	cache := redis.NewCache(a.redis, "sentiment-ls")

	// 2. PostgreSQL
	if cfg.Database.Enabled() {
		db, err := database.New(cfg)
		if err != nil {
			log.WithError(err).Warn("Database unavailable, continuing file-only")
		} else {
			a.db = db
			a.runs = audit.NewRepository(db.Pool)
		}
	}

	// 3. 외부 소스
	yahooClient := yahoo.NewClient(a.upstreamClient("yahoo", cfg.Yahoo.RateLimit), cfg.Yahoo.BaseURL, log).
		WithCache(cache)
	var prices contracts.PriceSource = yahooClient
	if a.db != nil {
		prices = s0_data.NewCachedPriceSource(s0_data.NewPriceRepository(a.db.Pool), yahooClient)
	}

	// 4. 리포트 + 파이프라인
	a.store = audit.NewMetricsStore(strategy.Reports.OutDir, log).WithCache(cache)
	a.orch = pipeline.NewOrchestrator(prices, a.store, log).WithMetrics(a.registry)

	if a.db != nil {
		a.orch.WithRecorder(a.runs).WithPanelSink(s0_data.NewPanelRepository(a.db.Pool))
	}
	if cfg.News.BaseURL != "" {
		a.orch.WithHeadlineSource(news.NewClient(a.upstreamClient("news", cfg.News.RateLimit), cfg.News.BaseURL, log))
	}

	log.WithFields(map[string]interface{}{
		"strategy":    snap.StrategyID,
		"config_hash": snap.ConfigHash,
		"factor":      strategy.Factor.Name,
		"redis":       a.redis.Enabled(),
		"database":    a.db != nil,
	}).Debug("Application wired")

	return a, nil
}

// upstreamClient builds an HTTP client with retry, a circuit breaker and a rate limit.
// The limit is shared through Redis when available.
func (a *app) upstreamClient(name string, perSecond int) *httputil.Client {
	c := httputil.New(a.cfg, a.log).WithBreaker(name, 30*time.Second)
	if perSecond <= 0 {
		return c
	}
	if a.redis.Enabled() {
		return c.WithLimiter(redis.PerSecond(a.redis, "sentiment-ls", name, perSecond))
	}
	return c.WithLocalRateLimit(perSecond)
}

func (a *app) close() {
	a.db.Close()
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Debug("Redis close failed")
	}
}
