package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wonny/sentiment-ls/internal/contracts"
	"github.com/wonny/sentiment-ls/pkg/logger"
	"github.com/wonny/sentiment-ls/pkg/redis"
)

const (
	// MetricsFile is the metrics mapping written after each run
	MetricsFile = "metrics.json"
	// EquityCurveFile is the rendered cumulative-return document
	EquityCurveFile = "equity_curve.pdf"
)

// Report is what callers get back from a run or a last-metrics lookup
type Report struct {
	Metrics         contracts.Metrics `json:"metrics"`
	EquityCurvePath string            `json:"equity_curve_path"`
}

// MetricsStore persists the last run's metrics under a reports directory
// ⭐ SSOT: metrics.json 읽기/쓰기는 여기서만
type MetricsStore struct {
	dir    string
	cache  *redis.Cache // nil = no cache
	logger *logger.Logger
}

// NewMetricsStore creates a store rooted at dir
func NewMetricsStore(dir string, log *logger.Logger) *MetricsStore {
	return &MetricsStore{dir: dir, logger: log.Module("audit")}
}

// WithCache puts a Redis cache in front of LastMetrics
func (s *MetricsStore) WithCache(cache *redis.Cache) *MetricsStore {
	s.cache = cache
	return s
}

// MetricsPath returns the metrics file location
func (s *MetricsStore) MetricsPath() string {
	return filepath.Join(s.dir, MetricsFile)
}

// CurvePath returns the equity curve location
func (s *MetricsStore) CurvePath() string {
	return filepath.Join(s.dir, EquityCurveFile)
}

// Exists reports whether a metrics file has been written
func (s *MetricsStore) Exists() bool {
	_, err := os.Stat(s.MetricsPath())
	return err == nil
}

// Save writes metrics.json (NaN → null) and refreshes the cache
func (s *MetricsStore) Save(ctx context.Context, m contracts.Metrics) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create reports dir: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	// rename 으로 교체해서 읽는 쪽이 반쯤 쓴 파일을 보지 않게 한다
	tmp := s.MetricsPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	if err := os.Rename(tmp, s.MetricsPath()); err != nil {
		return fmt.Errorf("replace metrics: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, redis.LastMetricsKey(), m, redis.TTLMetrics); err != nil {
			s.logger.WithError(err).Warn("Metrics cache set failed, dropping stale entry")
			_ = s.cache.Delete(ctx, redis.LastMetricsKey())
		}
	}

	return nil
}

// LastMetrics returns the most recent metrics. A missing or corrupt file yields all-null metrics.
func (s *MetricsStore) LastMetrics(ctx context.Context) Report {
	report := Report{
		Metrics:         contracts.UndefinedMetrics(),
		EquityCurvePath: s.CurvePath(),
	}

	if s.cache != nil {
		var cached contracts.Metrics
		if hit, err := s.cache.Get(ctx, redis.LastMetricsKey(), &cached); err == nil && hit {
			report.Metrics = cached
			return report
		}
	}

	data, err := os.ReadFile(s.MetricsPath())
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WithError(err).Warn("Read metrics failed")
		}
		return report
	}

	var m contracts.Metrics
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.WithError(err).Warn("Metrics file corrupt, returning empty metrics")
		return report
	}

	report.Metrics = m
	return report
}
