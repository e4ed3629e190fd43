package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/wonny/sentiment-ls/internal/audit"
	"github.com/wonny/sentiment-ls/internal/backtest"
	"github.com/wonny/sentiment-ls/internal/contracts"
	"github.com/wonny/sentiment-ls/internal/metrics"
	"github.com/wonny/sentiment-ls/internal/risk"
	"github.com/wonny/sentiment-ls/internal/s0_data"
	"github.com/wonny/sentiment-ls/internal/s0_data/quality"
	"github.com/wonny/sentiment-ls/internal/s2_signals"
	"github.com/wonny/sentiment-ls/internal/sentiment"
	"github.com/wonny/sentiment-ls/pkg/logger"
)

// ErrRunInProgress is returned when a run is requested while another is executing
var ErrRunInProgress = errors.New("backtest run already in progress")

var errFallback = errors.New("served previous metrics")

// PanelSaver persists a built sentiment panel
type PanelSaver interface {
	SaveBatch(ctx context.Context, panel []contracts.PanelRow) error
}

// Orchestrator coordinates panel → factors → returns → backtest → reports
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	// 필수
	prices contracts.PriceSource
	store  *audit.MetricsStore

	// 선택 (nil 이면 해당 단계 생략)
	panels    contracts.PanelSource
	recorder  contracts.RunRecorder
	headlines contracts.HeadlineSource
	panelSink PanelSaver
	registry  *metrics.Registry

	scorer     sentiment.Scorer
	calculator *s2_signals.SentimentCalculator
	engine     *backtest.Engine
	logger     *logger.Logger

	running sync.Mutex
}

// NewOrchestrator creates an orchestrator reading prices from prices and writing reports to store
func NewOrchestrator(prices contracts.PriceSource, store *audit.MetricsStore, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		prices:     prices,
		store:      store,
		scorer:     sentiment.NewLexiconScorer(),
		calculator: s2_signals.NewSentimentCalculator(log),
		engine:     backtest.NewEngine(log),
		logger:     log.Module("pipeline"),
	}
}

// WithPanelSource reads the panel from src instead of the request's CSV path
func (o *Orchestrator) WithPanelSource(src contracts.PanelSource) *Orchestrator {
	o.panels = src
	return o
}

// WithRecorder persists every completed run
func (o *Orchestrator) WithRecorder(r contracts.RunRecorder) *Orchestrator {
	o.recorder = r
	return o
}

// WithHeadlineSource enables fetching headlines for the sentiment build step
func (o *Orchestrator) WithHeadlineSource(src contracts.HeadlineSource) *Orchestrator {
	o.headlines = src
	return o
}

// WithPanelSink stores built panels in addition to the CSV file
func (o *Orchestrator) WithPanelSink(s PanelSaver) *Orchestrator {
	o.panelSink = s
	return o
}

// WithScorer replaces the headline scorer
func (o *Orchestrator) WithScorer(s sentiment.Scorer) *Orchestrator {
	o.scorer = s
	return o
}

// WithMetrics exports step timings and run results
func (o *Orchestrator) WithMetrics(r *metrics.Registry) *Orchestrator {
	o.registry = r
	return o
}

// RunRequest holds the parameters of one evaluation
type RunRequest struct {
	PanelPath  string
	Factor     contracts.Field
	Horizon    int
	Backtest   backtest.Config
	Quality    quality.Config
	Universe   []string  // 비어 있으면 패널에서 추출
	MaxTickers int       // 0 = s0_data.DefaultMaxTickers
	From, To   time.Time // zero = 패널 범위

	StrategyID string
	ConfigHash string
}

// DefaultRunRequest returns SENT_L1, horizon 1, canonical engine settings
func DefaultRunRequest(panelPath string) RunRequest {
	return RunRequest{
		PanelPath: panelPath,
		Factor:    contracts.FieldLaggedSentiment,
		Horizon:   1,
		Backtest:  backtest.DefaultConfig(),
		Quality:   quality.DefaultConfig(),
	}
}

func (r RunRequest) validate() error {
	if _, err := contracts.ParseField(string(r.Factor)); err != nil {
		return err
	}
	if r.Horizon < 1 {
		return fmt.Errorf("%w: got %d", s0_data.ErrInvalidHorizon, r.Horizon)
	}
	return r.Backtest.Validate()
}

// RunResult holds the outcome of a run
type RunResult struct {
	RunID    string                   `json:"run_id"`
	Report   audit.Report             `json:"report"`
	Daily    []contracts.DailyRecord  `json:"daily"`
	Summary  *audit.PerformanceReport `json:"summary,omitempty"`
	Sharpe   *risk.SharpeBand         `json:"sharpe_band,omitempty"` // nil = 정의 불가
	Quality  *quality.Snapshot        `json:"quality,omitempty"`
	Universe s0_data.UniverseInfo     `json:"universe"`
	Counts   StageCounts              `json:"counts"`
	Fallback bool                     `json:"fallback"` // true = 이전 결과 반환
	Duration time.Duration            `json:"duration"`
}

// StageCounts records row counts per stage
type StageCounts struct {
	PanelRows       int `json:"panel_rows"`
	PriceBars       int `json:"price_bars"`
	FactorRows      int `json:"factor_rows"`
	ReturnRows      int `json:"return_rows"`
	JoinedRows      int `json:"joined_rows"`
	SkippedThin     int `json:"skipped_thin"`
	SkippedOneSided int `json:"skipped_one_sided"`
}

// RunFromPanel executes the full evaluation for one request.
// A price-source failure falls back to the last stored metrics when they exist.
func (o *Orchestrator) RunFromPanel(ctx context.Context, req RunRequest) (result *RunResult, err error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if !o.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer o.running.Unlock()

	start := time.Now()
	result = &RunResult{RunID: audit.NewRunID()}
	log := o.logger.Run(result.RunID).WithFields(map[string]interface{}{
		"factor":  string(req.Factor),
		"horizon": req.Horizon,
	})
	log.Info("Starting backtest run")

	defer func() {
		runErr := err
		if result != nil {
			result.Duration = time.Since(start)
			if result.Fallback {
				runErr = errFallback
			}
		}
		o.registry.RecordRun(o.metricsOf(result), len(o.dailyOf(result)), runErr)
	}()

	// S0: 패널
	panel, err := step(o, "panel", func() ([]contracts.PanelRow, error) { return o.loadPanel(ctx, req) })
	if err != nil {
		return nil, err
	}
	result.Counts.PanelRows = len(panel)

	// S1: 유니버스
	result.Universe = s0_data.Universe(panel, req.MaxTickers)
	if len(req.Universe) > 0 {
		result.Universe.Tickers = append([]string(nil), req.Universe...)
	}
	from, to := result.Universe.From, result.Universe.To
	if !req.From.IsZero() {
		from = req.From
	}
	if !req.To.IsZero() {
		to = req.To
	}

	// S0: 가격 (외부 협력자, 실패 시 fallback)
	prices, err := step(o, "prices", func() ([]contracts.PriceBar, error) {
		return o.prices.FetchCloses(ctx, result.Universe.Tickers, from, to)
	})
	if err != nil {
		return o.fallback(ctx, log, result, fmt.Errorf("fetch prices: %w", err))
	}
	result.Counts.PriceBars = len(prices)

	returns, err := step(o, "returns", func() ([]contracts.ReturnRow, error) { return s0_data.ForwardReturns(prices, req.Horizon) })
	if err != nil {
		return nil, err
	}
	result.Counts.ReturnRows = len(returns)

	// S2: 팩터
	factors, err := step(o, "factors", func() ([]contracts.FactorRow, error) { return o.calculator.Calculate(panel) })
	if err != nil {
		return nil, err
	}
	result.Counts.FactorRows = len(factors)

	joined := s0_data.Join(factors, returns)
	result.Counts.JoinedRows = len(joined)

	// 품질 게이트 (경고만)
	gateCfg := req.Quality
	if gateCfg.MinCrossSection == 0 {
		gateCfg.MinCrossSection = req.Backtest.MinCrossSection
	}
	result.Quality = quality.NewQualityGate(gateCfg).Check(panel, prices, joined)
	if !result.Quality.Passed {
		log.WithFields(map[string]interface{}{
			"score":    result.Quality.QualityScore,
			"coverage": result.Quality.Coverage,
		}).Warn("Data quality below thresholds, continuing")
	}

	// S3: 백테스트
	bt, err := step(o, "backtest", func() (*backtest.Result, error) {
		return o.engine.Run(joined, req.Factor, contracts.FieldFwdReturn, req.Backtest)
	})
	if err != nil {
		return nil, err
	}
	result.Daily = bt.Daily
	result.Counts.SkippedThin = bt.SkippedThin
	result.Counts.SkippedOneSided = bt.SkippedOneSided
	result.Summary = audit.Summarize(bt.Daily)
	result.Sharpe = risk.BootstrapSharpe(bt.StrategyReturns(), risk.DefaultBootstrap())

	// S4: 리포트
	if _, err := step(o, "reports", func() (struct{}, error) {
		return struct{}{}, o.writeReports(ctx, bt, req.Factor)
	}); err != nil {
		return nil, err
	}
	result.Report = audit.Report{Metrics: bt.Metrics, EquityCurvePath: o.store.CurvePath()}

	if o.recorder != nil {
		run := &contracts.BacktestRun{
			RunID:      result.RunID,
			Factor:     req.Factor,
			Weighting:  string(req.Backtest.Weighting),
			Horizon:    req.Horizon,
			ConfigHash: req.ConfigHash,
			StartDate:  from,
			EndDate:    to,
			Metrics:    bt.Metrics,
			Daily:      bt.Daily,
		}
		if err := o.recorder.SaveRun(ctx, run); err != nil {
			log.WithError(err).Warn("Failed to record run")
		}
	}

	log.WithFields(map[string]interface{}{
		"days":        len(bt.Daily),
		"joined_rows": len(joined),
	}).Info("Backtest run completed")

	return result, nil
}

// LastMetrics returns the last stored metrics, all-null when none
func (o *Orchestrator) LastMetrics(ctx context.Context) audit.Report {
	return o.store.LastMetrics(ctx)
}

func (o *Orchestrator) loadPanel(ctx context.Context, req RunRequest) ([]contracts.PanelRow, error) {
	var (
		panel []contracts.PanelRow
		err   error
	)

	if o.panels != nil {
		panel, err = o.panels.LoadPanel(ctx)
	} else {
		panel, err = readPanelFile(req.PanelPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load panel: %w", err)
	}

	if req.From.IsZero() && req.To.IsZero() {
		return panel, nil
	}

	filtered := panel[:0:0]
	for _, row := range panel {
		d := contracts.Day(row.Date)
		if !req.From.IsZero() && d.Before(req.From) {
			continue
		}
		if !req.To.IsZero() && d.After(req.To) {
			continue
		}
		filtered = append(filtered, row)
	}
	return filtered, nil
}

func (o *Orchestrator) writeReports(ctx context.Context, bt *backtest.Result, factor contracts.Field) error {
	if err := o.store.Save(ctx, bt.Metrics); err != nil {
		return fmt.Errorf("save metrics: %w", err)
	}
	title := fmt.Sprintf("Sentiment L/S - %s", factor)
	if err := audit.WriteEquityCurve(o.store.CurvePath(), bt.Daily, title); err != nil {
		return fmt.Errorf("write equity curve: %w", err)
	}
	return nil
}

// fallback returns the last stored metrics when present, otherwise cause
func (o *Orchestrator) fallback(ctx context.Context, log *logger.Logger, result *RunResult, cause error) (*RunResult, error) {
	if !o.store.Exists() {
		log.WithError(cause).Error("Backtest run failed, no previous metrics")
		return nil, cause
	}

	log.WithError(cause).Warn("Backtest run failed, returning previous metrics")
	result.Report = o.store.LastMetrics(ctx)
	result.Fallback = true
	return result, nil
}

func (o *Orchestrator) metricsOf(r *RunResult) contracts.Metrics {
	if r == nil {
		return contracts.UndefinedMetrics()
	}
	return r.Report.Metrics
}

func (o *Orchestrator) dailyOf(r *RunResult) []contracts.DailyRecord {
	if r == nil {
		return nil
	}
	return r.Daily
}

// step times fn under the given step label
func step[T any](o *Orchestrator, name string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	o.registry.ObserveStep(name, start, err)
	if err != nil {
		o.logger.WithError(err).WithField("step", name).Debug("Step failed")
	}
	return v, err
}

func readPanelFile(path string) ([]contracts.PanelRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return s0_data.LoadPanelCSV(f)
}
