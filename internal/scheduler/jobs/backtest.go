package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/sentiment-ls/internal/pipeline"
	"github.com/wonny/sentiment-ls/internal/strategyconfig"
	"github.com/wonny/sentiment-ls/pkg/logger"
)

// ConfigRunner runs the pipeline described by a strategy config
type ConfigRunner interface {
	RunConfig(ctx context.Context, cfg *strategyconfig.Config) (*pipeline.RunResult, error)
}

// BacktestJob rebuilds the panel (when enabled) and re-runs the backtest on cfg.Schedule.Cron
type BacktestJob struct {
	runner ConfigRunner
	cfg    *strategyconfig.Config
	logger *logger.Logger
}

// NewBacktestJob creates a new backtest job
func NewBacktestJob(runner ConfigRunner, cfg *strategyconfig.Config, log *logger.Logger) *BacktestJob {
	return &BacktestJob{
		runner: runner,
		cfg:    cfg,
		logger: log,
	}
}

// Name returns the job name
func (j *BacktestJob) Name() string {
	return "sentiment_backtest"
}

// Schedule returns the configured cron expression
func (j *BacktestJob) Schedule() string {
	return j.cfg.Schedule.Cron
}

// Run executes one evaluation. Serving the previous metrics counts as success.
func (j *BacktestJob) Run(ctx context.Context) error {
	result, err := j.runner.RunConfig(ctx, j.cfg)
	if err != nil {
		return fmt.Errorf("run backtest: %w", err)
	}

	log := j.logger.WithFields(map[string]interface{}{
		"run_id":   result.RunID,
		"days":     len(result.Daily),
		"fallback": result.Fallback,
	})
	if result.Fallback {
		log.Warn("Scheduled backtest served previous metrics")
		return nil
	}
	log.Info("Scheduled backtest completed")
	return nil
}
