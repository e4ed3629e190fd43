package strategyconfig

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/wonny/sentiment-ls/internal/backtest"
	"github.com/wonny/sentiment-ls/internal/contracts"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// scheduleParser matches the scheduler's cron.WithSeconds()
var scheduleParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if strings.TrimSpace(cfg.Meta.StrategyID) == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	// === Data ===
	if cfg.Data.PanelPath == "" && !cfg.Sentiment.Enabled {
		return ValidationError{"data.panel_path", "required unless sentiment.enabled"}
	}
	if cfg.Data.MaxTickers < 0 {
		return ValidationError{"data.max_tickers", "must be >= 0"}
	}
	from, to, err := cfg.DateRange()
	if err != nil {
		return ValidationError{"data.start/end", "must be YYYY-MM-DD"}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return ValidationError{"data.end", "must not be before data.start"}
	}

	// === Factor ===
	f, err := contracts.ParseField(cfg.Factor.Name)
	if err != nil || f == contracts.FieldFwdReturn {
		return ValidationError{"factor.name", fmt.Sprintf("must be one of %s, %s, %s",
			contracts.FieldSentiment, contracts.FieldLaggedSentiment, contracts.FieldShockSentiment)}
	}
	if cfg.Factor.Horizon < 1 {
		return ValidationError{"factor.horizon", "must be >= 1"}
	}

	// === Portfolio ===
	if _, err := backtest.ParseWeighting(cfg.Portfolio.Weighting); err != nil {
		return ValidationError{"portfolio.weighting", "must be bucket_spread or dollar_neutral"}
	}
	if err := cfg.BacktestConfig().Validate(); err != nil {
		return ValidationError{"portfolio", err.Error()}
	}

	// === Sentiment ===
	if cfg.Sentiment.Enabled {
		if cfg.Sentiment.RawHeadlinesCSV == "" && !cfg.Sentiment.FetchNews {
			return ValidationError{"sentiment.raw_headlines_csv", "required unless sentiment.fetch_news"}
		}
		if cfg.Sentiment.BatchSize < 1 {
			return ValidationError{"sentiment.batch_size", "must be >= 1"}
		}
	}

	// === Quality ===
	q := cfg.Quality
	ratios := []struct {
		field string
		value float64
	}{
		{"quality.min_sentiment_coverage", q.MinSentimentCoverage},
		{"quality.min_price_coverage", q.MinPriceCoverage},
		{"quality.min_eligible_dates", q.MinEligibleDates},
	}
	for _, r := range ratios {
		if r.value < 0 || r.value > 1 {
			return ValidationError{r.field, "must be within [0, 1]"}
		}
	}

	// === Reports ===
	if cfg.Reports.OutDir == "" {
		return ValidationError{"reports.out_dir", "required"}
	}

	// === Schedule ===
	if cfg.Schedule.Cron != "" {
		if _, err := scheduleParser.Parse(cfg.Schedule.Cron); err != nil {
			return ValidationError{"schedule.cron", err.Error()}
		}
	}

	return nil
}
