package backtest

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/sentiment-ls/internal/contracts"
	"github.com/wonny/sentiment-ls/internal/stats"
	"github.com/wonny/sentiment-ls/pkg/logger"
)

// ErrInvalidConfig is returned for out-of-range engine parameters
var ErrInvalidConfig = errors.New("invalid backtest config")

// Weighting selects how the long and short buckets are turned into a daily return
type Weighting string

const (
	// WeightingBucketSpread: mean(longs) - mean(shorts), buckets at factor quantiles
	WeightingBucketSpread Weighting = "bucket_spread"

	// WeightingDollarNeutral: percentile-rank buckets, ±1 weights scaled to unit gross exposure
	WeightingDollarNeutral Weighting = "dollar_neutral"
)

// ParseWeighting validates a weighting name (empty → bucket spread)
func ParseWeighting(name string) (Weighting, error) {
	switch Weighting(name) {
	case "", WeightingBucketSpread:
		return WeightingBucketSpread, nil
	case WeightingDollarNeutral:
		return WeightingDollarNeutral, nil
	default:
		return "", fmt.Errorf("%w: unknown weighting %q", ErrInvalidConfig, name)
	}
}

// Config holds backtest configuration
type Config struct {
	MinCrossSection int     // 이 수보다 적은 종목이 남은 날짜는 건너뜀
	ShortQuantile   float64 // factor <= q(ShortQuantile) → short
	LongQuantile    float64 // factor >= q(LongQuantile) → long
	Weighting       Weighting
	Workers         int // 날짜별 계산 동시성 (<= 1 이면 순차)
}

// DefaultConfig returns the canonical 30/70 bucket-spread configuration
func DefaultConfig() Config {
	return Config{
		MinCrossSection: 10,
		ShortQuantile:   0.3,
		LongQuantile:    0.7,
		Weighting:       WeightingBucketSpread,
		Workers:         1,
	}
}

// DollarNeutralConfig returns the top/bottom 20% dollar-neutral configuration.
// For this mode the quantiles apply to the percentile rank (rank/n) of the factor.
func DollarNeutralConfig() Config {
	cfg := DefaultConfig()
	cfg.ShortQuantile = 0.2
	cfg.LongQuantile = 0.8
	cfg.Weighting = WeightingDollarNeutral
	return cfg
}

// Validate checks parameter ranges
func (c Config) Validate() error {
	if c.MinCrossSection < 1 {
		return fmt.Errorf("%w: min cross section must be >= 1, got %d", ErrInvalidConfig, c.MinCrossSection)
	}
	if c.ShortQuantile < 0 || c.ShortQuantile > 1 || c.LongQuantile < 0 || c.LongQuantile > 1 {
		return fmt.Errorf("%w: quantiles must be within [0, 1], got %v / %v", ErrInvalidConfig, c.ShortQuantile, c.LongQuantile)
	}
	if c.ShortQuantile >= c.LongQuantile {
		return fmt.Errorf("%w: short quantile %v must be below long quantile %v", ErrInvalidConfig, c.ShortQuantile, c.LongQuantile)
	}
	if _, err := ParseWeighting(string(c.Weighting)); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidConfig, c.Workers)
	}
	return nil
}

// Result holds backtest results
type Result struct {
	Daily   []contracts.DailyRecord
	Metrics contracts.Metrics

	// 날짜 단위 집계
	TotalDates      int
	SkippedThin     int // MinCrossSection 미달
	SkippedOneSided int // long 또는 short 버킷이 비어 있음
}

// StrategyReturns returns the daily strategy returns in date order
func (r *Result) StrategyReturns() []float64 {
	out := make([]float64, len(r.Daily))
	for i, d := range r.Daily {
		out[i] = d.StrategyReturn
	}
	return out
}

type observation struct {
	factor float64
	ret    float64
}

type dateOutcome int

const (
	outcomeTraded dateOutcome = iota
	outcomeThin
	outcomeOneSided
)

type dateResult struct {
	date    time.Time
	ret     float64
	outcome dateOutcome
}

// RunLongShort evaluates a cross-sectional long/short strategy on joined rows.
// ⭐ SSOT: 롱숏 백테스트 계산은 여기서만
//
// Insufficient data never errors: thin or one-sided dates are skipped and undefined
// metrics are NaN. Unknown fields or an invalid config fail before any computation.
func RunLongShort(rows []contracts.JoinedRow, factorField, returnField contracts.Field, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := contracts.ParseField(string(factorField)); err != nil {
		return nil, fmt.Errorf("factor field: %w", err)
	}
	if _, err := contracts.ParseField(string(returnField)); err != nil {
		return nil, fmt.Errorf("return field: %w", err)
	}

	// 1. collect valid observations per date, and all of them for IC
	groups := make(map[time.Time][]observation)
	icFactors := make([]float64, 0, len(rows))
	icReturns := make([]float64, 0, len(rows))

	for i := range rows {
		f, _ := rows[i].Value(factorField)
		r, _ := rows[i].Value(returnField)
		if contracts.IsMissing(f) || contracts.IsMissing(r) {
			continue
		}
		d := contracts.Day(rows[i].Date)
		groups[d] = append(groups[d], observation{factor: f, ret: r})
		icFactors = append(icFactors, f)
		icReturns = append(icReturns, r)
	}

	dates := make([]time.Time, 0, len(groups))
	for d := range groups {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	// 2. per-date evaluation
	outcomes := evaluateDates(dates, groups, cfg)

	result := &Result{
		Daily:      make([]contracts.DailyRecord, 0, len(outcomes)),
		TotalDates: len(dates),
	}
	for _, o := range outcomes {
		switch o.outcome {
		case outcomeThin:
			result.SkippedThin++
		case outcomeOneSided:
			result.SkippedOneSided++
		default:
			result.Daily = append(result.Daily, contracts.DailyRecord{
				Date:           o.date,
				StrategyReturn: o.ret,
			})
		}
	}

	// 3. cumulative curve + metrics
	result.Metrics = contracts.UndefinedMetrics()
	result.Metrics.IC = stats.RankCorrelation(icFactors, icReturns)

	if len(result.Daily) == 0 {
		return result, nil
	}

	returns := result.StrategyReturns()
	cum := stats.CumulativeProduct(returns)
	for i := range result.Daily {
		result.Daily[i].CumReturn = cum[i]
	}

	result.Metrics.Sharpe = stats.AnnualizedSharpe(returns)
	result.Metrics.MaxDD = stats.MaxDrawdown(cum)

	return result, nil
}

// evaluateDates fans the per-date work out to cfg.Workers goroutines.
// Output order always matches dates.
func evaluateDates(dates []time.Time, groups map[time.Time][]observation, cfg Config) []dateResult {
	out := make([]dateResult, len(dates))

	if cfg.Workers <= 1 || len(dates) < 2 {
		for i, d := range dates {
			out[i] = evaluateDate(d, groups[d], cfg)
		}
		return out
	}

	idxCh := make(chan int, len(dates))
	var wg sync.WaitGroup

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idxCh {
				// 각 워커는 자기 인덱스에만 쓴다
				out[i] = evaluateDate(dates[i], groups[dates[i]], cfg)
			}
		}()
	}

	for i := range dates {
		idxCh <- i
	}
	close(idxCh)
	wg.Wait()

	return out
}

func evaluateDate(date time.Time, obs []observation, cfg Config) dateResult {
	res := dateResult{date: date}

	if len(obs) < cfg.MinCrossSection {
		res.outcome = outcomeThin
		return res
	}

	factors := make([]float64, len(obs))
	for i, o := range obs {
		factors[i] = o.factor
	}

	var ok bool
	switch cfg.Weighting {
	case WeightingDollarNeutral:
		res.ret, ok = dollarNeutralReturn(obs, factors, cfg)
	default:
		res.ret, ok = bucketSpreadReturn(obs, factors, cfg)
	}
	if !ok {
		res.outcome = outcomeOneSided
	}
	return res
}

// bucketSpreadReturn = mean(long returns) - mean(short returns)
func bucketSpreadReturn(obs []observation, factors []float64, cfg Config) (float64, bool) {
	low := stats.Quantile(factors, cfg.ShortQuantile)
	high := stats.Quantile(factors, cfg.LongQuantile)

	var longSum, shortSum float64
	var longN, shortN int
	for _, o := range obs {
		if o.factor >= high {
			longSum += o.ret
			longN++
		}
		if o.factor <= low {
			shortSum += o.ret
			shortN++
		}
	}

	if longN == 0 || shortN == 0 {
		return 0, false
	}
	return longSum/float64(longN) - shortSum/float64(shortN), true
}

// dollarNeutralReturn = Σ w·r with ±1 weights divided by the gross count
func dollarNeutralReturn(obs []observation, factors []float64, cfg Config) (float64, bool) {
	ranks := stats.Ranks(factors)
	n := float64(len(obs))

	signs := make([]float64, len(obs))
	var longN, shortN int
	for i, rk := range ranks {
		pct := rk / n
		if pct >= cfg.LongQuantile {
			signs[i] = 1
			longN++
		} else if pct <= cfg.ShortQuantile {
			signs[i] = -1
			shortN++
		}
	}

	if longN == 0 || shortN == 0 {
		return 0, false
	}

	gross := float64(longN + shortN)
	var ret float64
	for i, o := range obs {
		ret += signs[i] / gross * o.ret
	}
	return ret, true
}

// Engine runs RunLongShort with structured logging of the run summary
type Engine struct {
	logger *logger.Logger
}

// NewEngine creates a new backtest engine
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{
		logger: log.Module("backtest"),
	}
}

// Run executes the long/short backtest and logs the outcome
func (e *Engine) Run(rows []contracts.JoinedRow, factorField, returnField contracts.Field, cfg Config) (*Result, error) {
	start := time.Now()

	result, err := RunLongShort(rows, factorField, returnField, cfg)
	if err != nil {
		e.logger.WithError(err).WithField("factor", string(factorField)).Error("Backtest rejected")
		return nil, err
	}

	fields := map[string]interface{}{
		"factor":            string(factorField),
		"weighting":         string(cfg.Weighting),
		"rows":              len(rows),
		"dates":             result.TotalDates,
		"traded_dates":      len(result.Daily),
		"skipped_thin":      result.SkippedThin,
		"skipped_one_sided": result.SkippedOneSided,
		"duration_ms":       time.Since(start).Milliseconds(),
	}
	// NaN 은 JSON 로그에 넣지 않는다
	for k, v := range result.Metrics.AsMap() {
		if v != nil {
			fields[k] = fmt.Sprintf("%.4f", *v)
		}
	}
	e.logger.WithFields(fields).Info("Backtest completed")

	return result, nil
}
