package backtest

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sentiment-ls/internal/contracts"
	"github.com/wonny/sentiment-ls/pkg/logger"
)

var start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// panel builds nTickers × nDates joined rows; fn gives (factor, fwd return)
func panel(nTickers, nDates int, fn func(t, d int) (float64, float64)) []contracts.JoinedRow {
	var rows []contracts.JoinedRow
	for d := 0; d < nDates; d++ {
		for t := 0; t < nTickers; t++ {
			f, r := fn(t, d)
			rows = append(rows, contracts.JoinedRow{
				Date:            start.AddDate(0, 0, d),
				Ticker:          fmt.Sprintf("T%02d", t),
				Sentiment:       f,
				LaggedSentiment: f,
				ShockSentiment:  f,
				FwdReturn:       r,
			})
		}
	}
	return rows
}

func ampleFn(t, d int) (float64, float64) {
	f := float64(d+1)*0.1 + float64(t)*0.01
	r := 0.001*float64(t) - 0.004 + 0.003*math.Sin(float64(d*7+t))
	return f, r
}

func TestRunLongShort_Ample(t *testing.T) {
	rows := panel(12, 4, ampleFn)

	res, err := RunLongShort(rows, contracts.FieldLaggedSentiment, contracts.FieldFwdReturn, DefaultConfig())
	require.NoError(t, err)

	require.Len(t, res.Daily, 4)
	for i := 1; i < len(res.Daily); i++ {
		assert.True(t, res.Daily[i-1].Date.Before(res.Daily[i].Date))
	}
	assert.False(t, math.IsNaN(res.Metrics.Sharpe))
	assert.False(t, math.IsInf(res.Metrics.Sharpe, 0))
	assert.LessOrEqual(t, res.Metrics.MaxDD, 0.0)
	assert.False(t, math.IsNaN(res.Metrics.IC))
	assert.Equal(t, 4, res.TotalDates)
}

func TestRunLongShort_CumulativeIdentity(t *testing.T) {
	res, err := RunLongShort(panel(12, 20, ampleFn), contracts.FieldSentiment, contracts.FieldFwdReturn, DefaultConfig())
	require.NoError(t, err)
	require.NotEmpty(t, res.Daily)

	assert.InDelta(t, 1+res.Daily[0].StrategyReturn, res.Daily[0].CumReturn, 1e-12)
	for i := 1; i < len(res.Daily); i++ {
		want := res.Daily[i-1].CumReturn * (1 + res.Daily[i].StrategyReturn)
		assert.InDelta(t, want, res.Daily[i].CumReturn, 1e-12)
	}
}

func TestRunLongShort_NonNegativeReturnsNeverDrawDown(t *testing.T) {
	// returns increase with the factor → every spread is positive
	rows := panel(10, 8, func(t, d int) (float64, float64) {
		return float64(t), 0.001 * float64(t+d)
	})

	res, err := RunLongShort(rows, contracts.FieldSentiment, contracts.FieldFwdReturn, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Daily, 8)

	for i := 1; i < len(res.Daily); i++ {
		assert.GreaterOrEqual(t, res.Daily[i].CumReturn, res.Daily[i-1].CumReturn)
	}
	assert.Equal(t, 0.0, res.Metrics.MaxDD)
}

func TestRunLongShort_BucketSpreadValue(t *testing.T) {
	// factor 1..10, return = factor/100: q30 = 3.7, q70 = 7.3
	rows := panel(10, 1, func(t, d int) (float64, float64) {
		f := float64(t + 1)
		return f, f / 100
	})

	res, err := RunLongShort(rows, contracts.FieldSentiment, contracts.FieldFwdReturn, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Daily, 1)

	// longs {8,9,10} → 0.09, shorts {1,2,3} → 0.02
	assert.InDelta(t, 0.07, res.Daily[0].StrategyReturn, 1e-12)
	// single point: Sharpe undefined, drawdown zero
	assert.True(t, math.IsNaN(res.Metrics.Sharpe))
	assert.Equal(t, 0.0, res.Metrics.MaxDD)
}

func TestRunLongShort_DollarNeutralValue(t *testing.T) {
	rows := panel(10, 1, func(t, d int) (float64, float64) {
		f := float64(t + 1)
		return f, f / 100
	})

	res, err := RunLongShort(rows, contracts.FieldSentiment, contracts.FieldFwdReturn, DollarNeutralConfig())
	require.NoError(t, err)
	require.Len(t, res.Daily, 1)

	// pct rank ≥ 0.8 → {8,9,10}, ≤ 0.2 → {1,2}, gross 5
	want := (0.08+0.09+0.10)/5 - (0.01+0.02)/5
	assert.InDelta(t, want, res.Daily[0].StrategyReturn, 1e-12)
}

func TestRunLongShort_ThinCrossSection(t *testing.T) {
	rows := panel(5, 6, ampleFn)

	res, err := RunLongShort(rows, contracts.FieldSentiment, contracts.FieldFwdReturn, DefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, res.Daily)
	assert.Empty(t, res.Daily)
	assert.Equal(t, 6, res.SkippedThin)
	assert.True(t, math.IsNaN(res.Metrics.Sharpe))
	assert.True(t, math.IsNaN(res.Metrics.MaxDD))
	// IC still uses every valid row (30 pairs)
	assert.False(t, math.IsNaN(res.Metrics.IC))

	m := res.Metrics.AsMap()
	for _, key := range []string{"IC", "Sharpe", "MaxDD", "Turnover"} {
		_, ok := m[key]
		assert.True(t, ok, "metric key %s missing", key)
	}
}

func TestRunLongShort_MissingValuesReduceCrossSection(t *testing.T) {
	rows := panel(11, 2, ampleFn)
	// date 0 loses two tickers → 9 valid rows → skipped
	rows[0].LaggedSentiment = math.NaN()
	rows[1].FwdReturn = math.NaN()

	res, err := RunLongShort(rows, contracts.FieldLaggedSentiment, contracts.FieldFwdReturn, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Daily, 1)
	assert.True(t, res.Daily[0].Date.Equal(start.AddDate(0, 0, 1)))
	assert.Equal(t, 1, res.SkippedThin)
}

func TestRunLongShort_OneSidedDateSkipped(t *testing.T) {
	// nine tied at the bottom: their pct rank is 0.5, only the top name is bucketed
	rows := panel(10, 1, func(t, d int) (float64, float64) {
		if t == 9 {
			return 1.0, 0.02
		}
		return 0.0, 0.01
	})

	res, err := RunLongShort(rows, contracts.FieldSentiment, contracts.FieldFwdReturn, DollarNeutralConfig())
	require.NoError(t, err)
	assert.Empty(t, res.Daily)
	assert.Equal(t, 1, res.SkippedOneSided)
	assert.True(t, math.IsNaN(res.Metrics.Sharpe))
}

func TestRunLongShort_UnknownField(t *testing.T) {
	rows := panel(12, 2, ampleFn)

	_, err := RunLongShort(rows, contracts.Field("SENT_MOMO"), contracts.FieldFwdReturn, DefaultConfig())
	if !errors.Is(err, contracts.ErrUnknownField) {
		t.Errorf("RunLongShort() error = %v, want ErrUnknownField", err)
	}

	_, err = RunLongShort(rows, contracts.FieldSentiment, contracts.Field("ret"), DefaultConfig())
	if !errors.Is(err, contracts.ErrUnknownField) {
		t.Errorf("RunLongShort() error = %v, want ErrUnknownField", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"zero min cross section", func(c *Config) { c.MinCrossSection = 0 }, true},
		{"short above long", func(c *Config) { c.ShortQuantile = 0.8 }, true},
		{"quantile out of range", func(c *Config) { c.LongQuantile = 1.2 }, true},
		{"unknown weighting", func(c *Config) { c.Weighting = "equal_risk" }, true},
		{"negative workers", func(c *Config) { c.Workers = -1 }, true},
		{"empty weighting", func(c *Config) { c.Weighting = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestRunLongShort_ParallelMatchesSequential(t *testing.T) {
	rows := panel(15, 60, ampleFn)

	seq, err := RunLongShort(rows, contracts.FieldSentiment, contracts.FieldFwdReturn, DefaultConfig())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Workers = 4
	par, err := RunLongShort(rows, contracts.FieldSentiment, contracts.FieldFwdReturn, cfg)
	require.NoError(t, err)

	assert.Equal(t, seq.Daily, par.Daily)
	assert.Equal(t, seq.Metrics.Sharpe, par.Metrics.Sharpe)
}

func TestRunLongShort_EmptyInput(t *testing.T) {
	res, err := RunLongShort(nil, contracts.FieldSentiment, contracts.FieldFwdReturn, DefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, res.Daily)
	assert.Empty(t, res.Daily)
	assert.True(t, math.IsNaN(res.Metrics.IC))
}

func TestEngine_Run(t *testing.T) {
	engine := NewEngine(logger.Nop())

	res, err := engine.Run(panel(12, 4, ampleFn), contracts.FieldShockSentiment, contracts.FieldFwdReturn, DefaultConfig())
	require.NoError(t, err)
	assert.Len(t, res.Daily, 4)

	_, err = engine.Run(nil, contracts.FieldShockSentiment, contracts.FieldFwdReturn, Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseWeighting(t *testing.T) {
	w, err := ParseWeighting("dollar_neutral")
	require.NoError(t, err)
	assert.Equal(t, WeightingDollarNeutral, w)

	w, err = ParseWeighting("")
	require.NoError(t, err)
	assert.Equal(t, WeightingBucketSpread, w)

	_, err = ParseWeighting("x")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
