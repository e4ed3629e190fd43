package pipeline

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sentiment-ls/internal/audit"
	"github.com/wonny/sentiment-ls/internal/contracts"
	"github.com/wonny/sentiment-ls/internal/metrics"
	"github.com/wonny/sentiment-ls/internal/s0_data"
	"github.com/wonny/sentiment-ls/internal/strategyconfig"
	"github.com/wonny/sentiment-ls/pkg/logger"
)

const (
	nTickers = 12
	nDays    = 8
)

var day0 = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

func ticker(i int) string { return string(rune('A'+i)) + "CO" }

func testPanel() []contracts.PanelRow {
	var rows []contracts.PanelRow
	for t := 0; t < nTickers; t++ {
		for d := 0; d < nDays; d++ {
			rows = append(rows, contracts.PanelRow{
				Date:        day0.AddDate(0, 0, d),
				Ticker:      ticker(t),
				Sentiment:   math.Sin(float64(t)*1.3 + float64(d)*0.7),
				SourceCount: 1,
			})
		}
	}
	return rows
}

// fakePrices returns a deterministic close for every (ticker, day) in range
type fakePrices struct {
	err     error
	calls   int
	block   chan struct{}
	entered chan struct{}
}

func (f *fakePrices) FetchCloses(ctx context.Context, tickers []string, from, to time.Time) ([]contracts.PriceBar, error) {
	f.calls++
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}

	var bars []contracts.PriceBar
	for i, tk := range tickers {
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			n := float64(d.Sub(from).Hours() / 24)
			bars = append(bars, contracts.PriceBar{
				Date:   d,
				Ticker: tk,
				Close:  100 + n*float64(i+1) + float64(int(n)%2*i),
			})
		}
	}
	return bars, nil
}

type recorder struct {
	mu   sync.Mutex
	runs []*contracts.BacktestRun
	err  error
}

func (r *recorder) SaveRun(_ context.Context, run *contracts.BacktestRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return r.err
}

func writePanel(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "panel.csv")
	require.NoError(t, writePanelFile(path, testPanel()))
	return path
}

func newOrchestrator(t *testing.T, prices contracts.PriceSource) (*Orchestrator, string) {
	t.Helper()
	dir := t.TempDir()
	store := audit.NewMetricsStore(filepath.Join(dir, "reports"), logger.Nop())
	return NewOrchestrator(prices, store, logger.Nop()), dir
}

func TestRunFromPanel(t *testing.T) {
	prices := &fakePrices{}
	o, dir := newOrchestrator(t, prices)
	rec := &recorder{}
	reg := metrics.NewRegistry()
	o.WithRecorder(rec).WithMetrics(reg)

	req := DefaultRunRequest(writePanel(t, dir))
	req.Factor = contracts.FieldShockSentiment
	req.ConfigHash = "abc"

	result, err := o.RunFromPanel(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, result.Fallback)
	assert.Equal(t, nTickers*nDays, result.Counts.PanelRows)
	assert.Len(t, result.Universe.Tickers, nTickers)
	// 팩터는 3번째 날부터, 선행 수익률은 마지막 날 제외
	assert.Equal(t, nTickers*(nDays-2), result.Counts.FactorRows)
	assert.Equal(t, nTickers*(nDays-3), result.Counts.JoinedRows)
	require.Len(t, result.Daily, nDays-3)
	assert.NotNil(t, result.Summary)
	assert.NotNil(t, result.Quality)
	assert.Greater(t, result.Duration, time.Duration(0))

	for i := 1; i < len(result.Daily); i++ {
		assert.True(t, result.Daily[i].Date.After(result.Daily[i-1].Date))
	}
	assert.False(t, math.IsNaN(result.Report.Metrics.Sharpe))
	assert.LessOrEqual(t, result.Report.Metrics.MaxDD, 0.0)

	_, err = os.Stat(filepath.Join(dir, "reports", audit.MetricsFile))
	assert.NoError(t, err)
	_, err = os.Stat(result.Report.EquityCurvePath)
	assert.NoError(t, err)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, result.RunID, rec.runs[0].RunID)
	assert.Equal(t, "abc", rec.runs[0].ConfigHash)
	assert.Equal(t, "bucket_spread", rec.runs[0].Weighting)

	last := o.LastMetrics(context.Background())
	assert.InDelta(t, result.Report.Metrics.Sharpe, last.Metrics.Sharpe, 1e-12)
}

func TestRunFromPanel_ThinPanel(t *testing.T) {
	o, dir := newOrchestrator(t, &fakePrices{})

	req := DefaultRunRequest(writePanel(t, dir))
	req.Universe = []string{ticker(0), ticker(1), ticker(2)}

	result, err := o.RunFromPanel(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, result.Daily)
	assert.True(t, math.IsNaN(result.Report.Metrics.Sharpe))
	assert.True(t, math.IsNaN(result.Report.Metrics.MaxDD))
	assert.False(t, result.Quality.Passed)
}

func TestRunFromPanel_DateFilter(t *testing.T) {
	o, dir := newOrchestrator(t, &fakePrices{})

	req := DefaultRunRequest(writePanel(t, dir))
	req.From = day0.AddDate(0, 0, 2)

	result, err := o.RunFromPanel(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, nTickers*(nDays-2), result.Counts.PanelRows)
	assert.True(t, result.Universe.From.Equal(day0.AddDate(0, 0, 2)))
}

func TestRunFromPanel_InvalidRequest(t *testing.T) {
	o, dir := newOrchestrator(t, &fakePrices{})

	tests := []struct {
		name   string
		mutate func(*RunRequest)
		want   error
	}{
		{"unknown field", func(r *RunRequest) { r.Factor = "MOMENTUM" }, contracts.ErrUnknownField},
		{"zero horizon", func(r *RunRequest) { r.Horizon = 0 }, s0_data.ErrInvalidHorizon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := DefaultRunRequest(filepath.Join(dir, "missing.csv"))
			tt.mutate(&req)
			_, err := o.RunFromPanel(context.Background(), req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRunFromPanel_MissingPanel(t *testing.T) {
	o, dir := newOrchestrator(t, &fakePrices{})

	_, err := o.RunFromPanel(context.Background(), DefaultRunRequest(filepath.Join(dir, "missing.csv")))
	assert.Error(t, err)
}

func TestRunFromPanel_PriceFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("no previous metrics", func(t *testing.T) {
		o, dir := newOrchestrator(t, &fakePrices{err: errors.New("upstream down")})
		_, err := o.RunFromPanel(ctx, DefaultRunRequest(writePanel(t, dir)))
		assert.ErrorContains(t, err, "upstream down")
	})

	t.Run("previous metrics", func(t *testing.T) {
		prices := &fakePrices{}
		o, dir := newOrchestrator(t, prices)
		req := DefaultRunRequest(writePanel(t, dir))

		first, err := o.RunFromPanel(ctx, req)
		require.NoError(t, err)

		prices.err = errors.New("upstream down")
		second, err := o.RunFromPanel(ctx, req)
		require.NoError(t, err)
		assert.True(t, second.Fallback)
		assert.InDelta(t, first.Report.Metrics.IC, second.Report.Metrics.IC, 1e-12)
	})
}

func TestRunFromPanel_RecorderFailureIsNotFatal(t *testing.T) {
	o, dir := newOrchestrator(t, &fakePrices{})
	o.WithRecorder(&recorder{err: errors.New("db down")})

	_, err := o.RunFromPanel(context.Background(), DefaultRunRequest(writePanel(t, dir)))
	assert.NoError(t, err)
}

func TestRunFromPanel_InProgress(t *testing.T) {
	prices := &fakePrices{block: make(chan struct{}), entered: make(chan struct{})}
	o, dir := newOrchestrator(t, prices)
	req := DefaultRunRequest(writePanel(t, dir))

	done := make(chan error, 1)
	go func() {
		_, err := o.RunFromPanel(context.Background(), req)
		done <- err
	}()

	<-prices.entered
	_, err := o.RunFromPanel(context.Background(), req)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(prices.block)
	assert.NoError(t, <-done)
}

func TestLastMetrics_Empty(t *testing.T) {
	o, _ := newOrchestrator(t, &fakePrices{})
	report := o.LastMetrics(context.Background())
	assert.True(t, math.IsNaN(report.Metrics.IC))
	assert.True(t, strings.HasSuffix(report.EquityCurvePath, audit.EquityCurveFile))
}

func TestRunConfig(t *testing.T) {
	o, dir := newOrchestrator(t, &fakePrices{})

	headlines := filepath.Join(dir, "headlines.csv")
	var b strings.Builder
	b.WriteString("date,ticker,headline\n")
	for d := 0; d < nDays; d++ {
		for tk := 0; tk < nTickers; tk++ {
			text := "shares surge on record profit"
			if (d+tk)%3 == 0 {
				text = "lawsuit and weak guidance"
			} else if (d*tk)%4 == 1 {
				text = "quiet session"
			}
			b.WriteString(day0.AddDate(0, 0, d).Format(contracts.DateLayout) + "," + ticker(tk) + "," + text + "\n")
		}
	}
	require.NoError(t, os.WriteFile(headlines, []byte(b.String()), 0o644))

	cfg := strategyconfig.Default()
	cfg.Data.PanelPath = filepath.Join(dir, "built", "panel.csv")
	cfg.Factor.Name = string(contracts.FieldLaggedSentiment)
	cfg.Sentiment.Enabled = true
	cfg.Sentiment.RawHeadlinesCSV = headlines
	require.NoError(t, strategyconfig.Validate(cfg))

	result, err := o.RunConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, nTickers*nDays, result.Counts.PanelRows)

	req, err := RequestFromConfig(cfg)
	require.NoError(t, err)
	assert.Len(t, req.ConfigHash, 64)
	assert.Equal(t, contracts.FieldLaggedSentiment, req.Factor)
}
