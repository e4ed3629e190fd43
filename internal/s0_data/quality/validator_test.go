package quality

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/sentiment-ls/internal/contracts"
)

func TestQualityGate_Check(t *testing.T) {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	var panel []contracts.PanelRow
	var prices []contracts.PriceBar
	var joined []contracts.JoinedRow
	for d := 0; d < 4; d++ {
		for i := 0; i < 12; i++ {
			ticker := fmt.Sprintf("T%02d", i)
			sent := 0.1 * float64(i)
			if i == 0 {
				sent = math.NaN()
			}
			panel = append(panel, contracts.PanelRow{Date: base.AddDate(0, 0, d), Ticker: ticker, Sentiment: sent})
			if i < 11 {
				prices = append(prices, contracts.PriceBar{Date: base.AddDate(0, 0, d), Ticker: ticker, Close: 100})
			}
			// day 3 is thin
			if d < 3 || i < 5 {
				joined = append(joined, contracts.JoinedRow{Date: base.AddDate(0, 0, d), Ticker: ticker})
			}
		}
	}

	gate := NewQualityGate(DefaultConfig())
	snapshot := gate.Check(panel, prices, joined)

	assert.Equal(t, 12, snapshot.TotalTickers)
	assert.Equal(t, 4, snapshot.TotalDates)
	assert.Equal(t, 3, snapshot.EligibleDates)
	assert.InDelta(t, 11.0/12.0, snapshot.Coverage["sentiment"], 1e-12)
	assert.InDelta(t, 11.0/12.0, snapshot.Coverage["price"], 1e-12)
	assert.InDelta(t, 0.75, snapshot.Coverage["eligible_dates"], 1e-12)
	assert.True(t, snapshot.From.Equal(base))
	assert.True(t, snapshot.To.Equal(base.AddDate(0, 0, 3)))
	assert.True(t, snapshot.Passed)
}

func TestQualityGate_EmptyFails(t *testing.T) {
	snapshot := NewQualityGate(DefaultConfig()).Check(nil, nil, nil)
	assert.False(t, snapshot.Passed)
	assert.Equal(t, 0.0, snapshot.QualityScore)
}

func TestQualityGate_calculateScore(t *testing.T) {
	gate := &QualityGate{config: Config{}}

	tests := []struct {
		name     string
		coverage map[string]float64
		wantMin  float64
		wantMax  float64
	}{
		{
			name:     "perfect coverage",
			coverage: map[string]float64{"sentiment": 1.0, "price": 1.0, "eligible_dates": 1.0},
			wantMin:  0.99,
			wantMax:  1.01,
		},
		{
			name:     "good coverage",
			coverage: map[string]float64{"sentiment": 0.9, "price": 0.95, "eligible_dates": 0.85},
			wantMin:  0.85,
			wantMax:  0.95,
		},
		{
			name:     "poor coverage",
			coverage: map[string]float64{"sentiment": 0.5, "price": 0.6, "eligible_dates": 0.4},
			wantMin:  0.45,
			wantMax:  0.55,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := gate.calculateScore(tt.coverage)
			assert.GreaterOrEqual(t, score, tt.wantMin)
			assert.LessOrEqual(t, score, tt.wantMax)
		})
	}
}
