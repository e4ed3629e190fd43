package s2_signals

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/wonny/sentiment-ls/internal/contracts"
	"github.com/wonny/sentiment-ls/pkg/logger"
)

// ShockWindow is the trailing window (today + 2 prior observations) used for the shock z-score
const ShockWindow = 3

// ErrDuplicateObservation is returned when the panel has two rows for one (date, ticker)
var ErrDuplicateObservation = errors.New("duplicate (date, ticker) observation")

// ComputeFactors derives SENT_L1 and SENT_SHOCK per (date, ticker).
// ⭐ SSOT: 센티먼트 팩터 계산은 여기서만
//
// Rows where either factor is undefined are dropped. Output is sorted by ticker, date.
// The input slice is not modified.
func ComputeFactors(panel []contracts.PanelRow) ([]contracts.FactorRow, error) {
	out := make([]contracts.FactorRow, 0, len(panel))
	if len(panel) == 0 {
		return out, nil
	}

	rows := make([]contracts.PanelRow, len(panel))
	copy(rows, panel)
	for i := range rows {
		rows[i].Date = contracts.Day(rows[i].Date)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Ticker != rows[j].Ticker {
			return rows[i].Ticker < rows[j].Ticker
		}
		return rows[i].Date.Before(rows[j].Date)
	})

	for i := 1; i < len(rows); i++ {
		if rows[i].Ticker == rows[i-1].Ticker && rows[i].Date.Equal(rows[i-1].Date) {
			return nil, fmt.Errorf("%w: %s %s", ErrDuplicateObservation,
				rows[i].Date.Format(contracts.DateLayout), rows[i].Ticker)
		}
	}

	window := newTrailingWindow(ShockWindow)
	for i, row := range rows {
		first := i == 0 || rows[i-1].Ticker != row.Ticker
		if first {
			window.Reset()
		}
		window.Push(row.Sentiment)

		lagged := math.NaN()
		if !first {
			lagged = rows[i-1].Sentiment
		}

		mean3 := window.Mean()
		std3 := window.Std()
		shock := math.NaN()
		if !contracts.IsMissing(std3) && std3 != 0 && !contracts.IsMissing(row.Sentiment) {
			shock = (row.Sentiment - mean3) / std3
		}

		if contracts.IsMissing(lagged) || contracts.IsMissing(shock) {
			continue
		}

		out = append(out, contracts.FactorRow{
			Date:            row.Date,
			Ticker:          row.Ticker,
			Sentiment:       row.Sentiment,
			LaggedSentiment: lagged,
			Mean3:           mean3,
			Std3:            std3,
			ShockSentiment:  shock,
		})
	}

	return out, nil
}

// SentimentCalculator wraps ComputeFactors with logging for pipeline use
type SentimentCalculator struct {
	logger *logger.Logger
}

// NewSentimentCalculator creates a new sentiment factor calculator
func NewSentimentCalculator(log *logger.Logger) *SentimentCalculator {
	return &SentimentCalculator{
		logger: log,
	}
}

// Calculate computes factors and logs how much of the panel survived
func (c *SentimentCalculator) Calculate(panel []contracts.PanelRow) ([]contracts.FactorRow, error) {
	factors, err := ComputeFactors(panel)
	if err != nil {
		return nil, fmt.Errorf("compute factors: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"panel_rows":  len(panel),
		"factor_rows": len(factors),
		"dropped":     len(panel) - len(factors),
	}).Info("Calculated sentiment factors")

	return factors, nil
}
