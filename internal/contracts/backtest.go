package contracts

import (
	"encoding/json"
	"math"
	"time"
)

// DailyRecord is one eligible date of the long/short strategy
// ⭐ SSOT: 백테스트 일별 결과 → 리포트/저장 전달
type DailyRecord struct {
	Date           time.Time `json:"date"`
	StrategyReturn float64   `json:"strategy_return"`
	CumReturn      float64   `json:"cum_return"`
}

// Metrics holds the run summary. NaN means undefined.
type Metrics struct {
	IC     float64
	Sharpe float64
	MaxDD  float64
}

// UndefinedMetrics returns metrics with every value undefined
func UndefinedMetrics() Metrics {
	return Metrics{IC: math.NaN(), Sharpe: math.NaN(), MaxDD: math.NaN()}
}

// metricsJSON is the flat persisted shape. Turnover is kept for older readers.
type metricsJSON struct {
	IC       *float64 `json:"IC"`
	Sharpe   *float64 `json:"Sharpe"`
	MaxDD    *float64 `json:"MaxDD"`
	Turnover *float64 `json:"Turnover"`
}

// MarshalJSON encodes undefined values as null
func (m Metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(metricsJSON{
		IC:     nullable(m.IC),
		Sharpe: nullable(m.Sharpe),
		MaxDD:  nullable(m.MaxDD),
	})
}

// UnmarshalJSON decodes null as NaN
func (m *Metrics) UnmarshalJSON(data []byte) error {
	var raw metricsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.IC = fromNullable(raw.IC)
	m.Sharpe = fromNullable(raw.Sharpe)
	m.MaxDD = fromNullable(raw.MaxDD)
	return nil
}

// AsMap returns the flat key → number-or-nil mapping
func (m Metrics) AsMap() map[string]*float64 {
	return map[string]*float64{
		"IC":       nullable(m.IC),
		"Sharpe":   nullable(m.Sharpe),
		"MaxDD":    nullable(m.MaxDD),
		"Turnover": nil,
	}
}

// IsHealthy mirrors the audit rule of thumb for a usable factor
func (m Metrics) IsHealthy() bool {
	return !math.IsNaN(m.Sharpe) && m.Sharpe > 1.0 &&
		!math.IsNaN(m.MaxDD) && m.MaxDD > -0.30
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func fromNullable(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// BacktestRun is the persisted record of one evaluation
type BacktestRun struct {
	RunID      string        `json:"run_id"`
	Factor     Field         `json:"factor"`
	Weighting  string        `json:"weighting"`
	Horizon    int           `json:"horizon"`
	ConfigHash string        `json:"config_hash"`
	StartDate  time.Time     `json:"start_date"`
	EndDate    time.Time     `json:"end_date"`
	Metrics    Metrics       `json:"metrics"`
	Daily      []DailyRecord `json:"daily"`
	CreatedAt  time.Time     `json:"created_at"`
}
