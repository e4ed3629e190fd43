package quality

import (
	"time"

	"github.com/wonny/sentiment-ls/internal/contracts"
)

// Snapshot summarizes how much of a research dataset is usable
type Snapshot struct {
	From, To      time.Time
	TotalTickers  int
	TotalDates    int
	EligibleDates int // MinCrossSection 이상인 날짜 수
	Coverage      map[string]float64
	QualityScore  float64
	Passed        bool
}

// Config holds quality gate thresholds
type Config struct {
	MinSentimentCoverage float64 `yaml:"min_sentiment_coverage"` // 0.5
	MinPriceCoverage     float64 `yaml:"min_price_coverage"`     // 0.8
	MinEligibleDates     float64 `yaml:"min_eligible_dates"`     // 0.5
	MinCrossSection      int     `yaml:"min_cross_section"`      // 10
}

// DefaultConfig returns lenient thresholds suitable for research panels
func DefaultConfig() Config {
	return Config{
		MinSentimentCoverage: 0.5,
		MinPriceCoverage:     0.8,
		MinEligibleDates:     0.5,
		MinCrossSection:      10,
	}
}

// QualityGate validates dataset coverage before a backtest
type QualityGate struct {
	config Config
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(config Config) *QualityGate {
	return &QualityGate{config: config}
}

// Check computes coverage over the panel, the fetched closes and the joined rows
// ⭐ SSOT: 패널 → 백테스트 품질 검증
func (g *QualityGate) Check(panel []contracts.PanelRow, prices []contracts.PriceBar, joined []contracts.JoinedRow) *Snapshot {
	snapshot := &Snapshot{Coverage: make(map[string]float64)}

	// 1. 패널 커버리지
	tickers := make(map[string]struct{})
	present := 0
	for i, row := range panel {
		tickers[row.Ticker] = struct{}{}
		if !contracts.IsMissing(row.Sentiment) {
			present++
		}
		if i == 0 || row.Date.Before(snapshot.From) {
			snapshot.From = row.Date
		}
		if i == 0 || row.Date.After(snapshot.To) {
			snapshot.To = row.Date
		}
	}
	snapshot.TotalTickers = len(tickers)
	snapshot.Coverage["sentiment"] = ratio(present, len(panel))

	// 2. 가격 커버리지 (종가가 하나라도 있는 종목 비율)
	priced := make(map[string]struct{})
	for _, bar := range prices {
		if _, ok := tickers[bar.Ticker]; ok && !contracts.IsMissing(bar.Close) {
			priced[bar.Ticker] = struct{}{}
		}
	}
	snapshot.Coverage["price"] = ratio(len(priced), len(tickers))

	// 3. 날짜별 단면 크기
	perDate := make(map[time.Time]int)
	for _, row := range joined {
		perDate[contracts.Day(row.Date)]++
	}
	snapshot.TotalDates = len(perDate)
	for _, n := range perDate {
		if n >= g.config.MinCrossSection {
			snapshot.EligibleDates++
		}
	}
	snapshot.Coverage["eligible_dates"] = ratio(snapshot.EligibleDates, snapshot.TotalDates)

	snapshot.QualityScore = g.calculateScore(snapshot.Coverage)
	snapshot.Passed = snapshot.Coverage["sentiment"] >= g.config.MinSentimentCoverage &&
		snapshot.Coverage["price"] >= g.config.MinPriceCoverage &&
		snapshot.Coverage["eligible_dates"] >= g.config.MinEligibleDates

	return snapshot
}

// calculateScore calculates overall quality score using weighted average
func (g *QualityGate) calculateScore(coverage map[string]float64) float64 {
	// 가중치 (합계 = 1.0)
	weights := map[string]float64{
		"sentiment":      0.40,
		"price":          0.30,
		"eligible_dates": 0.30,
	}

	score := 0.0
	for key, weight := range weights {
		if cov, exists := coverage[key]; exists {
			score += cov * weight
		}
	}

	return score
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
