package audit

import (
	"math"
	"time"

	"github.com/wonny/sentiment-ls/internal/contracts"
	"github.com/wonny/sentiment-ls/internal/risk"
	"github.com/wonny/sentiment-ls/internal/stats"
)

// PerformanceReport summarizes a daily strategy series beyond the headline metrics.
// Undefined quantities are reported as 0.
type PerformanceReport struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Days      int       `json:"days"`

	// 수익률
	TotalReturn  float64 `json:"total_return"`
	AnnualReturn float64 `json:"annual_return"`

	// 리스크 지표
	Volatility float64 `json:"volatility"`
	Sortino    float64 `json:"sortino"`

	// 일별 손익 분포
	WinRate      float64 `json:"win_rate"`
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
	ProfitFactor float64 `json:"profit_factor"`
	BestDay      float64 `json:"best_day"`
	WorstDay     float64 `json:"worst_day"`

	// 꼬리 위험 (손실 = 양수)
	VaR95  float64 `json:"var_95"`
	CVaR95 float64 `json:"cvar_95"`
}

// Summarize builds a performance report from the daily series
func Summarize(daily []contracts.DailyRecord) *PerformanceReport {
	report := &PerformanceReport{Days: len(daily)}
	if len(daily) == 0 {
		return report
	}

	report.StartDate = daily[0].Date
	report.EndDate = daily[len(daily)-1].Date

	returns := make([]float64, len(daily))
	for i, d := range daily {
		returns[i] = d.StrategyReturn
	}

	report.TotalReturn = daily[len(daily)-1].CumReturn - 1
	report.AnnualReturn = annualize(report.TotalReturn, len(daily))

	if std := stats.SampleStd(returns); !math.IsNaN(std) {
		report.Volatility = std * math.Sqrt(stats.TradingDays)
	}
	report.Sortino = sortino(returns)

	report.BestDay, report.WorstDay = returns[0], returns[0]
	var (
		sumWin, sumLoss     float64
		countWin, countLoss int
	)
	for _, r := range returns {
		report.BestDay = math.Max(report.BestDay, r)
		report.WorstDay = math.Min(report.WorstDay, r)
		switch {
		case r > 0:
			sumWin += r
			countWin++
		case r < 0:
			sumLoss += r
			countLoss++
		}
	}

	tail := risk.HistoricalTail(returns, 0.95)
	report.VaR95, report.CVaR95 = tail.VaR, tail.CVaR

	report.WinRate = float64(countWin) / float64(len(returns))
	if countWin > 0 {
		report.AvgWin = sumWin / float64(countWin)
	}
	if countLoss > 0 {
		report.AvgLoss = sumLoss / float64(countLoss)
		report.ProfitFactor = sumWin / math.Abs(sumLoss)
	}

	return report
}

// annualize converts a total return over n trading days to an annual rate
func annualize(totalReturn float64, days int) float64 {
	if days == 0 || totalReturn <= -1 {
		return 0
	}
	return math.Pow(1+totalReturn, stats.TradingDays/float64(days)) - 1
}

// sortino uses a zero target and the downside semi-deviation over all days
func sortino(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sumSq float64
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
		}
	}
	downside := math.Sqrt(sumSq / float64(len(returns)))
	if downside == 0 {
		return 0
	}

	return stats.Mean(returns) / downside * math.Sqrt(stats.TradingDays)
}
