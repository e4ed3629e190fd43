package risk

import (
	"math"
	"sort"
)

// TailRisk is the historical-simulation loss tail of a return series.
// Losses are positive numbers (0.05 = 5% 손실).
type TailRisk struct {
	Confidence float64 `json:"confidence"`
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"`
}

// HistoricalTail computes VaR and expected shortfall at the given confidence.
// ⭐ SSOT: VaR/CVaR 계산은 여기서만
//
// The VaR observation is the floor((1-confidence)·n)-th smallest return; CVaR averages
// every return up to and including it. A tail without losses reports 0.
func HistoricalTail(returns []float64, confidence float64) TailRisk {
	out := TailRisk{Confidence: confidence}

	clean := make([]float64, 0, len(returns))
	for _, r := range returns {
		if !math.IsNaN(r) && !math.IsInf(r, 0) {
			clean = append(clean, r)
		}
	}
	if len(clean) == 0 || confidence <= 0 || confidence >= 1 {
		return out
	}
	sort.Float64s(clean)

	idx := int(math.Floor((1-confidence)*float64(len(clean)) + 1e-9))
	if idx >= len(clean) {
		idx = len(clean) - 1
	}

	out.VaR = loss(clean[idx])

	var sum float64
	for _, r := range clean[:idx+1] {
		sum += r
	}
	out.CVaR = loss(sum / float64(idx+1))

	return out
}

func loss(r float64) float64 {
	if r < 0 {
		return -r
	}
	return 0
}
