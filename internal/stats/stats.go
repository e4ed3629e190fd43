package stats

import (
	"math"
	"sort"
)

// ⭐ SSOT: 수익률/상관 통계 계산은 여기서만
// 모든 함수는 순수 함수. 데이터 부족은 에러가 아니라 NaN 으로 표현한다.

const (
	// TradingDays is the annualization factor for daily returns
	TradingDays = 252

	// MinICPairs is the minimum number of paired observations for a rank correlation
	MinICPairs = 5
)

// Mean returns the arithmetic mean, NaN for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStd returns the sample standard deviation (n-1), NaN for fewer than 2 points
func SampleStd(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}

	mean := Mean(values)
	var variance float64
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)

	return math.Sqrt(variance)
}

// Quantile returns the q-th empirical quantile with linear interpolation
// between closest ranks. values need not be sorted and are not modified.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 || q < 0 || q > 1 || math.IsNaN(q) {
		return math.NaN()
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}

	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Ranks returns 1-based ranks, ties receive the average of their positions
func Ranks(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return values[idx[a]] < values[idx[b]]
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i + 1
		for j < n && values[idx[j]] == values[idx[i]] {
			j++
		}
		// positions i..j-1 share the same value
		avg := float64(i+j+1) / 2.0
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}

	return ranks
}

// Pearson returns the Pearson correlation, NaN when either side has zero variance
func Pearson(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return math.NaN()
	}

	mx, my := Mean(x), Mean(y)
	var sxy, sxx, syy float64
	for i := range x {
		dx := x[i] - mx
		dy := y[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}

	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}

// RankCorrelation returns Spearman's rho over the pairs where both sides are defined.
// Fewer than MinICPairs usable pairs yields NaN.
func RankCorrelation(x, y []float64) float64 {
	if len(x) != len(y) {
		return math.NaN()
	}

	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if isUndefined(x[i]) || isUndefined(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}

	if len(xs) < MinICPairs {
		return math.NaN()
	}

	return Pearson(Ranks(xs), Ranks(ys))
}

// AnnualizedSharpe returns (mean*252) / (std*sqrt(252)) with zero risk-free rate.
// Undefined (NaN) when the sample std is undefined or exactly zero.
func AnnualizedSharpe(returns []float64) float64 {
	sigma := SampleStd(returns)
	if math.IsNaN(sigma) || sigma == 0 {
		return math.NaN()
	}

	mu := Mean(returns) * TradingDays
	return mu / (sigma * math.Sqrt(TradingDays))
}

// MaxDrawdown returns the minimum of (cum - peak) / peak, always <= 0.
// NaN for an empty series.
func MaxDrawdown(cumReturns []float64) float64 {
	if len(cumReturns) == 0 {
		return math.NaN()
	}

	peak := cumReturns[0]
	maxDD := 0.0
	for _, v := range cumReturns {
		if v > peak {
			peak = v
		}
		if peak == 0 {
			continue
		}
		dd := (v - peak) / peak
		if dd < maxDD {
			maxDD = dd
		}
	}

	return maxDD
}

// CumulativeProduct returns the running product of (1 + r)
func CumulativeProduct(returns []float64) []float64 {
	out := make([]float64, len(returns))
	acc := 1.0
	for i, r := range returns {
		acc *= 1.0 + r
		out[i] = acc
	}
	return out
}

func isUndefined(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
