package risk

import (
	"math"
	"math/rand"

	"github.com/wonny/sentiment-ls/internal/stats"
)

// BootstrapConfig controls resampling of the daily strategy series
type BootstrapConfig struct {
	Samples int   // 재표본 수
	Seed    int64 // 0 = 고정 시드 1 (결과 재현)
}

// DefaultBootstrap returns 1000 samples with a fixed seed
func DefaultBootstrap() BootstrapConfig {
	return BootstrapConfig{Samples: 1000, Seed: 1}
}

// SharpeBand is the bootstrap distribution of the annualized Sharpe ratio
type SharpeBand struct {
	Samples      int     `json:"samples"`
	P05          float64 `json:"p05"`
	P50          float64 `json:"p50"`
	P95          float64 `json:"p95"`
	ProbPositive float64 `json:"prob_positive"`
}

// BootstrapSharpe resamples daily returns with replacement and recomputes the annualized Sharpe.
// Returns nil when fewer than 2 returns are given or every resample is undefined.
func BootstrapSharpe(returns []float64, cfg BootstrapConfig) *SharpeBand {
	if len(returns) < 2 || cfg.Samples < 1 {
		return nil
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	rng := rand.New(rand.NewSource(seed))

	sample := make([]float64, len(returns))
	sharpes := make([]float64, 0, cfg.Samples)
	positive := 0
	for i := 0; i < cfg.Samples; i++ {
		for j := range sample {
			sample[j] = returns[rng.Intn(len(returns))]
		}
		s := stats.AnnualizedSharpe(sample)
		if math.IsNaN(s) {
			continue // 상수 표본
		}
		sharpes = append(sharpes, s)
		if s > 0 {
			positive++
		}
	}
	if len(sharpes) == 0 {
		return nil
	}

	return &SharpeBand{
		Samples:      len(sharpes),
		P05:          stats.Quantile(sharpes, 0.05),
		P50:          stats.Quantile(sharpes, 0.50),
		P95:          stats.Quantile(sharpes, 0.95),
		ProbPositive: float64(positive) / float64(len(sharpes)),
	}
}
