package metrics

import (
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/sentiment-ls/internal/contracts"
)

// Registry holds the Prometheus metrics of the research backend
// ⭐ SSOT: 운영 지표 정의는 여기서만
type Registry struct {
	reg *prometheus.Registry

	// 파이프라인 단계별 소요 시간
	StepDuration *prometheus.HistogramVec

	// 백테스트 실행 횟수 (status = ok | error)
	Runs *prometheus.CounterVec

	// 마지막 실행 결과
	LastIC     prometheus.Gauge
	LastSharpe prometheus.Gauge
	LastMaxDD  prometheus.Gauge
	LastDays   prometheus.Gauge
}

// NewRegistry creates an isolated registry with all metrics registered
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentiment_ls_step_duration_seconds",
				Help:    "Duration of each pipeline step in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"step", "result"},
		),

		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentiment_ls_backtest_runs_total",
				Help: "Total number of backtest runs by status",
			},
			[]string{"status"},
		),

		LastIC: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentiment_ls_last_ic",
			Help: "Rank IC of the last run (NaN when undefined)",
		}),
		LastSharpe: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentiment_ls_last_sharpe",
			Help: "Annualized Sharpe of the last run (NaN when undefined)",
		}),
		LastMaxDD: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentiment_ls_last_max_drawdown",
			Help: "Maximum drawdown of the last run (NaN when undefined)",
		}),
		LastDays: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentiment_ls_last_eligible_days",
			Help: "Number of eligible dates in the last run",
		}),
	}

	r.reg.MustRegister(r.StepDuration, r.Runs, r.LastIC, r.LastSharpe, r.LastMaxDD, r.LastDays)
	return r
}

// ObserveStep records how long a step took since start
func (r *Registry) ObserveStep(step string, start time.Time, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.StepDuration.WithLabelValues(step, result).Observe(time.Since(start).Seconds())
}

// RecordRun counts a run and, on success, exports its metrics
func (r *Registry) RecordRun(m contracts.Metrics, days int, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.Runs.WithLabelValues("error").Inc()
		return
	}
	r.Runs.WithLabelValues("ok").Inc()
	r.LastIC.Set(orNaN(m.IC))
	r.LastSharpe.Set(orNaN(m.Sharpe))
	r.LastMaxDD.Set(orNaN(m.MaxDD))
	r.LastDays.Set(float64(days))
}

// Gatherer exposes the underlying registry
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func orNaN(v float64) float64 {
	if math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}
