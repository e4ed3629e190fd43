package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/sentiment-ls/internal/audit"
	"github.com/wonny/sentiment-ls/internal/backtest"
	"github.com/wonny/sentiment-ls/internal/contracts"
	"github.com/wonny/sentiment-ls/internal/pipeline"
	"github.com/wonny/sentiment-ls/internal/s0_data"
	"github.com/wonny/sentiment-ls/pkg/logger"
)

// Runner executes backtests and serves the last stored metrics
type Runner interface {
	RunFromPanel(ctx context.Context, req pipeline.RunRequest) (*pipeline.RunResult, error)
	LastMetrics(ctx context.Context) audit.Report
}

// RunStore reads persisted runs
type RunStore interface {
	GetLatestRun(ctx context.Context) (*contracts.BacktestRun, error)
	GetRun(ctx context.Context, runID string) (*contracts.BacktestRun, error)
}

// BacktestHandler handles backtest endpoints
// ⭐ SSOT: 백테스트 API 핸들러는 여기서만
type BacktestHandler struct {
	runner Runner
	runs   RunStore // nil = DB 비활성
	base   pipeline.RunRequest
	logger *logger.Logger
}

// NewBacktestHandler creates a handler whose runs start from base
func NewBacktestHandler(runner Runner, runs RunStore, base pipeline.RunRequest, log *logger.Logger) *BacktestHandler {
	return &BacktestHandler{
		runner: runner,
		runs:   runs,
		base:   base,
		logger: log,
	}
}

// RunRequest overrides parts of the configured run. Empty fields keep the configured value.
type RunRequest struct {
	Factor    string `json:"factor"`
	Horizon   int    `json:"horizon"`
	Weighting string `json:"weighting"` // "bucket_spread", "dollar_neutral"
	From      string `json:"from"`      // YYYY-MM-DD
	To        string `json:"to"`
}

// GetLastMetrics returns the last stored metrics, all-null when none
// GET /api/metrics/last
func (h *BacktestHandler) GetLastMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.runner.LastMetrics(r.Context()))
}

// Run executes a backtest synchronously
// POST /api/backtest/run
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	req, err := h.apply(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.runner.RunFromPanel(r.Context(), req)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, result)
	case errors.Is(err, pipeline.ErrRunInProgress):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, contracts.ErrUnknownField),
		errors.Is(err, s0_data.ErrInvalidHorizon),
		errors.Is(err, backtest.ErrInvalidConfig):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.WithError(err).Error("Backtest run failed")
		respondError(w, http.StatusInternalServerError, "Backtest run failed")
	}
}

// GetLatestRun returns the most recent persisted run
// GET /api/backtest/latest
func (h *BacktestHandler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "Run history requires a database")
		return
	}
	h.respondRun(w, func() (*contracts.BacktestRun, error) { return h.runs.GetLatestRun(r.Context()) })
}

// GetRun returns one persisted run
// GET /api/backtest/runs/{id}
func (h *BacktestHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "Run history requires a database")
		return
	}
	id := mux.Vars(r)["id"]
	h.respondRun(w, func() (*contracts.BacktestRun, error) { return h.runs.GetRun(r.Context(), id) })
}

func (h *BacktestHandler) respondRun(w http.ResponseWriter, get func() (*contracts.BacktestRun, error)) {
	run, err := get()
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, run)
	case errors.Is(err, audit.ErrRunNotFound):
		respondError(w, http.StatusNotFound, "Run not found")
	default:
		h.logger.WithError(err).Error("Failed to get run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
	}
}

// apply layers the body over the configured request
func (h *BacktestHandler) apply(body RunRequest) (pipeline.RunRequest, error) {
	req := h.base

	if body.Factor != "" {
		f, err := contracts.ParseField(body.Factor)
		if err != nil {
			return req, err
		}
		req.Factor = f
	}
	if body.Horizon != 0 {
		req.Horizon = body.Horizon
	}
	if body.Weighting != "" {
		wt, err := backtest.ParseWeighting(body.Weighting)
		if err != nil {
			return req, err
		}
		// 가중 방식별 기본 분위수
		cfg := backtest.DefaultConfig()
		if wt == backtest.WeightingDollarNeutral {
			cfg = backtest.DollarNeutralConfig()
		}
		cfg.MinCrossSection = req.Backtest.MinCrossSection
		cfg.Workers = req.Backtest.Workers
		req.Backtest = cfg
	}

	var err error
	if body.From != "" {
		if req.From, err = time.Parse(contracts.DateLayout, body.From); err != nil {
			return req, errors.New("invalid 'from' date format (expected YYYY-MM-DD)")
		}
	}
	if body.To != "" {
		if req.To, err = time.Parse(contracts.DateLayout, body.To); err != nil {
			return req, errors.New("invalid 'to' date format (expected YYYY-MM-DD)")
		}
	}

	return req, nil
}
