package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/sentiment-ls/internal/contracts"
)

// ErrRunNotFound is returned when no backtest run is stored
var ErrRunNotFound = errors.New("backtest run not found")

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.NewString()
}

// Repository handles backtest run persistence
// ⭐ SSOT: 백테스트 실행 기록 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new run repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveRun stores a run. An empty RunID is filled in.
func (r *Repository) SaveRun(ctx context.Context, run *contracts.BacktestRun) error {
	if run.RunID == "" {
		run.RunID = NewRunID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	dailyJSON, err := json.Marshal(run.Daily)
	if err != nil {
		return fmt.Errorf("marshal daily series: %w", err)
	}

	query := `
		INSERT INTO research.backtest_runs (
			run_id, factor, horizon, weighting, config_hash,
			start_date, end_date, ic, sharpe, max_dd, daily, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.pool.Exec(ctx, query,
		run.RunID, string(run.Factor), run.Horizon, run.Weighting, run.ConfigHash,
		nullTime(run.StartDate), nullTime(run.EndDate),
		nullFloat(run.Metrics.IC), nullFloat(run.Metrics.Sharpe), nullFloat(run.Metrics.MaxDD),
		dailyJSON, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	return nil
}

// GetLatestRun returns the most recently created run
func (r *Repository) GetLatestRun(ctx context.Context) (*contracts.BacktestRun, error) {
	query := `
		SELECT run_id, factor, horizon, weighting, config_hash,
		       start_date, end_date, ic, sharpe, max_dd, daily, created_at
		FROM research.backtest_runs
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query))
}

// GetRun returns a run by id
func (r *Repository) GetRun(ctx context.Context, runID string) (*contracts.BacktestRun, error) {
	query := `
		SELECT run_id, factor, horizon, weighting, config_hash,
		       start_date, end_date, ic, sharpe, max_dd, daily, created_at
		FROM research.backtest_runs
		WHERE run_id = $1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, runID))
}

func (r *Repository) scanOne(row pgx.Row) (*contracts.BacktestRun, error) {
	var (
		run             contracts.BacktestRun
		factor          string
		start, end      *time.Time
		ic, sharpe, mdd *float64
		dailyJSON       []byte
	)

	err := row.Scan(
		&run.RunID, &factor, &run.Horizon, &run.Weighting, &run.ConfigHash,
		&start, &end, &ic, &sharpe, &mdd, &dailyJSON, &run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	run.Factor = contracts.Field(factor)
	if start != nil {
		run.StartDate = *start
	}
	if end != nil {
		run.EndDate = *end
	}
	run.Metrics = contracts.Metrics{IC: fromNull(ic), Sharpe: fromNull(sharpe), MaxDD: fromNull(mdd)}

	if err := json.Unmarshal(dailyJSON, &run.Daily); err != nil {
		return nil, fmt.Errorf("unmarshal daily series: %w", err)
	}

	return &run, nil
}

func nullFloat(v float64) *float64 {
	if contracts.IsMissing(v) {
		return nil
	}
	return &v
}

func fromNull(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
