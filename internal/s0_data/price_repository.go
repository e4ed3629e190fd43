package s0_data

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/sentiment-ls/internal/contracts"
)

// PriceRepository stores daily closes
// ⭐ SSOT: 가격 데이터 저장소는 여기서만
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// GetCloses retrieves closes for tickers within [from, to]
func (r *PriceRepository) GetCloses(ctx context.Context, tickers []string, from, to time.Time) ([]contracts.PriceBar, error) {
	if len(tickers) == 0 {
		return []contracts.PriceBar{}, nil
	}

	query := `
		SELECT ticker, trade_date, close_price
		FROM research.daily_closes
		WHERE ticker = ANY($1) AND trade_date BETWEEN $2 AND $3
		ORDER BY ticker ASC, trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, tickers, from, to)
	if err != nil {
		return nil, fmt.Errorf("query closes: %w", err)
	}
	defer rows.Close()

	var bars []contracts.PriceBar
	for rows.Next() {
		var (
			bar        contracts.PriceBar
			closePrice *float64
		)
		if err := rows.Scan(&bar.Ticker, &bar.Date, &closePrice); err != nil {
			return nil, fmt.Errorf("scan close: %w", err)
		}
		bar.Date = contracts.Day(bar.Date)
		bar.Close = math.NaN()
		if closePrice != nil {
			bar.Close = *closePrice
		}
		bars = append(bars, bar)
	}

	return bars, rows.Err()
}

// FetchCloses implements contracts.PriceSource
func (r *PriceRepository) FetchCloses(ctx context.Context, tickers []string, from, to time.Time) ([]contracts.PriceBar, error) {
	return r.GetCloses(ctx, tickers, from, to)
}

// SaveBatch upserts closes in one transaction
func (r *PriceRepository) SaveBatch(ctx context.Context, bars []contracts.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	query := `
		INSERT INTO research.daily_closes (ticker, trade_date, close_price, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (ticker, trade_date) DO UPDATE SET
			close_price = EXCLUDED.close_price,
			updated_at = NOW()
	`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, bar := range bars {
		if _, err := tx.Exec(ctx, query, bar.Ticker, bar.Date, nullFloat(bar.Close)); err != nil {
			return fmt.Errorf("upsert close for %s: %w", bar.Ticker, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// CachedPriceSource reads closes from the database first and falls back to a remote source,
// persisting what it fetched
type CachedPriceSource struct {
	repo   *PriceRepository
	remote contracts.PriceSource
}

// NewCachedPriceSource creates a DB-backed price source with a remote fallback
func NewCachedPriceSource(repo *PriceRepository, remote contracts.PriceSource) *CachedPriceSource {
	return &CachedPriceSource{repo: repo, remote: remote}
}

// FetchCloses implements contracts.PriceSource
func (s *CachedPriceSource) FetchCloses(ctx context.Context, tickers []string, from, to time.Time) ([]contracts.PriceBar, error) {
	stored, err := s.repo.GetCloses(ctx, tickers, from, to)
	if err != nil {
		return nil, err
	}

	have := make(map[string]bool, len(tickers))
	for _, b := range stored {
		have[b.Ticker] = true
	}

	var missing []string
	for _, t := range tickers {
		if !have[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 || s.remote == nil {
		return stored, nil
	}

	fetched, err := s.remote.FetchCloses(ctx, missing, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch missing closes: %w", err)
	}
	if err := s.repo.SaveBatch(ctx, fetched); err != nil {
		return nil, fmt.Errorf("store fetched closes: %w", err)
	}

	return append(stored, fetched...), nil
}
