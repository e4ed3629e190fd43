package s0_data

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/sentiment-ls/internal/contracts"
)

// PanelRepository stores the daily sentiment panel
// ⭐ SSOT: 센티먼트 패널 저장소는 여기서만
type PanelRepository struct {
	pool *pgxpool.Pool
}

// NewPanelRepository creates a new panel repository
func NewPanelRepository(pool *pgxpool.Pool) *PanelRepository {
	return &PanelRepository{pool: pool}
}

// GetPanel retrieves panel rows within [from, to], sorted by date then ticker
func (r *PanelRepository) GetPanel(ctx context.Context, from, to time.Time) ([]contracts.PanelRow, error) {
	query := `
		SELECT trade_date, ticker, sentiment, source_count
		FROM research.sentiment_panel
		WHERE trade_date BETWEEN $1 AND $2
		ORDER BY trade_date ASC, ticker ASC
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query sentiment panel: %w", err)
	}
	defer rows.Close()

	var panel []contracts.PanelRow
	for rows.Next() {
		var (
			row       contracts.PanelRow
			sentiment *float64
		)
		if err := rows.Scan(&row.Date, &row.Ticker, &sentiment, &row.SourceCount); err != nil {
			return nil, fmt.Errorf("scan panel row: %w", err)
		}
		row.Date = contracts.Day(row.Date)
		row.Sentiment = math.NaN()
		if sentiment != nil {
			row.Sentiment = *sentiment
		}
		panel = append(panel, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return panel, nil
}

// SaveBatch upserts panel rows in one transaction. Missing sentiment is stored as NULL.
func (r *PanelRepository) SaveBatch(ctx context.Context, panel []contracts.PanelRow) error {
	if len(panel) == 0 {
		return nil
	}

	query := `
		INSERT INTO research.sentiment_panel (trade_date, ticker, sentiment, source_count, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (trade_date, ticker) DO UPDATE SET
			sentiment = EXCLUDED.sentiment,
			source_count = EXCLUDED.source_count,
			updated_at = NOW()
	`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, row := range panel {
		if _, err := tx.Exec(ctx, query, row.Date, row.Ticker, nullFloat(row.Sentiment), row.SourceCount); err != nil {
			return fmt.Errorf("upsert panel row %s %s: %w", row.Date.Format(contracts.DateLayout), row.Ticker, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// PanelSource adapts the repository to contracts.PanelSource for a fixed range
type PanelSource struct {
	repo     *PanelRepository
	from, to time.Time
}

// NewPanelSource creates a range-bound panel source
func NewPanelSource(repo *PanelRepository, from, to time.Time) *PanelSource {
	return &PanelSource{repo: repo, from: from, to: to}
}

// LoadPanel implements contracts.PanelSource
func (s *PanelSource) LoadPanel(ctx context.Context) ([]contracts.PanelRow, error) {
	return s.repo.GetPanel(ctx, s.from, s.to)
}

func nullFloat(v float64) *float64 {
	if contracts.IsMissing(v) {
		return nil
	}
	return &v
}
