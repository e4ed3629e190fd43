package pipeline

import (
	"context"
	"fmt"

	"github.com/wonny/sentiment-ls/internal/sentiment"
	"github.com/wonny/sentiment-ls/internal/strategyconfig"
)

// RequestFromConfig converts a strategy config into a run request
func RequestFromConfig(cfg *strategyconfig.Config) (RunRequest, error) {
	from, to, err := cfg.DateRange()
	if err != nil {
		return RunRequest{}, err
	}
	hash, err := strategyconfig.Hash(cfg)
	if err != nil {
		return RunRequest{}, fmt.Errorf("hash config: %w", err)
	}

	return RunRequest{
		PanelPath:  cfg.Data.PanelPath,
		Factor:     cfg.FactorField(),
		Horizon:    cfg.Factor.Horizon,
		Backtest:   cfg.BacktestConfig(),
		Quality:    cfg.Quality,
		Universe:   cfg.Data.Universe,
		MaxTickers: cfg.Data.MaxTickers,
		From:       from,
		To:         to,
		StrategyID: cfg.Meta.StrategyID,
		ConfigHash: hash,
	}, nil
}

// RunConfig runs the optional sentiment build step and then the backtest described by cfg
func (o *Orchestrator) RunConfig(ctx context.Context, cfg *strategyconfig.Config) (*RunResult, error) {
	if cfg.Sentiment.Enabled {
		_, err := o.BuildSentiment(ctx, SentimentRequest{
			HeadlinesCSV: cfg.Sentiment.RawHeadlinesCSV,
			Columns: sentiment.Columns{
				Text:   cfg.Sentiment.TextColumn,
				Date:   cfg.Sentiment.DateColumn,
				Ticker: cfg.Sentiment.TickerColumn,
			},
			FetchNews: cfg.Sentiment.FetchNews,
			Tickers:   cfg.Data.Universe,
			BatchSize: cfg.Sentiment.BatchSize,
			OutPath:   cfg.Data.PanelPath,
		})
		if err != nil {
			return nil, fmt.Errorf("sentiment build: %w", err)
		}
	}

	req, err := RequestFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return o.RunFromPanel(ctx, req)
}
