package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: 외부 데이터 소스 인터페이스 정의는 여기서만
// 코어(s2_signals, backtest, stats)는 이 인터페이스를 모른다. 파이프라인만 사용한다.

// PanelSource yields the raw sentiment panel
type PanelSource interface {
	LoadPanel(ctx context.Context) ([]PanelRow, error)
}

// PriceSource yields daily closes for a universe and date range
type PriceSource interface {
	FetchCloses(ctx context.Context, tickers []string, from, to time.Time) ([]PriceBar, error)
}

// RunRecorder persists completed backtest runs
type RunRecorder interface {
	SaveRun(ctx context.Context, run *BacktestRun) error
}

// Headline is one timestamped piece of text about a ticker
type Headline struct {
	Time   time.Time `json:"time"`
	Ticker string    `json:"ticker"`
	Text   string    `json:"text"`
	URL    string    `json:"url,omitempty"`
}

// HeadlineSource yields headlines for a ticker
type HeadlineSource interface {
	FetchHeadlines(ctx context.Context, ticker string) ([]Headline, error)
}
