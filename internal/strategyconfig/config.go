package strategyconfig

import (
	"time"

	"github.com/wonny/sentiment-ls/internal/backtest"
	"github.com/wonny/sentiment-ls/internal/contracts"
	"github.com/wonny/sentiment-ls/internal/s0_data/quality"
)

// Config is the YAML run configuration of one research strategy
// ⭐ SSOT: 백테스트 실행 설정 구조는 여기서만
type Config struct {
	Meta      MetaConfig      `yaml:"meta" json:"meta"`
	Data      DataConfig      `yaml:"data" json:"data"`
	Factor    FactorConfig    `yaml:"factor" json:"factor"`
	Portfolio PortfolioConfig `yaml:"portfolio" json:"portfolio"`
	Sentiment SentimentConfig `yaml:"sentiment" json:"sentiment"`
	Quality   quality.Config  `yaml:"quality" json:"quality"`
	Reports   ReportsConfig   `yaml:"reports" json:"reports"`
	Schedule  ScheduleConfig  `yaml:"schedule" json:"schedule"`
}

// MetaConfig identifies the strategy
type MetaConfig struct {
	StrategyID  string `yaml:"strategy_id" json:"strategy_id"`
	Description string `yaml:"description" json:"description"`
}

// DataConfig locates the input panel and price universe
type DataConfig struct {
	PanelPath  string   `yaml:"panel_path" json:"panel_path"`
	Universe   []string `yaml:"universe" json:"universe"`       // 비어 있으면 패널에서 추출
	MaxTickers int      `yaml:"max_tickers" json:"max_tickers"` // 0 = 100
	Start      string   `yaml:"start" json:"start"`             // YYYY-MM-DD, 비어 있으면 패널 범위
	End        string   `yaml:"end" json:"end"`
}

// FactorConfig selects the signal column and forward-return horizon
type FactorConfig struct {
	Name    string `yaml:"name" json:"name"`       // SENT_L1 | SENT_SHOCK | sentiment
	Horizon int    `yaml:"horizon" json:"horizon"` // 거래일
}

// PortfolioConfig holds long/short construction parameters
type PortfolioConfig struct {
	Weighting       string  `yaml:"weighting" json:"weighting"` // bucket_spread | dollar_neutral
	ShortQuantile   float64 `yaml:"short_quantile" json:"short_quantile"`
	LongQuantile    float64 `yaml:"long_quantile" json:"long_quantile"`
	MinCrossSection int     `yaml:"min_cross_section" json:"min_cross_section"`
	Workers         int     `yaml:"workers" json:"workers"`
}

// SentimentConfig gates the optional headline → panel build step
type SentimentConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	RawHeadlinesCSV string `yaml:"raw_headlines_csv" json:"raw_headlines_csv"`
	FetchNews       bool   `yaml:"fetch_news" json:"fetch_news"` // CSV 대신 뉴스 스크래퍼 사용
	BatchSize       int    `yaml:"batch_size" json:"batch_size"`
	TextColumn      string `yaml:"text_column" json:"text_column"`
	DateColumn      string `yaml:"date_column" json:"date_column"`
	TickerColumn    string `yaml:"ticker_column" json:"ticker_column"`
}

// ReportsConfig locates run artifacts
type ReportsConfig struct {
	OutDir string `yaml:"out_dir" json:"out_dir"`
}

// ScheduleConfig drives the scheduled re-run
type ScheduleConfig struct {
	Cron string `yaml:"cron" json:"cron"` // 초 단위 포함 6필드
}

// Default returns the canonical research configuration
func Default() *Config {
	engine := backtest.DefaultConfig()
	return &Config{
		Meta: MetaConfig{StrategyID: "sentiment_ls"},
		Data: DataConfig{PanelPath: "data/sentiment_panel.csv"},
		Factor: FactorConfig{
			Name:    string(contracts.FieldShockSentiment),
			Horizon: 1,
		},
		Portfolio: PortfolioConfig{
			Weighting:       string(engine.Weighting),
			ShortQuantile:   engine.ShortQuantile,
			LongQuantile:    engine.LongQuantile,
			MinCrossSection: engine.MinCrossSection,
			Workers:         engine.Workers,
		},
		Sentiment: SentimentConfig{
			BatchSize:    16,
			TextColumn:   "headline",
			DateColumn:   "date",
			TickerColumn: "ticker",
		},
		Quality:  quality.DefaultConfig(),
		Reports:  ReportsConfig{OutDir: "reports"},
		Schedule: ScheduleConfig{Cron: "0 30 18 * * 1-5"},
	}
}

// BacktestConfig converts the portfolio section to engine parameters
func (c *Config) BacktestConfig() backtest.Config {
	w, _ := backtest.ParseWeighting(c.Portfolio.Weighting)
	return backtest.Config{
		MinCrossSection: c.Portfolio.MinCrossSection,
		ShortQuantile:   c.Portfolio.ShortQuantile,
		LongQuantile:    c.Portfolio.LongQuantile,
		Weighting:       w,
		Workers:         c.Portfolio.Workers,
	}
}

// FactorField returns the validated factor column
func (c *Config) FactorField() contracts.Field {
	return contracts.Field(c.Factor.Name)
}

// DateRange parses data.start / data.end. Zero values mean "use the panel range".
func (c *Config) DateRange() (from, to time.Time, err error) {
	if c.Data.Start != "" {
		if from, err = time.Parse(contracts.DateLayout, c.Data.Start); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if c.Data.End != "" {
		if to, err = time.Parse(contracts.DateLayout, c.Data.End); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return from, to, nil
}

// Snapshot records which configuration produced a run
type Snapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	StrategyID string    `json:"strategy_id"`
	CreatedAt  time.Time `json:"created_at"`
}
