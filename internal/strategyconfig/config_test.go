package strategyconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wonny/sentiment-ls/internal/backtest"
	"github.com/wonny/sentiment-ls/internal/contracts"
)

func TestLoad(t *testing.T) {
	path := "../../configs/strategy.yaml"

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, snap, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Meta.StrategyID != "sentiment_ls" {
		t.Errorf("expected strategy_id=sentiment_ls, got %s", cfg.Meta.StrategyID)
	}
	if cfg.FactorField() != contracts.FieldShockSentiment {
		t.Errorf("FactorField() = %s, want SENT_SHOCK", cfg.FactorField())
	}
	if cfg.Portfolio.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Portfolio.Workers)
	}

	hash, err := Hash(cfg)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if len(hash) != 64 {
		t.Errorf("expected 64 char hash, got %d", len(hash))
	}

	// 동일 설정 → 동일 해시
	hash2, _ := Hash(cfg)
	if hash != hash2 {
		t.Error("hash not deterministic")
	}

	if snap.ConfigYAML == "" || snap.ConfigHash != hash {
		t.Errorf("snapshot = %+v, want raw YAML and hash %s", snap, hash)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("factor:\n  name: SENT_L1\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.FactorField() != contracts.FieldLaggedSentiment {
		t.Errorf("FactorField() = %s, want SENT_L1", cfg.FactorField())
	}
	if cfg.Factor.Horizon != 1 {
		t.Errorf("Horizon = %d, want default 1", cfg.Factor.Horizon)
	}
	if got := cfg.BacktestConfig(); got != backtest.DefaultConfig() {
		t.Errorf("BacktestConfig() = %+v, want defaults", got)
	}

	empty, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(empty) failed: %v", err)
	}
	if empty.Meta.StrategyID != "sentiment_ls" {
		t.Errorf("empty YAML should keep defaults, got %+v", empty.Meta)
	}
}

func TestParse_UnknownField(t *testing.T) {
	if _, err := Parse([]byte("factor:\n  nmae: SENT_L1\n")); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string // "" = valid
	}{
		{"defaults", func(*Config) {}, ""},
		{"dollar neutral", func(c *Config) {
			c.Portfolio.Weighting = "dollar_neutral"
			c.Portfolio.ShortQuantile, c.Portfolio.LongQuantile = 0.2, 0.8
		}, ""},
		{"missing strategy id", func(c *Config) { c.Meta.StrategyID = " " }, "meta.strategy_id"},
		{"fwd_return as factor", func(c *Config) { c.Factor.Name = "fwd_return" }, "factor.name"},
		{"unknown factor", func(c *Config) { c.Factor.Name = "MOMENTUM" }, "factor.name"},
		{"zero horizon", func(c *Config) { c.Factor.Horizon = 0 }, "factor.horizon"},
		{"bad weighting", func(c *Config) { c.Portfolio.Weighting = "equal" }, "portfolio.weighting"},
		{"inverted quantiles", func(c *Config) { c.Portfolio.ShortQuantile = 0.8 }, "portfolio"},
		{"bad date", func(c *Config) { c.Data.Start = "2024/01/01" }, "data.start/end"},
		{"end before start", func(c *Config) {
			c.Data.Start, c.Data.End = "2024-02-01", "2024-01-01"
		}, "data.end"},
		{"sentiment without source", func(c *Config) { c.Sentiment.Enabled = true }, "sentiment.raw_headlines_csv"},
		{"coverage out of range", func(c *Config) { c.Quality.MinPriceCoverage = 1.5 }, "quality.min_price_coverage"},
		{"no reports dir", func(c *Config) { c.Reports.OutDir = "" }, "reports.out_dir"},
		{"bad cron", func(c *Config) { c.Schedule.Cron = "every day" }, "schedule.cron"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.field == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}

			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("ValidationError.Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestHash_ChangesWithConfig(t *testing.T) {
	a, b := Default(), Default()
	b.Factor.Horizon = 5

	ha, _ := Hash(a)
	hb, _ := Hash(b)
	if ha == hb {
		t.Error("different configs must hash differently")
	}
}

func TestLoad_Snapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	raw := "meta:\n  strategy_id: test\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	_, snap, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if snap.StrategyID != "test" || snap.ConfigYAML != raw || len(snap.ConfigHash) != 64 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("SLS_PANEL", "/data/panel.csv")

	cfg, err := Parse([]byte("data:\n  panel_path: ${SLS_PANEL}\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Data.PanelPath != "/data/panel.csv" {
		t.Errorf("PanelPath = %q, want /data/panel.csv", cfg.Data.PanelPath)
	}
}
