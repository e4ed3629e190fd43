package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "Sentiment L/S - 뉴스 센티먼트 롱/숏 팩터 백테스트",
	Long: `Sentiment L/S Unified CLI

헤드라인 센티먼트 패널에서 SENT_L1 / SENT_SHOCK 팩터를 만들고
롱/숏 백테스트로 IC, Sharpe, MaxDD 를 평가합니다.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant sentiment build --input data/headlines.csv
  go run ./cmd/quant backtest run --factor SENT_SHOCK
  go run ./cmd/quant backtest last
  go run ./cmd/quant api
  go run ./cmd/quant scheduler start
  go run ./cmd/quant test-db --migrate`,
	SilenceUsage: true,
}

// Execute runs the root command; SIGINT/SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy YAML (default: $STRATEGY_CONFIG or configs/strategy.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
