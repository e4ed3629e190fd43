package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/sentiment-ls/internal/backtest"
	"github.com/wonny/sentiment-ls/internal/contracts"
	"github.com/wonny/sentiment-ls/internal/pipeline"
	"github.com/wonny/sentiment-ls/internal/strategyconfig"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "센티먼트 롱/숏 백테스트",
	Long: `센티먼트 패널에서 팩터를 계산하고 롱/숏 백테스트를 실행합니다.

결과:
- reports/metrics.json   (IC, Sharpe, MaxDD, Turnover=null)
- reports/equity_curve.pdf

Example:
  go run ./cmd/quant backtest run
  go run ./cmd/quant backtest run --factor SENT_SHOCK --weighting dollar_neutral
  go run ./cmd/quant backtest last`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "백테스트 실행",
		Long: `strategy YAML 설정으로 백테스트를 실행합니다. 플래그는 설정을 덮어씁니다.

Flags:
  --panel      센티먼트 패널 CSV
  --factor     sentiment | SENT_L1 | SENT_SHOCK
  --horizon    선행 수익률 기간 (일)
  --weighting  bucket_spread | dollar_neutral
  --from/--to  기간 (YYYY-MM-DD)
  --build      실행 전 헤드라인 → 패널 빌드`,
		RunE: runBacktest,
	}

	backtestLastCmd = &cobra.Command{
		Use:   "last",
		Short: "마지막 지표 조회 (JSON)",
		RunE:  runBacktestLast,
	}

	// Flags
	backtestPanel     string
	backtestFactor    string
	backtestHorizon   int
	backtestWeighting string
	backtestFrom      string
	backtestTo        string
	backtestBuild     bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)
	backtestCmd.AddCommand(backtestLastCmd)

	backtestRunCmd.Flags().StringVar(&backtestPanel, "panel", "", "sentiment panel CSV")
	backtestRunCmd.Flags().StringVar(&backtestFactor, "factor", "", "factor column")
	backtestRunCmd.Flags().IntVar(&backtestHorizon, "horizon", 0, "forward return horizon in days")
	backtestRunCmd.Flags().StringVar(&backtestWeighting, "weighting", "", "bucket_spread or dollar_neutral")
	backtestRunCmd.Flags().StringVar(&backtestFrom, "from", "", "start date (YYYY-MM-DD)")
	backtestRunCmd.Flags().StringVar(&backtestTo, "to", "", "end date (YYYY-MM-DD)")
	backtestRunCmd.Flags().BoolVar(&backtestBuild, "build", false, "build the sentiment panel first")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	s := a.strategy
	if backtestPanel != "" {
		s.Data.PanelPath = backtestPanel
	}
	if backtestFactor != "" {
		s.Factor.Name = backtestFactor
	}
	if backtestHorizon != 0 {
		s.Factor.Horizon = backtestHorizon
	}
	if backtestWeighting != "" {
		s.Portfolio.Weighting = backtestWeighting
		if backtestWeighting == string(backtest.WeightingDollarNeutral) {
			dn := backtest.DollarNeutralConfig()
			s.Portfolio.ShortQuantile, s.Portfolio.LongQuantile = dn.ShortQuantile, dn.LongQuantile
		}
	}
	if backtestFrom != "" {
		s.Data.Start = backtestFrom
	}
	if backtestTo != "" {
		s.Data.End = backtestTo
	}
	s.Sentiment.Enabled = s.Sentiment.Enabled || backtestBuild
	if err := strategyconfig.Validate(s); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	PrintHeader("Sentiment L/S Backtest")
	PrintKeyValue("Strategy", s.Meta.StrategyID, 10)
	PrintKeyValue("Panel", s.Data.PanelPath, 10)
	PrintKeyValue("Factor", s.Factor.Name, 10)
	PrintKeyValue("Horizon", fmt.Sprintf("%dd", s.Factor.Horizon), 10)
	PrintKeyValue("Weighting", string(s.BacktestConfig().Weighting), 10)
	PrintSeparator()

	start := time.Now()
	result, err := a.orch.RunConfig(cmd.Context(), s)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	printRunResult(result)
	fmt.Fprintln(out)
	PrintSuccess(fmt.Sprintf("Completed in %.2fs", time.Since(start).Seconds()))
	return nil
}

func printRunResult(r *pipeline.RunResult) {
	if r.Fallback {
		PrintWarning("Price data unavailable - showing previous metrics")
		PrintMetrics(r.Report.Metrics)
		return
	}

	fmt.Fprintln(out, "\n📊 Pipeline")
	widths := []int{12, 10}
	PrintTableHeader([]string{"Stage", "Rows"}, widths)
	for _, row := range [][2]interface{}{
		{"panel", r.Counts.PanelRows},
		{"prices", r.Counts.PriceBars},
		{"factors", r.Counts.FactorRows},
		{"returns", r.Counts.ReturnRows},
		{"joined", r.Counts.JoinedRows},
		{"days", len(r.Daily)},
	} {
		PrintTableRow([]string{row[0].(string), fmt.Sprint(row[1])}, widths)
	}
	if r.Counts.SkippedThin+r.Counts.SkippedOneSided > 0 {
		PrintInfo(fmt.Sprintf("Skipped dates: %d thin, %d one-sided", r.Counts.SkippedThin, r.Counts.SkippedOneSided))
	}
	if r.Quality != nil && !r.Quality.Passed {
		PrintWarning(fmt.Sprintf("Data quality below thresholds (score %.2f)", r.Quality.QualityScore))
	}

	fmt.Fprintln(out, "\n📈 Metrics")
	PrintMetrics(r.Report.Metrics)

	if s := r.Summary; s != nil && s.Days > 0 {
		fmt.Fprintln(out, "\n📋 Summary")
		PrintKeyValue("Period", s.StartDate.Format(contracts.DateLayout)+" ~ "+s.EndDate.Format(contracts.DateLayout), 12)
		PrintKeyValue("Total", formatPercent(s.TotalReturn), 12)
		PrintKeyValue("Annual", formatPercent(s.AnnualReturn), 12)
		PrintKeyValue("Volatility", formatPercent(s.Volatility), 12)
		PrintKeyValue("Sortino", formatMetric(s.Sortino, 3), 12)
		PrintKeyValue("Win Rate", formatPercent(s.WinRate), 12)
		PrintKeyValue("VaR 95%", formatPercent(s.VaR95), 12)
		PrintKeyValue("CVaR 95%", formatPercent(s.CVaR95), 12)
	}
	if b := r.Sharpe; b != nil {
		PrintKeyValue("Sharpe band", fmt.Sprintf("%s / %s / %s (P05/P50/P95, n=%d)",
			formatMetric(b.P05, 2), formatMetric(b.P50, 2), formatMetric(b.P95, 2), b.Samples), 12)
		PrintKeyValue("P(Sharpe>0)", formatPercent(b.ProbPositive), 12)
	}

	fmt.Fprintln(out)
	PrintKeyValue("Run ID", r.RunID, 12)
	PrintKeyValue("Curve", r.Report.EquityCurvePath, 12)
}

func runBacktestLast(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(a.orch.LastMetrics(cmd.Context()))
}
