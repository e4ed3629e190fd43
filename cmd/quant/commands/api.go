package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/sentiment-ls/internal/api"
	"github.com/wonny/sentiment-ls/internal/api/handlers"
	"github.com/wonny/sentiment-ls/internal/pipeline"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                - Health check (DB / Redis)
  GET  /metrics               - Prometheus metrics
  GET  /api/metrics/last      - 마지막 지표 (없으면 null)
  POST /api/backtest/run      - 백테스트 실행 (factor, horizon, weighting, from, to)
  GET  /api/backtest/latest   - 최근 실행 기록 (DB 필요)
  GET  /api/backtest/runs/{id}

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: $PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	base, err := pipeline.RequestFromConfig(a.strategy)
	if err != nil {
		return fmt.Errorf("strategy request: %w", err)
	}

	var runs handlers.RunStore
	if a.runs != nil {
		runs = a.runs
	}
	deps := map[string]handlers.Pinger{}
	if a.db != nil {
		deps["database"] = a.db
	}
	if a.redis.Enabled() {
		deps["redis"] = a.redis
	}

	router := api.NewRouter(api.Routes{
		Backtest: handlers.NewBacktestHandler(a.orch, runs, base, a.log),
		Health:   handlers.NewHealthHandler("sentiment-ls-api", deps),
		Metrics:  a.registry.Handler(),
	}, a.log)
	server := api.New(a.cfg, a.log, router)

	return server.Run(cmd.Context(), func(addr string) {
		fmt.Fprintf(out, "\n✅ Server running on %s\n", addr)
		fmt.Fprintln(out, "\nPress Ctrl+C to stop")
	})
}
