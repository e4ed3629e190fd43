package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/sentiment-ls/internal/pipeline"
	"github.com/wonny/sentiment-ls/internal/sentiment"
)

// sentimentCmd represents the sentiment command
var sentimentCmd = &cobra.Command{
	Use:   "sentiment",
	Short: "헤드라인 센티먼트 패널",
}

var (
	sentimentBuildCmd = &cobra.Command{
		Use:   "build",
		Short: "헤드라인 → 일별 센티먼트 패널 CSV",
		Long: `헤드라인을 점수화하여 (date, ticker) 평균 센티먼트 패널을 만듭니다.

입력:
  --input       헤드라인 CSV (headline,date,ticker)
  --fetch-news  NEWS_BASE_URL 에서 유니버스 종목 헤드라인 수집

실패 시 기존 패널 파일이 있으면 그대로 사용합니다.

Example:
  go run ./cmd/quant sentiment build --input data/headlines.csv
  go run ./cmd/quant sentiment build --fetch-news --out data/sentiment_panel.csv`,
		RunE: runSentimentBuild,
	}

	sentimentInput     string
	sentimentOut       string
	sentimentFetchNews bool
)

func init() {
	rootCmd.AddCommand(sentimentCmd)
	sentimentCmd.AddCommand(sentimentBuildCmd)

	sentimentBuildCmd.Flags().StringVar(&sentimentInput, "input", "", "raw headlines CSV")
	sentimentBuildCmd.Flags().StringVar(&sentimentOut, "out", "", "panel CSV (default: data.panel_path)")
	sentimentBuildCmd.Flags().BoolVar(&sentimentFetchNews, "fetch-news", false, "fetch headlines for data.universe")
}

func runSentimentBuild(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	sc := a.strategy.Sentiment
	req := pipeline.SentimentRequest{
		HeadlinesCSV: sc.RawHeadlinesCSV,
		Columns: sentiment.Columns{
			Text:   sc.TextColumn,
			Date:   sc.DateColumn,
			Ticker: sc.TickerColumn,
		},
		FetchNews: sc.FetchNews || sentimentFetchNews,
		Tickers:   a.strategy.Data.Universe,
		BatchSize: sc.BatchSize,
		OutPath:   a.strategy.Data.PanelPath,
	}
	if sentimentInput != "" {
		req.HeadlinesCSV = sentimentInput
	}
	if sentimentOut != "" {
		req.OutPath = sentimentOut
	}

	PrintHeader("Sentiment Panel Build")
	PrintKeyValue("Output", req.OutPath, 8)

	res, err := a.orch.BuildSentiment(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("sentiment build failed: %w", err)
	}
	if res.Fallback {
		PrintWarning("Build failed - keeping existing panel " + req.OutPath)
		return nil
	}

	PrintKeyValue("Headlines", fmt.Sprint(res.Headlines), 10)
	PrintKeyValue("Panel rows", fmt.Sprint(res.PanelRows), 10)
	PrintSuccess("Panel written")
	return nil
}
