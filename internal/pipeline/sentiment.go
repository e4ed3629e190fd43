package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wonny/sentiment-ls/internal/contracts"
	"github.com/wonny/sentiment-ls/internal/s0_data"
	"github.com/wonny/sentiment-ls/internal/sentiment"
)

// ErrNoHeadlineSource is returned when neither a CSV nor a headline source is available
var ErrNoHeadlineSource = errors.New("no headline source configured")

// SentimentRequest describes one headline → panel build
type SentimentRequest struct {
	HeadlinesCSV string            // raw headlines; ignored when FetchNews
	Columns      sentiment.Columns // CSV column names
	FetchNews    bool              // use the headline source for Tickers
	Tickers      []string
	BatchSize    int
	OutPath      string // panel CSV written here
}

// SentimentResult reports what the build produced
type SentimentResult struct {
	Headlines int  `json:"headlines"`
	PanelRows int  `json:"panel_rows"`
	Fallback  bool `json:"fallback"` // true = 기존 패널 파일 유지
}

// BuildSentiment scores headlines into a daily panel and writes it to req.OutPath.
// On failure an existing panel file is kept and the error is logged instead of returned.
func (o *Orchestrator) BuildSentiment(ctx context.Context, req SentimentRequest) (*SentimentResult, error) {
	res, err := o.buildSentiment(ctx, req)
	if err == nil {
		return res, nil
	}

	if _, statErr := os.Stat(req.OutPath); statErr == nil {
		o.logger.WithError(err).WithField("panel", req.OutPath).Warn("Sentiment build skipped, using existing panel")
		return &SentimentResult{Fallback: true}, nil
	}
	return nil, err
}

func (o *Orchestrator) buildSentiment(ctx context.Context, req SentimentRequest) (*SentimentResult, error) {
	headlines, err := step(o, "headlines", func() ([]contracts.Headline, error) { return o.loadHeadlines(ctx, req) })
	if err != nil {
		return nil, err
	}

	panel, err := step(o, "sentiment", func() ([]contracts.PanelRow, error) {
		return sentiment.BuildPanel(ctx, headlines, o.scorer, req.BatchSize)
	})
	if err != nil {
		return nil, fmt.Errorf("build panel: %w", err)
	}

	if err := writePanelFile(req.OutPath, panel); err != nil {
		return nil, err
	}

	if o.panelSink != nil {
		if err := o.panelSink.SaveBatch(ctx, panel); err != nil {
			o.logger.WithError(err).Warn("Failed to store sentiment panel")
		}
	}

	o.logger.WithFields(map[string]interface{}{
		"headlines":  len(headlines),
		"panel_rows": len(panel),
		"out":        req.OutPath,
	}).Info("Sentiment panel built")

	return &SentimentResult{Headlines: len(headlines), PanelRows: len(panel)}, nil
}

func (o *Orchestrator) loadHeadlines(ctx context.Context, req SentimentRequest) ([]contracts.Headline, error) {
	if req.FetchNews {
		if o.headlines == nil {
			return nil, ErrNoHeadlineSource
		}
		var all []contracts.Headline
		for _, ticker := range req.Tickers {
			hs, err := o.headlines.FetchHeadlines(ctx, ticker)
			if err != nil {
				o.logger.WithError(err).WithField("ticker", ticker).Warn("Headline fetch failed")
				continue
			}
			all = append(all, hs...)
		}
		return all, nil
	}

	if req.HeadlinesCSV == "" {
		return nil, ErrNoHeadlineSource
	}
	f, err := os.Open(req.HeadlinesCSV)
	if err != nil {
		return nil, fmt.Errorf("open headlines: %w", err)
	}
	defer f.Close()

	return sentiment.LoadHeadlinesCSV(f, req.Columns)
}

func writePanelFile(path string, panel []contracts.PanelRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create panel dir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create panel file: %w", err)
	}
	if err := s0_data.WritePanelCSV(f, panel); err != nil {
		f.Close()
		return fmt.Errorf("write panel: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
