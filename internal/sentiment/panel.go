package sentiment

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/wonny/sentiment-ls/internal/contracts"
	"github.com/wonny/sentiment-ls/internal/s0_data"
)

// DefaultBatchSize is the number of texts sent to the scorer at once
const DefaultBatchSize = 16

// ErrScoreMismatch is returned when a scorer returns the wrong number of labels
var ErrScoreMismatch = errors.New("scorer output length mismatch")

// BuildPanel scores headlines in batches and averages them per (day, ticker)
// ⭐ SSOT: 헤드라인 → 일별 센티먼트 패널 변환은 여기서만
func BuildPanel(ctx context.Context, headlines []contracts.Headline, scorer Scorer, batchSize int) ([]contracts.PanelRow, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if len(headlines) == 0 {
		return []contracts.PanelRow{}, nil
	}

	signed := make([]float64, 0, len(headlines))
	for start := 0; start < len(headlines); start += batchSize {
		end := start + batchSize
		if end > len(headlines) {
			end = len(headlines)
		}

		texts := make([]string, end-start)
		for i, h := range headlines[start:end] {
			texts[i] = h.Text
		}

		labels, err := scorer.Score(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("score batch at %d: %w", start, err)
		}
		if len(labels) != len(texts) {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrScoreMismatch, len(labels), len(texts))
		}
		for _, l := range labels {
			signed = append(signed, Signed(l))
		}
	}

	type key struct {
		date   time.Time
		ticker string
	}
	type agg struct {
		sum   float64
		count int
	}

	groups := make(map[key]*agg)
	for i, h := range headlines {
		k := key{contracts.Day(h.Time), h.Ticker}
		a, ok := groups[k]
		if !ok {
			a = &agg{}
			groups[k] = a
		}
		a.sum += signed[i]
		a.count++
	}

	panel := make([]contracts.PanelRow, 0, len(groups))
	for k, a := range groups {
		panel = append(panel, contracts.PanelRow{
			Date:        k.date,
			Ticker:      k.ticker,
			Sentiment:   a.sum / float64(a.count),
			SourceCount: a.count,
		})
	}

	sort.Slice(panel, func(i, j int) bool {
		if !panel[i].Date.Equal(panel[j].Date) {
			return panel[i].Date.Before(panel[j].Date)
		}
		return panel[i].Ticker < panel[j].Ticker
	})

	return panel, nil
}

// Columns names the headline CSV columns
type Columns struct {
	Text   string
	Date   string
	Ticker string
}

// DefaultColumns is headline,date,ticker
var DefaultColumns = Columns{Text: "headline", Date: "date", Ticker: "ticker"}

// LoadHeadlinesCSV reads raw headlines. Empty column names fall back to DefaultColumns.
func LoadHeadlinesCSV(r io.Reader, cols Columns) ([]contracts.Headline, error) {
	if cols.Text == "" {
		cols.Text = DefaultColumns.Text
	}
	if cols.Date == "" {
		cols.Date = DefaultColumns.Date
	}
	if cols.Ticker == "" {
		cols.Ticker = DefaultColumns.Ticker
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(head))
	for i, h := range head {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	lookup := func(name string) (int, error) {
		i, ok := idx[strings.ToLower(name)]
		if !ok {
			return -1, fmt.Errorf("%w: %s", s0_data.ErrMissingColumn, name)
		}
		return i, nil
	}
	textIdx, err := lookup(cols.Text)
	if err != nil {
		return nil, err
	}
	dateIdx, err := lookup(cols.Date)
	if err != nil {
		return nil, err
	}
	tickerIdx, err := lookup(cols.Ticker)
	if err != nil {
		return nil, err
	}

	var out []contracts.Headline
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if maxIdx(textIdx, dateIdx, tickerIdx) >= len(rec) {
			return nil, fmt.Errorf("line %d: short record", line)
		}

		ticker := strings.TrimSpace(rec[tickerIdx])
		text := strings.TrimSpace(rec[textIdx])
		if ticker == "" || text == "" {
			continue
		}

		date, err := s0_data.ParseDate(rec[dateIdx])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		out = append(out, contracts.Headline{Time: date, Ticker: ticker, Text: text})
	}

	return out, nil
}

func maxIdx(xs ...int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}
