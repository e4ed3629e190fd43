package s0_data

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/sentiment-ls/internal/contracts"
)

// ErrInvalidHorizon is returned for a forward-return horizon below 1
var ErrInvalidHorizon = errors.New("horizon must be >= 1")

// DefaultMaxTickers caps the universe drawn from a panel
const DefaultMaxTickers = 100

// ForwardReturns turns closes into h-day forward returns attached to the signal date.
// ⭐ SSOT: 선행 수익률 계산은 여기서만
//
// Closes are aligned on the union of all dates and forward-filled per ticker.
// Tickers with no close at all are dropped. fwd[t] = close[t+h]/close[t] - 1;
// only defined values are returned, sorted by date then ticker.
func ForwardReturns(prices []contracts.PriceBar, horizon int) ([]contracts.ReturnRow, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidHorizon, horizon)
	}

	// 1. wide matrix on the union date grid
	dateSet := make(map[time.Time]struct{})
	byTicker := make(map[string]map[time.Time]float64)
	for _, p := range prices {
		d := contracts.Day(p.Date)
		dateSet[d] = struct{}{}
		if _, ok := byTicker[p.Ticker]; !ok {
			byTicker[p.Ticker] = make(map[time.Time]float64)
		}
		if !contracts.IsMissing(p.Close) {
			byTicker[p.Ticker][d] = p.Close
		}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	tickers := make([]string, 0, len(byTicker))
	for t, closes := range byTicker {
		if len(closes) == 0 {
			continue
		}
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	out := make([]contracts.ReturnRow, 0, len(tickers)*len(dates))
	series := make([]float64, len(dates))

	// 2. forward-fill, then shift
	for _, ticker := range tickers {
		closes := byTicker[ticker]
		last := math.NaN()
		for i, d := range dates {
			if c, ok := closes[d]; ok {
				last = c
			}
			series[i] = last
		}

		for i := 0; i+horizon < len(dates); i++ {
			base, ahead := series[i], series[i+horizon]
			if contracts.IsMissing(base) || contracts.IsMissing(ahead) || base == 0 {
				continue
			}
			out = append(out, contracts.ReturnRow{
				Date:      dates[i],
				Ticker:    ticker,
				FwdReturn: ahead/base - 1,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Ticker < out[j].Ticker
	})

	return out, nil
}

// Join inner-joins factor rows with forward returns on (date, ticker), sorted by date then ticker
func Join(factors []contracts.FactorRow, returns []contracts.ReturnRow) []contracts.JoinedRow {
	type key struct {
		date   time.Time
		ticker string
	}

	fwd := make(map[key]float64, len(returns))
	for _, r := range returns {
		fwd[key{contracts.Day(r.Date), r.Ticker}] = r.FwdReturn
	}

	out := make([]contracts.JoinedRow, 0, len(factors))
	for _, f := range factors {
		ret, ok := fwd[key{contracts.Day(f.Date), f.Ticker}]
		if !ok {
			continue
		}
		out = append(out, contracts.JoinedRow{
			Date:            f.Date,
			Ticker:          f.Ticker,
			Sentiment:       f.Sentiment,
			LaggedSentiment: f.LaggedSentiment,
			ShockSentiment:  f.ShockSentiment,
			FwdReturn:       ret,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Ticker < out[j].Ticker
	})

	return out
}

// UniverseInfo is the ticker list and date range a panel covers
type UniverseInfo struct {
	Tickers []string
	From    time.Time
	To      time.Time
}

// Universe returns the first maxTickers sorted unique tickers and the panel's date range.
// maxTickers <= 0 uses DefaultMaxTickers.
func Universe(panel []contracts.PanelRow, maxTickers int) UniverseInfo {
	if maxTickers <= 0 {
		maxTickers = DefaultMaxTickers
	}

	info := UniverseInfo{Tickers: []string{}}
	seen := make(map[string]struct{})
	for i, row := range panel {
		d := contracts.Day(row.Date)
		if i == 0 || d.Before(info.From) {
			info.From = d
		}
		if i == 0 || d.After(info.To) {
			info.To = d
		}
		if row.Ticker == "" {
			continue
		}
		if _, ok := seen[row.Ticker]; !ok {
			seen[row.Ticker] = struct{}{}
			info.Tickers = append(info.Tickers, row.Ticker)
		}
	}

	sort.Strings(info.Tickers)
	if len(info.Tickers) > maxTickers {
		info.Tickers = info.Tickers[:maxTickers]
	}
	return info
}
