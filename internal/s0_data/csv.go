package s0_data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/sentiment-ls/internal/contracts"
)

// ErrMissingColumn is returned when a CSV header lacks a required column
var ErrMissingColumn = errors.New("missing column")

// header maps lower-cased column names to their index
type header map[string]int

func readHeader(r *csv.Reader) (header, error) {
	cols, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	h := make(header, len(cols))
	for i, c := range cols {
		h[strings.ToLower(strings.TrimSpace(c))] = i
	}
	return h, nil
}

// index returns the first present alias
func (h header) index(aliases ...string) (int, bool) {
	for _, a := range aliases {
		if i, ok := h[a]; ok {
			return i, true
		}
	}
	return -1, false
}

func (h header) require(aliases ...string) (int, error) {
	i, ok := h.index(aliases...)
	if !ok {
		return -1, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(aliases, "|"))
	}
	return i, nil
}

// ParseDate accepts YYYY-MM-DD or RFC3339 and returns the UTC day
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(contracts.DateLayout, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return contracts.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q", s)
}

// parseFloat treats empty and NaN-like cells as missing
func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "null", "none", "na":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// LoadPanelCSV reads date,ticker,sentiment[,source_count] (avg_sentiment is accepted for sentiment)
func LoadPanelCSV(r io.Reader) ([]contracts.PanelRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	dateIdx, err := h.require("date")
	if err != nil {
		return nil, err
	}
	tickerIdx, err := h.require("ticker")
	if err != nil {
		return nil, err
	}
	sentIdx, err := h.require("sentiment", "avg_sentiment")
	if err != nil {
		return nil, err
	}
	countIdx, hasCount := h.index("source_count")

	var rows []contracts.PanelRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ticker := strings.TrimSpace(field(rec, tickerIdx))
		if ticker == "" {
			continue
		}

		date, err := ParseDate(field(rec, dateIdx))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		sent, err := parseFloat(field(rec, sentIdx))
		if err != nil {
			return nil, fmt.Errorf("line %d: sentiment: %w", line, err)
		}

		row := contracts.PanelRow{
			Date:      date,
			Ticker:    ticker,
			Sentiment: sent,
		}
		if hasCount {
			if n, err := strconv.Atoi(strings.TrimSpace(field(rec, countIdx))); err == nil {
				row.SourceCount = n
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// WritePanelCSV writes the panel in the shape LoadPanelCSV reads
func WritePanelCSV(w io.Writer, rows []contracts.PanelRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "ticker", "sentiment", "source_count"}); err != nil {
		return err
	}
	for _, row := range rows {
		sent := ""
		if !contracts.IsMissing(row.Sentiment) {
			sent = strconv.FormatFloat(row.Sentiment, 'g', -1, 64)
		}
		rec := []string{
			row.Date.Format(contracts.DateLayout),
			row.Ticker,
			sent,
			strconv.Itoa(row.SourceCount),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadPricesCSV reads date,ticker,close (adj_close preferred when present)
func LoadPricesCSV(r io.Reader) ([]contracts.PriceBar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	dateIdx, err := h.require("date")
	if err != nil {
		return nil, err
	}
	tickerIdx, err := h.require("ticker")
	if err != nil {
		return nil, err
	}
	closeIdx, err := h.require("adj_close", "close")
	if err != nil {
		return nil, err
	}

	var bars []contracts.PriceBar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		date, err := ParseDate(field(rec, dateIdx))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		closePrice, err := parseFloat(field(rec, closeIdx))
		if err != nil {
			return nil, fmt.Errorf("line %d: close: %w", line, err)
		}

		bars = append(bars, contracts.PriceBar{
			Date:   date,
			Ticker: strings.TrimSpace(field(rec, tickerIdx)),
			Close:  closePrice,
		})
	}

	return bars, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}
