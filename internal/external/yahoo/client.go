package yahoo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/sentiment-ls/internal/contracts"
	"github.com/wonny/sentiment-ls/pkg/httputil"
	"github.com/wonny/sentiment-ls/pkg/logger"
	"github.com/wonny/sentiment-ls/pkg/redis"
)

// DefaultBaseURL is the public chart API host
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// ErrNoData is returned when no requested ticker produced any close
var ErrNoData = errors.New("no price data")

// Client fetches daily closes from the chart API
// ⭐ SSOT: 가격 API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	cache      *redis.Cache // nil = no cache
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new chart API client. An empty baseURL uses DefaultBaseURL.
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.Module("yahoo"),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// WithCache puts a Redis cache in front of per-ticker requests
func (c *Client) WithCache(cache *redis.Cache) *Client {
	c.cache = cache
	return c
}

// chartResponse is the subset of the chart payload we read
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchCloses implements contracts.PriceSource.
// Tickers that fail are logged and skipped; an error is returned only when nothing was fetched.
func (c *Client) FetchCloses(ctx context.Context, tickers []string, from, to time.Time) ([]contracts.PriceBar, error) {
	var (
		bars    []contracts.PriceBar
		lastErr error
		failed  int
	)

	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		got, err := c.fetchTicker(ctx, ticker, from, to)
		if err != nil {
			failed++
			lastErr = err
			c.logger.WithError(err).WithField("ticker", ticker).Warn("Price fetch failed")
			continue
		}
		bars = append(bars, got...)
	}

	if len(bars) == 0 && len(tickers) > 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %d tickers failed, last: %v", ErrNoData, failed, lastErr)
		}
		return nil, ErrNoData
	}

	c.logger.WithFields(map[string]interface{}{
		"tickers": len(tickers),
		"failed":  failed,
		"bars":    len(bars),
	}).Info("Fetched closes")

	return bars, nil
}

func (c *Client) fetchTicker(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PriceBar, error) {
	from, to = contracts.Day(from), contracts.Day(to)
	key := redis.ClosesKey(ticker, from.Format(contracts.DateLayout), to.Format(contracts.DateLayout))

	cached, err := redis.Remember(ctx, c.cache, key, redis.TTLCloses, func(ctx context.Context) ([]cachedBar, error) {
		bars, err := c.requestChart(ctx, ticker, from, to)
		if err != nil {
			return nil, err
		}
		return toCache(bars), nil
	})
	if err != nil {
		return nil, err
	}
	return fromCache(ticker, cached), nil
}

func (c *Client) requestChart(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PriceBar, error) {
	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", from.Unix()))
	params.Set("period2", fmt.Sprintf("%d", to.AddDate(0, 0, 1).Unix())) // exclusive
	params.Set("interval", "1d")
	params.Set("events", "history")
	fullURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(ticker), params.Encode())

	var resp chartResponse
	if err := c.httpClient.GetJSON(ctx, fullURL, &resp); err != nil {
		return nil, fmt.Errorf("chart %s: %w", ticker, err)
	}
	return parseChart(ticker, &resp)
}

// parseChart turns the payload into bars, preferring adjusted closes. null → NaN.
func parseChart(ticker string, resp *chartResponse) ([]contracts.PriceBar, error) {
	if e := resp.Chart.Error; e != nil {
		return nil, fmt.Errorf("chart %s: %s: %s", ticker, e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("chart %s: empty result", ticker)
	}

	r := resp.Chart.Result[0]
	var closes []*float64
	if len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) == len(r.Timestamp) {
		closes = r.Indicators.AdjClose[0].AdjClose
	} else if len(r.Indicators.Quote) > 0 && len(r.Indicators.Quote[0].Close) == len(r.Timestamp) {
		closes = r.Indicators.Quote[0].Close
	} else {
		return nil, fmt.Errorf("chart %s: close series missing or misaligned", ticker)
	}

	bars := make([]contracts.PriceBar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		v := math.NaN()
		if closes[i] != nil {
			v = *closes[i]
		}
		bars = append(bars, contracts.PriceBar{
			Date:   contracts.Day(time.Unix(ts, 0).UTC()),
			Ticker: ticker,
			Close:  v,
		})
	}
	return bars, nil
}

// cachedBar keeps NaN representable in JSON
type cachedBar struct {
	Date  string   `json:"d"`
	Close *float64 `json:"c"`
}

func toCache(bars []contracts.PriceBar) []cachedBar {
	out := make([]cachedBar, len(bars))
	for i, b := range bars {
		out[i].Date = b.Date.Format(contracts.DateLayout)
		if !contracts.IsMissing(b.Close) {
			v := b.Close
			out[i].Close = &v
		}
	}
	return out
}

func fromCache(ticker string, cached []cachedBar) []contracts.PriceBar {
	out := make([]contracts.PriceBar, 0, len(cached))
	for _, cb := range cached {
		d, err := time.Parse(contracts.DateLayout, cb.Date)
		if err != nil {
			continue
		}
		v := math.NaN()
		if cb.Close != nil {
			v = *cb.Close
		}
		out = append(out, contracts.PriceBar{Date: d, Ticker: ticker, Close: v})
	}
	return out
}
