package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/sentiment-ls/internal/contracts"
	"github.com/wonny/sentiment-ls/pkg/httputil"
	"github.com/wonny/sentiment-ls/pkg/logger"
)

// Selectors describe where headlines live in the listing page
type Selectors struct {
	Item       string // one element per headline
	Title      string // relative to Item; empty = Item text
	Link       string // relative to Item, href read from it
	Time       string // relative to Item
	TimeAttr   string // attribute holding the timestamp; empty = element text
	TimeLayout string // time.Parse layout; empty = RFC3339
}

// DefaultSelectors match a listing of <article><h3><a href></a></h3><time datetime=""></time></article>
var DefaultSelectors = Selectors{
	Item:       "article",
	Title:      "h3",
	Link:       "a",
	Time:       "time",
	TimeAttr:   "datetime",
	TimeLayout: time.RFC3339,
}

// Client scrapes per-ticker headline listings
// ⭐ SSOT: 뉴스 헤드라인 수집은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	pathFormat string // fmt format with one %s for the ticker
	selectors  Selectors
	now        func() time.Time
}

// NewClient creates a new headline scraper
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.Module("news"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		pathFormat: "/quote/%s/news",
		selectors:  DefaultSelectors,
		now:        time.Now,
	}
}

// WithSelectors overrides the listing selectors
func (c *Client) WithSelectors(s Selectors) *Client {
	c.selectors = s
	return c
}

// WithPathFormat overrides the per-ticker listing path
func (c *Client) WithPathFormat(format string) *Client {
	c.pathFormat = format
	return c
}

// FetchHeadlines implements contracts.HeadlineSource
func (c *Client) FetchHeadlines(ctx context.Context, ticker string) ([]contracts.Headline, error) {
	fullURL := c.baseURL + fmt.Sprintf(c.pathFormat, url.PathEscape(ticker))

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httputil.StatusError{StatusCode: resp.StatusCode, URL: fullURL}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	headlines := c.parse(doc, ticker)

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"count":  len(headlines),
	}).Debug("Fetched headlines")

	return headlines, nil
}

// FetchAll collects headlines for every ticker, skipping tickers that fail
func (c *Client) FetchAll(ctx context.Context, tickers []string) ([]contracts.Headline, error) {
	var all []contracts.Headline
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		hs, err := c.FetchHeadlines(ctx, ticker)
		if err != nil {
			c.logger.WithError(err).WithField("ticker", ticker).Warn("Headline fetch failed")
			continue
		}
		all = append(all, hs...)
	}
	return all, nil
}

func (c *Client) parse(doc *goquery.Document, ticker string) []contracts.Headline {
	sel := c.selectors
	var out []contracts.Headline

	doc.Find(sel.Item).Each(func(_ int, item *goquery.Selection) {
		titleSel := item
		if sel.Title != "" {
			titleSel = item.Find(sel.Title).First()
		}
		text := strings.Join(strings.Fields(titleSel.Text()), " ")
		if text == "" {
			return
		}

		h := contracts.Headline{
			Ticker: ticker,
			Text:   text,
			Time:   c.now().UTC(),
		}

		if sel.Link != "" {
			if href, ok := item.Find(sel.Link).First().Attr("href"); ok {
				h.URL = c.resolve(href)
			}
		}

		if sel.Time != "" {
			if ts, ok := c.parseTime(item.Find(sel.Time).First()); ok {
				h.Time = ts
			}
		}

		out = append(out, h)
	})

	return out
}

func (c *Client) parseTime(s *goquery.Selection) (time.Time, bool) {
	if s.Length() == 0 {
		return time.Time{}, false
	}

	raw := strings.TrimSpace(s.Text())
	if c.selectors.TimeAttr != "" {
		v, ok := s.Attr(c.selectors.TimeAttr)
		if !ok {
			return time.Time{}, false
		}
		raw = strings.TrimSpace(v)
	}

	layout := c.selectors.TimeLayout
	if layout == "" {
		layout = time.RFC3339
	}
	t, err := time.Parse(layout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func (c *Client) resolve(href string) string {
	u, err := url.Parse(href)
	if err != nil || u.IsAbs() {
		return href
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return href
	}
	return base.ResolveReference(u).String()
}
