// Package edgar reads SEC EDGAR: the ticker to CIK map, XBRL company facts and
// the 10-K/10-Q filing index with its primary documents.
package edgar

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/raghuneu/finsage/internal/cache"
	"github.com/raghuneu/finsage/internal/ingesterr"
	"github.com/raghuneu/finsage/internal/source"
)

const (
	DefaultBaseURL    = "https://data.sec.gov"
	DefaultArchiveURL = "https://www.sec.gov"
	DefaultTickersURL = "https://www.sec.gov/files/company_tickers.json"
	DefaultRateLimit  = 8
	DefaultCacheTTL   = 24 * time.Hour
	DefaultMaxFilings = 2

	tickerMapKey = "edgar:company_tickers"
	sourceName   = "sec_edgar"
)

var (
	DefaultForms    = []string{"10-K", "10-Q"}
	DefaultConcepts = []string{
		"Revenues", "NetIncomeLoss", "EarningsPerShareBasic", "EarningsPerShareDiluted",
		"Assets", "Liabilities", "StockholdersEquity", "OperatingIncomeLoss",
		"GrossProfit", "ResearchAndDevelopmentExpense",
	}
	fiscalPeriods = map[string]bool{"Q1": true, "Q2": true, "Q3": true, "FY": true}
)

type Options struct {
	BaseURL    string
	ArchiveURL string
	TickersURL string
	Forms      []string
	Concepts   []string
	CacheTTL   time.Duration
	MaxFilings int
}

type Client struct {
	http   *source.Client
	cache  cache.Store
	opts   Options
	logger *zap.Logger
}

// New builds a client. http must carry the SEC-mandated user agent and a rate
// limit at or below DefaultRateLimit.
func New(opts Options, http *source.Client, store cache.Store, logger *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.ArchiveURL == "" {
		opts.ArchiveURL = DefaultArchiveURL
	}
	if opts.TickersURL == "" {
		opts.TickersURL = DefaultTickersURL
	}
	if len(opts.Forms) == 0 {
		opts.Forms = DefaultForms
	}
	if len(opts.Concepts) == 0 {
		opts.Concepts = DefaultConcepts
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.MaxFilings <= 0 {
		opts.MaxFilings = DefaultMaxFilings
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	opts.ArchiveURL = strings.TrimRight(opts.ArchiveURL, "/")
	if http == nil {
		http = source.NewClient(source.WithRateLimit(DefaultRateLimit))
	}
	if store == nil {
		store = cache.NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{http: http, cache: store, opts: opts, logger: logger.With(zap.String("vendor", sourceName))}
}

type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// TickerMap returns ticker to zero-padded CIK for every listed company,
// cached for CacheTTL.
func (c *Client) TickerMap(ctx context.Context) (map[string]string, error) {
	m, found, err := cache.GetJSON[map[string]string](ctx, c.cache, tickerMapKey)
	if err != nil {
		c.logger.Warn("ticker map cache read failed", zap.Error(err))
	}
	if found && len(m) > 0 {
		return m, nil
	}

	var raw map[string]tickerEntry
	if err := c.http.GetJSON(ctx, c.opts.TickersURL, nil, &raw); err != nil {
		return nil, fmt.Errorf("company tickers: %w", err)
	}
	m = make(map[string]string, len(raw))
	for _, e := range raw {
		m[strings.ToUpper(e.Ticker)] = PadCIK(e.CIK)
	}
	if err := cache.SetJSON(ctx, c.cache, tickerMapKey, m, c.opts.CacheTTL); err != nil {
		c.logger.Warn("ticker map cache write failed", zap.Error(err))
	}
	return m, nil
}

// CIK resolves one ticker.
func (c *Client) CIK(ctx context.Context, ticker string) (string, error) {
	m, err := c.TickerMap(ctx)
	if err != nil {
		return "", err
	}
	cik, ok := m[strings.ToUpper(ticker)]
	if !ok {
		return "", &ingesterr.UnknownEntityError{Source: sourceName, EntityKey: ticker, Reason: "no CIK mapping"}
	}
	return cik, nil
}

func PadCIK(cik int64) string {
	return fmt.Sprintf("%010d", cik)
}

func (c *Client) formAllowed(form string) bool {
	for _, f := range c.opts.Forms {
		if f == form {
			return true
		}
	}
	return false
}

func unpad(cik string) string {
	n, err := strconv.ParseInt(cik, 10, 64)
	if err != nil {
		return cik
	}
	return strconv.FormatInt(n, 10)
}
