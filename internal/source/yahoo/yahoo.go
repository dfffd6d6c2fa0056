// Package yahoo fetches daily bars from the chart API and a fundamentals
// snapshot from quoteSummary.
package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/raghuneu/finsage/internal/models"
	"github.com/raghuneu/finsage/internal/source"
)

const (
	DefaultBaseURL = "https://query1.finance.yahoo.com"
	DefaultRange   = "2y"
	priceScale     = 6
)

type Client struct {
	http    *source.Client
	baseURL string
	rng     string
	now     func() time.Time
}

func New(baseURL, rng string, http *source.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if rng == "" {
		rng = DefaultRange
	}
	if http == nil {
		http = source.NewClient()
	}
	return &Client{http: http, baseURL: strings.TrimRight(baseURL, "/"), rng: rng, now: time.Now}
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		GMTOffset int64 `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp []int64 `json:"timestamp"`
	Events    struct {
		Dividends map[string]struct {
			Amount float64 `json:"amount"`
			Date   int64   `json:"date"`
		} `json:"dividends"`
		Splits map[string]struct {
			Date        int64   `json:"date"`
			Numerator   float64 `json:"numerator"`
			Denominator float64 `json:"denominator"`
		} `json:"splits"`
	} `json:"events"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// FetchPrices returns daily bars strictly after since, or the configured range
// when since is nil.
func (c *Client) FetchPrices(ctx context.Context, ticker string, since *string) ([]models.StockPrice, error) {
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("events", "div,splits")
	params.Set("includeAdjustedClose", "false")
	if since != nil {
		from, err := time.Parse(models.DateLayout, *since)
		if err != nil {
			return nil, fmt.Errorf("bad watermark %q: %w", *since, err)
		}
		params.Set("period1", fmt.Sprint(from.Unix()))
		params.Set("period2", fmt.Sprint(c.now().Unix()))
	} else {
		params.Set("range", c.rng)
	}

	var resp chartResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/v8/finance/chart/"+url.PathEscape(ticker), params, &resp); err != nil {
		return nil, err
	}
	if e := resp.Chart.Error; e != nil {
		return nil, fmt.Errorf("chart %s: %s %s", ticker, e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, nil
	}
	return barsFrom(resp.Chart.Result[0], since), nil
}

func barsFrom(r chartResult, since *string) []models.StockPrice {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]
	day := func(ts int64) string {
		return time.Unix(ts+r.Meta.GMTOffset, 0).UTC().Format(models.DateLayout)
	}

	dividends := map[string]decimal.Decimal{}
	for _, d := range r.Events.Dividends {
		dividends[day(d.Date)] = decimal.NewFromFloat(d.Amount).Round(priceScale)
	}
	splits := map[string]decimal.Decimal{}
	for _, s := range r.Events.Splits {
		if s.Denominator != 0 {
			splits[day(s.Date)] = decimal.NewFromFloat(s.Numerator / s.Denominator).Round(priceScale)
		}
	}

	byDate := make(map[string]models.StockPrice, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		date := day(ts)
		if since != nil && date <= *since {
			continue
		}
		bar := models.StockPrice{
			Date:        date,
			Open:        at(q.Open, i),
			High:        at(q.High, i),
			Low:         at(q.Low, i),
			Close:       at(q.Close, i),
			Source:      models.SourceYahooFinance,
			Dividends:   zeroOr(dividends, date),
			StockSplits: zeroOr(splits, date),
		}
		if i < len(q.Volume) {
			bar.Volume = q.Volume[i]
		}
		// the live session can repeat the last bar; keep the latest.
		byDate[date] = bar
	}

	out := make([]models.StockPrice, 0, len(byDate))
	for _, bar := range byDate {
		out = append(out, bar)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func at(vals []*float64, i int) *decimal.Decimal {
	if i >= len(vals) || vals[i] == nil {
		return nil
	}
	d := decimal.NewFromFloat(*vals[i]).Round(priceScale)
	return &d
}

func zeroOr(m map[string]decimal.Decimal, date string) *decimal.Decimal {
	v, ok := m[date]
	if !ok {
		v = decimal.Zero
	}
	return &v
}
