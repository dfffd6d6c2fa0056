// Package newsapi fetches ticker news from the NewsAPI "everything" endpoint.
package newsapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/raghuneu/finsage/internal/models"
	"github.com/raghuneu/finsage/internal/source"
)

const (
	DefaultBaseURL  = "https://newsapi.org"
	DefaultPageSize = 100
	DefaultLookback = 7 * 24 * time.Hour
	removedURL      = "https://removed.com"
)

var ErrMissingAPIKey = errors.New("newsapi: api key is not configured")

type Client struct {
	http     *source.Client
	baseURL  string
	apiKey   string
	pageSize int
	lookback time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

type Options struct {
	BaseURL  string
	APIKey   string
	PageSize int
	Lookback time.Duration
	Logger   *zap.Logger
}

func New(opts Options, http *source.Client) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Lookback <= 0 {
		opts.Lookback = DefaultLookback
	}
	if http == nil {
		http = source.NewClient()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		http:     http,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		apiKey:   opts.APIKey,
		pageSize: opts.PageSize,
		lookback: opts.Lookback,
		logger:   opts.Logger,
		now:      time.Now,
	}
}

type article struct {
	Source struct {
		Name *string `json:"name"`
	} `json:"source"`
	Author      *string `json:"author"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	URL         *string `json:"url"`
	PublishedAt *string `json:"publishedAt"`
	Content     *string `json:"content"`
}

type everythingResponse struct {
	Status   string    `json:"status"`
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	Articles []article `json:"articles"`
}

// Fetch returns articles published strictly after since. since is a canonical
// timestamp; the API is queried from its date and the rest is filtered here.
func (c *Client) Fetch(ctx context.Context, ticker string, since *string) ([]models.NewsArticle, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	from := c.now().UTC().Add(-c.lookback).Format(models.DateLayout)
	if since != nil && len(*since) >= len(models.DateLayout) {
		from = (*since)[:len(models.DateLayout)]
	}

	params := url.Values{}
	params.Set("q", ticker+" stock")
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", strconv.Itoa(c.pageSize))
	params.Set("from", from)
	params.Set("apiKey", c.apiKey)

	var resp everythingResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/v2/everything", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("newsapi %s: %s", resp.Code, resp.Message)
	}

	out := make([]models.NewsArticle, 0, len(resp.Articles))
	seen := map[string]struct{}{}
	var noURL, removed int
	for _, a := range resp.Articles {
		switch {
		case a.URL == nil || *a.URL == "":
			noURL++
			continue
		case *a.URL == removedURL:
			removed++
			continue
		}
		if _, dup := seen[*a.URL]; dup {
			continue
		}
		published := a.PublishedAt
		if published != nil {
			ts, err := models.NormalizeTimestamp(*published)
			if err != nil {
				return nil, fmt.Errorf("article %s: %w", *a.URL, err)
			}
			if since != nil && ts <= *since {
				continue
			}
			published = &ts
		}
		seen[*a.URL] = struct{}{}
		out = append(out, models.NewsArticle{
			Title:       a.Title,
			Description: a.Description,
			Content:     a.Content,
			Author:      a.Author,
			SourceName:  a.Source.Name,
			URL:         a.URL,
			PublishedAt: published,
			Source:      models.SourceNewsAPI,
		})
	}
	if noURL > 0 || removed > 0 {
		c.logger.Info("newsapi articles dropped",
			zap.String("ticker", ticker),
			zap.Int("without_url", noURL),
			zap.Int("removed", removed),
			zap.Int("kept", len(out)))
	}
	return out, nil
}
