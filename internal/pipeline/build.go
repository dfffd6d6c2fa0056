package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/raghuneu/finsage/internal/archive"
	"github.com/raghuneu/finsage/internal/cache"
	"github.com/raghuneu/finsage/internal/config"
	"github.com/raghuneu/finsage/internal/loader"
	"github.com/raghuneu/finsage/internal/models"
	"github.com/raghuneu/finsage/internal/source"
	"github.com/raghuneu/finsage/internal/source/edgar"
	"github.com/raghuneu/finsage/internal/source/newsapi"
	"github.com/raghuneu/finsage/internal/source/yahoo"
	"github.com/raghuneu/finsage/internal/warehouse"
)

type Deps struct {
	Store  *warehouse.Store
	Cache  cache.Store
	Logger *zap.Logger
}

// NewEdgarClient builds the SEC client shared by the facts and filings loaders
// and the ciks command.
func NewEdgarClient(cfg config.Config, store cache.Store, logger *zap.Logger) *edgar.Client {
	http := source.NewClient(
		source.WithTimeout(cfg.Edgar.Timeout),
		source.WithRateLimit(cfg.Edgar.RateLimit),
		source.WithUserAgent(cfg.Edgar.UserAgent),
		source.WithLogger(logger),
	)
	return edgar.New(edgar.Options{
		BaseURL:    cfg.Edgar.BaseURL,
		ArchiveURL: cfg.Edgar.ArchiveURL,
		TickersURL: cfg.Edgar.TickersURL,
		Forms:      cfg.Edgar.Forms,
		Concepts:   cfg.Edgar.Concepts,
		CacheTTL:   cfg.Edgar.CIKCacheTTL,
		MaxFilings: cfg.Pipeline.MaxFilings,
	}, http, store, logger)
}

// BuildRunners wires one loader per source enabled in cfg.Pipeline.Sources,
// in a fixed order.
func BuildRunners(cfg config.Config, deps Deps) ([]loader.Runner, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("pipeline: warehouse store is nil")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := loader.Options{
		Timeout:         cfg.Pipeline.LoaderTimeout,
		MinQualityScore: cfg.Pipeline.MinQualityScore,
	}
	if cfg.Archive.Enabled {
		opts.Archive = archive.ParquetWriter{Dir: cfg.Archive.Dir}
	}
	src := cfg.Pipeline.Sources

	var runners []loader.Runner
	add := func(r loader.Runner, err error) error {
		if err != nil {
			return err
		}
		runners = append(runners, r)
		return nil
	}

	if src.Stocks || src.Fundamentals {
		yc := yahoo.New(cfg.Yahoo.BaseURL, cfg.Yahoo.Range, source.NewClient(
			source.WithTimeout(cfg.Yahoo.Timeout),
			source.WithLogger(logger),
		))
		if src.Stocks {
			if err := add(loader.NewStockLoader(deps.Store, loader.FetcherFunc[models.StockPrice](yc.FetchPrices), logger, opts)); err != nil {
				return nil, err
			}
		}
		if src.Fundamentals {
			if err := add(loader.NewFundamentalsLoader(deps.Store, loader.FetcherFunc[models.Fundamental](yc.FetchFundamentals), logger, opts)); err != nil {
				return nil, err
			}
		}
	}

	if src.News {
		if cfg.NewsAPI.APIKey == "" {
			return nil, fmt.Errorf("pipeline: newsapi.api_key is required when the news source is enabled")
		}
		nc := newsapi.New(newsapi.Options{
			BaseURL:  cfg.NewsAPI.BaseURL,
			APIKey:   cfg.NewsAPI.APIKey,
			PageSize: cfg.NewsAPI.PageSize,
			Lookback: cfg.NewsAPI.Lookback,
			Logger:   logger,
		}, source.NewClient(source.WithTimeout(cfg.NewsAPI.Timeout), source.WithLogger(logger)))
		if err := add(loader.NewNewsLoader(deps.Store, nc, logger, opts)); err != nil {
			return nil, err
		}
	}

	if src.SEC || src.Filings {
		ec := NewEdgarClient(cfg, deps.Cache, logger)
		if src.SEC {
			if err := add(loader.NewSECLoader(deps.Store, loader.FetcherFunc[models.SECFact](ec.FetchFacts), logger, opts)); err != nil {
				return nil, err
			}
		}
		if src.Filings {
			if err := add(loader.NewFilingLoader(deps.Store, loader.FetcherFunc[models.SECFilingDocument](ec.FetchFilingDocuments), logger, opts)); err != nil {
				return nil, err
			}
		}
	}

	return runners, nil
}
