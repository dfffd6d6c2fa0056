package loader

import (
	"go.uber.org/zap"

	"github.com/raghuneu/finsage/internal/models"
	"github.com/raghuneu/finsage/internal/quality"
	"github.com/raghuneu/finsage/internal/validation"
	"github.com/raghuneu/finsage/internal/warehouse"
)

const (
	SourceStocks       = "stocks"
	SourceFundamentals = "fundamentals"
	SourceNews         = "news"
	SourceSEC          = "sec"
	SourceFilings      = "filings"
)

type (
	StockLoader        = Loader[models.StockPrice, *models.StockPrice]
	FundamentalsLoader = Loader[models.Fundamental, *models.Fundamental]
	NewsLoader         = Loader[models.NewsArticle, *models.NewsArticle]
	SECLoader          = Loader[models.SECFact, *models.SECFact]
	FilingLoader       = Loader[models.SECFilingDocument, *models.SECFilingDocument]
)

func NewStockLoader(store *warehouse.Store, f Fetcher[models.StockPrice], logger *zap.Logger, opts Options) (*StockLoader, error) {
	table, err := store.Describe(&models.StockPrice{}, "date")
	if err != nil {
		return nil, err
	}
	return New[models.StockPrice, *models.StockPrice](SourceStocks, store, table, f, validation.Prices, quality.Prices, logger, opts), nil
}

// NewFundamentalsLoader loads a snapshot source: there is no watermark, every
// run refetches and overwrites the current quarter.
func NewFundamentalsLoader(store *warehouse.Store, f Fetcher[models.Fundamental], logger *zap.Logger, opts Options) (*FundamentalsLoader, error) {
	table, err := store.Describe(&models.Fundamental{}, "")
	if err != nil {
		return nil, err
	}
	return New[models.Fundamental, *models.Fundamental](SourceFundamentals, store, table, f, validation.Fundamentals, quality.Fundamentals, logger, opts), nil
}

func NewNewsLoader(store *warehouse.Store, f Fetcher[models.NewsArticle], logger *zap.Logger, opts Options) (*NewsLoader, error) {
	table, err := store.Describe(&models.NewsArticle{}, "published_at")
	if err != nil {
		return nil, err
	}
	return New[models.NewsArticle, *models.NewsArticle](SourceNews, store, table, f, validation.News, quality.News, logger, opts), nil
}

func NewSECLoader(store *warehouse.Store, f Fetcher[models.SECFact], logger *zap.Logger, opts Options) (*SECLoader, error) {
	table, err := store.Describe(&models.SECFact{}, "filed_date")
	if err != nil {
		return nil, err
	}
	return New[models.SECFact, *models.SECFact](SourceSEC, store, table, f, validation.SECFacts, quality.SECFacts, logger, opts), nil
}

func NewFilingLoader(store *warehouse.Store, f Fetcher[models.SECFilingDocument], logger *zap.Logger, opts Options) (*FilingLoader, error) {
	table, err := store.Describe(&models.SECFilingDocument{}, "filing_date")
	if err != nil {
		return nil, err
	}
	return New[models.SECFilingDocument, *models.SECFilingDocument](SourceFilings, store, table, f, validation.FilingDocuments, quality.FilingDocuments, logger, opts), nil
}
