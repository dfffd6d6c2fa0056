package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const SourceYahooFinance = "yahoo_finance"

type StockPrice struct {
	Ticker           string           `gorm:"primaryKey;type:varchar(16);comment:ticker symbol" json:"ticker"`
	Date             string           `gorm:"primaryKey;type:varchar(10);comment:trading day YYYY-MM-DD" json:"date"`
	Open             *decimal.Decimal `gorm:"type:numeric(20,6);comment:open price" json:"open"`
	High             *decimal.Decimal `gorm:"type:numeric(20,6);comment:high price" json:"high"`
	Low              *decimal.Decimal `gorm:"type:numeric(20,6);comment:low price" json:"low"`
	Close            *decimal.Decimal `gorm:"type:numeric(20,6);comment:close price" json:"close"`
	Volume           *int64           `gorm:"comment:shares traded" json:"volume"`
	Dividends        *decimal.Decimal `gorm:"type:numeric(20,6);comment:dividend paid that day" json:"dividends"`
	StockSplits      *decimal.Decimal `gorm:"type:numeric(20,6);comment:split ratio that day" json:"stock_splits"`
	Source           string           `gorm:"type:varchar(32);not null;comment:provenance tag" json:"source"`
	IngestedAt       string           `gorm:"type:varchar(19);not null;comment:capture time UTC" json:"ingested_at"`
	DataQualityScore float64          `gorm:"not null;default:0;comment:batch quality score 0-100" json:"data_quality_score"`
}

func (StockPrice) TableName() string {
	return "raw_stock_prices"
}

func (p *StockPrice) MergeKey() []any {
	return []any{p.Ticker, p.Date}
}

func (p *StockPrice) Stamp(entityKey, ingestedAt string) {
	p.Ticker = entityKey
	p.IngestedAt = ingestedAt
	if p.Source == "" {
		p.Source = SourceYahooFinance
	}
}

func (p *StockPrice) Normalize() error {
	if p.Date == "" {
		return nil
	}
	d, err := NormalizeDate(p.Date)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	p.Date = d
	return nil
}

func (p *StockPrice) SetQualityScore(score float64) {
	p.DataQualityScore = score
}

// OpenOutOfRange reports an open outside [low, high]. A missing value is never out of range.
func (p *StockPrice) OpenOutOfRange() bool {
	return outside(p.Open, p.Low, p.High)
}

// CloseOutOfRange reports a close outside [low, high]. A missing value is never out of range.
func (p *StockPrice) CloseOutOfRange() bool {
	return outside(p.Close, p.Low, p.High)
}

func outside(v, low, high *decimal.Decimal) bool {
	if v == nil || low == nil || high == nil {
		return false
	}
	return v.LessThan(*low) || v.GreaterThan(*high)
}
