package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Fundamental is a point-in-time snapshot of company fundamentals keyed by the
// fiscal quarter it was taken in.
type Fundamental struct {
	Ticker           string           `gorm:"primaryKey;type:varchar(16);comment:ticker symbol" json:"ticker"`
	FiscalQuarter    string           `gorm:"primaryKey;type:varchar(7);comment:fiscal quarter YYYY-QN" json:"fiscal_quarter"`
	MarketCap        *decimal.Decimal `gorm:"type:numeric(24,2);comment:market capitalisation" json:"market_cap"`
	Revenue          *decimal.Decimal `gorm:"type:numeric(24,2);comment:total revenue ttm" json:"revenue"`
	NetIncome        *decimal.Decimal `gorm:"type:numeric(24,2);comment:net income to common" json:"net_income"`
	EPS              *decimal.Decimal `gorm:"column:eps;type:numeric(20,6);comment:trailing eps" json:"eps"`
	PERatio          *decimal.Decimal `gorm:"column:pe_ratio;type:numeric(20,6);comment:trailing pe" json:"pe_ratio"`
	ProfitMargin     *decimal.Decimal `gorm:"type:numeric(20,6);comment:profit margin" json:"profit_margin"`
	DebtToEquity     *decimal.Decimal `gorm:"type:numeric(20,6);comment:debt to equity" json:"debt_to_equity"`
	TotalAssets      *decimal.Decimal `gorm:"type:numeric(24,2);comment:total assets" json:"total_assets"`
	TotalLiabilities *decimal.Decimal `gorm:"type:numeric(24,2);comment:total debt" json:"total_liabilities"`
	Source           string           `gorm:"type:varchar(32);not null;comment:provenance tag" json:"source"`
	IngestedAt       string           `gorm:"type:varchar(19);not null;comment:capture time UTC" json:"ingested_at"`
	DataQualityScore float64          `gorm:"not null;default:0;comment:batch quality score 0-100" json:"data_quality_score"`
}

func (Fundamental) TableName() string {
	return "raw_fundamentals"
}

func (f *Fundamental) MergeKey() []any {
	return []any{f.Ticker, f.FiscalQuarter}
}

func (f *Fundamental) Stamp(entityKey, ingestedAt string) {
	f.Ticker = entityKey
	f.IngestedAt = ingestedAt
	if f.Source == "" {
		f.Source = SourceYahooFinance
	}
}

func (f *Fundamental) Normalize() error {
	return nil
}

func (f *Fundamental) SetQualityScore(score float64) {
	f.DataQualityScore = score
}

// FiscalQuarterOf formats the calendar quarter containing t as "YYYY-QN", which
// sorts chronologically.
func FiscalQuarterOf(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
}
