package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const SourceSECEdgar = "sec_edgar"

// SECFact is one XBRL fact reported in a 10-K or 10-Q.
type SECFact struct {
	Ticker           string           `gorm:"primaryKey;type:varchar(16);comment:ticker symbol" json:"ticker"`
	Concept          string           `gorm:"primaryKey;type:varchar(128);comment:us-gaap concept" json:"concept"`
	PeriodEnd        string           `gorm:"primaryKey;type:varchar(10);comment:period end date" json:"period_end"`
	FiscalPeriod     string           `gorm:"primaryKey;type:varchar(4);comment:Q1 Q2 Q3 FY" json:"fiscal_period"`
	CIK              string           `gorm:"column:cik;type:varchar(10);comment:sec company id" json:"cik"`
	Label            *string          `gorm:"type:text;comment:concept label" json:"label"`
	PeriodStart      *string          `gorm:"type:varchar(10);comment:period start date" json:"period_start"`
	Value            *decimal.Decimal `gorm:"type:numeric(28,4);comment:reported value" json:"value"`
	Unit             string           `gorm:"type:varchar(16);comment:unit of measure" json:"unit"`
	FiscalYear       *int             `gorm:"comment:fiscal year" json:"fiscal_year"`
	FormType         *string          `gorm:"type:varchar(16);comment:filing form" json:"form_type"`
	FiledDate        *string          `gorm:"type:varchar(10);index;comment:filing date" json:"filed_date"`
	AccessionNo      *string          `gorm:"type:varchar(32);comment:accession number" json:"accession_no"`
	Source           string           `gorm:"type:varchar(32);not null;comment:provenance tag" json:"source"`
	IngestedAt       string           `gorm:"type:varchar(19);not null;comment:capture time UTC" json:"ingested_at"`
	DataQualityScore float64          `gorm:"not null;default:0;comment:batch quality score 0-100" json:"data_quality_score"`
}

func (SECFact) TableName() string {
	return "raw_sec_facts"
}

func (f *SECFact) MergeKey() []any {
	return []any{f.Ticker, f.Concept, f.PeriodEnd, f.FiscalPeriod}
}

func (f *SECFact) Stamp(entityKey, ingestedAt string) {
	f.Ticker = entityKey
	f.IngestedAt = ingestedAt
	if f.Source == "" {
		f.Source = SourceSECEdgar
	}
}

func (f *SECFact) Normalize() error {
	if f.PeriodEnd != "" {
		d, err := NormalizeDate(f.PeriodEnd)
		if err != nil {
			return fmt.Errorf("period_end: %w", err)
		}
		f.PeriodEnd = d
	}
	if err := normalizeDatePtr("period_start", f.PeriodStart); err != nil {
		return err
	}
	return normalizeDatePtr("filed_date", f.FiledDate)
}

func (f *SECFact) SetQualityScore(score float64) {
	f.DataQualityScore = score
}
