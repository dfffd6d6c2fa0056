package models

const (
	ExtractionStatusExtracted = "extracted"
	ExtractionStatusFailed    = "failed"
)

// SECFilingDocument is a 10-K or 10-Q with its MD&A and Risk Factors sections
// extracted from the primary document.
type SECFilingDocument struct {
	Ticker           string  `gorm:"primaryKey;type:varchar(16);comment:ticker symbol" json:"ticker"`
	AccessionNo      string  `gorm:"primaryKey;type:varchar(32);comment:accession number" json:"accession_no"`
	CIK              string  `gorm:"column:cik;type:varchar(10);comment:sec company id" json:"cik"`
	CompanyName      *string `gorm:"type:text;comment:registrant name" json:"company_name"`
	FormType         *string `gorm:"type:varchar(16);comment:10-K or 10-Q" json:"form_type"`
	FilingDate       *string `gorm:"type:varchar(10);index;comment:filing date" json:"filing_date"`
	ReportDate       *string `gorm:"type:varchar(10);comment:period of report" json:"report_date"`
	PrimaryDocument  *string `gorm:"type:text;comment:primary document file name" json:"primary_document"`
	MDAText          *string `gorm:"column:mda_text;type:text;comment:management discussion and analysis" json:"mda_text,omitempty"`
	RiskFactorsText  *string `gorm:"type:text;comment:risk factors" json:"risk_factors_text,omitempty"`
	MDAWordCount     int     `gorm:"column:mda_word_count;not null;default:0" json:"mda_word_count"`
	RiskWordCount    int     `gorm:"not null;default:0" json:"risk_word_count"`
	ExtractionStatus string  `gorm:"type:varchar(16);not null;comment:extracted or failed" json:"extraction_status"`
	ExtractionError  *string `gorm:"type:text;comment:last extraction error" json:"extraction_error,omitempty"`
	Source           string  `gorm:"type:varchar(32);not null;comment:provenance tag" json:"source"`
	IngestedAt       string  `gorm:"type:varchar(19);not null;comment:capture time UTC" json:"ingested_at"`
	DataQualityScore float64 `gorm:"not null;default:0;comment:batch quality score 0-100" json:"data_quality_score"`

	// ExtractionQualityScore rates this document's sections alone; DataQualityScore rates the batch.
	ExtractionQualityScore float64 `gorm:"not null;default:0;comment:section extraction score 0-100" json:"extraction_quality_score"`
}

func (SECFilingDocument) TableName() string {
	return "raw_sec_filing_documents"
}

func (d *SECFilingDocument) MergeKey() []any {
	return []any{d.Ticker, d.AccessionNo}
}

func (d *SECFilingDocument) Stamp(entityKey, ingestedAt string) {
	d.Ticker = entityKey
	d.IngestedAt = ingestedAt
	if d.Source == "" {
		d.Source = SourceSECEdgar
	}
}

func (d *SECFilingDocument) Normalize() error {
	if err := normalizeDatePtr("filing_date", d.FilingDate); err != nil {
		return err
	}
	return normalizeDatePtr("report_date", d.ReportDate)
}

func (d *SECFilingDocument) SetQualityScore(score float64) {
	d.DataQualityScore = score
}
