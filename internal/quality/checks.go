package quality

import "github.com/raghuneu/finsage/internal/models"

const (
	ShortMDAWords  = 1000
	ShortRiskWords = 500
	LongSection    = 100000
)

var PriceChecks = []Check[models.StockPrice]{
	{Name: "high_below_low", Penalty: 20, Defect: func(p *models.StockPrice) bool {
		return p.High != nil && p.Low != nil && p.High.LessThan(*p.Low)
	}},
	{Name: "open_out_of_range", Penalty: 10, Defect: func(p *models.StockPrice) bool {
		return p.OpenOutOfRange()
	}},
	{Name: "close_out_of_range", Penalty: 10, Defect: func(p *models.StockPrice) bool {
		return p.CloseOutOfRange()
	}},
	{Name: "ohlc_missing", Penalty: 30, Defect: func(p *models.StockPrice) bool {
		return p.Open == nil || p.High == nil || p.Low == nil || p.Close == nil
	}},
}

var FundamentalChecks = []Check[models.Fundamental]{
	{Name: "revenue_missing", Penalty: 30, Defect: func(f *models.Fundamental) bool { return f.Revenue == nil }},
	{Name: "net_income_missing", Penalty: 20, Defect: func(f *models.Fundamental) bool { return f.NetIncome == nil }},
	{Name: "eps_missing", Penalty: 10, Defect: func(f *models.Fundamental) bool { return f.EPS == nil }},
	{Name: "pe_ratio_missing", Penalty: 10, Defect: func(f *models.Fundamental) bool { return f.PERatio == nil }},
}

var NewsChecks = []Check[models.NewsArticle]{
	{Name: "title_missing", Penalty: 30, Defect: func(a *models.NewsArticle) bool { return blank(a.Title) }},
	{Name: "content_missing", Penalty: 10, Defect: func(a *models.NewsArticle) bool { return blank(a.Content) }},
	{Name: "author_missing", Penalty: 10, Defect: func(a *models.NewsArticle) bool { return blank(a.Author) }},
	{Name: "description_missing", Penalty: 10, Defect: func(a *models.NewsArticle) bool { return blank(a.Description) }},
}

var SECFactChecks = []Check[models.SECFact]{
	{Name: "period_start_missing", Penalty: 10, Defect: func(f *models.SECFact) bool { return blank(f.PeriodStart) }},
	{Name: "fiscal_year_missing", Penalty: 20, Defect: func(f *models.SECFact) bool { return f.FiscalYear == nil }},
	{Name: "accession_no_missing", Penalty: 10, Defect: func(f *models.SECFact) bool { return blank(f.AccessionNo) }},
}

var FilingDocumentChecks = []Check[models.SECFilingDocument]{
	{Name: "mda_missing", Penalty: 40, Defect: func(d *models.SECFilingDocument) bool { return d.MDAWordCount == 0 }},
	{Name: "mda_short", Penalty: 15, Defect: func(d *models.SECFilingDocument) bool {
		return d.MDAWordCount > 0 && d.MDAWordCount < ShortMDAWords
	}},
	{Name: "risk_missing", Penalty: 30, Defect: func(d *models.SECFilingDocument) bool { return d.RiskWordCount == 0 }},
	{Name: "risk_short", Penalty: 10, Defect: func(d *models.SECFilingDocument) bool {
		return d.RiskWordCount > 0 && d.RiskWordCount < ShortRiskWords
	}},
	{Name: "mda_too_long", Penalty: 5, Defect: func(d *models.SECFilingDocument) bool { return d.MDAWordCount > LongSection }},
	{Name: "risk_too_long", Penalty: 5, Defect: func(d *models.SECFilingDocument) bool { return d.RiskWordCount > LongSection }},
}

func Prices(batch []models.StockPrice) Report { return Assess(batch, PriceChecks) }

func Fundamentals(batch []models.Fundamental) Report { return Assess(batch, FundamentalChecks) }

func News(batch []models.NewsArticle) Report { return Assess(batch, NewsChecks) }

func SECFacts(batch []models.SECFact) Report { return Assess(batch, SECFactChecks) }

func FilingDocuments(batch []models.SECFilingDocument) Report {
	return Assess(batch, FilingDocumentChecks)
}

// Extraction scores a single document's section extraction from its word counts.
func Extraction(mdaWords, riskWords int) float64 {
	doc := models.SECFilingDocument{MDAWordCount: mdaWords, RiskWordCount: riskWords}
	return FilingDocuments([]models.SECFilingDocument{doc}).Score
}

func blank(s *string) bool {
	return s == nil || *s == ""
}
