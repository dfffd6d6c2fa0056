package edgar

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/raghuneu/finsage/internal/filings"
	"github.com/raghuneu/finsage/internal/models"
	"github.com/raghuneu/finsage/internal/quality"
)

var errNoSections = errors.New("no md&a or risk factors section found")

type submissions struct {
	Name    string `json:"name"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			ReportDate      []string `json:"reportDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// Filing is one row of the submissions index.
type Filing struct {
	AccessionNo     string
	FormType        string
	FilingDate      string
	ReportDate      string
	PrimaryDocument string
}

// ListFilings returns up to MaxFilings of the newest allowed forms filed
// strictly after since, newest first.
func (c *Client) ListFilings(ctx context.Context, cik string, since *string) (string, []Filing, error) {
	var resp submissions
	if err := c.http.GetJSON(ctx, fmt.Sprintf("%s/submissions/CIK%s.json", c.opts.BaseURL, cik), nil, &resp); err != nil {
		return "", nil, err
	}
	r := resp.Filings.Recent
	var out []Filing
	for i := range r.AccessionNumber {
		if len(out) >= c.opts.MaxFilings {
			break
		}
		f := Filing{
			AccessionNo:     r.AccessionNumber[i],
			FormType:        pick(r.Form, i),
			FilingDate:      pick(r.FilingDate, i),
			ReportDate:      pick(r.ReportDate, i),
			PrimaryDocument: pick(r.PrimaryDocument, i),
		}
		if !c.formAllowed(f.FormType) || f.PrimaryDocument == "" {
			continue
		}
		if since != nil && f.FilingDate <= *since {
			continue
		}
		out = append(out, f)
	}
	return resp.Name, out, nil
}

// DocumentURL is the archive location of a filing's primary document.
func (c *Client) DocumentURL(cik string, f Filing) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s",
		c.opts.ArchiveURL, unpad(cik), strings.ReplaceAll(f.AccessionNo, "-", ""), f.PrimaryDocument)
}

// FetchFilingDocuments downloads new filings and extracts their sections. A
// document that cannot be downloaded or parsed is still returned, marked
// failed, so the index row is kept.
func (c *Client) FetchFilingDocuments(ctx context.Context, ticker string, since *string) ([]models.SECFilingDocument, error) {
	cik, err := c.CIK(ctx, ticker)
	if err != nil {
		return nil, err
	}
	name, list, err := c.ListFilings(ctx, cik, since)
	if err != nil {
		return nil, err
	}

	out := make([]models.SECFilingDocument, 0, len(list))
	for _, f := range list {
		doc := models.SECFilingDocument{
			AccessionNo:      f.AccessionNo,
			CIK:              cik,
			CompanyName:      optional(name),
			FormType:         optional(f.FormType),
			FilingDate:       optional(f.FilingDate),
			ReportDate:       optional(f.ReportDate),
			PrimaryDocument:  optional(f.PrimaryDocument),
			ExtractionStatus: models.ExtractionStatusExtracted,
			Source:           models.SourceSECEdgar,
		}
		if err := c.extract(ctx, cik, f, &doc); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("filing extraction failed",
				zap.String("ticker", ticker),
				zap.String("accession_no", f.AccessionNo),
				zap.Error(err))
			msg := err.Error()
			doc.ExtractionStatus = models.ExtractionStatusFailed
			doc.ExtractionError = &msg
		}
		out = append(out, doc)
	}
	return out, nil
}

func (c *Client) extract(ctx context.Context, cik string, f Filing, doc *models.SECFilingDocument) error {
	body, err := c.http.Get(ctx, c.DocumentURL(cik, f), nil)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	s, err := filings.Extract(string(body), f.FormType)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	doc.MDAText = optional(s.MDA)
	doc.RiskFactorsText = optional(s.Risk)
	doc.MDAWordCount = s.MDAWords
	doc.RiskWordCount = s.RiskWords
	doc.ExtractionQualityScore = quality.Extraction(s.MDAWords, s.RiskWords)
	if s.MDA == "" && s.Risk == "" {
		return errNoSections
	}
	return nil
}

func pick(vals []string, i int) string {
	if i < len(vals) {
		return vals[i]
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
