package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/raghuneu/finsage/internal/models"
)

type factEntry struct {
	Start *string     `json:"start"`
	End   string      `json:"end"`
	Val   json.Number `json:"val"`
	Accn  *string     `json:"accn"`
	FY    *int        `json:"fy"`
	FP    string      `json:"fp"`
	Form  *string     `json:"form"`
	Filed *string     `json:"filed"`
}

type companyFacts struct {
	CIK        json.Number `json:"cik"`
	EntityName string      `json:"entityName"`
	Facts      map[string]map[string]struct {
		Label string                 `json:"label"`
		Units map[string][]factEntry `json:"units"`
	} `json:"facts"`
}

// FetchFacts returns USD facts for the configured concepts filed strictly
// after since. When a period is restated, the latest filing wins.
func (c *Client) FetchFacts(ctx context.Context, ticker string, since *string) ([]models.SECFact, error) {
	cik, err := c.CIK(ctx, ticker)
	if err != nil {
		return nil, err
	}
	var resp companyFacts
	if err := c.http.GetJSON(ctx, fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", c.opts.BaseURL, cik), nil, &resp); err != nil {
		return nil, err
	}

	gaap := resp.Facts["us-gaap"]
	type key struct{ concept, end, fp string }
	latest := map[key]models.SECFact{}
	for _, concept := range c.opts.Concepts {
		data, ok := gaap[concept]
		if !ok {
			continue
		}
		label := data.Label
		if label == "" {
			label = concept
		}
		for _, e := range data.Units["USD"] {
			if !fiscalPeriods[e.FP] || e.End == "" {
				continue
			}
			filed := ""
			if e.Filed != nil {
				filed = *e.Filed
			}
			if since != nil && filed <= *since {
				continue
			}
			value, err := decimal.NewFromString(e.Val.String())
			if err != nil {
				return nil, fmt.Errorf("%s %s %s: bad value %q", ticker, concept, e.End, e.Val)
			}
			k := key{concept, e.End, e.FP}
			if prev, seen := latest[k]; seen && prev.FiledDate != nil && *prev.FiledDate > filed {
				continue
			}
			l := label
			latest[k] = models.SECFact{
				Concept:      concept,
				PeriodEnd:    e.End,
				FiscalPeriod: e.FP,
				CIK:          cik,
				Label:        &l,
				PeriodStart:  e.Start,
				Value:        &value,
				Unit:         "USD",
				FiscalYear:   e.FY,
				FormType:     e.Form,
				FiledDate:    e.Filed,
				AccessionNo:  e.Accn,
				Source:       models.SourceSECEdgar,
			}
		}
	}

	out := make([]models.SECFact, 0, len(latest))
	for _, f := range latest {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Concept != out[j].Concept {
			return out[i].Concept < out[j].Concept
		}
		if out[i].PeriodEnd != out[j].PeriodEnd {
			return out[i].PeriodEnd < out[j].PeriodEnd
		}
		return out[i].FiscalPeriod < out[j].FiscalPeriod
	})
	return out, nil
}
