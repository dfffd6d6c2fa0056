// Package validation enforces domain invariants on a fetched batch. Any
// violation rejects the whole batch before it reaches the warehouse.
package validation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/raghuneu/finsage/internal/ingesterr"
	"github.com/raghuneu/finsage/internal/models"
)

const (
	InvariantMergeKeyNotNull = "merge_key_not_null"
	InvariantMergeKeyUnique  = "merge_key_unique"
	InvariantNonNegative     = "non_negative"
	InvariantHighLow         = "high_gte_low"
	InvariantOpenRange       = "open_in_range"
	InvariantCloseRange      = "close_in_range"
	InvariantRequired        = "required"
)

func fail(invariant string, row int, format string, args ...any) error {
	return &ingesterr.ValidationError{Invariant: invariant, Row: row, Detail: fmt.Sprintf(format, args...)}
}

// MergeKeys rejects null merge-key components and duplicate tuples.
func MergeKeys[T any, P interface {
	*T
	models.Record
}](batch []T) error {
	seen := make(map[string]int, len(batch))
	for i := range batch {
		key := P(&batch[i]).MergeKey()
		parts := make([]string, len(key))
		for j, v := range key {
			s, ok := keyPart(v)
			if !ok {
				return fail(InvariantMergeKeyNotNull, i, "merge key component %d is null", j)
			}
			parts[j] = s
		}
		joined := strings.Join(parts, "\x1f")
		if first, dup := seen[joined]; dup {
			return fail(InvariantMergeKeyUnique, i, "duplicate merge key %v (first seen at row %d)", key, first)
		}
		seen[joined] = i
	}
	return nil
}

func keyPart(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, x != ""
	case *string:
		if x == nil || *x == "" {
			return "", false
		}
		return *x, true
	default:
		return fmt.Sprint(x), true
	}
}

func Prices(batch []models.StockPrice) error {
	for i, p := range batch {
		for _, f := range []struct {
			name string
			v    *decimal.Decimal
		}{{"open", p.Open}, {"high", p.High}, {"low", p.Low}, {"close", p.Close}} {
			if f.v != nil && f.v.IsNegative() {
				return fail(InvariantNonNegative, i, "%s is negative on %s: %s", f.name, p.Date, f.v)
			}
		}
		if p.High != nil && p.Low != nil && p.High.LessThan(*p.Low) {
			return fail(InvariantHighLow, i, "high %s < low %s on %s", p.High, p.Low, p.Date)
		}
		if p.OpenOutOfRange() {
			return fail(InvariantOpenRange, i, "open %s outside [%s, %s] on %s", p.Open, p.Low, p.High, p.Date)
		}
		if p.CloseOutOfRange() {
			return fail(InvariantCloseRange, i, "close %s outside [%s, %s] on %s", p.Close, p.Low, p.High, p.Date)
		}
	}
	return nil
}

func Fundamentals(batch []models.Fundamental) error {
	for i, f := range batch {
		if f.MarketCap != nil && f.MarketCap.IsNegative() {
			return fail(InvariantNonNegative, i, "market_cap is negative: %s", f.MarketCap)
		}
		if f.Revenue != nil && f.Revenue.IsNegative() {
			return fail(InvariantNonNegative, i, "revenue is negative: %s", f.Revenue)
		}
	}
	return nil
}

func News(batch []models.NewsArticle) error {
	for i, a := range batch {
		if missing(a.Title) {
			return fail(InvariantRequired, i, "title is null")
		}
		if missing(a.URL) {
			return fail(InvariantRequired, i, "url is null")
		}
		if missing(a.PublishedAt) {
			return fail(InvariantRequired, i, "published_at is null")
		}
	}
	return nil
}

func SECFacts(batch []models.SECFact) error {
	for i, f := range batch {
		switch {
		case f.Concept == "":
			return fail(InvariantRequired, i, "concept is null")
		case f.Value == nil:
			return fail(InvariantRequired, i, "value is null for %s", f.Concept)
		case f.PeriodEnd == "":
			return fail(InvariantRequired, i, "period_end is null for %s", f.Concept)
		}
	}
	return nil
}

func FilingDocuments(batch []models.SECFilingDocument) error {
	for i, d := range batch {
		switch {
		case d.AccessionNo == "":
			return fail(InvariantRequired, i, "accession_no is null")
		case missing(d.FormType):
			return fail(InvariantRequired, i, "form_type is null for %s", d.AccessionNo)
		case missing(d.FilingDate):
			return fail(InvariantRequired, i, "filing_date is null for %s", d.AccessionNo)
		}
	}
	return nil
}

func missing(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
