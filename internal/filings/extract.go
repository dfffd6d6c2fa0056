// Package filings turns a 10-K or 10-Q primary document into plain text and
// pulls out the MD&A and Risk Factors sections.
package filings

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	SectionMDA  = "mda"
	SectionRisk = "risk"

	FormAnnual    = "10-K"
	FormQuarterly = "10-Q"

	endSearchOffset = 100
	fallbackLength  = 50000
	minSectionChars = 200
)

type patterns struct {
	start []*regexp.Regexp
	end   []*regexp.Regexp
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

var annualSections = map[string]patterns{
	SectionMDA: {
		start: compile(
			`item\s*7[.\s]*[-\x{2013}\x{2014}]?\s*management.s\s+discussion\s+and\s+analysis`,
			`item\s*7[.\s]*management.s\s+discussion`,
			`item\s*7[.\s]*md\s*&\s*a`,
			`management.s\s+discussion\s+and\s+analysis\s+of\s+financial\s+condition`,
		),
		end: compile(
			`item\s*7a[.\s]*[-\x{2013}\x{2014}]?\s*quantitative\s+and\s+qualitative`,
			`item\s*8[.\s]*[-\x{2013}\x{2014}]?\s*financial\s+statements`,
			`item\s*8[.\s]`,
		),
	},
	SectionRisk: {
		start: compile(
			`item\s*1a[.\s]*[-\x{2013}\x{2014}]?\s*risk\s+factors`,
			`item\s*1a[.\s]*risk\s+factors`,
			`risk\s+factors`,
		),
		end: compile(
			`item\s*1b[.\s]*[-\x{2013}\x{2014}]?\s*unresolved\s+staff\s+comments`,
			`item\s*1c[.\s]*[-\x{2013}\x{2014}]?\s*cybersecurity`,
			`item\s*2[.\s]*[-\x{2013}\x{2014}]?\s*properties`,
			`item\s*2[.\s]`,
		),
	},
}

var quarterlySections = map[string]patterns{
	SectionMDA: {
		start: compile(
			`item\s*2[.\s]*[-\x{2013}\x{2014}]?\s*management.s\s+discussion\s+and\s+analysis`,
			`item\s*2[.\s]*management.s\s+discussion`,
			`management.s\s+discussion\s+and\s+analysis\s+of\s+financial\s+condition`,
		),
		end: compile(
			`item\s*3[.\s]*[-\x{2013}\x{2014}]?\s*quantitative\s+and\s+qualitative`,
			`item\s*4[.\s]*[-\x{2013}\x{2014}]?\s*controls\s+and\s+procedures`,
			`item\s*3[.\s]`,
		),
	},
	SectionRisk: {
		start: compile(
			`item\s*1a[.\s]*[-\x{2013}\x{2014}]?\s*risk\s+factors`,
			`risk\s+factors`,
		),
		end: compile(
			`item\s*2[.\s]*[-\x{2013}\x{2014}]?\s*unregistered\s+sales`,
			`item\s*3[.\s]*[-\x{2013}\x{2014}]?\s*defaults`,
			`item\s*2[.\s]`,
		),
	},
}

// CleanHTML renders a document as trimmed, non-empty text lines.
func CleanHTML(doc string) (string, error) {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return "", err
	}
	d.Find("script, style, meta, link, header, footer").Remove()

	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			for _, line := range strings.Split(n.Data, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					lines = append(lines, line)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range d.Selection.Nodes {
		walk(n)
	}
	return strings.Join(lines, "\n"), nil
}

// ExtractSection returns the named section of cleaned text, or "" when it
// cannot be located or is too short to be the real section.
func ExtractSection(text, section, formType string) string {
	table := quarterlySections
	if formType == FormAnnual {
		table = annualSections
	}
	p, ok := table[section]
	if !ok {
		return ""
	}

	start := -1
	for _, re := range p.start {
		if loc := re.FindStringIndex(text); loc != nil {
			start = loc[0]
			break
		}
	}
	if start < 0 {
		return ""
	}

	end := -1
	from := min(start+endSearchOffset, len(text))
	for _, re := range p.end {
		if loc := re.FindStringIndex(text[from:]); loc != nil {
			end = from + loc[0]
			break
		}
	}
	if end < 0 {
		end = min(start+fallbackLength, len(text))
		for end < len(text) && !utf8.RuneStart(text[end]) {
			end--
		}
	}

	out := strings.TrimSpace(text[start:end])
	if utf8.RuneCountInString(out) < minSectionChars {
		return ""
	}
	return out
}

func WordCount(s string) int {
	return len(strings.Fields(s))
}

type Sections struct {
	MDA       string
	Risk      string
	MDAWords  int
	RiskWords int
}

// Extract cleans doc and pulls both sections for formType.
func Extract(doc, formType string) (Sections, error) {
	text, err := CleanHTML(doc)
	if err != nil {
		return Sections{}, err
	}
	s := Sections{
		MDA:  ExtractSection(text, SectionMDA, formType),
		Risk: ExtractSection(text, SectionRisk, formType),
	}
	s.MDAWords = WordCount(s.MDA)
	s.RiskWords = WordCount(s.Risk)
	return s, nil
}
