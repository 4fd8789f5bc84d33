package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// A Strategy is one independent attempt at pulling a field's raw text out of
// a parsed document. Returning ok=false means "no value here"; strategies
// never report errors because absence is a normal outcome on this markup.
type Strategy func(doc *goquery.Document, label *regexp.Regexp) (string, bool)

// FieldDescriptor pairs a label pattern with an ordered fallback chain of
// strategies. Descriptors are fixed per page type and immutable at runtime.
type FieldDescriptor struct {
	Name       string
	Label      *regexp.Regexp
	Strategies []Strategy
}

// Extract runs the descriptor's strategies in declared order; the first one
// producing a non-empty value wins and the rest are never consulted.
func Extract(doc *goquery.Document, fd FieldDescriptor) (string, bool) {
	for _, strat := range fd.Strategies {
		if raw, ok := strat(doc, fd.Label); ok {
			if v := normalizeSpace(raw); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// LabelSibling finds a table cell (or definition-list term) whose normalized
// text matches the label and reads the next sibling cell.
func LabelSibling(doc *goquery.Document, label *regexp.Regexp) (string, bool) {
	var out string
	doc.Find("td, th, dt").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !label.MatchString(normalizeSpace(s.Text())) {
			return true
		}
		next := s.Next()
		if next.Length() == 0 {
			return true
		}
		if v := normalizeSpace(next.Text()); v != "" {
			out = v
			return false
		}
		return true
	})
	return out, out != ""
}

// textAnchorMaxLen keeps container elements whose aggregate text happens to
// start with the label from shadowing the small node that actually holds it.
const textAnchorMaxLen = 120

// TextAnchor locates any small element whose text matches the label, then
// reads the enclosing row's second cell, falling back to the element's own
// text with the label stripped.
func TextAnchor(doc *goquery.Document, label *regexp.Regexp) (string, bool) {
	var out string
	doc.Find("div, span, li, p, b, strong, label, dt").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := normalizeSpace(s.Text())
		if len(text) > textAnchorMaxLen || !label.MatchString(text) {
			return true
		}

		if row := s.Closest("tr"); row.Length() > 0 {
			if cell := row.Find("td").Eq(1); cell.Length() > 0 {
				if v := normalizeSpace(cell.Text()); v != "" {
					out = v
					return false
				}
			}
		}

		rest := normalizeSpace(label.ReplaceAllString(text, ""))
		rest = strings.TrimLeft(rest, ":： ")
		if rest != "" && rest != text {
			out = rest
			return false
		}
		return true
	})
	return out, out != ""
}

// FreeText builds a strategy that scans the page's visible text for a
// value-shaped pattern, ignoring labels entirely. Only suitable for fields
// whose format is distinctive enough to avoid false positives.
func FreeText(pattern *regexp.Regexp) Strategy {
	return func(doc *goquery.Document, _ *regexp.Regexp) (string, bool) {
		body := doc.Find("body").Text()
		m := pattern.FindStringSubmatch(body)
		if m == nil {
			return "", false
		}
		if len(m) > 1 && m[1] != "" {
			return m[1], true
		}
		return m[0], true
	}
}

var (
	breadcrumbSeps   = regexp.MustCompile(`[/>»|]`)
	pureNumericToken = regexp.MustCompile(`^\d+$`)

	// Navigation chrome that carries no location information.
	breadcrumbBoilerplate = map[string]bool{
		"home":     true,
		"28hse":    true,
		"estate":   true,
		"property": true,
		"buy":      true,
		"rent":     true,
	}
)

// BreadcrumbLocation decomposes the page's breadcrumb into an ordered list
// of location tokens, most general first. Boilerplate and pure-numeric
// tokens are dropped; the last token is the most specific entity name.
func BreadcrumbLocation(doc *goquery.Document) ([]string, bool) {
	sel := doc.Find(".breadcrumb, nav.breadcrumb, #breadcrumb").First()
	if sel.Length() == 0 {
		return nil, false
	}

	var tokens []string
	for _, tok := range breadcrumbSeps.Split(sel.Text(), -1) {
		tok = normalizeSpace(tok)
		if tok == "" || pureNumericToken.MatchString(tok) || breadcrumbBoilerplate[strings.ToLower(tok)] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens, len(tokens) > 0
}

// Breadcrumb is the strategy form of BreadcrumbLocation, yielding the
// joined location path.
func Breadcrumb(doc *goquery.Document, _ *regexp.Regexp) (string, bool) {
	tokens, ok := BreadcrumbLocation(doc)
	if !ok {
		return "", false
	}
	return strings.Join(tokens, "/"), true
}

var (
	currencyMarkers  = regexp.MustCompile(`(?i)hkd|hk\$|\$|,`)
	priceAmount      = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(m\b|million)?`)
	areaPattern      = regexp.MustCompile(`(?i)(\d[\d,]*)\s*(?:ft²|ft2|sq\.?\s*ft|sqft)`)
	unitPricePattern = regexp.MustCompile(`@\s*(\d[\d,]*)`)
	countPattern     = regexp.MustCompile(`\d[\d,]*`)
	yearPattern      = regexp.MustCompile(`(?i)(\d+)\s*year`)
)

// Bare amounts at or above this are taken as base-currency dollars and
// divided down to millions; below it they are assumed to be in millions
// already. The suffix-free case is a heuristic with no ground truth on the
// page, so very large unsuffixed values may be silently misscaled.
const bareDollarThreshold = 10000

// ParsePriceMillions normalizes a price string to millions of HKD.
// "HKD$1.5M" -> 1.5, "3000000" -> 3.0, nil -> nil. Re-applying it to its
// own output's string form returns the same value.
func ParsePriceMillions(s *string) *float64 {
	if s == nil {
		return nil
	}
	cleaned := currencyMarkers.ReplaceAllString(*s, "")
	m := priceAmount.FindStringSubmatch(cleaned)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	if m[2] == "" && v >= bareDollarThreshold {
		v /= 1e6
	}
	return &v
}

// ParseAreaFt reads a unit-suffixed area like "650 ft²".
func ParseAreaFt(s *string) *int {
	if s == nil {
		return nil
	}
	m := areaPattern.FindStringSubmatch(*s)
	if m == nil {
		return nil
	}
	return atoiPtr(m[1])
}

// ParseUnitPriceFt reads an @-prefixed per-foot price like "@ 12,345".
func ParseUnitPriceFt(s *string) *int {
	if s == nil {
		return nil
	}
	m := unitPricePattern.FindStringSubmatch(*s)
	if m == nil {
		return nil
	}
	return atoiPtr(m[1])
}

// ParseCount reads the first integer out of a count-like value ("3 Blocks").
func ParseCount(s *string) *int {
	if s == nil {
		return nil
	}
	m := countPattern.FindString(*s)
	if m == "" {
		return nil
	}
	return atoiPtr(m)
}

// ParseYears reads a "<n> Year(s)" style value.
func ParseYears(s *string) *int {
	if s == nil {
		return nil
	}
	m := yearPattern.FindStringSubmatch(*s)
	if m == nil {
		return nil
	}
	return atoiPtr(m[1])
}

func atoiPtr(s string) *int {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return nil
	}
	return &n
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
