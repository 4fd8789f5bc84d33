package scraper

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"hkprop_scraper/identity"
	"hkprop_scraper/models"
)

// Value-shaped free-text patterns. These only back fields whose format is
// distinctive enough that a label-free scan cannot mis-fire.
var (
	priceText     = regexp.MustCompile(`(?i)HKD?\$\s*\d[\d,]*(?:\.\d+)?\s*(?:M\b|Million)?`)
	areaText      = regexp.MustCompile(`(?i)\d[\d,]*\s*ft²`)
	unitPriceText = regexp.MustCompile(`@\s*\d[\d,]*`)
	ageText       = regexp.MustCompile(`(?i)\d+\s*Years?\b`)
)

// Estate detail page descriptors. Labels are anchored so "Unit Price" does
// not also match "Building Unit Price"; order within a chain is the
// fallback order.
var (
	developerField = FieldDescriptor{
		Name:       "developer",
		Label:      regexp.MustCompile(`(?i)^developer`),
		Strategies: []Strategy{LabelSibling, TextAnchor},
	}
	occupationField = FieldDescriptor{
		Name:       "occupation_date",
		Label:      regexp.MustCompile(`(?i)^(occupation date|date of occupation)`),
		Strategies: []Strategy{LabelSibling, TextAnchor},
	}
	schoolNetField = FieldDescriptor{
		Name:       "school_net",
		Label:      regexp.MustCompile(`(?i)^school net`),
		Strategies: []Strategy{LabelSibling, TextAnchor},
	}
	priceField = FieldDescriptor{
		Name:       "price",
		Label:      regexp.MustCompile(`(?i)^(selling )?price`),
		Strategies: []Strategy{LabelSibling, TextAnchor, FreeText(priceText)},
	}
	unitPriceField = FieldDescriptor{
		Name:       "unit_price",
		Label:      regexp.MustCompile(`(?i)^unit price`),
		Strategies: []Strategy{LabelSibling, TextAnchor, FreeText(unitPriceText)},
	}
	areaField = FieldDescriptor{
		Name:       "area",
		Label:      regexp.MustCompile(`(?i)^(saleable )?area`),
		Strategies: []Strategy{LabelSibling, TextAnchor, FreeText(areaText)},
	}
	blockCountField = FieldDescriptor{
		Name:       "block_count",
		Label:      regexp.MustCompile(`(?i)^no\.? of blocks?`),
		Strategies: []Strategy{LabelSibling, TextAnchor},
	}
	unitCountField = FieldDescriptor{
		Name:       "unit_count",
		Label:      regexp.MustCompile(`(?i)^no\.? of units?`),
		Strategies: []Strategy{LabelSibling, TextAnchor},
	}
	buildingAgeField = FieldDescriptor{
		Name:       "building_age",
		Label:      regexp.MustCompile(`(?i)^building age`),
		Strategies: []Strategy{LabelSibling, TextAnchor, FreeText(ageText)},
	}
)

// Transaction detail page descriptors.
var (
	txPriceField = FieldDescriptor{
		Name:       "price",
		Label:      regexp.MustCompile(`(?i)^(transaction )?price`),
		Strategies: []Strategy{LabelSibling, TextAnchor, FreeText(priceText)},
	}
	txAreaField = FieldDescriptor{
		Name:       "area",
		Label:      regexp.MustCompile(`(?i)^(saleable )?area`),
		Strategies: []Strategy{LabelSibling, TextAnchor, FreeText(areaText)},
	}
	txUnitPriceField = FieldDescriptor{
		Name:       "unit_price",
		Label:      regexp.MustCompile(`(?i)^unit price`),
		Strategies: []Strategy{LabelSibling, TextAnchor, FreeText(unitPriceText)},
	}
	txDateField = FieldDescriptor{
		Name:       "date",
		Label:      regexp.MustCompile(`(?i)^(transaction |registration )?date`),
		Strategies: []Strategy{LabelSibling, TextAnchor},
	}
	txFormatField = FieldDescriptor{
		Name:       "format",
		Label:      regexp.MustCompile(`(?i)^format`),
		Strategies: []Strategy{LabelSibling, TextAnchor},
	}
)

// ParseEstatePage assembles a Property from an estate detail document and
// harvests the transaction-page links found on it, resolved to absolute
// form against the page's own URL and returned in document order.
func ParseEstatePage(doc *goquery.Document, pageURL, txLinkPattern string) (*models.Property, []string) {
	p := &models.Property{
		ID:        identity.FromURL(pageURL),
		URL:       pageURL,
		ScrapedAt: time.Now(),
	}

	if tokens, ok := BreadcrumbLocation(doc); ok {
		p.Name = tokens[len(tokens)-1]
		p.District = strings.Join(tokens, "/")
	}
	if p.Name == "" {
		p.Name = normalizeSpace(doc.Find("h1").First().Text())
	}

	p.Developer = optional(doc, developerField)
	p.OccupationDate = optional(doc, occupationField)
	p.SchoolNet = optional(doc, schoolNetField)

	p.Price = optional(doc, priceField)
	p.PriceMillions = ParsePriceMillions(p.Price)
	p.UnitPriceFt = ParseUnitPriceFt(optional(doc, unitPriceField))
	p.AreaFt = ParseAreaFt(optional(doc, areaField))
	p.BlockCount = ParseCount(optional(doc, blockCountField))
	p.UnitCount = ParseCount(optional(doc, unitCountField))
	p.YearBuilt = ParseYears(optional(doc, buildingAgeField))

	return p, HarvestLinks(doc, pageURL, txLinkPattern)
}

// Segments after the first are kept in the unit descriptor only when they
// describe the unit's position within the building.
var structuralKeywords = []string{
	"flat", "block", "floor", "level", "tower", "room", "high", "mid", "low",
}

// SplitUnitHeader splits a transaction header like
// "City One Shatin, Flat H, Low, Block 30" into the estate name and the
// comma-joined unit descriptor.
func SplitUnitHeader(header string) (estate, unit string) {
	segments := strings.Split(header, ",")
	estate = normalizeSpace(segments[0])

	var kept []string
	for _, seg := range segments[1:] {
		seg = normalizeSpace(seg)
		if seg == "" {
			continue
		}
		lower := strings.ToLower(seg)
		for _, kw := range structuralKeywords {
			if strings.Contains(lower, kw) {
				kept = append(kept, seg)
				break
			}
		}
	}
	return estate, strings.Join(kept, ", ")
}

// ParseTransactionPage assembles a Transaction from a transaction detail
// document, carrying the owning property's identity.
func ParseTransactionPage(doc *goquery.Document, parent *models.Property) *models.Transaction {
	tx := &models.Transaction{
		PropertyID:  parent.ID,
		PropertyURL: parent.URL,
		District:    parent.District,
	}

	header := normalizeSpace(doc.Find("h1").First().Text())
	tx.EstateName, tx.UnitDescriptor = SplitUnitHeader(header)

	if tokens, ok := BreadcrumbLocation(doc); ok {
		tx.District = strings.Join(tokens, "/")
	}

	tx.Price = optional(doc, txPriceField)
	tx.PriceMillions = ParsePriceMillions(tx.Price)
	tx.AreaFt = ParseAreaFt(optional(doc, txAreaField))
	tx.UnitPriceFt = ParseUnitPriceFt(optional(doc, txUnitPriceField))
	tx.Date = optional(doc, txDateField)
	tx.Format = optional(doc, txFormatField)

	return tx
}

// HarvestLinks returns, in document order and deduplicated, the absolute
// URLs of all anchors whose href contains the given path pattern.
func HarvestLinks(doc *goquery.Document, pageURL, pattern string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" || !strings.Contains(href, pattern) {
			return
		}

		abs := href
		if base != nil {
			ref, err := url.Parse(href)
			if err != nil {
				return
			}
			abs = base.ResolveReference(ref).String()
		}

		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}

func optional(doc *goquery.Document, fd FieldDescriptor) *string {
	if v, ok := Extract(doc, fd); ok {
		return &v
	}
	return nil
}
