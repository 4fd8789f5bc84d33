package scraper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"hkprop_scraper/models"
)

func loadFixture(t *testing.T, name string) *goquery.Document {
	t.Helper()
	path := filepath.Join("testdata", name)
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		t.Fatalf("failed to parse fixture %s: %v", name, err)
	}
	return doc
}

func TestParseEstatePage(t *testing.T) {
	doc := loadFixture(t, "estate_detail.html")
	pageURL := "https://www.28hse.com/en/estate/detail/12345"

	p, txURLs := ParseEstatePage(doc, pageURL, "/transaction/detail/")

	if p.ID != "12345" {
		t.Fatalf("expected ID 12345, got %s", p.ID)
	}
	if p.URL != pageURL {
		t.Fatalf("unexpected URL %s", p.URL)
	}
	if p.Name != "Seaview Crescent" {
		t.Fatalf("expected name Seaview Crescent, got %q", p.Name)
	}
	if p.District != "Islands/Tung Chung/Seaview Crescent" {
		t.Fatalf("unexpected district %q", p.District)
	}
	if p.Developer == nil || *p.Developer != "Sun Hung Kai Properties" {
		t.Fatalf("unexpected developer %v", p.Developer)
	}
	if p.OccupationDate == nil || *p.OccupationDate != "2002-11" {
		t.Fatalf("unexpected occupation date %v", p.OccupationDate)
	}
	if p.SchoolNet == nil || *p.SchoolNet != "98" {
		t.Fatalf("unexpected school net %v", p.SchoolNet)
	}
	if p.Price == nil || *p.Price != "HKD$13.8M" {
		t.Fatalf("unexpected price %v", p.Price)
	}
	if p.PriceMillions == nil || *p.PriceMillions != 13.8 {
		t.Fatalf("unexpected price millions %v", p.PriceMillions)
	}
	if p.UnitPriceFt == nil || *p.UnitPriceFt != 11500 {
		t.Fatalf("expected unit price 11500 (not the building unit price), got %v", p.UnitPriceFt)
	}
	if p.AreaFt == nil || *p.AreaFt != 1200 {
		t.Fatalf("unexpected area %v", p.AreaFt)
	}
	if p.BlockCount == nil || *p.BlockCount != 4 {
		t.Fatalf("unexpected block count %v", p.BlockCount)
	}
	if p.UnitCount == nil || *p.UnitCount != 1536 {
		t.Fatalf("unexpected unit count %v", p.UnitCount)
	}
	if p.YearBuilt == nil || *p.YearBuilt != 23 {
		t.Fatalf("unexpected building age %v", p.YearBuilt)
	}
	if p.ScrapedAt.IsZero() {
		t.Fatal("expected scraped_at to be set")
	}

	want := []string{
		"https://www.28hse.com/en/transaction/detail/998877",
		"https://www.28hse.com/en/transaction/detail/998878",
	}
	if len(txURLs) != len(want) {
		t.Fatalf("expected %d transaction URLs, got %d: %v", len(want), len(txURLs), txURLs)
	}
	for i, u := range want {
		if txURLs[i] != u {
			t.Fatalf("transaction URL %d: expected %s, got %s", i, u, txURLs[i])
		}
	}
}

func TestParseEstatePage_MissingFieldsStayNil(t *testing.T) {
	doc := docFromString(t, `<html><body><h1>Bare Estate</h1></body></html>`)
	p, txURLs := ParseEstatePage(doc, "https://www.28hse.com/en/estate/detail/777", "/transaction/detail/")

	if p.Name != "Bare Estate" {
		t.Fatalf("expected h1 fallback name, got %q", p.Name)
	}
	if p.Developer != nil || p.Price != nil || p.PriceMillions != nil || p.AreaFt != nil {
		t.Fatal("expected absent fields to stay nil")
	}
	if len(txURLs) != 0 {
		t.Fatalf("expected no transaction URLs, got %v", txURLs)
	}
}

func TestSplitUnitHeader(t *testing.T) {
	estate, unit := SplitUnitHeader("City One Shatin, Flat H, Low, Block 30")
	if estate != "City One Shatin" {
		t.Fatalf("expected estate City One Shatin, got %q", estate)
	}
	if unit != "Flat H, Low, Block 30" {
		t.Fatalf("expected unit descriptor Flat H, Low, Block 30, got %q", unit)
	}
}

func TestSplitUnitHeader_DropsNonStructuralSegments(t *testing.T) {
	estate, unit := SplitUnitHeader("The Belcher's, Sea View, Tower 6, Flat D")
	if estate != "The Belcher's" {
		t.Fatalf("unexpected estate %q", estate)
	}
	if unit != "Tower 6, Flat D" {
		t.Fatalf("expected Sea View dropped, got %q", unit)
	}
}

func TestParseTransactionPage(t *testing.T) {
	doc := loadFixture(t, "transaction_detail.html")
	parent := &models.Property{
		ID:       "12345",
		URL:      "https://www.28hse.com/en/estate/detail/12345",
		District: "Shatin",
	}

	tx := ParseTransactionPage(doc, parent)

	if tx.PropertyID != "12345" || tx.PropertyURL != parent.URL {
		t.Fatalf("expected parent back-reference, got %s / %s", tx.PropertyID, tx.PropertyURL)
	}
	if tx.EstateName != "City One Shatin" {
		t.Fatalf("unexpected estate name %q", tx.EstateName)
	}
	if tx.UnitDescriptor != "Flat H, Low, Block 30" {
		t.Fatalf("unexpected unit descriptor %q", tx.UnitDescriptor)
	}
	if tx.District != "Shatin/City One Shatin" {
		t.Fatalf("unexpected district %q", tx.District)
	}
	if tx.Price == nil || *tx.Price != "HKD$6.3M" {
		t.Fatalf("unexpected price %v", tx.Price)
	}
	if tx.PriceMillions == nil || *tx.PriceMillions != 6.3 {
		t.Fatalf("unexpected price millions %v", tx.PriceMillions)
	}
	if tx.AreaFt == nil || *tx.AreaFt != 327 {
		t.Fatalf("unexpected area %v", tx.AreaFt)
	}
	if tx.UnitPriceFt == nil || *tx.UnitPriceFt != 19266 {
		t.Fatalf("unexpected unit price %v", tx.UnitPriceFt)
	}
	if tx.Date == nil || *tx.Date != "2024-05-17" {
		t.Fatalf("unexpected date %v", tx.Date)
	}
	if tx.Format == nil || *tx.Format != "Saleable" {
		t.Fatalf("unexpected format %v", tx.Format)
	}
}

func TestHarvestLinks(t *testing.T) {
	doc := loadFixture(t, "estate_list.html")
	links := HarvestLinks(doc, "https://www.28hse.com/en/estate/list/p1", "/estate/detail/")

	want := []string{
		"https://www.28hse.com/en/estate/detail/12345",
		"https://www.28hse.com/en/estate/detail/67890",
		"https://www.28hse.com/en/estate/detail/24680",
	}
	if len(links) != len(want) {
		t.Fatalf("expected %d links, got %d: %v", len(want), len(links), links)
	}
	for i, u := range want {
		if links[i] != u {
			t.Fatalf("link %d: expected %s, got %s", i, u, links[i])
		}
	}
}
