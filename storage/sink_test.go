package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hkprop_scraper/models"
)

func sampleProperties(n, txPerProperty int) []models.Property {
	scrapedAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	var props []models.Property
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%d", 1000+i)
		url := "https://www.28hse.com/en/estate/detail/" + id
		price := fmt.Sprintf("HKD$%d.5M", i+5)
		millions := float64(i) + 5.5
		area := 400 + i*10
		p := models.Property{
			ID:            id,
			URL:           url,
			Name:          fmt.Sprintf("Estate %d", i),
			District:      "Kowloon/Mong Kok",
			Price:         &price,
			PriceMillions: &millions,
			AreaFt:        &area,
			ScrapedAt:     scrapedAt,
		}
		for j := 0; j < txPerProperty; j++ {
			txPrice := fmt.Sprintf("HKD$%d.1M", j+6)
			txMillions := float64(j) + 6.1
			date := "2026-02-0" + fmt.Sprint(j+1)
			p.Transactions = append(p.Transactions, models.Transaction{
				PropertyID:     id,
				PropertyURL:    url,
				EstateName:     p.Name,
				UnitDescriptor: fmt.Sprintf("Flat %d, Block 1", j),
				District:       p.District,
				Price:          &txPrice,
				PriceMillions:  &txMillions,
				Date:           &date,
			})
		}
		props = append(props, p)
	}
	return props
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestWriteAll_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	props := sampleProperties(3, 2)
	scrapedAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	sink := NewSink(dir)
	if err := sink.WriteAll(props, scrapedAt); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "properties.json"))
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var export Export
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if export.TotalProperties != 3 || len(export.Properties) != 3 {
		t.Fatalf("expected 3 properties in export, got %d/%d",
			export.TotalProperties, len(export.Properties))
	}
	if export.ScrapedAt != scrapedAt.Format(time.RFC3339) {
		t.Fatalf("scraped_at mismatch: %s", export.ScrapedAt)
	}
	got := export.Properties[0]
	want := props[0]
	if got.ID != want.ID || got.Name != want.Name || len(got.Transactions) != 2 {
		t.Fatalf("first property did not round-trip: %+v", got)
	}
	if got.PriceMillions == nil || *got.PriceMillions != *want.PriceMillions {
		t.Fatalf("price_millions did not round-trip")
	}
	if got.Developer != nil {
		t.Fatalf("absent field came back non-nil: %v", *got.Developer)
	}

	propRows := readCSV(t, filepath.Join(dir, "properties.csv"))
	if len(propRows) != 4 {
		t.Fatalf("expected header + 3 property rows, got %d", len(propRows))
	}
	if propRows[0][0] != "id" || propRows[1][0] != "1000" {
		t.Fatalf("unexpected property rows: %v, %v", propRows[0], propRows[1])
	}
	// Absent optional fields are empty cells.
	if propRows[1][4] != "" {
		t.Fatalf("expected empty developer cell, got %q", propRows[1][4])
	}

	txRows := readCSV(t, filepath.Join(dir, "transactions.csv"))
	if len(txRows) != 7 {
		t.Fatalf("expected header + 6 transaction rows, got %d", len(txRows))
	}
	ids := make(map[string]bool)
	for _, p := range props {
		ids[p.ID] = true
	}
	for _, row := range txRows[1:] {
		if !ids[row[0]] {
			t.Fatalf("transaction row points at unknown property %q", row[0])
		}
	}
}

func TestWriteAll_EmptyRunStillWritesFiles(t *testing.T) {
	dir := t.TempDir()
	sink := NewSink(dir)
	if err := sink.WriteAll(nil, time.Now()); err != nil {
		t.Fatalf("write: %v", err)
	}

	propRows := readCSV(t, filepath.Join(dir, "properties.csv"))
	if len(propRows) != 1 {
		t.Fatalf("expected header only, got %d rows", len(propRows))
	}

	data, err := os.ReadFile(filepath.Join(dir, "properties.json"))
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var export Export
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if export.TotalProperties != 0 {
		t.Fatalf("expected 0 properties, got %d", export.TotalProperties)
	}
}

func TestWriteAll_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	sink := NewSink(dir)
	if err := sink.WriteAll(sampleProperties(1, 1), time.Now()); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 output files, got %d", len(entries))
	}
}
