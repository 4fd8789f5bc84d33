package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"hkprop_scraper/models"
)

// Sink writes a completed record set to disk: one JSON document with nested
// transactions plus two flat CSV tables linked by property_id. Each target
// file is written whole-or-not-at-all; one target failing does not stop the
// others.
type Sink struct {
	dir string
}

func NewSink(dir string) *Sink {
	return &Sink{dir: dir}
}

// Export is the shape of the JSON output document.
type Export struct {
	ScrapedAt       string            `json:"scraped_at"`
	TotalProperties int               `json:"total_properties"`
	Properties      []models.Property `json:"properties"`
}

// WriteAll writes all three targets and returns the combined error of any
// that failed.
func (s *Sink) WriteAll(properties []models.Property, scrapedAt time.Time) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	return errors.Join(
		s.WriteJSON(filepath.Join(s.dir, "properties.json"), properties, scrapedAt),
		s.WritePropertiesCSV(filepath.Join(s.dir, "properties.csv"), properties),
		s.WriteTransactionsCSV(filepath.Join(s.dir, "transactions.csv"), properties),
	)
}

func (s *Sink) WriteJSON(path string, properties []models.Property, scrapedAt time.Time) error {
	export := Export{
		ScrapedAt:       scrapedAt.Format(time.RFC3339),
		TotalProperties: len(properties),
		Properties:      properties,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal export: %w", err)
	}
	return writeAtomic(path, data)
}

var propertyHeader = []string{
	"id", "url", "name", "district", "developer", "occupation_date",
	"school_net", "price", "price_millions", "unit_price_ft", "area_ft",
	"block_count", "unit_count", "year_built", "scraped_at",
}

func (s *Sink) WritePropertiesCSV(path string, properties []models.Property) error {
	rows := [][]string{propertyHeader}
	for _, p := range properties {
		rows = append(rows, []string{
			p.ID,
			p.URL,
			p.Name,
			p.District,
			strOrEmpty(p.Developer),
			strOrEmpty(p.OccupationDate),
			strOrEmpty(p.SchoolNet),
			strOrEmpty(p.Price),
			floatOrEmpty(p.PriceMillions),
			intOrEmpty(p.UnitPriceFt),
			intOrEmpty(p.AreaFt),
			intOrEmpty(p.BlockCount),
			intOrEmpty(p.UnitCount),
			intOrEmpty(p.YearBuilt),
			p.ScrapedAt.Format(time.RFC3339),
		})
	}
	return writeCSVAtomic(path, rows)
}

var transactionHeader = []string{
	"property_id", "property_url", "estate_name", "unit_descriptor",
	"district", "price", "price_millions", "area_ft", "unit_price_ft",
	"date", "format",
}

func (s *Sink) WriteTransactionsCSV(path string, properties []models.Property) error {
	rows := [][]string{transactionHeader}
	for _, p := range properties {
		for _, tx := range p.Transactions {
			rows = append(rows, []string{
				tx.PropertyID,
				tx.PropertyURL,
				tx.EstateName,
				tx.UnitDescriptor,
				tx.District,
				strOrEmpty(tx.Price),
				floatOrEmpty(tx.PriceMillions),
				intOrEmpty(tx.AreaFt),
				intOrEmpty(tx.UnitPriceFt),
				strOrEmpty(tx.Date),
				strOrEmpty(tx.Format),
			})
		}
	}
	return writeCSVAtomic(path, rows)
}

func writeCSVAtomic(path string, rows [][]string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intOrEmpty(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func floatOrEmpty(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
