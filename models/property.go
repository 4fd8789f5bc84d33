package models

import (
	"time"
)

// Property represents one estate detail page after extraction. Most fields
// are optional because the source markup does not guarantee their presence;
// absent fields stay nil so the sink can tell "missing" from "zero".
type Property struct {
	ID             string        `json:"id" db:"id"`
	URL            string        `json:"url" db:"url"`
	Name           string        `json:"name" db:"name"`
	District       string        `json:"district" db:"district"`
	Developer      *string       `json:"developer" db:"developer"`
	OccupationDate *string       `json:"occupation_date" db:"occupation_date"`
	SchoolNet      *string       `json:"school_net" db:"school_net"`
	Price          *string       `json:"price" db:"price"`
	PriceMillions  *float64      `json:"price_millions" db:"price_millions"`
	UnitPriceFt    *int          `json:"unit_price_ft" db:"unit_price_ft"`
	AreaFt         *int          `json:"area_ft" db:"area_ft"`
	BlockCount     *int          `json:"block_count" db:"block_count"`
	UnitCount      *int          `json:"unit_count" db:"unit_count"`
	YearBuilt      *int          `json:"year_built" db:"year_built"`
	Transactions   []Transaction `json:"transactions" db:"-"`
	ScrapedAt      time.Time     `json:"scraped_at" db:"scraped_at"`
}

// Transaction is one recent-transaction page linked from an estate detail
// page. It carries its parent's ID and URL so flat CSV/DB rows keep the
// relation.
type Transaction struct {
	PropertyID     string   `json:"property_id" db:"property_id"`
	PropertyURL    string   `json:"property_url" db:"property_url"`
	EstateName     string   `json:"estate_name" db:"estate_name"`
	UnitDescriptor string   `json:"unit_descriptor" db:"unit_descriptor"`
	District       string   `json:"district" db:"district"`
	Price          *string  `json:"price" db:"price"`
	PriceMillions  *float64 `json:"price_millions" db:"price_millions"`
	AreaFt         *int     `json:"area_ft" db:"area_ft"`
	UnitPriceFt    *int     `json:"unit_price_ft" db:"unit_price_ft"`
	Date           *string  `json:"date" db:"date"`
	Format         *string  `json:"format" db:"format"`
}
