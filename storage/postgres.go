package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hkprop_scraper/models"
)

// PostgresStore persists scraped properties and transactions when a
// DATABASE_URL is configured. Optional: the crawl works without it and the
// file sink remains the primary output.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		name TEXT,
		district TEXT,
		developer TEXT,
		occupation_date TEXT,
		school_net TEXT,
		price TEXT,
		price_millions DOUBLE PRECISION,
		unit_price_ft INTEGER,
		area_ft INTEGER,
		block_count INTEGER,
		unit_count INTEGER,
		year_built INTEGER,
		scraped_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id BIGSERIAL PRIMARY KEY,
		property_id TEXT NOT NULL REFERENCES properties(id),
		property_url TEXT,
		estate_name TEXT,
		unit_descriptor TEXT,
		district TEXT,
		price TEXT,
		price_millions DOUBLE PRECISION,
		area_ft INTEGER,
		unit_price_ft INTEGER,
		date TEXT,
		format TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_property ON transactions(property_id);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// SaveProperties upserts each property and replaces its transactions in one
// batch transaction per property, so a partial failure never leaves a
// property with half its transactions.
func (s *PostgresStore) SaveProperties(ctx context.Context, properties []models.Property) error {
	for i := range properties {
		if err := s.saveProperty(ctx, &properties[i]); err != nil {
			return fmt.Errorf("save property %s: %w", properties[i].ID, err)
		}
	}
	return nil
}

func (s *PostgresStore) saveProperty(ctx context.Context, p *models.Property) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO properties (
			id, url, name, district, developer, occupation_date, school_net,
			price, price_millions, unit_price_ft, area_ft, block_count,
			unit_count, year_built, scraped_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), properties.name),
			district = COALESCE(NULLIF(EXCLUDED.district, ''), properties.district),
			developer = COALESCE(EXCLUDED.developer, properties.developer),
			occupation_date = COALESCE(EXCLUDED.occupation_date, properties.occupation_date),
			school_net = COALESCE(EXCLUDED.school_net, properties.school_net),
			price = COALESCE(EXCLUDED.price, properties.price),
			price_millions = COALESCE(EXCLUDED.price_millions, properties.price_millions),
			unit_price_ft = COALESCE(EXCLUDED.unit_price_ft, properties.unit_price_ft),
			area_ft = COALESCE(EXCLUDED.area_ft, properties.area_ft),
			block_count = COALESCE(EXCLUDED.block_count, properties.block_count),
			unit_count = COALESCE(EXCLUDED.unit_count, properties.unit_count),
			year_built = COALESCE(EXCLUDED.year_built, properties.year_built),
			scraped_at = EXCLUDED.scraped_at,
			updated_at = NOW()`,
		p.ID, p.URL, p.Name, p.District, p.Developer, p.OccupationDate,
		p.SchoolNet, p.Price, p.PriceMillions, p.UnitPriceFt, p.AreaFt,
		p.BlockCount, p.UnitCount, p.YearBuilt, p.ScrapedAt)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM transactions WHERE property_id = $1`, p.ID); err != nil {
		return err
	}

	for _, t := range p.Transactions {
		_, err := tx.Exec(ctx, `
			INSERT INTO transactions (
				property_id, property_url, estate_name, unit_descriptor,
				district, price, price_millions, area_ft, unit_price_ft,
				date, format
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			t.PropertyID, t.PropertyURL, t.EstateName, t.UnitDescriptor,
			t.District, t.Price, t.PriceMillions, t.AreaFt, t.UnitPriceFt,
			t.Date, t.Format)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
