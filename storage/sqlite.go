package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"hkprop_scraper/models"
)

// SQLiteStore holds operational data: run history and run-scoped logs.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY,
		run_uuid TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		listing_pages INTEGER DEFAULT 0,
		urls_discovered INTEGER DEFAULT 0,
		properties_scraped INTEGER DEFAULT 0,
		transactions_found INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		stage TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON scrape_runs(status, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.ScrapeRun) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO scrape_runs (run_uuid, started_at, status)
		VALUES (?, ?, ?)`,
		run.RunUUID.String(), run.StartedAt, run.Status)
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.ScrapeRun) error {
	_, err := s.db.Exec(`
		UPDATE scrape_runs SET
			finished_at = ?,
			status = ?,
			listing_pages = ?,
			urls_discovered = ?,
			properties_scraped = ?,
			transactions_found = ?,
			errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.ListingPages, run.URLsDiscovered,
		run.PropertiesScraped, run.TransactionsFound, run.ErrorsCount, run.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, stage string) error {
	_, err := s.db.Exec(`
		INSERT INTO scrape_logs (run_id, timestamp, level, message, stage)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, stage)
	return err
}

func (s *SQLiteStore) RecentRuns(limit int) ([]models.ScrapeRun, error) {
	rows, err := s.db.Query(`
		SELECT id, run_uuid, started_at, finished_at, status, listing_pages,
			urls_discovered, properties_scraped, transactions_found, errors_count
		FROM scrape_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ScrapeRun
	for rows.Next() {
		var r models.ScrapeRun
		var uuidStr string
		if err := rows.Scan(&r.ID, &uuidStr, &r.StartedAt, &r.FinishedAt, &r.Status,
			&r.ListingPages, &r.URLsDiscovered, &r.PropertiesScraped,
			&r.TransactionsFound, &r.ErrorsCount); err != nil {
			return nil, err
		}
		r.RunUUID, _ = uuid.Parse(uuidStr)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Stats aggregates run history for the summary printed at daemon startup.
func (s *SQLiteStore) Stats() (*models.RunStats, error) {
	stats := &models.RunStats{}

	row := s.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(properties_scraped), 0),
			COALESCE(SUM(transactions_found), 0),
			COALESCE(AVG(strftime('%s', finished_at) - strftime('%s', started_at)), 0)
		FROM scrape_runs
		WHERE finished_at IS NOT NULL`)
	var avgSec float64
	if err := row.Scan(&stats.TotalRuns, &stats.TotalProperties,
		&stats.TotalTransactions, &avgSec); err != nil {
		return nil, err
	}
	stats.AvgRunDurationSec = int(avgSec)

	row = s.db.QueryRow(`
		SELECT started_at, status FROM scrape_runs
		ORDER BY started_at DESC LIMIT 1`)
	var lastAt time.Time
	var lastStatus string
	switch err := row.Scan(&lastAt, &lastStatus); err {
	case nil:
		stats.LastRunAt = &lastAt
		stats.LastRunStatus = lastStatus
	case sql.ErrNoRows:
	default:
		return nil, err
	}

	return stats, nil
}
