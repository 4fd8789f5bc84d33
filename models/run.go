package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type ScrapeRun struct {
	ID                int64      `json:"id" db:"id"`
	RunUUID           uuid.UUID  `json:"run_uuid" db:"run_uuid"`
	StartedAt         time.Time  `json:"started_at" db:"started_at"`
	FinishedAt        *time.Time `json:"finished_at" db:"finished_at"`
	Status            RunStatus  `json:"status" db:"status"`
	ListingPages      int        `json:"listing_pages" db:"listing_pages"`
	URLsDiscovered    int        `json:"urls_discovered" db:"urls_discovered"`
	PropertiesScraped int        `json:"properties_scraped" db:"properties_scraped"`
	TransactionsFound int        `json:"transactions_found" db:"transactions_found"`
	ErrorsCount       int        `json:"errors_count" db:"errors_count"`
}

type RunStats struct {
	LastRunAt         *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus     string     `json:"last_run_status" db:"last_run_status"`
	TotalRuns         int        `json:"total_runs" db:"total_runs"`
	TotalProperties   int        `json:"total_properties" db:"total_properties"`
	TotalTransactions int        `json:"total_transactions" db:"total_transactions"`
	AvgRunDurationSec int        `json:"avg_run_duration_sec" db:"avg_run_duration_sec"`
}
