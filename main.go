package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hkprop_scraper/config"
	"hkprop_scraper/logging"
	"hkprop_scraper/scheduler"
	"hkprop_scraper/scraper"
	"hkprop_scraper/storage"
)

var (
	scrapeNow = flag.Bool("scrape", false, "Run one crawl and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("scraper.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting hkprop_scraper...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Site: %s (%s), concurrency %d, delay %s",
		cfg.Site.Name, cfg.Site.BaseURL, cfg.Scraper.MaxConcurrent, cfg.Scraper.Delay())

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer store.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	ctx := context.Background()

	var pgStore *storage.PostgresStore
	if cfg.DatabaseURL != "" {
		pgStore, err = storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pgStore.Close()
		log.Println("Connected to Postgres")
	}

	fetcher := scraper.NewFetcher(cfg.Scraper, cfg.Site)
	defer fetcher.Close()
	if cfg.Scraper.UseScriptedFetch {
		log.Println("Using scripted-browser fetch path")
	}

	orchestrator := scraper.NewOrchestrator(cfg, fetcher, store)
	sink := storage.NewSink(cfg.OutputDir)

	runOnce := func(ctx context.Context) error {
		started := time.Now()
		properties, err := orchestrator.Run(ctx)
		if err != nil {
			return err
		}

		if err := sink.WriteAll(properties, started); err != nil {
			log.Printf("Sink error: %v", err)
		}
		if pgStore != nil {
			if err := pgStore.SaveProperties(ctx, properties); err != nil {
				log.Printf("Postgres error: %v", err)
			}
		}

		txCount := 0
		for _, p := range properties {
			txCount += len(p.Transactions)
		}
		log.Printf("Run finished: %d properties, %d transactions in %s",
			len(properties), txCount, time.Since(started).Round(time.Second))
		return nil
	}

	if *scrapeNow {
		log.Println("Running crawl...")
		if err := runOnce(ctx); err != nil {
			log.Fatalf("Crawl failed: %v", err)
		}
		log.Println("Crawl complete!")
		return
	}

	// Daemon mode
	if stats, err := store.Stats(); err == nil && stats.TotalRuns > 0 {
		log.Printf("History: %d runs, %d properties, %d transactions",
			stats.TotalRuns, stats.TotalProperties, stats.TotalTransactions)
		if stats.LastRunAt != nil {
			log.Printf("Last run: %s (%s)",
				stats.LastRunAt.Format(time.RFC3339), stats.LastRunStatus)
		}
		if runs, err := store.RecentRuns(5); err == nil {
			for _, r := range runs {
				log.Printf("  %s  %s: %d properties, %d transactions, %d errors",
					r.StartedAt.Format("2006-01-02 15:04"), r.Status,
					r.PropertiesScraped, r.TransactionsFound, r.ErrorsCount)
			}
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(&cfg.Scheduler, runOnce)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}
