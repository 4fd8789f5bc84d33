package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"hkprop_scraper/config"
	"hkprop_scraper/models"
)

// taskState tracks one detail URL through its lifecycle.
type taskState int

const (
	statePending taskState = iota
	stateFetching
	stateExtractingChildren
	stateDone
)

func (s taskState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateFetching:
		return "fetching"
	case stateExtractingChildren:
		return "extracting_children"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// RunStore receives run and log records. The SQLite store implements it;
// a nil store disables persistence.
type RunStore interface {
	CreateRun(run *models.ScrapeRun) (int64, error)
	UpdateRun(run *models.ScrapeRun) error
	Log(runID *int64, level models.LogLevel, message, stage string) error
}

// Orchestrator drives one crawl: sequential listing discovery, bounded
// concurrent detail fetches, sequential transaction fetches inside each
// detail task, and aggregation of the completed records.
type Orchestrator struct {
	cfg     *config.Config
	fetcher Fetcher
	store   RunStore

	// gate bounds how many detail tasks are in their fetch+extract phase
	// at once. Tasks are all launched; the gate is what limits in-flight
	// work, so a finishing task immediately frees a slot.
	gate *semaphore.Weighted
}

func NewOrchestrator(cfg *config.Config, fetcher Fetcher, store RunStore) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		gate:    semaphore.NewWeighted(int64(cfg.Scraper.MaxConcurrent)),
	}
}

// newDelayLimiter builds the inter-request pacing limiter: one request per
// configured delay, with the first request allowed immediately.
func (o *Orchestrator) newDelayLimiter() *rate.Limiter {
	d := o.cfg.Scraper.Delay()
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// Run executes one full crawl and returns the properties of every detail
// task that completed. Individual fetch and parse failures are logged and
// skipped; Run itself fails only when nothing at all could be scraped.
func (o *Orchestrator) Run(ctx context.Context) ([]models.Property, error) {
	run := &models.ScrapeRun{
		RunUUID:   uuid.New(),
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	var runID *int64
	if o.store != nil {
		if id, err := o.store.CreateRun(run); err != nil {
			log.Printf("Warning: could not record run: %v", err)
		} else {
			run.ID = id
			runID = &id
		}
	}

	urls := o.discoverListings(ctx, run, runID)
	run.URLsDiscovered = len(urls)

	if max := o.cfg.Scraper.MaxDetailRecords; max > 0 && len(urls) > max {
		o.log(runID, models.LogLevelInfo,
			fmt.Sprintf("Capping %d discovered URLs to %d", len(urls), max), "discovery")
		urls = urls[:max]
	}

	// One slot per URL keeps discovery order in the output; failed tasks
	// leave their slot nil.
	results := make([]*models.Property, len(urls))
	var g errgroup.Group
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			results[i] = o.runDetailTask(ctx, u, runID)
			return nil
		})
	}
	g.Wait()

	var properties []models.Property
	txCount := 0
	for _, p := range results {
		if p == nil {
			run.ErrorsCount++
			continue
		}
		properties = append(properties, *p)
		txCount += len(p.Transactions)
	}

	run.PropertiesScraped = len(properties)
	run.TransactionsFound = txCount
	run.Status = models.RunStatusCompleted
	if len(urls) > 0 && len(properties) == 0 {
		run.Status = models.RunStatusFailed
	}
	now := time.Now()
	run.FinishedAt = &now
	if o.store != nil && runID != nil {
		if err := o.store.UpdateRun(run); err != nil {
			log.Printf("Warning: could not update run: %v", err)
		}
	}

	o.log(runID, models.LogLevelInfo,
		fmt.Sprintf("Completed: %d properties, %d transactions, %d failed tasks",
			len(properties), txCount, run.ErrorsCount), "run")

	if len(urls) > 0 && len(properties) == 0 {
		return nil, fmt.Errorf("all %d detail fetches failed", len(urls))
	}
	return properties, nil
}

// discoverListings walks the listing index pages in order, sequentially and
// delay-paced, collecting detail-page URLs. A page that adds no new URLs
// ends discovery early; a page that fails to fetch is skipped.
func (o *Orchestrator) discoverListings(ctx context.Context, run *models.ScrapeRun, runID *int64) []string {
	limiter := o.newDelayLimiter()
	seen := make(map[string]struct{})
	var urls []string

	maxPages := o.cfg.Scraper.MaxListingPages
	for page := 1; page <= maxPages; page++ {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		pageURL := o.cfg.Site.ListingPageURL(page)
		doc, err := o.fetchDocument(ctx, pageURL)
		if err != nil {
			o.log(runID, models.LogLevelWarn,
				fmt.Sprintf("Listing page %d failed: %v", page, err), "discovery")
			run.ErrorsCount++
			continue
		}
		run.ListingPages++

		links := HarvestLinks(doc, pageURL, o.cfg.Site.DetailLinkPattern)
		added := 0
		for _, link := range links {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			urls = append(urls, link)
			added++
		}

		o.log(runID, models.LogLevelInfo,
			fmt.Sprintf("Listing page %d: %d links, %d new (total %d)",
				page, len(links), added, len(urls)), "discovery")

		if added == 0 {
			break
		}
	}
	return urls
}

// runDetailTask carries one detail URL from pending to done or failed. Any
// failure before the property exists fails the task; a transaction-page
// failure only skips that transaction.
func (o *Orchestrator) runDetailTask(ctx context.Context, detailURL string, runID *int64) *models.Property {
	state := statePending

	if err := o.gate.Acquire(ctx, 1); err != nil {
		o.log(runID, models.LogLevelWarn,
			fmt.Sprintf("Task cancelled before admission: %s", detailURL), state.String())
		return nil
	}
	defer o.gate.Release(1)

	state = stateFetching
	doc, err := o.fetchDocument(ctx, detailURL)
	if err != nil {
		o.log(runID, models.LogLevelWarn,
			fmt.Sprintf("Detail fetch failed: %v", err), state.String())
		return nil
	}

	property, txURLs := ParseEstatePage(doc, detailURL, o.cfg.Site.TransactionLinkPattern)

	if max := o.cfg.Scraper.MaxChildrenPerParent; max > 0 && len(txURLs) > max {
		txURLs = txURLs[:max]
	}

	state = stateExtractingChildren
	limiter := o.newDelayLimiter()
	for _, txURL := range txURLs {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		txDoc, err := o.fetchDocument(ctx, txURL)
		if err != nil {
			o.log(runID, models.LogLevelWarn,
				fmt.Sprintf("Transaction fetch failed: %v", err), state.String())
			continue
		}
		property.Transactions = append(property.Transactions, *ParseTransactionPage(txDoc, property))
	}

	state = stateDone
	o.log(runID, models.LogLevelInfo,
		fmt.Sprintf("Scraped %s (%d transactions)", property.ID, len(property.Transactions)),
		state.String())
	return property
}

// fetchDocument fetches a URL and parses it into a document. Empty markup
// and unparseable markup are both reported as failures, same as a fetch
// error.
func (o *Orchestrator) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := o.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("fetch %s: empty response body", url)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return doc, nil
}

func (o *Orchestrator) log(runID *int64, level models.LogLevel, message, stage string) {
	log.Printf("[%s] %s: %s", level, stage, message)
	if o.store != nil {
		if err := o.store.Log(runID, level, message, stage); err != nil {
			log.Printf("Warning: could not record log entry: %v", err)
		}
	}
}
