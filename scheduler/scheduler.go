package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"hkprop_scraper/config"
)

// RunFunc executes one full crawl-and-export cycle.
type RunFunc func(ctx context.Context) error

// Scheduler re-runs the crawl on a cron expression or fixed interval,
// whichever the config provides. Overlapping runs are skipped rather than
// queued.
type Scheduler struct {
	cfg     *config.SchedulerConfig
	run     RunFunc
	cron    *cron.Cron
	ticker  *time.Ticker
	stopCh  chan struct{}
	running chan struct{}
}

func New(cfg *config.SchedulerConfig, run RunFunc) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		run:     run,
		cron:    cron.New(),
		stopCh:  make(chan struct{}),
		running: make(chan struct{}, 1),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() {
			s.runOnce(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
		return nil
	}

	if s.cfg.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runOnce(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
		return nil
	}

	log.Println("No schedule configured, daemon is idle until stopped")
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	select {
	case s.running <- struct{}{}:
	default:
		log.Println("Previous run still in progress, skipping")
		return
	}
	defer func() { <-s.running }()

	if err := s.run(ctx); err != nil {
		log.Printf("Scheduled run error: %v", err)
	}
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}
