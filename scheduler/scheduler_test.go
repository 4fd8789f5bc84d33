package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"hkprop_scraper/config"
)

func TestStart_InvalidCron(t *testing.T) {
	s := New(&config.SchedulerConfig{Cron: "not a cron"}, func(ctx context.Context) error {
		return nil
	})
	defer s.Stop()

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestInterval_TriggersRuns(t *testing.T) {
	var runs atomic.Int32
	s := New(&config.SchedulerConfig{Interval: 20 * time.Millisecond}, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(90 * time.Millisecond)
	s.Stop()

	if got := runs.Load(); got < 2 {
		t.Fatalf("expected at least 2 runs, got %d", got)
	}
}

func TestRunOnce_SkipsOverlap(t *testing.T) {
	block := make(chan struct{})
	var runs atomic.Int32
	s := New(&config.SchedulerConfig{}, func(ctx context.Context) error {
		runs.Add(1)
		<-block
		return nil
	})
	defer s.Stop()

	go s.runOnce(context.Background())
	time.Sleep(10 * time.Millisecond)

	// Second invocation while the first is still blocked must be dropped.
	s.runOnce(context.Background())
	close(block)
	time.Sleep(10 * time.Millisecond)

	if got := runs.Load(); got != 1 {
		t.Fatalf("expected exactly 1 run, got %d", got)
	}
}
