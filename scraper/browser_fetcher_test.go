package scraper

import (
	"context"
	"testing"
	"time"
)

func TestCloseOnCancel_CancelInvokesClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	closed := make(chan struct{})
	stop := closeOnCancel(ctx, func() { close(closed) })
	defer stop()

	cancel()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("close was not invoked after cancellation")
	}
}

func TestCloseOnCancel_StopPreventsClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	closed := make(chan struct{})
	stop := closeOnCancel(ctx, func() { close(closed) })
	stop()
	cancel()

	select {
	case <-closed:
		t.Fatal("close was invoked after stop")
	case <-time.After(50 * time.Millisecond):
	}
}
