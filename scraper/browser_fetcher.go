package scraper

import (
	"context"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"

	"hkprop_scraper/config"
)

// BrowserFetcher renders pages in headless Chromium before handing back the
// markup, for pages that need script execution to produce their content. It
// satisfies the same Fetch contract as HTTPFetcher and is selected once for
// the whole run, never per request.
type BrowserFetcher struct {
	cfg config.ScraperConfig

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	initialized bool
}

func NewBrowserFetcher(cfg config.ScraperConfig) *BrowserFetcher {
	return &BrowserFetcher{cfg: cfg}
}

func (f *BrowserFetcher) ensureBrowser() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.initialized {
		return nil
	}

	var err error
	f.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	}
	if f.cfg.ProxyURL != "" {
		opts.Proxy = &playwright.Proxy{Server: f.cfg.ProxyURL}
	}

	f.browser, err = f.pw.Chromium.Launch(opts)
	if err != nil {
		f.pw.Stop()
		return fmt.Errorf("launch browser: %w", err)
	}

	f.initialized = true
	return nil
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.ensureBrowser(); err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	page, err := f.browser.NewPage()
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer page.Close()

	// Closing the page makes a blocking navigation fail, so a cancelled
	// run unwinds here the same way it does on the plain-HTTP path.
	stop := closeOnCancel(ctx, func() { page.Close() })
	defer stop()

	resp, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(f.cfg.Timeout().Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &TransportError{URL: url, Err: err}
	}
	if resp != nil && (resp.Status() < 200 || resp.Status() > 299) {
		return nil, &StatusError{URL: url, Code: resp.Status()}
	}

	content, err := page.Content()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &TransportError{URL: url, Err: err}
	}
	return []byte(content), nil
}

// closeOnCancel invokes closeFn if ctx is cancelled before the returned stop
// function is called. stop must be called exactly once; once it returns,
// closeFn will not be invoked.
func closeOnCancel(ctx context.Context, closeFn func()) (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			closeFn()
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}

func (f *BrowserFetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		f.browser.Close()
	}
	if f.pw != nil {
		f.pw.Stop()
	}
	f.initialized = false
}
