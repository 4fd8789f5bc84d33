package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"hkprop_scraper/config"
	"hkprop_scraper/httputil"
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Code)
}

// TransportError reports a network-level failure (connection refused,
// timeout, DNS).
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Fetcher retrieves raw markup for a URL. Implementations own whatever
// connection state they need for the life of a crawl run and never retry
// internally; retry policy belongs to the orchestrator. Close releases the
// underlying resources and causes in-flight fetches to fail fast.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	Close()
}

// NewFetcher selects the fetch path for the whole run: plain HTTP by
// default, the scripted-browser path when configured.
func NewFetcher(cfg config.ScraperConfig, site *config.SiteConfig) Fetcher {
	if cfg.UseScriptedFetch {
		return NewBrowserFetcher(cfg)
	}
	return NewHTTPFetcher(cfg, site)
}

// HTTPFetcher performs plain GETs over one shared connection pool, created
// lazily on first use.
type HTTPFetcher struct {
	cfg  config.ScraperConfig
	site *config.SiteConfig

	once    sync.Once
	client  *http.Client
	initErr error
}

func NewHTTPFetcher(cfg config.ScraperConfig, site *config.SiteConfig) *HTTPFetcher {
	return &HTTPFetcher{cfg: cfg, site: site}
}

func (f *HTTPFetcher) ensureClient() error {
	f.once.Do(func() {
		f.client, f.initErr = httputil.NewScrapingClient(f.cfg)
	})
	return f.initErr
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.ensureClient(); err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	req.Header.Set("User-Agent", f.site.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range f.site.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	return body, nil
}

func (f *HTTPFetcher) Close() {
	if f.client != nil {
		f.client.CloseIdleConnections()
	}
}
