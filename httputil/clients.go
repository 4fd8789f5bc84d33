package httputil

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"hkprop_scraper/config"
)

const maxPooledConns = 10

// NewScrapingClient builds the single shared HTTP client used for all
// fetches in a crawl run. Pooled connections are bounded so a large fan-out
// cannot open one socket per discovered URL.
func NewScrapingClient(cfg config.ScraperConfig) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        maxPooledConns,
		MaxIdleConnsPerHost: maxPooledConns,
		MaxConnsPerHost:     maxPooledConns,
		IdleConnTimeout:     90 * time.Second,
	}

	if !cfg.VerifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.ProxyURL, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &http.Client{
		Timeout:   cfg.Timeout(),
		Transport: transport,
	}, nil
}
