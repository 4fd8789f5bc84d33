package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Scraper   ScraperConfig
	Scheduler SchedulerConfig
	Site      *SiteConfig
	DBPath    string
	OutputDir string
	// DatabaseURL enables the optional Postgres store when set.
	DatabaseURL string
	LogLevel    string
}

type ScraperConfig struct {
	UseScriptedFetch     bool
	MaxConcurrent        int
	DelaySeconds         float64
	VerifyTLS            bool
	ProxyURL             string
	TimeoutSeconds       int
	MaxListingPages      int
	MaxDetailRecords     int
	MaxChildrenPerParent int
}

// Delay returns the inter-request pause used between listing pages and
// between sequential transaction fetches.
func (c ScraperConfig) Delay() time.Duration {
	return time.Duration(c.DelaySeconds * float64(time.Second))
}

func (c ScraperConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

// SiteConfig describes the target site. The defaults cover 28hse-style
// markup; a config/site.yaml file overrides them without recompiling.
type SiteConfig struct {
	ID                     string            `yaml:"id"`
	Name                   string            `yaml:"name"`
	BaseURL                string            `yaml:"base_url"`
	ListingPathTemplate    string            `yaml:"listing_path_template"`
	DetailLinkPattern      string            `yaml:"detail_link_pattern"`
	TransactionLinkPattern string            `yaml:"transaction_link_pattern"`
	UserAgent              string            `yaml:"user_agent"`
	Headers                map[string]string `yaml:"headers"`
}

// ListingPageURL builds the URL of the Nth listing index page.
func (s *SiteConfig) ListingPageURL(page int) string {
	return s.BaseURL + fmt.Sprintf(s.ListingPathTemplate, page)
}

func defaultSiteConfig() *SiteConfig {
	return &SiteConfig{
		ID:                     "hse28",
		Name:                   "28Hse",
		BaseURL:                "https://www.28hse.com",
		ListingPathTemplate:    "/en/estate/list/p%d",
		DetailLinkPattern:      "/estate/detail/",
		TransactionLinkPattern: "/transaction/detail/",
		UserAgent:              "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Scraper: ScraperConfig{
			UseScriptedFetch:     getEnvBool("USE_SCRIPTED_FETCH", false),
			MaxConcurrent:        getEnvInt("MAX_CONCURRENT", 5),
			DelaySeconds:         getEnvFloat("DELAY_SECONDS", 1.0),
			VerifyTLS:            getEnvBool("VERIFY_TLS", true),
			ProxyURL:             os.Getenv("PROXY_URL"),
			TimeoutSeconds:       getEnvInt("TIMEOUT_SECONDS", 30),
			MaxListingPages:      getEnvInt("MAX_LISTING_PAGES", 10),
			MaxDetailRecords:     getEnvInt("MAX_DETAIL_RECORDS", 100),
			MaxChildrenPerParent: getEnvInt("MAX_CHILDREN_PER_PARENT", 10),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		DBPath:      getEnv("DB_PATH", "scraper.db"),
		OutputDir:   getEnv("OUTPUT_DIR", "output"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	if cfg.Scraper.MaxConcurrent < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT must be >= 1, got %d", cfg.Scraper.MaxConcurrent)
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	site, err := loadSiteConfig(getEnv("SITE_CONFIG", "config/site.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.Site = site

	return cfg, nil
}

func loadSiteConfig(path string) (*SiteConfig, error) {
	site := defaultSiteConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return site, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, site); err != nil {
		return nil, fmt.Errorf("parse site config %s: %w", path, err)
	}
	return site, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}
