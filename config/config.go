// Package config holds the runtime configuration of the extractor and the
// HTTP service: defaults, a YAML file layer and environment overrides.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/aluiziolira/go-scrape-maps/scraper"
)

// AppName names the XDG sub-directories.
const AppName = "mapscraper"

// Driver names.
const (
	DriverChrome = "chrome"
	DriverStatic = "static"
)

// DelayRange is a jittered delay window.
type DelayRange struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// Range converts to the extractor's delay type.
func (d DelayRange) Range() scraper.Range {
	return scraper.Range{Min: d.Min, Max: d.Max}
}

// Config holds extractor and service configuration.
type Config struct {
	BaseURL    string `yaml:"base_url"`
	Driver     string `yaml:"driver"`
	Headless   bool   `yaml:"headless"`
	ChromePath string `yaml:"chrome_path"`
	UserAgent  string `yaml:"user_agent"`

	WaitTimeout      time.Duration `yaml:"wait_timeout"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	PageTimeout      time.Duration `yaml:"page_timeout"`
	ResultsPerScroll int           `yaml:"results_per_scroll"`
	StallLimit       int           `yaml:"stall_limit"`
	LoadDelay        DelayRange    `yaml:"load_delay"`
	SettleDelay      DelayRange    `yaml:"settle_delay"`
	ScrollDelay      DelayRange    `yaml:"scroll_delay"`
	ClickDelay       DelayRange    `yaml:"click_delay"`
	ListingDelay     DelayRange    `yaml:"listing_delay"`
	HoursDelay       time.Duration `yaml:"hours_delay"`

	Selectors scraper.Selectors `yaml:"selectors"`

	ListenAddr  string  `yaml:"listen_addr"`
	MetricsAddr string  `yaml:"metrics_addr"`
	CreateRate  float64 `yaml:"create_rate"`
	CreateBurst int     `yaml:"create_burst"`

	StoreBackend string `yaml:"store"`
	DBDir        string `yaml:"db_dir"`
	DynamoTable  string `yaml:"dynamo_table"`
	CacheSize    int    `yaml:"cache_size"`

	ExportDir    string `yaml:"export_dir"`
	ExportBucket string `yaml:"export_bucket"`
	ExportPrefix string `yaml:"export_prefix"`

	Verbose bool `yaml:"verbose"`
}

// DefaultConfig returns the pacing of a human operator against the live map site.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "https://www.google.com/maps",
		Driver:           DriverChrome,
		Headless:         true,
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		WaitTimeout:      10 * time.Second,
		PollInterval:     250 * time.Millisecond,
		PageTimeout:      30 * time.Second,
		ResultsPerScroll: 20,
		StallLimit:       3,
		LoadDelay:        DelayRange{Min: 2 * time.Second, Max: 4 * time.Second},
		SettleDelay:      DelayRange{Min: 3 * time.Second, Max: 5 * time.Second},
		ScrollDelay:      DelayRange{Min: time.Second, Max: 2 * time.Second},
		ClickDelay:       DelayRange{Min: time.Second, Max: 2 * time.Second},
		ListingDelay:     DelayRange{Min: 500 * time.Millisecond, Max: 1500 * time.Millisecond},
		HoursDelay:       500 * time.Millisecond,
		Selectors:        scraper.DefaultSelectors(),
		ListenAddr:       ":8000",
		CreateRate:       0.2,
		CreateBurst:      3,
		StoreBackend:     "sqlite",
		DBDir:            DataDir(),
		CacheSize:        64,
		ExportDir:        filepath.Join(DataDir(), "exports"),
		ExportPrefix:     AppName,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	parsedURL, err := url.Parse(c.BaseURL)
	if c.BaseURL == "" || err != nil || parsedURL.Host == "" {
		return ErrInvalidBaseURL
	}

	switch c.Driver {
	case DriverChrome, DriverStatic:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidDriver, c.Driver)
	}
	if c.UserAgent == "" {
		return ErrEmptyUserAgent
	}

	if c.WaitTimeout <= 0 || c.PollInterval <= 0 || c.PageTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.ResultsPerScroll <= 0 {
		return ErrInvalidResultsPerScroll
	}
	if c.StallLimit <= 0 {
		return ErrInvalidStallLimit
	}
	for name, d := range map[string]DelayRange{
		"load":    c.LoadDelay,
		"settle":  c.SettleDelay,
		"scroll":  c.ScrollDelay,
		"click":   c.ClickDelay,
		"listing": c.ListingDelay,
	} {
		if d.Min < 0 || d.Max < d.Min {
			return fmt.Errorf("%w: %s delay %s..%s", ErrInvalidDelay, name, d.Min, d.Max)
		}
	}
	if c.HoursDelay < 0 {
		return fmt.Errorf("%w: hours delay %s", ErrInvalidDelay, c.HoursDelay)
	}

	if c.CreateRate <= 0 || c.CreateBurst <= 0 {
		return ErrInvalidRate
	}

	switch c.StoreBackend {
	case "memory":
	case "sqlite":
		if c.DBDir == "" {
			return ErrMissingDBDir
		}
	case "dynamodb":
		if c.DynamoTable == "" {
			return ErrMissingDynamoTable
		}
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidStore, c.StoreBackend)
	}

	if c.ExportDir == "" {
		return fmt.Errorf("export directory cannot be empty")
	}
	return nil
}

// DataDir returns the XDG data directory of the application.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// ConfigDir returns the XDG config directory of the application.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}
