package main

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-scrape-maps/config"
	"github.com/aluiziolira/go-scrape-maps/models"
	"github.com/aluiziolira/go-scrape-maps/scraper"
)

func TestRootCmdHasSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	want := map[string]bool{"serve": false, "scrape": false, "sessions": false, "version": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
	if cmd.PersistentFlags().Lookup("config") == nil || cmd.PersistentFlags().Lookup("verbose") == nil {
		t.Fatal("missing persistent flags")
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "mapscraper version ") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestScrapeRequiresKeywordsAndLocation(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"scrape", "-k", "cafes"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "location") {
		t.Fatalf("expected missing location error, got %v", err)
	}
}

func TestEngineOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ResultsPerScroll = 7
	cfg.ScrollDelay = config.DelayRange{Min: time.Second, Max: 3 * time.Second}
	metrics := scraper.NewMetrics()

	opts := engineOptions(cfg, metrics)
	if opts.ResultsPerScroll != 7 || opts.BaseURL != cfg.BaseURL || opts.Metrics != metrics {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.ScrollDelay != (scraper.Range{Min: time.Second, Max: 3 * time.Second}) {
		t.Fatalf("scroll delay = %+v", opts.ScrollDelay)
	}
	if opts.Selectors.SearchInput != "#searchboxinput" {
		t.Fatalf("selectors not carried over: %+v", opts.Selectors)
	}
}

func TestPrintSummary(t *testing.T) {
	progress := models.Progress{
		SessionID:  "abc",
		Status:     models.StatusCompleted,
		Completed:  2,
		Total:      2,
		Percentage: 100,
	}
	records := []models.BusinessRecord{
		{},
		{Name: "Cafe One", Rating: 4.6, ReviewCount: 2041, Address: "Rua Augusta 1", Hours: map[string]string{"Monday": "8 AM–6 PM"}},
	}
	var out bytes.Buffer
	printSummary(&out, progress, scraper.FaultCounts{Listing: 1}, records, 2*time.Second, []string{"/tmp/a.csv"})

	text := out.String()
	for _, want := range []string{
		"Scrape complete",
		"Progress:      2/2 (100.0%)",
		"Records:       2",
		"Empty records: 1",
		"listing=1",
		"Output:        /tmp/a.csv",
		"Sample: Cafe One (4.6, 2041 reviews)",
		"Monday: 8 AM–6 PM",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
}

const (
	homePage = `<html><body>
<form action="/search"><input id="searchboxinput" name="q"></form>
</body></html>`
	resultsPage = `<html><body>
<div role="feed">
  <div role="article"><a href="/maps/place/Cafe+One/@38.7223,-9.1393,17z">Cafe One</a></div>
  <div role="article"><a href="/maps/place/Cafe+Two/@38.7101,-9.1400,17z">Cafe Two</a></div>
</div>
</body></html>`
	placePage = `<html><body>
<div class="fontHeadlineSmall">%s</div>
<button data-item-id="address">Rua Augusta 1, Lisboa</button>
<span class="fontDisplayLarge">4.6</span>
<button jsaction="pane.rating.moreReviews">(120 reviews)</button>
</body></html>`
)

func TestScrapeCmdWithStaticDriver(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "http://maps.test/maps", httpmock.NewStringResponder(http.StatusOK, homePage))
	httpmock.RegisterResponder(http.MethodGet, "http://maps.test/search?q=cafes+in+Lisbon", httpmock.NewStringResponder(http.StatusOK, resultsPage))
	httpmock.RegisterResponder(http.MethodGet, "http://maps.test/maps/place/Cafe+One/@38.7223,-9.1393,17z",
		httpmock.NewStringResponder(http.StatusOK, strings.Replace(placePage, "%s", "Cafe One", 1)))
	httpmock.RegisterResponder(http.MethodGet, "http://maps.test/maps/place/Cafe+Two/@38.7101,-9.1400,17z",
		httpmock.NewStringResponder(http.StatusOK, strings.Replace(placePage, "%s", "Cafe Two", 1)))

	dir := t.TempDir()
	exportDir := filepath.Join(dir, "exports")
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := `
driver: static
base_url: http://maps.test/maps
store: memory
export_dir: ` + exportDir + `
wait_timeout: 50ms
poll_interval: 10ms
load_delay: {min: 0s, max: 0s}
settle_delay: {min: 0s, max: 0s}
scroll_delay: {min: 0s, max: 0s}
click_delay: {min: 0s, max: 0s}
listing_delay: {min: 0s, max: 0s}
hours_delay: 0s
`
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"scrape", "-c", cfgPath, "-k", "cafes", "-l", "Lisbon", "-n", "5"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v\n%s", err, out.String())
	}

	text := out.String()
	for _, want := range []string{"Scrape complete", "Records:       2", "Sample: Cafe One"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	entries, err := os.ReadDir(exportDir)
	if err != nil {
		t.Fatalf("read export dir: %v", err)
	}
	var csvFiles, jsonFiles int
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".csv":
			csvFiles++
		case ".json":
			jsonFiles++
		}
	}
	if csvFiles != 1 || jsonFiles != 1 {
		t.Fatalf("exports = %v", entries)
	}
}
