package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/aluiziolira/go-scrape-maps/driver"
	"github.com/aluiziolira/go-scrape-maps/models"
	"github.com/aluiziolira/go-scrape-maps/parser"
)

// Selectors locates the elements of the map interface.
type Selectors struct {
	SearchInput string `yaml:"search_input"`
	ResultsFeed string `yaml:"results_feed"`
	Listing     string `yaml:"listing"`
	Headline    string `yaml:"headline"`
	Address     string `yaml:"address"`
	Phone       string `yaml:"phone"`
	Website     string `yaml:"website"`
	Rating      string `yaml:"rating"`
	Reviews     string `yaml:"reviews"`
	Categories  string `yaml:"categories"`
	HoursButton string `yaml:"hours_button"`
	HoursRows   string `yaml:"hours_rows"`
	HoursDay    string `yaml:"hours_day"`
	HoursRange  string `yaml:"hours_range"`
}

// DefaultSelectors returns the selectors of the Google Maps web UI.
func DefaultSelectors() Selectors {
	return Selectors{
		SearchInput: "#searchboxinput",
		ResultsFeed: "div[role='feed']",
		Listing:     "div[role='article']",
		Headline:    "div.fontHeadlineSmall",
		Address:     "button[data-item-id='address']",
		Phone:       "button[data-item-id='phone:tel']",
		Website:     "a[data-item-id='authority']",
		Rating:      "span.fontDisplayLarge",
		Reviews:     "button[jsaction='pane.rating.moreReviews']",
		Categories:  "button[jsaction='pane.rating.category']",
		HoursButton: "button[data-item-id='oh']",
		HoursRows:   "table tr",
		HoursDay:    "th",
		HoursRange:  "td",
	}
}

// Merge fills empty fields of s from defaults.
func (s Selectors) Merge(defaults Selectors) Selectors {
	fill := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	fill(&s.SearchInput, defaults.SearchInput)
	fill(&s.ResultsFeed, defaults.ResultsFeed)
	fill(&s.Listing, defaults.Listing)
	fill(&s.Headline, defaults.Headline)
	fill(&s.Address, defaults.Address)
	fill(&s.Phone, defaults.Phone)
	fill(&s.Website, defaults.Website)
	fill(&s.Rating, defaults.Rating)
	fill(&s.Reviews, defaults.Reviews)
	fill(&s.Categories, defaults.Categories)
	fill(&s.HoursButton, defaults.HoursButton)
	fill(&s.HoursRows, defaults.HoursRows)
	fill(&s.HoursDay, defaults.HoursDay)
	fill(&s.HoursRange, defaults.HoursRange)
	return s
}

// PanelReader turns the currently open detail panel into a BusinessRecord.
type PanelReader struct {
	drv          driver.Driver
	selectors    Selectors
	clock        Clock
	waitTimeout  time.Duration
	pollInterval time.Duration
	hoursDelay   time.Duration
}

// NewPanelReader builds a reader over drv.
func NewPanelReader(drv driver.Driver, selectors Selectors, clock Clock, waitTimeout, pollInterval, hoursDelay time.Duration) *PanelReader {
	return &PanelReader{
		drv:          drv,
		selectors:    selectors,
		clock:        clock,
		waitTimeout:  waitTimeout,
		pollInterval: pollInterval,
		hoursDelay:   hoursDelay,
	}
}

// Read waits for the panel headline and extracts every field. When the
// headline never appears it returns an empty record and a non-nil error;
// the record is still meant to be kept.
func (p *PanelReader) Read(ctx context.Context, fields *FieldExtractor) (models.BusinessRecord, error) {
	err := WaitFor(ctx, p.clock, p.waitTimeout, p.pollInterval, func(ctx context.Context) bool {
		_, err := p.drv.Find(ctx, p.selectors.Headline)
		return err == nil
	})
	if err != nil {
		return models.BusinessRecord{}, fmt.Errorf("detail panel not ready: %w", err)
	}

	record := models.BusinessRecord{
		Name:        fields.Text(ctx, p.selectors.Headline),
		Address:     fields.Text(ctx, p.selectors.Address),
		Phone:       fields.Text(ctx, p.selectors.Phone),
		Website:     parser.CleanWebsite(fields.Attribute(ctx, p.selectors.Website, "href")),
		Rating:      parser.ParseRating(fields.Text(ctx, p.selectors.Rating)),
		ReviewCount: parser.ParseReviewCount(fields.Text(ctx, p.selectors.Reviews)),
		Categories:  parser.ParseCategories(fields.Text(ctx, p.selectors.Categories)),
		Hours:       p.readHours(ctx, fields),
	}
	if coords, ok := parser.ParseCoordinates(fields.CurrentURL(ctx)); ok {
		record.Coordinates = &coords
	}
	return record, nil
}

// readHours expands the hours control and reads the table. Any failure
// yields an empty mapping.
func (p *PanelReader) readHours(ctx context.Context, fields *FieldExtractor) map[string]string {
	if !fields.Click(ctx, p.selectors.HoursButton) {
		return map[string]string{}
	}
	if err := p.clock.Sleep(ctx, p.hoursDelay); err != nil {
		return map[string]string{}
	}

	rows := fields.All(ctx, p.selectors.HoursRows)
	pairs := make([]parser.HoursRow, 0, len(rows))
	for _, row := range rows {
		pairs = append(pairs, parser.HoursRow{
			Day:   fields.TextWithin(ctx, row, p.selectors.HoursDay),
			Range: fields.TextWithin(ctx, row, p.selectors.HoursRange),
		})
	}
	return parser.ParseHours(pairs)
}
