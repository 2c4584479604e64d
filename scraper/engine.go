// Package scraper drives a map-search interface through a driver.Driver and
// turns each result listing into a models.BusinessRecord.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-maps/driver"
	"github.com/aluiziolira/go-scrape-maps/models"
)

// Query is one keyword/location search capped at Limit listings.
type Query struct {
	Keywords string
	Location string
	Limit    int
}

// SearchText is the text typed into the search box.
func (q Query) SearchText() string {
	return strings.TrimSpace(q.Keywords) + " in " + strings.TrimSpace(q.Location)
}

// Sink receives the run's progress. Calls come from the run's goroutine only.
type Sink interface {
	SetPhase(phase models.Phase)
	Tick(completed, total int)
	Append(record models.BusinessRecord)
}

// Result is what a run produced, whether or not it failed.
type Result struct {
	Records    []models.BusinessRecord
	Discovered int
	Faults     FaultCounts
}

// Options tunes the engine. Zero timeouts and counts fall back to
// DefaultOptions; a zero delay Range means no delay.
type Options struct {
	BaseURL          string
	Selectors        Selectors
	WaitTimeout      time.Duration
	PollInterval     time.Duration
	ResultsPerScroll int
	StallLimit       int
	LoadDelay        Range
	SettleDelay      Range
	ScrollDelay      Range
	ClickDelay       Range
	ListingDelay     Range
	HoursDelay       time.Duration
	Clock            Clock
	Metrics          *Metrics
	Logger           *slog.Logger
}

// DefaultOptions mirrors the pacing of a human operator on the live site.
func DefaultOptions() Options {
	return Options{
		BaseURL:          "https://www.google.com/maps",
		Selectors:        DefaultSelectors(),
		WaitTimeout:      10 * time.Second,
		PollInterval:     250 * time.Millisecond,
		ResultsPerScroll: 20,
		StallLimit:       3,
		LoadDelay:        Range{Min: 2 * time.Second, Max: 4 * time.Second},
		SettleDelay:      Range{Min: 3 * time.Second, Max: 5 * time.Second},
		ScrollDelay:      Range{Min: time.Second, Max: 2 * time.Second},
		ClickDelay:       Range{Min: time.Second, Max: 2 * time.Second},
		ListingDelay:     Range{Min: 500 * time.Millisecond, Max: 1500 * time.Millisecond},
		HoursDelay:       500 * time.Millisecond,
	}
}

// Engine runs extraction jobs. One Engine may serve many concurrent runs;
// each run opens its own driver.
type Engine struct {
	factory driver.Factory
	opts    Options
}

// NewEngine builds an engine that opens drivers with factory.
func NewEngine(factory driver.Factory, opts Options) *Engine {
	defaults := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = defaults.BaseURL
	}
	opts.Selectors = opts.Selectors.Merge(defaults.Selectors)
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = defaults.WaitTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if opts.ResultsPerScroll <= 0 {
		opts.ResultsPerScroll = defaults.ResultsPerScroll
	}
	if opts.StallLimit <= 0 {
		opts.StallLimit = defaults.StallLimit
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{factory: factory, opts: opts}
}

// Metrics returns the collectors the engine reports to, if any.
func (e *Engine) Metrics() *Metrics {
	return e.opts.Metrics
}

// Run executes q: search, paginate, then read every listing. The driver is
// opened at the start and closed exactly once before Run returns. Only
// structural faults, driver start-up failures and ctx cancellation produce an
// error; the returned Result is valid in every case.
func (e *Engine) Run(ctx context.Context, q Query, sink Sink) (res Result, err error) {
	if q.Limit <= 0 {
		return Result{}, fmt.Errorf("invalid limit %d", q.Limit)
	}
	if sink == nil {
		sink = discardSink{}
	}

	drv, err := e.factory(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("open driver: %w", err)
	}

	r := &run{
		engine: e,
		opts:   e.opts,
		drv:    drv,
		query:  q,
		sink:   sink,
		logger: e.opts.Logger.With(slog.String("query", q.SearchText())),
	}
	r.fields = NewFieldExtractor(drv, r.absorb)
	r.reader = NewPanelReader(drv, e.opts.Selectors, e.opts.Clock, e.opts.WaitTimeout, e.opts.PollInterval, e.opts.HoursDelay)

	defer func() {
		if cerr := drv.Close(); cerr != nil {
			r.logger.Warn("close driver", slog.Any("error", cerr))
		}
	}()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("extraction aborted: %v", p)
		}
		res = r.result()
	}()

	if err := r.search(ctx); err != nil {
		return res, err
	}
	if err := r.paginate(ctx); err != nil {
		return res, err
	}
	if err := r.iterate(ctx); err != nil {
		return res, err
	}

	r.logger.Info("extraction finished",
		slog.Int("records", len(r.records)),
		slog.Int("discovered", r.discovered),
		slog.Int("listing_faults", r.faults.Listing),
		slog.Int("field_faults", r.faults.Field),
	)
	return res, nil
}

type run struct {
	engine *Engine
	opts   Options
	drv    driver.Driver
	query  Query
	sink   Sink
	logger *slog.Logger
	fields *FieldExtractor
	reader *PanelReader

	records    []models.BusinessRecord
	discovered int
	faults     FaultCounts
}

func (r *run) search(ctx context.Context) error {
	r.sink.SetPhase(models.PhaseSearching)

	if err := r.drv.Navigate(ctx, r.opts.BaseURL); err != nil {
		return r.structural(ctx, "map page", err)
	}
	if err := r.opts.Clock.Sleep(ctx, r.opts.LoadDelay.Pick()); err != nil {
		return err
	}

	input, err := r.waitFind(ctx, r.opts.Selectors.SearchInput)
	if err != nil {
		return r.structural(ctx, "search input", err)
	}
	if err := r.drv.Type(ctx, input, r.query.SearchText()); err != nil {
		return r.structural(ctx, "search input", err)
	}
	r.logger.Debug("search submitted")

	return r.opts.Clock.Sleep(ctx, r.opts.SettleDelay.Pick())
}

func (r *run) paginate(ctx context.Context) error {
	r.sink.SetPhase(models.PhasePaginating)

	feed, err := r.waitFind(ctx, r.opts.Selectors.ResultsFeed)
	if err != nil {
		return r.structural(ctx, "results container", err)
	}

	limit := r.query.Limit
	budget := (limit + r.opts.ResultsPerScroll - 1) / r.opts.ResultsPerScroll
	r.discovered = r.countListings(ctx)
	r.sink.Tick(min(r.discovered, limit), limit)

	stalled := 0
	for attempt := 1; attempt <= budget && r.discovered < limit; attempt++ {
		if err := r.drv.ScrollToBottom(ctx, feed); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.absorb(ScrollFault{Attempt: attempt, Err: err})
			r.opts.Metrics.IncScroll("failed")
			if again, ferr := r.drv.Find(ctx, r.opts.Selectors.ResultsFeed); ferr == nil {
				feed = again
			}
		} else {
			r.opts.Metrics.IncScroll("ok")
		}

		if err := r.opts.Clock.Sleep(ctx, r.opts.ScrollDelay.Pick()); err != nil {
			return err
		}

		if n := r.countListings(ctx); n > r.discovered {
			r.discovered = n
			stalled = 0
		} else {
			stalled++
		}
		r.sink.Tick(min(r.discovered, limit), limit)

		if stalled >= r.opts.StallLimit {
			r.logger.Debug("pagination stalled", slog.Int("attempt", attempt), slog.Int("discovered", r.discovered))
			break
		}
	}
	return nil
}

func (r *run) iterate(ctx context.Context) error {
	r.sink.SetPhase(models.PhaseIterating)

	listings := r.fields.All(ctx, r.opts.Selectors.Listing)
	total := r.query.Limit
	if len(listings) < total {
		total = len(listings)
	}
	listings = listings[:total]
	r.sink.Tick(0, total)

	for i, listing := range listings {
		if err := ctx.Err(); err != nil {
			return err
		}

		started := r.opts.Clock.Now()
		record, err := r.readListing(ctx, i, listing)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.absorb(err)
		}
		r.opts.Metrics.ObserveListing(r.opts.Clock.Now().Sub(started))

		r.records = append(r.records, record)
		r.sink.Append(record)
		r.sink.Tick(len(r.records), total)

		if err := r.opts.Clock.Sleep(ctx, r.opts.ListingDelay.Pick()); err != nil {
			return err
		}
	}
	return nil
}

// readListing opens one listing and reads its panel. Any failure, including a
// panic from the driver, is returned as a ListingFault with an empty record.
func (r *run) readListing(ctx context.Context, index int, listing driver.Element) (record models.BusinessRecord, err error) {
	defer func() {
		if p := recover(); p != nil {
			record = models.BusinessRecord{}
			err = ListingFault{Index: index, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	if err := r.drv.Click(ctx, listing); err != nil {
		return models.BusinessRecord{}, ListingFault{Index: index, Err: fmt.Errorf("open listing: %w", err)}
	}
	if err := r.opts.Clock.Sleep(ctx, r.opts.ClickDelay.Pick()); err != nil {
		return models.BusinessRecord{}, ListingFault{Index: index, Err: err}
	}
	record, err = r.reader.Read(ctx, r.fields)
	if err != nil {
		return models.BusinessRecord{}, ListingFault{Index: index, Err: err}
	}
	return record, nil
}

func (r *run) countListings(ctx context.Context) int {
	return len(r.fields.All(ctx, r.opts.Selectors.Listing))
}

func (r *run) waitFind(ctx context.Context, selector string) (driver.Element, error) {
	var found driver.Element
	err := WaitFor(ctx, r.opts.Clock, r.opts.WaitTimeout, r.opts.PollInterval, func(ctx context.Context) bool {
		el, err := r.drv.Find(ctx, selector)
		if err != nil {
			return false
		}
		found = el
		return true
	})
	return found, err
}

// structural wraps err unless the run was cancelled, in which case the
// cancellation is reported as is.
func (r *run) structural(ctx context.Context, element string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ErrWaitTimeout) {
		return ctxErr
	}
	fault := StructuralFault{Element: element, Err: err}
	r.faults.add(fault)
	r.opts.Metrics.IncFault(TierStructural)
	r.logger.Error("structural fault", slog.String("element", element), slog.Any("error", err))
	return fault
}

// absorb records a fault that did not stop the run.
func (r *run) absorb(err error) {
	r.faults.add(err)
	tier := FaultTier(err)
	r.opts.Metrics.IncFault(tier)
	if tier == TierField {
		r.logger.Debug("field fault", slog.Any("error", err))
		return
	}
	r.logger.Warn("fault absorbed", slog.String("tier", tier), slog.Any("error", err))
}

func (r *run) result() Result {
	records := make([]models.BusinessRecord, len(r.records))
	copy(records, r.records)
	return Result{Records: records, Discovered: r.discovered, Faults: r.faults}
}

type discardSink struct{}

func (discardSink) SetPhase(models.Phase)        {}
func (discardSink) Tick(int, int)                {}
func (discardSink) Append(models.BusinessRecord) {}
