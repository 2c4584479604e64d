package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-scrape-maps/config"
	"github.com/aluiziolira/go-scrape-maps/driver"
	"github.com/aluiziolira/go-scrape-maps/exporter"
	"github.com/aluiziolira/go-scrape-maps/scraper"
	"github.com/aluiziolira/go-scrape-maps/session"
	"github.com/aluiziolira/go-scrape-maps/store"
)

// app holds the components shared by the serve and scrape commands.
type app struct {
	cfg      *config.Config
	metrics  *scraper.Metrics
	store    store.Store
	manager  *session.Manager
	exporter *exporter.Exporter
	uploader *exporter.S3Uploader
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var uploader *exporter.S3Uploader
	if cfg.ExportBucket != "" {
		uploader, err = exporter.NewS3Uploader(ctx, cfg.ExportBucket, cfg.ExportPrefix)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	metrics := scraper.NewMetrics()
	engine := scraper.NewEngine(driverFactory(cfg), engineOptions(cfg, metrics))
	manager := session.NewManager(engine, session.Options{
		Store:   st,
		Metrics: metrics,
		Logger:  slog.Default(),
	})

	return &app{
		cfg:      cfg,
		metrics:  metrics,
		store:    st,
		manager:  manager,
		exporter: exporter.New(cfg.ExportDir),
		uploader: uploader,
	}, nil
}

// close shuts the manager down, which also closes the store.
func (a *app) close(ctx context.Context) error {
	return a.manager.Close(ctx)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		DBDir:       cfg.DBDir,
		DynamoTable: cfg.DynamoTable,
		CacheSize:   cfg.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	return st, nil
}

func driverFactory(cfg *config.Config) driver.Factory {
	if cfg.Driver == config.DriverStatic {
		return driver.StaticFactory(driver.StaticOptions{
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.PageTimeout,
		})
	}
	return driver.ChromeFactory(driver.ChromeOptions{
		Headless:     cfg.Headless,
		ExecPath:     cfg.ChromePath,
		UserAgent:    cfg.UserAgent,
		QueryTimeout: cfg.WaitTimeout,
		PageTimeout:  cfg.PageTimeout,
	})
}

func engineOptions(cfg *config.Config, metrics *scraper.Metrics) scraper.Options {
	return scraper.Options{
		BaseURL:          cfg.BaseURL,
		Selectors:        cfg.Selectors,
		WaitTimeout:      cfg.WaitTimeout,
		PollInterval:     cfg.PollInterval,
		ResultsPerScroll: cfg.ResultsPerScroll,
		StallLimit:       cfg.StallLimit,
		LoadDelay:        cfg.LoadDelay.Range(),
		SettleDelay:      cfg.SettleDelay.Range(),
		ScrollDelay:      cfg.ScrollDelay.Range(),
		ClickDelay:       cfg.ClickDelay.Range(),
		ListingDelay:     cfg.ListingDelay.Range(),
		HoursDelay:       cfg.HoursDelay,
		Metrics:          metrics,
		Logger:           slog.Default(),
	}
}
