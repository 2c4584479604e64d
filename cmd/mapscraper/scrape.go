package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-maps/exporter"
	"github.com/aluiziolira/go-scrape-maps/models"
	"github.com/aluiziolira/go-scrape-maps/parser"
	"github.com/aluiziolira/go-scrape-maps/scraper"
	"github.com/aluiziolira/go-scrape-maps/session"
)

// NewScrapeCmd creates the scrape command.
func NewScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one extraction and export the records",
		Long: `Scrape runs a single session in the foreground, prints a summary and writes
the records as CSV and JSON into the export directory.

Examples:
  mapscraper scrape -k "coffee shops" -l "Lisbon" -n 40
  mapscraper scrape -k dentists -l Porto --driver static --base-url http://localhost:9000/maps`,
		Args: cobra.NoArgs,
		RunE: runScrapeCmd,
	}

	cmd.Flags().StringP("keywords", "k", "", "Search keywords (required)")
	cmd.Flags().StringP("location", "l", "", "Search location (required)")
	cmd.Flags().IntP("max", "n", 20, fmt.Sprintf("Maximum results (1-%d)", session.MaxResultsLimit))
	cmd.Flags().String("driver", "", "Driver: chrome or static (overrides config)")
	cmd.Flags().String("base-url", "", "Map site base URL (overrides config)")
	cmd.Flags().String("output-dir", "", "Export directory (overrides config)")
	cmd.Flags().Bool("no-export", false, "Skip writing CSV/JSON files")
	cmd.MarkFlagRequired("keywords")
	cmd.MarkFlagRequired("location")
	return cmd
}

func runScrapeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("driver"); v != "" {
		cfg.Driver = v
	}
	if v, _ := cmd.Flags().GetString("base-url"); v != "" {
		cfg.BaseURL = v
	}
	if v, _ := cmd.Flags().GetString("output-dir"); v != "" {
		cfg.ExportDir = v
	}
	keywords, _ := cmd.Flags().GetString("keywords")
	location, _ := cmd.Flags().GetString("location")
	maxResults, _ := cmd.Flags().GetInt("max")
	noExport, _ := cmd.Flags().GetBool("no-export")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.close(closeCtx); err != nil {
			slog.Error("shutdown failed", slog.Any("error", err))
		}
	}()

	slog.Info("starting scrape",
		slog.String("keywords", keywords),
		slog.String("location", location),
		slog.Int("max_results", maxResults),
		slog.String("driver", cfg.Driver),
	)

	startTime := time.Now()
	id, err := a.manager.Start(ctx, keywords, location, maxResults)
	if err != nil {
		return err
	}

	progress, err := a.manager.Wait(ctx, id)
	if err != nil {
		// Interrupted: Close cancels the run and persists what was collected.
		return fmt.Errorf("scrape interrupted: %w", err)
	}
	faults, _ := a.manager.Faults(id)
	if progress.Status != models.StatusCompleted {
		printSummary(cmd.OutOrStdout(), progress, faults, nil, time.Since(startTime), nil)
		return fmt.Errorf("scraping failed: %s", progress.Error)
	}

	records, err := a.manager.Results(ctx, id)
	if err != nil {
		return err
	}

	var outputs []string
	if !noExport {
		outputs, err = exportRecords(ctx, a, id, records)
		if err != nil && !errors.Is(err, exporter.ErrNoRecords) {
			return err
		}
	}

	printSummary(cmd.OutOrStdout(), progress, faults, records, time.Since(startTime), outputs)
	return nil
}

func exportRecords(ctx context.Context, a *app, id string, records []models.BusinessRecord) ([]string, error) {
	summary, err := a.manager.Summary(ctx, id)
	if err != nil {
		return nil, err
	}
	csvPath, jsonPath, err := a.exporter.ExportBoth(ctx, records, exporter.MetadataFor(summary, len(records)))
	if err != nil {
		return nil, err
	}
	outputs := []string{csvPath, jsonPath}

	if a.uploader != nil {
		for _, path := range []string{csvPath, jsonPath} {
			key, err := a.uploader.Upload(ctx, path)
			if err != nil {
				slog.Error("upload failed", slog.String("file", path), slog.Any("error", err))
				continue
			}
			outputs = append(outputs, "s3://"+a.cfg.ExportBucket+"/"+key)
		}
	}
	return outputs, nil
}

func printSummary(w io.Writer, progress models.Progress, faults scraper.FaultCounts, records []models.BusinessRecord, duration time.Duration, outputs []string) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	if progress.Status == models.StatusCompleted {
		fmt.Fprintln(w, "Scrape complete")
	} else {
		fmt.Fprintln(w, "Scrape failed")
	}

	empty := 0
	for _, r := range records {
		if r.IsEmpty() {
			empty++
		}
	}

	fmt.Fprintf(w, "  Session:       %s\n", progress.SessionID)
	fmt.Fprintf(w, "  Status:        %s\n", progress.Status)
	fmt.Fprintf(w, "  Progress:      %d/%d (%.1f%%)\n", progress.Completed, progress.Total, progress.Percentage)
	fmt.Fprintf(w, "  Records:       %d\n", len(records))
	fmt.Fprintf(w, "  Empty records: %d\n", empty)
	fmt.Fprintf(w, "  Faults:        field=%d listing=%d scroll=%d structural=%d\n",
		faults.Field, faults.Listing, faults.Scroll, faults.Structural)
	if progress.Error != "" {
		fmt.Fprintf(w, "  Error:         %s\n", progress.Error)
	}
	fmt.Fprintf(w, "  Duration:      %v\n", duration.Round(time.Millisecond))
	if secs := duration.Seconds(); secs > 0 {
		fmt.Fprintf(w, "  Records/sec:   %.2f\n", float64(len(records))/secs)
	}
	for _, out := range outputs {
		fmt.Fprintf(w, "  Output:        %s\n", out)
	}

	for _, r := range records {
		if r.IsEmpty() {
			continue
		}
		fmt.Fprintf(w, "\n  Sample: %s (%.1f, %d reviews)\n", r.Name, r.Rating, r.ReviewCount)
		if r.Address != "" {
			fmt.Fprintf(w, "    %s\n", r.Address)
		}
		if hours := parser.FormatHours(r.Hours); hours != "" {
			fmt.Fprintf(w, "    %s\n", hours)
		}
		break
	}
	fmt.Fprintln(w, separator)
}
