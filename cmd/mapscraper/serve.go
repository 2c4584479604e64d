package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-scrape-maps/api"
)

const shutdownTimeout = 30 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP session API",
		Long: `Serve starts the HTTP API. Each POST /start_scraping launches its own
browser in the background; clients poll /progress/{id} and fetch results or
CSV/JSON downloads once the session completed.`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}
	cmd.Flags().String("listen", "", "HTTP listen address (overrides config)")
	cmd.Flags().String("metrics-addr", "", "Separate Prometheus listen address; /metrics is always served on the API")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.ListenAddr = listen
	}
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		cfg.MetricsAddr = addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	opts := api.Options{
		Exporter:    a.exporter,
		Metrics:     a.metrics,
		CreateRate:  cfg.CreateRate,
		CreateBurst: cfg.CreateBurst,
		Logger:      slog.Default(),
	}
	if a.uploader != nil {
		opts.Uploader = a.uploader
	}

	servers := []*http.Server{{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(a.manager, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if cfg.MetricsAddr != "" {
		servers = append(servers, &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(a.metrics.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 10 * time.Second,
		})
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			slog.Info("listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping servers and running sessions")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		if err := a.close(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
