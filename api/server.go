// Package api exposes scrape sessions over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/aluiziolira/go-scrape-maps/exporter"
	"github.com/aluiziolira/go-scrape-maps/scraper"
	"github.com/aluiziolira/go-scrape-maps/session"
)

// Uploader copies an export file somewhere durable and returns its key.
// *exporter.S3Uploader satisfies it.
type Uploader interface {
	Upload(ctx context.Context, filename string) (string, error)
}

// Options configures a Server.
type Options struct {
	Exporter *exporter.Exporter
	// Uploader is optional; downloads are served either way.
	Uploader Uploader
	Metrics  *scraper.Metrics
	// CreateRate limits session creation per second. Zero disables the limit.
	CreateRate  float64
	CreateBurst int
	Logger      *slog.Logger
}

// Server routes HTTP requests to a session manager.
type Server struct {
	manager  *session.Manager
	exporter *exporter.Exporter
	uploader Uploader
	metrics  *scraper.Metrics
	limiter  *rate.Limiter
	logger   *slog.Logger
	mux      *http.ServeMux
}

// NewServer builds the HTTP surface over manager.
func NewServer(manager *session.Manager, opts Options) *Server {
	if opts.Exporter == nil {
		opts.Exporter = exporter.New(".")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	limit := rate.Inf
	burst := opts.CreateBurst
	if opts.CreateRate > 0 {
		limit = rate.Limit(opts.CreateRate)
	}
	if burst <= 0 {
		burst = 1
	}

	s := &Server{
		manager:  manager,
		exporter: opts.Exporter,
		uploader: opts.Uploader,
		metrics:  opts.Metrics,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   opts.Logger,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /start_scraping", s.handleStart)
	s.mux.HandleFunc("GET /progress/{id}", s.handleProgress)
	s.mux.HandleFunc("GET /results/{id}", s.handleResults)
	s.mux.HandleFunc("GET /download_csv/{id}", s.handleDownloadCSV)
	s.mux.HandleFunc("GET /download_json/{id}", s.handleDownloadJSON)
	s.mux.HandleFunc("GET /sessions", s.handleList)
	s.mux.HandleFunc("DELETE /sessions/{id}", s.handleDelete)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.logger.Debug("http request",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", rec.status),
		slog.Duration("duration", time.Since(start)),
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
