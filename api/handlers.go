package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aluiziolira/go-scrape-maps/exporter"
	"github.com/aluiziolira/go-scrape-maps/models"
	"github.com/aluiziolira/go-scrape-maps/session"
)

// StartRequest is the body of POST /start_scraping.
type StartRequest struct {
	Keywords   string `json:"keywords"`
	Location   string `json:"location"`
	MaxResults int    `json:"max_results"`
}

// StartResponse acknowledges a started session.
type StartResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// ResultsResponse is the body of GET /results/{id}.
type ResultsResponse struct {
	SessionID    string                  `json:"session_id"`
	Keywords     string                  `json:"keywords"`
	Location     string                  `json:"location"`
	TotalResults int                     `json:"total_results"`
	Results      []models.BusinessRecord `json:"results"`
}

// SessionsResponse is the body of GET /sessions.
type SessionsResponse struct {
	Sessions []models.SessionSummary `json:"sessions"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		s.writeError(w, http.StatusTooManyRequests, errors.New("too many scraping sessions started, retry later"))
		return
	}

	var req StartRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	id, err := s.manager.Start(r.Context(), req.Keywords, req.Location, req.MaxResults)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, StartResponse{SessionID: id, Status: "started"})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.manager.Progress(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	summary, records, err := s.completed(r, id)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ResultsResponse{
		SessionID:    id,
		Keywords:     summary.Keywords,
		Location:     summary.Location,
		TotalResults: len(records),
		Results:      records,
	})
}

func (s *Server) handleDownloadCSV(w http.ResponseWriter, r *http.Request) {
	summary, records, err := s.completed(r, r.PathValue("id"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	path, err := s.exporter.ExportCSV(records, summary.Keywords, summary.Location)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.serveExport(w, r, path, exporter.DownloadName(summary.Keywords, summary.Location, "csv"), "text/csv")
}

func (s *Server) handleDownloadJSON(w http.ResponseWriter, r *http.Request) {
	summary, records, err := s.completed(r, r.PathValue("id"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	path, err := s.exporter.ExportJSON(records, exporter.MetadataFor(summary, len(records)))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.serveExport(w, r, path, exporter.DownloadName(summary.Keywords, summary.Location, "json"), "application/json")
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.manager.List(r.Context())
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	if sessions == nil {
		sessions = []models.SessionSummary{}
	}
	s.writeJSON(w, http.StatusOK, SessionsResponse{Sessions: sessions})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.manager.Delete(r.Context(), id); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, StartResponse{SessionID: id, Status: "deleted"})
}

// completed loads the summary and records of a session that finished successfully.
func (s *Server) completed(r *http.Request, id string) (models.SessionSummary, []models.BusinessRecord, error) {
	records, err := s.manager.Results(r.Context(), id)
	if err != nil {
		return models.SessionSummary{}, nil, err
	}
	summary, err := s.manager.Summary(r.Context(), id)
	if err != nil {
		return models.SessionSummary{}, nil, err
	}
	return summary, records, nil
}

// serveExport uploads the export when an uploader is configured, streams it
// to the client and then removes the local file.
func (s *Server) serveExport(w http.ResponseWriter, r *http.Request, path, name, contentType string) {
	defer func() {
		if err := os.Remove(path); err != nil {
			s.logger.Warn("remove served export", slog.String("file", path), slog.Any("error", err))
		}
	}()

	if s.uploader != nil {
		if key, err := s.uploader.Upload(r.Context(), path); err != nil {
			s.logger.Warn("export upload failed", slog.String("file", path), slog.Any("error", err))
		} else {
			s.logger.Info("export uploaded", slog.String("key", key))
		}
	}

	f, err := os.Open(path)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	var validation session.ValidationError
	switch {
	case errors.As(err, &validation):
		s.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, session.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, session.ErrNotReady), errors.Is(err, exporter.ErrNoRecords):
		s.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, session.ErrRunning), errors.Is(err, session.ErrAlreadyStarted):
		s.writeError(w, http.StatusConflict, err)
	case errors.Is(err, session.ErrClosed):
		s.writeError(w, http.StatusServiceUnavailable, err)
	default:
		s.logger.Error("request failed", slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Detail: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", slog.Any("error", err))
	}
}
