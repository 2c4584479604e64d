// Package exporter writes the records of a completed session to CSV and
// JSON files and optionally copies them to object storage.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aluiziolira/go-scrape-maps/models"
	"github.com/aluiziolira/go-scrape-maps/parser"
)

// ErrNoRecords is returned when there is nothing to export.
var ErrNoRecords = errors.New("no results to download")

// Metadata heads the JSON export.
type Metadata struct {
	SessionID    string     `json:"session_id,omitempty"`
	Keywords     string     `json:"keywords"`
	Location     string     `json:"location"`
	TotalResults int        `json:"total_results"`
	ScrapedAt    *time.Time `json:"scraped_at"`
}

// MetadataFor builds the metadata of a session's export.
func MetadataFor(s models.SessionSummary, records int) Metadata {
	return Metadata{
		SessionID:    s.SessionID,
		Keywords:     s.Keywords,
		Location:     s.Location,
		TotalResults: records,
		ScrapedAt:    s.EndTime,
	}
}

// Exporter writes export files under Dir.
type Exporter struct {
	Dir string
	// Now stamps CSV file names; defaults to time.Now.
	Now func() time.Time
}

// New returns an exporter writing into dir.
func New(dir string) *Exporter {
	return &Exporter{Dir: dir, Now: time.Now}
}

// ExportCSV writes records to a new CSV file and returns its path. Every
// call gets its own file, even for identical searches in the same second.
func (e *Exporter) ExportCSV(records []models.BusinessRecord, keywords, location string) (string, error) {
	if len(records) == 0 {
		return "", ErrNoRecords
	}
	path, err := e.reserve(e.csvPrefix(keywords, location), ".csv")
	if err != nil {
		return "", err
	}
	if err := writeAll(records, func() (recordWriter, error) { return NewCSVWriter(path) }); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// ExportJSON writes records with meta to a new JSON file named after the
// session and returns its path.
func (e *Exporter) ExportJSON(records []models.BusinessRecord, meta Metadata) (string, error) {
	if len(records) == 0 {
		return "", ErrNoRecords
	}
	path, err := e.reserve(jsonPrefix(meta), ".json")
	if err != nil {
		return "", err
	}
	if err := writeAll(records, func() (recordWriter, error) { return NewJSONWriter(path, meta) }); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// ExportBoth writes the CSV and JSON files concurrently.
func (e *Exporter) ExportBoth(ctx context.Context, records []models.BusinessRecord, meta Metadata) (csvPath, jsonPath string, err error) {
	if len(records) == 0 {
		return "", "", ErrNoRecords
	}
	if csvPath, err = e.reserve(e.csvPrefix(meta.Keywords, meta.Location), ".csv"); err != nil {
		return "", "", err
	}
	if jsonPath, err = e.reserve(jsonPrefix(meta), ".json"); err != nil {
		os.Remove(csvPath)
		return "", "", err
	}
	defer func() {
		if err != nil {
			os.Remove(csvPath)
			os.Remove(jsonPath)
			csvPath, jsonPath = "", ""
		}
	}()

	dw, err := NewDualWriter(csvPath, jsonPath, meta)
	if err != nil {
		return csvPath, jsonPath, err
	}
	if err = dw.Write(ctx, records); err != nil {
		dw.Close()
		return csvPath, jsonPath, err
	}
	if err = dw.Validate(); err != nil {
		dw.Close()
		return csvPath, jsonPath, err
	}
	err = dw.Close()
	return csvPath, jsonPath, err
}

// DownloadName is the file name offered to clients for an export.
func DownloadName(keywords, location, ext string) string {
	return parser.CleanFilename(fmt.Sprintf("google_maps_data_%s_%s.%s", keywords, location, ext))
}

func (e *Exporter) csvPrefix(keywords, location string) string {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	return fmt.Sprintf("google_maps_data_%s_%s_%s", keywords, location, now().Format("20060102_150405"))
}

func jsonPrefix(meta Metadata) string {
	id := meta.SessionID
	if id == "" {
		id = meta.Keywords + "_" + meta.Location
	}
	return "google_maps_data_" + id
}

// reserve creates an empty, uniquely named file in Dir and returns its path.
func (e *Exporter) reserve(prefix, ext string) (string, error) {
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	f, err := os.CreateTemp(e.Dir, parser.CleanFilename(prefix)+"_*"+ext)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

type recordWriter interface {
	Write(records []models.BusinessRecord) error
	Close() error
	Validate() error
}

func writeAll(records []models.BusinessRecord, open func() (recordWriter, error)) error {
	w, err := open()
	if err != nil {
		return err
	}
	if err := w.Write(records); err != nil {
		w.Close()
		return err
	}
	if err := w.Validate(); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
