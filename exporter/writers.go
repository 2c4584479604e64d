package exporter

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/aluiziolira/go-scrape-maps/models"
)

// csvHeader lists the CSV columns in order.
var csvHeader = []string{"name", "address", "phone", "website", "rating", "reviews_count", "categories", "hours", "latitude", "longitude"}

// utf8BOM prefixes CSV files so spreadsheet tools detect the encoding.
const utf8BOM = "\ufeff"

// CSVWriter writes business records to CSV.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}
	if _, err := f.WriteString(utf8BOM); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv bom: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// Write appends records to the CSV output.
func (cw *CSVWriter) Write(records []models.BusinessRecord) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, r := range records {
		row, err := csvRow(r)
		if err != nil {
			return err
		}
		if err := cw.writer.Write(row); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content.
func (cw *CSVWriter) Validate() error {
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// Name returns the output path.
func (cw *CSVWriter) Name() string {
	return cw.file.Name()
}

func csvRow(r models.BusinessRecord) ([]string, error) {
	hours := r.Hours
	if hours == nil {
		hours = map[string]string{}
	}
	hoursJSON, err := json.Marshal(hours)
	if err != nil {
		return nil, fmt.Errorf("encode hours: %w", err)
	}

	var lat, lng string
	if r.Coordinates != nil {
		lat = strconv.FormatFloat(r.Coordinates.Latitude, 'f', -1, 64)
		lng = strconv.FormatFloat(r.Coordinates.Longitude, 'f', -1, 64)
	}

	return []string{
		r.Name,
		r.Address,
		r.Phone,
		r.Website,
		strconv.FormatFloat(r.Rating, 'f', -1, 64),
		strconv.Itoa(r.ReviewCount),
		strings.Join(r.Categories, ", "),
		string(hoursJSON),
		lat,
		lng,
	}, nil
}

// JSONWriter streams an indented {"metadata": ..., "results": [...]}
// document. The document is completed by Close.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	written int
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer and writes the metadata.
func NewJSONWriter(filename string, meta Metadata) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	metaJSON, err := json.MarshalIndent(meta, "  ", "  ")
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	buffer := bufio.NewWriter(f)
	fmt.Fprintf(buffer, "{\n  \"metadata\": %s,\n  \"results\": [", metaJSON)
	return &JSONWriter{
		file:   f,
		writer: buffer,
	}, nil
}

// Write appends records to the results array.
func (jw *JSONWriter) Write(records []models.BusinessRecord) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, r := range records {
		data, err := json.MarshalIndent(normalize(r), "    ", "  ")
		if err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
		if jw.written > 0 {
			jw.writer.WriteString(",")
		}
		jw.writer.WriteString("\n    ")
		jw.writer.Write(data)
		jw.written++
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close terminates the document, flushes buffers and closes the file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.written > 0 {
		jw.writer.WriteString("\n  ")
	}
	jw.writer.WriteString("]\n}\n")
	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

// Name returns the output path.
func (jw *JSONWriter) Name() string {
	return jw.file.Name()
}

// normalize renders absent categories and hours as empty collections.
func normalize(r models.BusinessRecord) models.BusinessRecord {
	if r.Categories == nil {
		r.Categories = []string{}
	}
	if r.Hours == nil {
		r.Hours = map[string]string{}
	}
	return r
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
