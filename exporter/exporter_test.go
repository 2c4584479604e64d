package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aluiziolira/go-scrape-maps/models"
)

func sampleRecords() []models.BusinessRecord {
	return []models.BusinessRecord{
		{
			Name:        "Cafe One",
			Address:     "Rua Augusta 1, Lisboa",
			Phone:       "+351 21 000 0000",
			Website:     "https://cafe-one.test/",
			Rating:      4.6,
			ReviewCount: 2041,
			Categories:  []string{"Cafe", "Breakfast restaurant"},
			Hours:       map[string]string{"Monday": "8 AM–6 PM"},
			Coordinates: &models.Coordinates{Latitude: 38.7223, Longitude: -9.1393},
		},
		{},
	}
}

func fixedExporter(t *testing.T) *Exporter {
	t.Helper()
	return &Exporter{
		Dir: t.TempDir(),
		Now: func() time.Time { return time.Date(2025, 11, 4, 13, 9, 13, 0, time.UTC) },
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !bytes.HasPrefix(data, []byte(utf8BOM)) {
		t.Fatalf("csv missing byte order mark")
	}
	rows, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte(utf8BOM)))).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return rows
}

func TestExportCSV(t *testing.T) {
	e := fixedExporter(t)

	path, err := e.ExportCSV(sampleRecords(), "cafes", "Lisbon/Centro")
	if err != nil {
		t.Fatalf("export csv: %v", err)
	}
	if got := filepath.Base(path); !strings.HasPrefix(got, "google_maps_data_cafes_Lisbon_Centro_20251104_130913_") || !strings.HasSuffix(got, ".csv") {
		t.Fatalf("file name = %q", got)
	}

	rows := readCSV(t, path)
	if len(rows) != 3 {
		t.Fatalf("rows=%d, want 3", len(rows))
	}
	if strings.Join(rows[0], ",") != "name,address,phone,website,rating,reviews_count,categories,hours,latitude,longitude" {
		t.Fatalf("unexpected header: %v", rows[0])
	}

	first := rows[1]
	if first[4] != "4.6" || first[5] != "2041" {
		t.Fatalf("rating/reviews = %q/%q", first[4], first[5])
	}
	if first[6] != "Cafe, Breakfast restaurant" {
		t.Fatalf("categories = %q", first[6])
	}
	var hours map[string]string
	if err := json.Unmarshal([]byte(first[7]), &hours); err != nil || hours["Monday"] != "8 AM–6 PM" {
		t.Fatalf("hours = %q (%v)", first[7], err)
	}
	if first[8] != "38.7223" || first[9] != "-9.1393" {
		t.Fatalf("coordinates = %q,%q", first[8], first[9])
	}

	empty := rows[2]
	if empty[0] != "" || empty[7] != "{}" || empty[8] != "" || empty[9] != "" {
		t.Fatalf("empty record row = %v", empty)
	}
}

func TestExportJSON(t *testing.T) {
	e := fixedExporter(t)
	end := time.Date(2025, 11, 4, 13, 0, 0, 0, time.UTC)
	meta := MetadataFor(models.SessionSummary{SessionID: "abc", Keywords: "cafes", Location: "Lisbon", EndTime: &end}, 2)

	path, err := e.ExportJSON(sampleRecords(), meta)
	if err != nil {
		t.Fatalf("export json: %v", err)
	}
	if got := filepath.Base(path); !strings.HasPrefix(got, "google_maps_data_abc_") || !strings.HasSuffix(got, ".json") {
		t.Fatalf("file name = %q", got)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var doc struct {
		Metadata Metadata                `json:"metadata"`
		Results  []models.BusinessRecord `json:"results"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("invalid json document: %v\n%s", err, data)
	}
	if doc.Metadata.TotalResults != 2 || doc.Metadata.Keywords != "cafes" {
		t.Fatalf("metadata = %+v", doc.Metadata)
	}
	if doc.Metadata.ScrapedAt == nil || !doc.Metadata.ScrapedAt.Equal(end) {
		t.Fatalf("scraped_at = %v", doc.Metadata.ScrapedAt)
	}
	if len(doc.Results) != 2 || doc.Results[0].Name != "Cafe One" {
		t.Fatalf("results = %+v", doc.Results)
	}
	if doc.Results[1].Categories == nil || doc.Results[1].Hours == nil {
		t.Fatalf("empty record should carry empty collections: %+v", doc.Results[1])
	}
}

func TestJSONWriterWithoutRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "empty.json")
	w, err := NewJSONWriter(path, Metadata{Keywords: "k", Location: "l"})
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !json.Valid(data) {
		t.Fatalf("invalid json: %s", data)
	}
}

func TestExportRejectsEmptyRecordSet(t *testing.T) {
	e := fixedExporter(t)
	if _, err := e.ExportCSV(nil, "cafes", "Lisbon"); !errors.Is(err, ErrNoRecords) {
		t.Fatalf("csv err = %v, want ErrNoRecords", err)
	}
	if _, err := e.ExportJSON([]models.BusinessRecord{}, Metadata{}); !errors.Is(err, ErrNoRecords) {
		t.Fatalf("json err = %v, want ErrNoRecords", err)
	}
	if _, _, err := e.ExportBoth(context.Background(), nil, Metadata{}); !errors.Is(err, ErrNoRecords) {
		t.Fatalf("both err = %v, want ErrNoRecords", err)
	}
}

func TestExportBoth(t *testing.T) {
	e := fixedExporter(t)
	csvPath, jsonPath, err := e.ExportBoth(context.Background(), sampleRecords(), Metadata{SessionID: "s1", Keywords: "cafes", Location: "Lisbon", TotalResults: 2})
	if err != nil {
		t.Fatalf("export both: %v", err)
	}
	if rows := readCSV(t, csvPath); len(rows) != 3 {
		t.Fatalf("csv rows = %d, want 3", len(rows))
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil || !json.Valid(data) {
		t.Fatalf("json file invalid: %v", err)
	}
}

func TestExportsOfIdenticalSearchesDoNotCollide(t *testing.T) {
	e := fixedExporter(t)

	first, err := e.ExportCSV([]models.BusinessRecord{{Name: "First session cafe"}}, "cafes", "Lisbon")
	if err != nil {
		t.Fatalf("export first: %v", err)
	}
	second, err := e.ExportCSV([]models.BusinessRecord{{Name: "Second session cafe"}}, "cafes", "Lisbon")
	if err != nil {
		t.Fatalf("export second: %v", err)
	}
	if first == second {
		t.Fatalf("both exports written to %s", first)
	}
	if rows := readCSV(t, first); len(rows) != 2 || rows[1][0] != "First session cafe" {
		t.Fatalf("first export rows = %v", rows)
	}
	if rows := readCSV(t, second); len(rows) != 2 || rows[1][0] != "Second session cafe" {
		t.Fatalf("second export rows = %v", rows)
	}

	j1, err := e.ExportJSON(sampleRecords(), Metadata{SessionID: "abc"})
	if err != nil {
		t.Fatalf("export json: %v", err)
	}
	j2, err := e.ExportJSON(sampleRecords(), Metadata{SessionID: "abc"})
	if err != nil {
		t.Fatalf("export json again: %v", err)
	}
	if j1 == j2 {
		t.Fatalf("json exports share %s", j1)
	}
}

func TestDownloadName(t *testing.T) {
	if got := DownloadName("pizza", "New York, NY", "csv"); got != "google_maps_data_pizza_New York, NY.csv" {
		t.Fatalf("DownloadName = %q", got)
	}
	if got := DownloadName("a/b", "c:d", "json"); got != "google_maps_data_a_b_c_d.json" {
		t.Fatalf("DownloadName = %q", got)
	}
}

type fakeS3 struct {
	bucket, key, contentType string
	body                     []byte
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.bucket, f.key, f.contentType = *in.Bucket, *in.Key, *in.ContentType
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3Upload(t *testing.T) {
	e := fixedExporter(t)
	path, err := e.ExportCSV(sampleRecords(), "cafes", "Lisbon")
	if err != nil {
		t.Fatalf("export csv: %v", err)
	}

	client := &fakeS3{}
	key, err := NewS3UploaderWithClient(client, "exports", "mapscraper/2025").Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if key != "mapscraper/2025/"+filepath.Base(path) || client.key != key {
		t.Fatalf("key = %q (client %q)", key, client.key)
	}
	if client.bucket != "exports" || client.contentType != "text/csv" {
		t.Fatalf("bucket/content type = %q/%q", client.bucket, client.contentType)
	}
	if len(client.body) == 0 {
		t.Fatalf("uploaded body is empty")
	}
}
