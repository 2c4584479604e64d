package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(t.TempDir(), DefaultSQLiteOptions())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)
}

func TestOpenSQLite(t *testing.T) {
	t.Run("creates database in new directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "data")
		s, err := OpenSQLite(dir, DefaultSQLiteOptions())
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		defer s.Close()

		if _, err := os.Stat(filepath.Join(dir, SQLiteFile)); err != nil {
			t.Fatalf("database file not created: %v", err)
		}
	})

	t.Run("missing database without create", func(t *testing.T) {
		opts := DefaultSQLiteOptions()
		opts.CreateIfNotExists = false
		if _, err := OpenSQLite(t.TempDir(), opts); err == nil {
			t.Fatalf("expected error for missing database")
		}
	})

	t.Run("reopen keeps data", func(t *testing.T) {
		dir := t.TempDir()
		ctx := context.Background()

		s, err := OpenSQLite(dir, DefaultSQLiteOptions())
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if err := s.SaveSession(ctx, sampleSession("kept", time.Unix(1700000000, 0).UTC())); err != nil {
			t.Fatalf("save: %v", err)
		}
		if err := s.SaveRecords(ctx, "kept", sampleRecords()); err != nil {
			t.Fatalf("save records: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}

		opts := DefaultSQLiteOptions()
		opts.CreateIfNotExists = false
		s, err = OpenSQLite(dir, opts)
		if err != nil {
			t.Fatalf("reopen: %v", err)
		}
		defer s.Close()

		records, err := s.GetRecords(ctx, "kept")
		if err != nil {
			t.Fatalf("get records: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("records = %d, want 3", len(records))
		}
	})
}
