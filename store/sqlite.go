package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/aluiziolira/go-scrape-maps/models"
)

// SQLiteFile is the database file name inside the data directory.
const SQLiteFile = "mapscraper.db"

// SQLiteOptions configures the SQLite store.
type SQLiteOptions struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool
	// EnableWAL turns on write-ahead logging.
	EnableWAL bool
}

// DefaultSQLiteOptions creates the database on demand with WAL enabled.
func DefaultSQLiteOptions() SQLiteOptions {
	return SQLiteOptions{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// SQLite stores sessions in a scraping_sessions table and their records in a
// businesses table. Categories and hours are stored as JSON text; coordinates
// as nullable REAL columns.
type SQLite struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLite opens or creates the database in dbDir.
func OpenSQLite(dbDir string, opts SQLiteOptions) (*SQLite, error) {
	dbPath := filepath.Join(dbDir, SQLiteFile)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}
	dsn += "&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLite{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.dbPath
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scraping_sessions (
		id TEXT PRIMARY KEY,
		keywords TEXT NOT NULL,
		location TEXT NOT NULL,
		max_results INTEGER NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		start_time TIMESTAMP,
		end_time TIMESTAMP,
		completed INTEGER DEFAULT 0,
		total_results INTEGER DEFAULT 0,
		record_count INTEGER DEFAULT 0,
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_created ON scraping_sessions(created_at);

	CREATE TABLE IF NOT EXISTS businesses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT,
		address TEXT,
		phone TEXT,
		website TEXT,
		rating REAL,
		reviews_count INTEGER,
		categories TEXT,
		hours TEXT,
		latitude REAL,
		longitude REAL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (session_id) REFERENCES scraping_sessions (id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_businesses_session ON businesses(session_id, position);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

func (s *SQLite) SaveSession(ctx context.Context, sess models.SessionSummary) error {
	query := `
	INSERT INTO scraping_sessions
		(id, keywords, location, max_results, status, created_at, start_time, end_time,
		 completed, total_results, record_count, error_message)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		status = excluded.status,
		start_time = excluded.start_time,
		end_time = excluded.end_time,
		completed = excluded.completed,
		total_results = excluded.total_results,
		record_count = excluded.record_count,
		error_message = excluded.error_message
	`
	_, err := s.db.ExecContext(ctx, query,
		sess.SessionID, sess.Keywords, sess.Location, sess.MaxResults, string(sess.Status),
		sess.CreatedAt.UTC(), nullTime(sess.StartTime), nullTime(sess.EndTime),
		sess.Completed, sess.Total, sess.Records, nullString(sess.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.SessionID, err)
	}
	return nil
}

func (s *SQLite) SaveRecords(ctx context.Context, sessionID string, records []models.BusinessRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM scraping_sessions WHERE id = ?", sessionID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM businesses WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO businesses
		(session_id, position, name, address, phone, website, rating, reviews_count,
		 categories, hours, latitude, longitude)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		categories, err := json.Marshal(nonNilSlice(r.Categories))
		if err != nil {
			return fmt.Errorf("failed to serialize categories: %w", err)
		}
		hours, err := json.Marshal(nonNilMap(r.Hours))
		if err != nil {
			return fmt.Errorf("failed to serialize hours: %w", err)
		}
		var lat, lng sql.NullFloat64
		if r.Coordinates != nil {
			lat = sql.NullFloat64{Float64: r.Coordinates.Latitude, Valid: true}
			lng = sql.NullFloat64{Float64: r.Coordinates.Longitude, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, sessionID, i, r.Name, r.Address, r.Phone, r.Website,
			r.Rating, r.ReviewCount, string(categories), string(hours), lat, lng); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

func (s *SQLite) GetSession(ctx context.Context, sessionID string) (models.SessionSummary, error) {
	row := s.db.QueryRowContext(ctx, sessionColumns+" WHERE id = ?", sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SessionSummary{}, ErrNotFound
	}
	if err != nil {
		return models.SessionSummary{}, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return sess, nil
}

func (s *SQLite) GetRecords(ctx context.Context, sessionID string) ([]models.BusinessRecord, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT name, address, phone, website, rating, reviews_count, categories, hours, latitude, longitude
	FROM businesses WHERE session_id = ? ORDER BY position
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []models.BusinessRecord{}
	for rows.Next() {
		var (
			r                   models.BusinessRecord
			name, address       sql.NullString
			phone, website      sql.NullString
			rating              sql.NullFloat64
			reviews             sql.NullInt64
			categories, hours   sql.NullString
			latitude, longitude sql.NullFloat64
		)
		if err := rows.Scan(&name, &address, &phone, &website, &rating, &reviews,
			&categories, &hours, &latitude, &longitude); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Name, r.Address, r.Phone, r.Website = name.String, address.String, phone.String, website.String
		r.Rating = rating.Float64
		r.ReviewCount = int(reviews.Int64)
		r.Categories = []string{}
		if categories.Valid && categories.String != "" {
			if err := json.Unmarshal([]byte(categories.String), &r.Categories); err != nil {
				return nil, fmt.Errorf("failed to parse categories: %w", err)
			}
		}
		r.Hours = map[string]string{}
		if hours.Valid && hours.String != "" {
			if err := json.Unmarshal([]byte(hours.String), &r.Hours); err != nil {
				return nil, fmt.Errorf("failed to parse hours: %w", err)
			}
		}
		if latitude.Valid && longitude.Valid {
			r.Coordinates = &models.Coordinates{Latitude: latitude.Float64, Longitude: longitude.Float64}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

func (s *SQLite) ListSessions(ctx context.Context) ([]models.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, sessionColumns+" ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []models.SessionSummary
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return out, nil
}

func (s *SQLite) DeleteSession(ctx context.Context, sessionID string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM businesses WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete records of %s: %w", sessionID, err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM scraping_sessions WHERE id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

const sessionColumns = `
	SELECT id, keywords, location, max_results, status, created_at, start_time, end_time,
		completed, total_results, record_count, error_message
	FROM scraping_sessions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (models.SessionSummary, error) {
	var (
		sess        models.SessionSummary
		status      string
		start, end  sql.NullTime
		errorString sql.NullString
	)
	if err := row.Scan(&sess.SessionID, &sess.Keywords, &sess.Location, &sess.MaxResults, &status,
		&sess.CreatedAt, &start, &end, &sess.Completed, &sess.Total, &sess.Records, &errorString); err != nil {
		return models.SessionSummary{}, err
	}
	sess.Status = models.Status(status)
	sess.Error = errorString.String
	if start.Valid {
		t := start.Time
		sess.StartTime = &t
	}
	if end.Valid {
		t := end.Time
		sess.EndTime = &t
	}
	return sess, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
