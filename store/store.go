// Package store persists scrape sessions and their records.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aluiziolira/go-scrape-maps/models"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("store: session not found")

// Store is the persistence boundary of the session manager. SaveSession is an
// upsert; SaveRecords replaces the records of an existing session.
type Store interface {
	SaveSession(ctx context.Context, s models.SessionSummary) error
	SaveRecords(ctx context.Context, sessionID string, records []models.BusinessRecord) error
	GetSession(ctx context.Context, sessionID string) (models.SessionSummary, error)
	GetRecords(ctx context.Context, sessionID string) ([]models.BusinessRecord, error)
	// ListSessions returns every session, newest first.
	ListSessions(ctx context.Context) ([]models.SessionSummary, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	DBDir       string
	DynamoTable string
	// CacheSize enables an LRU record cache in front of the backend when positive.
	CacheSize int
}

// Open builds the store named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Backend {
	case "", BackendMemory:
		s = NewMemory()
	case BackendSQLite:
		s, err = OpenSQLite(opts.DBDir, DefaultSQLiteOptions())
	case BackendDynamoDB:
		s, err = OpenDynamo(ctx, opts.DynamoTable)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	if opts.CacheSize > 0 {
		return NewCached(s, opts.CacheSize)
	}
	return s, nil
}

func sortNewestFirst(sessions []models.SessionSummary) {
	slices.SortStableFunc(sessions, func(a, b models.SessionSummary) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
