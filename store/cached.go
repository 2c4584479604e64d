package store

import (
	"context"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-maps/models"
)

// Cached keeps the records of recently read sessions in an LRU in front of
// another store. Only records are cached; session rows change while a run is
// in progress and are always read through.
type Cached struct {
	Store
	records *lru.Cache[string, []models.BusinessRecord]
}

// NewCached wraps inner with a cache of up to size sessions' records.
func NewCached(inner Store, size int) (*Cached, error) {
	cache, err := lru.New[string, []models.BusinessRecord](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create record cache: %w", err)
	}
	return &Cached{Store: inner, records: cache}, nil
}

func (c *Cached) SaveRecords(ctx context.Context, sessionID string, records []models.BusinessRecord) error {
	c.records.Remove(sessionID)
	return c.Store.SaveRecords(ctx, sessionID, records)
}

func (c *Cached) GetRecords(ctx context.Context, sessionID string) ([]models.BusinessRecord, error) {
	if records, ok := c.records.Get(sessionID); ok {
		return slices.Clone(records), nil
	}
	records, err := c.Store.GetRecords(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.records.Add(sessionID, slices.Clone(records))
	return records, nil
}

func (c *Cached) DeleteSession(ctx context.Context, sessionID string) error {
	c.records.Remove(sessionID)
	return c.Store.DeleteSession(ctx, sessionID)
}

// IsCached reports whether the records of sessionID are currently cached.
func (c *Cached) IsCached(sessionID string) bool {
	return c.records.Contains(sessionID)
}
