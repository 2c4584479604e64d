package store

import (
	"context"
	"slices"
	"sync"

	"github.com/aluiziolira/go-scrape-maps/models"
)

// Memory keeps sessions in process memory. Safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]models.SessionSummary
	records  map[string][]models.BusinessRecord
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]models.SessionSummary),
		records:  make(map[string][]models.BusinessRecord),
	}
}

func (m *Memory) SaveSession(ctx context.Context, s models.SessionSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s
	return nil
}

func (m *Memory) SaveRecords(ctx context.Context, sessionID string, records []models.BusinessRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	m.records[sessionID] = slices.Clone(records)
	return nil
}

func (m *Memory) GetSession(ctx context.Context, sessionID string) (models.SessionSummary, error) {
	if err := ctx.Err(); err != nil {
		return models.SessionSummary{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return models.SessionSummary{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) GetRecords(ctx context.Context, sessionID string) ([]models.BusinessRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(m.records[sessionID]), nil
}

func (m *Memory) ListSessions(ctx context.Context) ([]models.SessionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]models.SessionSummary, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) DeleteSession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, sessionID)
	delete(m.records, sessionID)
	return nil
}

func (m *Memory) Close() error { return nil }
