package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aluiziolira/go-scrape-maps/models"
	"github.com/aluiziolira/go-scrape-maps/scraper"
	"github.com/aluiziolira/go-scrape-maps/store"
)

// MaxResultsLimit is the largest accepted result cap.
const MaxResultsLimit = 500

const persistTimeout = 10 * time.Second

// Runner executes one extraction. *scraper.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, q scraper.Query, sink scraper.Sink) (scraper.Result, error)
}

// Options configures a Manager. Zero values get defaults.
type Options struct {
	Store   store.Store
	Clock   scraper.Clock
	Metrics *scraper.Metrics
	Logger  *slog.Logger
	NewID   func() string
}

// Manager is the registry of sessions of this process. Sessions created
// elsewhere, or by earlier processes, are served read-only from the store.
type Manager struct {
	runner  Runner
	store   store.Store
	clock   scraper.Clock
	metrics *scraper.Metrics
	logger  *slog.Logger
	newID   func() string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewManager builds a manager that runs sessions with runner.
func NewManager(runner Runner, opts Options) *Manager {
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	if opts.Clock == nil {
		opts.Clock = scraper.SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		runner:   runner,
		store:    opts.Store,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		newID:    opts.NewID,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Create validates the request and registers an idle session.
func (m *Manager) Create(ctx context.Context, keywords, location string, maxResults int) (string, error) {
	keywords = strings.TrimSpace(keywords)
	location = strings.TrimSpace(location)
	switch {
	case keywords == "":
		return "", ValidationError{Field: "keywords", Reason: "must not be empty"}
	case location == "":
		return "", ValidationError{Field: "location", Reason: "must not be empty"}
	case maxResults < 1 || maxResults > MaxResultsLimit:
		return "", ValidationError{Field: "max_results", Reason: fmt.Sprintf("must be between 1 and %d", MaxResultsLimit)}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrClosed
	}
	s := newSession(m.newID(), keywords, location, maxResults, m.clock.Now())
	m.sessions[s.ID] = s
	m.mu.Unlock()

	if err := m.store.SaveSession(ctx, s.Summary()); err != nil {
		m.mu.Lock()
		delete(m.sessions, s.ID)
		m.mu.Unlock()
		return "", fmt.Errorf("persist session: %w", err)
	}

	m.logger.Info("session created",
		slog.String("session_id", s.ID),
		slog.String("keywords", keywords),
		slog.String("location", location),
		slog.Int("max_results", maxResults),
	)
	return s.ID, nil
}

// RunAsync starts the extraction of an idle session in its own goroutine and
// returns immediately.
func (m *Manager) RunAsync(id string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if err := s.begin(m.clock.Now()); err != nil {
		m.mu.Unlock()
		return err
	}
	m.wg.Add(1)
	m.mu.Unlock()

	m.persist(s)
	m.metrics.SessionStarted()
	go m.run(s)
	return nil
}

// Start creates a session and runs it.
func (m *Manager) Start(ctx context.Context, keywords, location string, maxResults int) (string, error) {
	id, err := m.Create(ctx, keywords, location, maxResults)
	if err != nil {
		return "", err
	}
	if err := m.RunAsync(id); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Manager) run(s *Session) {
	defer m.wg.Done()
	defer close(s.done)

	logger := m.logger.With(slog.String("session_id", s.ID))
	logger.Info("session started")

	res, err := m.execute(s)
	// Records go to the store before the terminal status so that a stored
	// completed session always has its records.
	if perr := m.persistRecords(s); perr != nil && err == nil {
		err = fmt.Errorf("persist records: %w", perr)
	}
	status := s.finish(m.clock.Now(), res.Faults, err)

	m.persist(s)
	m.metrics.SessionFinished(string(status))

	p := s.Progress()
	if err != nil {
		logger.Error("session failed", slog.Int("records", p.Records), slog.Any("error", err))
		return
	}
	logger.Info("session completed",
		slog.Int("records", p.Records),
		slog.Int("listing_faults", res.Faults.Listing),
		slog.Int("field_faults", res.Faults.Field),
	)
}

func (m *Manager) execute(s *Session) (res scraper.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("extraction aborted: %v", p)
		}
	}()
	q := scraper.Query{Keywords: s.Keywords, Location: s.Location, Limit: s.MaxResults}
	return m.runner.Run(m.ctx, q, s)
}

// Wait blocks until the session reached a terminal status or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (models.Progress, error) {
	s, ok := m.lookup(id)
	if !ok {
		return models.Progress{}, ErrNotFound
	}
	if s.Status() == models.StatusIdle {
		return s.Progress(), ErrNotReady
	}
	select {
	case <-s.Done():
		return s.Progress(), nil
	case <-ctx.Done():
		return s.Progress(), ctx.Err()
	}
}

// Progress returns a snapshot of a session.
func (m *Manager) Progress(ctx context.Context, id string) (models.Progress, error) {
	if s, ok := m.lookup(id); ok {
		return s.Progress(), nil
	}
	summary, err := m.stored(ctx, id)
	if err != nil {
		return models.Progress{}, err
	}
	return models.Progress{
		SessionID:  summary.SessionID,
		Status:     summary.Status,
		Completed:  summary.Completed,
		Total:      summary.Total,
		Percentage: models.Percent(summary.Completed, summary.Total),
		Records:    summary.Records,
		Error:      summary.Error,
		StartTime:  summary.StartTime,
		EndTime:    summary.EndTime,
	}, nil
}

// Summary returns the listing view of a session.
func (m *Manager) Summary(ctx context.Context, id string) (models.SessionSummary, error) {
	if s, ok := m.lookup(id); ok {
		return s.Summary(), nil
	}
	return m.stored(ctx, id)
}

// Faults returns the faults absorbed by a finished session of this process.
// Fault counts are not persisted.
func (m *Manager) Faults(id string) (scraper.FaultCounts, error) {
	s, ok := m.lookup(id)
	if !ok {
		return scraper.FaultCounts{}, ErrNotFound
	}
	if !s.Status().Terminal() {
		return scraper.FaultCounts{}, ErrNotReady
	}
	return s.Faults(), nil
}

// Results returns the records of a completed session. Records retained by a
// session that ended in error are not returned.
func (m *Manager) Results(ctx context.Context, id string) ([]models.BusinessRecord, error) {
	if s, ok := m.lookup(id); ok {
		if s.Status() != models.StatusCompleted {
			return nil, ErrNotReady
		}
		return s.Records(), nil
	}
	summary, err := m.stored(ctx, id)
	if err != nil {
		return nil, err
	}
	if summary.Status != models.StatusCompleted {
		return nil, ErrNotReady
	}
	records, err := m.store.GetRecords(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return records, err
}

// List returns every known session, newest first. Sessions of this process
// take precedence over their stored rows.
func (m *Manager) List(ctx context.Context) ([]models.SessionSummary, error) {
	stored, err := m.store.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stored sessions: %w", err)
	}

	m.mu.RLock()
	live := make(map[string]*Session, len(m.sessions))
	for id, s := range m.sessions {
		live[id] = s
	}
	m.mu.RUnlock()

	out := make([]models.SessionSummary, 0, len(stored)+len(live))
	for _, summary := range stored {
		if s, ok := live[summary.SessionID]; ok {
			out = append(out, s.Summary())
			delete(live, summary.SessionID)
			continue
		}
		out = append(out, summary)
	}
	for _, s := range live {
		out = append(out, s.Summary())
	}
	sortNewestFirst(out)
	return out, nil
}

// Delete removes a session that is not running, from the registry and the
// store.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, live := m.sessions[id]
	if live {
		if s.Status() == models.StatusRunning {
			m.mu.Unlock()
			return ErrRunning
		}
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	err := m.store.DeleteSession(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound) && live:
		err = nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("delete session: %w", err)
	}
	m.logger.Info("session deleted", slog.String("session_id", id))
	return nil
}

// Close cancels running sessions, waits for them to record their terminal
// state, then closes the store.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for sessions: %w", ctx.Err())
	}
	return m.store.Close()
}

func (m *Manager) lookup(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) stored(ctx context.Context, id string) (models.SessionSummary, error) {
	summary, err := m.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.SessionSummary{}, ErrNotFound
	}
	if err != nil {
		return models.SessionSummary{}, fmt.Errorf("load session: %w", err)
	}
	return summary, nil
}

func (m *Manager) persistContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(m.ctx), persistTimeout)
}

func (m *Manager) persist(s *Session) {
	ctx, cancel := m.persistContext()
	defer cancel()
	if err := m.store.SaveSession(ctx, s.Summary()); err != nil {
		m.logger.Warn("persist session", slog.String("session_id", s.ID), slog.Any("error", err))
	}
}

func (m *Manager) persistRecords(s *Session) error {
	ctx, cancel := m.persistContext()
	defer cancel()
	if err := m.store.SaveRecords(ctx, s.ID, s.Records()); err != nil {
		m.logger.Warn("persist records", slog.String("session_id", s.ID), slog.Any("error", err))
		return err
	}
	return nil
}

func sortNewestFirst(sessions []models.SessionSummary) {
	slices.SortStableFunc(sessions, func(a, b models.SessionSummary) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
