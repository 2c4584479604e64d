// Package session owns scrape sessions: their lifecycle, their progress as
// observed by pollers, and their persistence.
package session

import (
	"slices"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-maps/models"
	"github.com/aluiziolira/go-scrape-maps/scraper"
)

// Session is one scrape request. Its run state has a single writer, the
// engine run it was started with, and any number of readers; every read
// takes a consistent snapshot under one lock.
type Session struct {
	ID         string
	Keywords   string
	Location   string
	MaxResults int
	CreatedAt  time.Time

	done chan struct{}

	mu        sync.RWMutex
	status    models.Status
	phase     models.Phase
	completed int
	total     int
	records   []models.BusinessRecord
	errMsg    string
	start     *time.Time
	end       *time.Time
	faults    scraper.FaultCounts
}

func newSession(id, keywords, location string, maxResults int, now time.Time) *Session {
	return &Session{
		ID:         id,
		Keywords:   keywords,
		Location:   location,
		MaxResults: maxResults,
		CreatedAt:  now,
		done:       make(chan struct{}),
		status:     models.StatusIdle,
		total:      maxResults,
	}
}

// begin moves an idle session to running.
func (s *Session) begin(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.StatusIdle {
		return ErrAlreadyStarted
	}
	s.status = models.StatusRunning
	s.start = &now
	return nil
}

// SetPhase records the running sub-state.
func (s *Session) SetPhase(phase models.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.StatusRunning {
		return
	}
	s.phase = phase
}

// Tick applies a progress update. completed never decreases; total may only
// shrink, and never below completed.
func (s *Session) Tick(completed, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.StatusRunning {
		return
	}
	s.completed = max(s.completed, completed)
	if total > 0 && total < s.total {
		s.total = total
	}
	s.total = max(s.total, s.completed)
}

// Append adds a record in listing order.
func (s *Session) Append(record models.BusinessRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.StatusRunning {
		return
	}
	s.records = append(s.records, record)
}

// finish moves a running session to its terminal status.
func (s *Session) finish(now time.Time, faults scraper.FaultCounts, runErr error) models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return s.status
	}
	s.faults = faults
	s.phase = models.PhaseNone
	s.end = &now
	if runErr != nil {
		s.status = models.StatusError
		s.errMsg = runErr.Error()
		if s.errMsg == "" {
			s.errMsg = "scraping failed"
		}
		return s.status
	}
	s.status = models.StatusCompleted
	return s.status
}

// Done is closed once the session reached a terminal status.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Progress returns a snapshot of the run state.
func (s *Session) Progress() models.Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.Progress{
		SessionID:  s.ID,
		Status:     s.status,
		Phase:      s.phase,
		Completed:  s.completed,
		Total:      s.total,
		Percentage: models.Percent(s.completed, s.total),
		Records:    len(s.records),
		Error:      s.errMsg,
		StartTime:  copyTime(s.start),
		EndTime:    copyTime(s.end),
	}
}

// Summary returns the persisted view of the session.
func (s *Session) Summary() models.SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.SessionSummary{
		SessionID:  s.ID,
		Keywords:   s.Keywords,
		Location:   s.Location,
		MaxResults: s.MaxResults,
		Status:     s.status,
		Completed:  s.completed,
		Total:      s.total,
		Records:    len(s.records),
		Error:      s.errMsg,
		CreatedAt:  s.CreatedAt,
		StartTime:  copyTime(s.start),
		EndTime:    copyTime(s.end),
	}
}

// Status returns the current status.
func (s *Session) Status() models.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Faults returns the faults absorbed by the finished run.
func (s *Session) Faults() scraper.FaultCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.faults
}

// Records returns a copy of the records appended so far.
func (s *Session) Records() []models.BusinessRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.records)
	if out == nil {
		out = []models.BusinessRecord{}
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
