package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for unknown session ids.
	ErrNotFound = errors.New("session not found")
	// ErrNotReady is returned when results are requested before a session completed.
	ErrNotReady = errors.New("scraping not completed yet")
	// ErrAlreadyStarted is returned when running a session that is not idle.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrRunning is returned when deleting a session that is still running.
	ErrRunning = errors.New("session is running")
	// ErrClosed is returned by a manager after Close.
	ErrClosed = errors.New("session manager closed")
)

// ValidationError reports a rejected create request. Nothing is stored when
// it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
