// Package models defines data structures shared by the extractor packages.
package models

import "time"

// Coordinates is a latitude/longitude pair read from a listing URL.
type Coordinates struct {
	Latitude  float64 `json:"latitude" dynamodbav:"latitude"`
	Longitude float64 `json:"longitude" dynamodbav:"longitude"`
}

// BusinessRecord is the normalized output of one listing's detail panel.
// Every field is optional; the zero value is a valid (empty) record.
type BusinessRecord struct {
	Name        string            `json:"name" dynamodbav:"name"`
	Address     string            `json:"address" dynamodbav:"address"`
	Phone       string            `json:"phone" dynamodbav:"phone"`
	Website     string            `json:"website" dynamodbav:"website"`
	Rating      float64           `json:"rating" dynamodbav:"rating"`
	ReviewCount int               `json:"reviews_count" dynamodbav:"reviews_count"`
	Categories  []string          `json:"categories" dynamodbav:"categories"`
	Hours       map[string]string `json:"hours" dynamodbav:"hours"`
	Coordinates *Coordinates      `json:"coordinates,omitempty" dynamodbav:"coordinates,omitempty"`
}

// IsEmpty reports whether nothing at all was extracted for the record.
func (r BusinessRecord) IsEmpty() bool {
	return r.Name == "" && r.Address == "" && r.Phone == "" && r.Website == "" &&
		r.Rating == 0 && r.ReviewCount == 0 && len(r.Categories) == 0 &&
		len(r.Hours) == 0 && r.Coordinates == nil
}

// Status is the lifecycle state of a scrape session.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Phase is the sub-state of a running session.
type Phase string

const (
	PhaseNone       Phase = ""
	PhaseSearching  Phase = "searching"
	PhasePaginating Phase = "paginating"
	PhaseIterating  Phase = "iterating"
)

// Progress is a point-in-time copy of a session's run state.
type Progress struct {
	SessionID  string     `json:"session_id"`
	Status     Status     `json:"status"`
	Phase      Phase      `json:"phase,omitempty"`
	Completed  int        `json:"completed"`
	Total      int        `json:"total"`
	Percentage float64    `json:"progress_percentage"`
	Records    int        `json:"records"`
	Error      string     `json:"error_message,omitempty"`
	StartTime  *time.Time `json:"start_time"`
	EndTime    *time.Time `json:"end_time"`
}

// Percent returns completed/total*100, or 0 when total is not positive.
func Percent(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

// SessionSummary is the listing view of a session, and the row persisted for it.
type SessionSummary struct {
	SessionID  string     `json:"session_id" dynamodbav:"session_id"`
	Keywords   string     `json:"keywords" dynamodbav:"keywords"`
	Location   string     `json:"location" dynamodbav:"location"`
	MaxResults int        `json:"max_results" dynamodbav:"max_results"`
	Status     Status     `json:"status" dynamodbav:"status"`
	Completed  int        `json:"completed" dynamodbav:"completed"`
	Total      int        `json:"total" dynamodbav:"total"`
	Records    int        `json:"records" dynamodbav:"record_count"`
	Error      string     `json:"error_message,omitempty" dynamodbav:"error_message,omitempty"`
	CreatedAt  time.Time  `json:"created_at" dynamodbav:"created_at"`
	StartTime  *time.Time `json:"start_time" dynamodbav:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty" dynamodbav:"end_time,omitempty"`
}
