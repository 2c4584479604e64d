// Package driver defines the browser-automation boundary the extractor drives,
// plus two implementations: a chromedp-backed live browser and a static
// HTML driver that fetches pages with colly and evaluates selectors with goquery.
package driver

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a selector matches nothing.
var ErrNotFound = errors.New("driver: element not found")

// ErrClosed is returned by any call made after Close.
var ErrClosed = errors.New("driver: closed")

// Element is an opaque handle to a node on the current page. Handles are only
// meaningful to the driver that produced them and may go stale after navigation.
type Element interface{}

// Driver is the set of page operations the extractor relies on. Every call may
// fail; callers treat failures as absence.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Find(ctx context.Context, selector string) (Element, error)
	FindAll(ctx context.Context, selector string) ([]Element, error)
	FindWithin(ctx context.Context, parent Element, selector string) (Element, error)
	Click(ctx context.Context, el Element) error
	Text(ctx context.Context, el Element) (string, error)
	Attribute(ctx context.Context, el Element, name string) (string, error)
	CurrentURL(ctx context.Context) (string, error)
	ScrollToBottom(ctx context.Context, el Element) error
	// Type enters text into an input and submits it.
	Type(ctx context.Context, el Element, text string) error
	Close() error
}

// Factory opens a fresh driver. Each scrape run owns the driver it opens.
type Factory func(ctx context.Context) (Driver, error)
