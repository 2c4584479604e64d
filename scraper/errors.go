package scraper

import (
	"errors"
	"fmt"
)

// StructuralFault means a load-bearing element (search input, results
// container) never materialised. It is the only fault that ends a run.
type StructuralFault struct {
	Element string
	Err     error
}

func (e StructuralFault) Error() string {
	return fmt.Errorf("structural fault: %s: %w", e.Element, e.Err).Error()
}

func (e StructuralFault) Unwrap() error {
	return e.Err
}

// ListingFault means one listing could not be opened or read. The listing
// still yields an (empty) record.
type ListingFault struct {
	Index int
	Err   error
}

func (e ListingFault) Error() string {
	return fmt.Errorf("listing %d: %w", e.Index, e.Err).Error()
}

func (e ListingFault) Unwrap() error {
	return e.Err
}

// FieldFault means a single field read failed and was replaced by its zero value.
type FieldFault struct {
	Selector string
	Err      error
}

func (e FieldFault) Error() string {
	return fmt.Errorf("field %q: %w", e.Selector, e.Err).Error()
}

func (e FieldFault) Unwrap() error {
	return e.Err
}

// ScrollFault means one pagination scroll failed; pagination carries on.
type ScrollFault struct {
	Attempt int
	Err     error
}

func (e ScrollFault) Error() string {
	return fmt.Errorf("scroll %d: %w", e.Attempt, e.Err).Error()
}

func (e ScrollFault) Unwrap() error {
	return e.Err
}

// Fault tier labels, also used as metric label values.
const (
	TierField      = "field"
	TierListing    = "listing"
	TierScroll     = "scroll"
	TierStructural = "structural"
)

// FaultTier names the tier that absorbed (or raised) err.
func FaultTier(err error) string {
	if err == nil {
		return "unknown"
	}
	var structural StructuralFault
	if errors.As(err, &structural) {
		return TierStructural
	}
	var listing ListingFault
	if errors.As(err, &listing) {
		return TierListing
	}
	var scroll ScrollFault
	if errors.As(err, &scroll) {
		return TierScroll
	}
	var field FieldFault
	if errors.As(err, &field) {
		return TierField
	}
	return "other"
}

// FaultCounts tallies the faults absorbed during a run, per tier.
type FaultCounts struct {
	Field      int `json:"field"`
	Listing    int `json:"listing"`
	Scroll     int `json:"scroll"`
	Structural int `json:"structural"`
}

func (c *FaultCounts) add(err error) {
	switch FaultTier(err) {
	case TierField:
		c.Field++
	case TierListing:
		c.Listing++
	case TierScroll:
		c.Scroll++
	case TierStructural:
		c.Structural++
	}
}
