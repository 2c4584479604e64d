package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-maps/driver"
)

// FieldExtractor performs total reads against the current page: every failure
// (no match, stale handle, driver fault, even a driver panic) degrades to the
// empty value and is reported to the fault callback as a FieldFault.
type FieldExtractor struct {
	drv     driver.Driver
	onFault func(error)
}

// NewFieldExtractor wraps drv. onFault may be nil.
func NewFieldExtractor(drv driver.Driver, onFault func(error)) *FieldExtractor {
	return &FieldExtractor{drv: drv, onFault: onFault}
}

// Text returns the trimmed text of the first element matching selector.
func (f *FieldExtractor) Text(ctx context.Context, selector string) (text string) {
	defer f.absorbPanic(selector, func() { text = "" })

	el, err := f.drv.Find(ctx, selector)
	if err != nil {
		f.fault(selector, err)
		return ""
	}
	raw, err := f.drv.Text(ctx, el)
	if err != nil {
		f.fault(selector, err)
		return ""
	}
	return strings.TrimSpace(raw)
}

// Attribute returns the trimmed attribute value of the first match.
func (f *FieldExtractor) Attribute(ctx context.Context, selector, name string) (value string) {
	defer f.absorbPanic(selector, func() { value = "" })

	el, err := f.drv.Find(ctx, selector)
	if err != nil {
		f.fault(selector, err)
		return ""
	}
	raw, err := f.drv.Attribute(ctx, el, name)
	if err != nil {
		f.fault(selector+"@"+name, err)
		return ""
	}
	return strings.TrimSpace(raw)
}

// TextWithin returns the trimmed text of the first match inside parent.
func (f *FieldExtractor) TextWithin(ctx context.Context, parent driver.Element, selector string) (text string) {
	defer f.absorbPanic(selector, func() { text = "" })

	el, err := f.drv.FindWithin(ctx, parent, selector)
	if err != nil {
		f.fault(selector, err)
		return ""
	}
	raw, err := f.drv.Text(ctx, el)
	if err != nil {
		f.fault(selector, err)
		return ""
	}
	return strings.TrimSpace(raw)
}

// All returns every element matching selector, or nil.
func (f *FieldExtractor) All(ctx context.Context, selector string) (els []driver.Element) {
	defer f.absorbPanic(selector, func() { els = nil })

	els, err := f.drv.FindAll(ctx, selector)
	if err != nil {
		f.fault(selector, err)
		return nil
	}
	return els
}

// Click clicks the first match and reports whether it succeeded.
func (f *FieldExtractor) Click(ctx context.Context, selector string) (ok bool) {
	defer f.absorbPanic(selector, func() { ok = false })

	el, err := f.drv.Find(ctx, selector)
	if err != nil {
		f.fault(selector, err)
		return false
	}
	if err := f.drv.Click(ctx, el); err != nil {
		f.fault(selector, err)
		return false
	}
	return true
}

// CurrentURL returns the page location, or "".
func (f *FieldExtractor) CurrentURL(ctx context.Context) (location string) {
	defer f.absorbPanic("location", func() { location = "" })

	location, err := f.drv.CurrentURL(ctx)
	if err != nil {
		f.fault("location", err)
		return ""
	}
	return location
}

func (f *FieldExtractor) fault(selector string, err error) {
	if f.onFault != nil {
		f.onFault(FieldFault{Selector: selector, Err: err})
	}
}

func (f *FieldExtractor) absorbPanic(selector string, reset func()) {
	if r := recover(); r != nil {
		reset()
		f.fault(selector, fmt.Errorf("driver panic: %v", r))
	}
}
