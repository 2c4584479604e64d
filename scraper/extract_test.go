package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-maps/driver"
)

// panickyDriver panics on every read.
type panickyDriver struct{ fakeDriver }

func (*panickyDriver) Find(context.Context, string) (driver.Element, error) {
	panic("browser crashed")
}

func (*panickyDriver) CurrentURL(context.Context) (string, error) {
	panic("browser crashed")
}

func TestFieldExtractorDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	var faults []error
	f := NewFieldExtractor(newFakeDriver(1, 1, 1), func(err error) { faults = append(faults, err) })

	if got := f.Text(ctx, "span.missing"); got != "" {
		t.Fatalf("Text = %q, want empty", got)
	}
	if got := f.Attribute(ctx, "a.missing", "href"); got != "" {
		t.Fatalf("Attribute = %q, want empty", got)
	}
	if f.Click(ctx, "button.missing") {
		t.Fatalf("Click on missing element reported success")
	}
	if len(faults) != 3 {
		t.Fatalf("faults = %d, want 3", len(faults))
	}
	for _, err := range faults {
		if FaultTier(err) != TierField {
			t.Fatalf("tier = %q, want %q", FaultTier(err), TierField)
		}
		if !errors.Is(err, driver.ErrNotFound) {
			t.Fatalf("fault %v does not wrap ErrNotFound", err)
		}
	}
}

func TestFieldExtractorAbsorbsPanics(t *testing.T) {
	ctx := context.Background()
	var faults int
	f := NewFieldExtractor(&panickyDriver{}, func(error) { faults++ })

	if got := f.Text(ctx, "div.name"); got != "" {
		t.Fatalf("Text = %q, want empty", got)
	}
	if got := f.CurrentURL(ctx); got != "" {
		t.Fatalf("CurrentURL = %q, want empty", got)
	}
	if faults != 2 {
		t.Fatalf("faults = %d, want 2", faults)
	}
}

func TestFieldExtractorTrimsText(t *testing.T) {
	d := newFakeDriver(1, 1, 1)
	d.open = 0
	f := NewFieldExtractor(d, nil)

	if got := f.Text(context.Background(), DefaultSelectors().Headline); got != "Business 0" {
		t.Fatalf("Text = %q, want %q", got, "Business 0")
	}
}

func TestFaultTier(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: "unknown"},
		{name: "field", err: FieldFault{Selector: "a", Err: driver.ErrNotFound}, want: TierField},
		{name: "listing wrapping field", err: ListingFault{Index: 1, Err: FieldFault{Selector: "a"}}, want: TierListing},
		{name: "scroll", err: ScrollFault{Attempt: 2, Err: errors.New("x")}, want: TierScroll},
		{name: "structural", err: StructuralFault{Element: "feed", Err: ErrWaitTimeout}, want: TierStructural},
		{name: "other", err: errors.New("boom"), want: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FaultTier(tt.err); got != tt.want {
				t.Fatalf("FaultTier(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestWaitForTimesOutOnVirtualClock(t *testing.T) {
	clock := NewVirtualClock(time.Unix(0, 0))
	calls := 0
	err := WaitFor(context.Background(), clock, time.Second, 200*time.Millisecond, func(context.Context) bool {
		calls++
		return false
	})
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("err = %v, want ErrWaitTimeout", err)
	}
	if calls != 6 {
		t.Fatalf("calls = %d, want 6", calls)
	}
	if clock.Slept() != time.Second {
		t.Fatalf("slept = %v, want 1s", clock.Slept())
	}
}

func TestRangePick(t *testing.T) {
	r := Range{Min: time.Second, Max: 2 * time.Second}
	for i := 0; i < 100; i++ {
		if d := r.Pick(); d < r.Min || d > r.Max {
			t.Fatalf("Pick = %v, outside [%v, %v]", d, r.Min, r.Max)
		}
	}
	if d := (Range{}).Pick(); d != 0 {
		t.Fatalf("zero range Pick = %v, want 0", d)
	}
}
