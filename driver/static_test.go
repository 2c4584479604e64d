package driver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
)

const homePage = `<html><body>
<form action="/search"><input id="searchboxinput" name="q"></form>
</body></html>`

const resultsPage = `<html><body>
<div role="feed">
  <div role="article"><a class="hfpxzc" href="/maps/place/Cafe+One/@38.7223,-9.1393,17z">Cafe One</a></div>
  <div role="article"><a class="hfpxzc" href="/maps/place/Cafe+Two/@38.7101,-9.1400,17z">Cafe Two</a></div>
</div>
</body></html>`

const placePage = `<html><body>
<div class="fontHeadlineSmall"> Cafe One </div>
<a data-item-id="authority" href="https://cafe-one.test/">website</a>
<table><tr><th>Monday</th><td>8 AM–6 PM</td></tr></table>
</body></html>`

func newMockedStatic(t *testing.T) *Static {
	t.Helper()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, "http://maps.test/maps", httpmock.NewStringResponder(http.StatusOK, homePage))
	transport.RegisterResponder(http.MethodGet, "http://maps.test/search?q=cafes+in+Lisbon", httpmock.NewStringResponder(http.StatusOK, resultsPage))
	transport.RegisterResponder(http.MethodGet, "http://maps.test/maps/place/Cafe+One/@38.7223,-9.1393,17z", httpmock.NewStringResponder(http.StatusOK, placePage))
	return NewStatic(StaticOptions{Transport: transport})
}

func TestStaticSearchAndFollowListing(t *testing.T) {
	ctx := context.Background()
	d := newMockedStatic(t)

	if err := d.Navigate(ctx, "http://maps.test/maps"); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	input, err := d.Find(ctx, "#searchboxinput")
	if err != nil {
		t.Fatalf("find search input: %v", err)
	}
	if err := d.Type(ctx, input, "cafes in Lisbon"); err != nil {
		t.Fatalf("type: %v", err)
	}

	listings, err := d.FindAll(ctx, "div[role='article']")
	if err != nil {
		t.Fatalf("find listings: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("listings = %d, want 2", len(listings))
	}

	if err := d.Click(ctx, listings[0]); err != nil {
		t.Fatalf("click listing: %v", err)
	}
	current, err := d.CurrentURL(ctx)
	if err != nil {
		t.Fatalf("current url: %v", err)
	}
	if !strings.Contains(current, "@38.7223,-9.1393") {
		t.Fatalf("current url = %q, want place url", current)
	}

	headline, err := d.Find(ctx, "div.fontHeadlineSmall")
	if err != nil {
		t.Fatalf("find headline: %v", err)
	}
	if text, _ := d.Text(ctx, headline); strings.TrimSpace(text) != "Cafe One" {
		t.Fatalf("headline = %q", text)
	}

	link, err := d.Find(ctx, "a[data-item-id='authority']")
	if err != nil {
		t.Fatalf("find website: %v", err)
	}
	if href, _ := d.Attribute(ctx, link, "href"); href != "https://cafe-one.test/" {
		t.Fatalf("href = %q", href)
	}
	if _, err := d.Attribute(ctx, link, "data-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing attribute err = %v, want ErrNotFound", err)
	}

	row, err := d.Find(ctx, "table tr")
	if err != nil {
		t.Fatalf("find row: %v", err)
	}
	day, err := d.FindWithin(ctx, row, "th")
	if err != nil {
		t.Fatalf("find day cell: %v", err)
	}
	if text, _ := d.Text(ctx, day); text != "Monday" {
		t.Fatalf("day = %q", text)
	}
}

func TestStaticMissingElements(t *testing.T) {
	ctx := context.Background()
	d := newMockedStatic(t)

	if _, err := d.Find(ctx, "#searchboxinput"); err == nil {
		t.Fatalf("find before navigation should fail")
	}
	if err := d.Navigate(ctx, "http://maps.test/maps"); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if _, err := d.Find(ctx, "div[role='feed']"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	all, err := d.FindAll(ctx, "div[role='article']")
	if err != nil || len(all) != 0 {
		t.Fatalf("FindAll = %d, %v; want empty", len(all), err)
	}
	if err := d.Navigate(ctx, "http://maps.test/unregistered"); err == nil {
		t.Fatalf("navigate to unknown page should fail")
	}
}

func TestStaticClosed(t *testing.T) {
	ctx := context.Background()
	d := newMockedStatic(t)
	if err := d.Navigate(ctx, "http://maps.test/maps"); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := d.Find(ctx, "form"); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestStaticHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := newMockedStatic(t)
	if err := d.Navigate(ctx, "http://maps.test/maps"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
