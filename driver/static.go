package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

var (
	_ Driver = (*Chrome)(nil)
	_ Driver = (*Static)(nil)
)

// StaticOptions configures the static HTML driver.
type StaticOptions struct {
	UserAgent string
	Timeout   time.Duration
	// Transport replaces the collector's HTTP transport when set.
	Transport http.RoundTripper
}

// Static is a Driver over server-rendered HTML. Pages are fetched with a colly
// collector and queried with goquery; clicking a link navigates to its href
// and typing into an input submits the enclosing GET form. Scrolling is a
// no-op because the whole document is already loaded.
type Static struct {
	collector *colly.Collector

	mu      sync.Mutex
	doc     *goquery.Document
	current *url.URL
	closed  bool
}

// NewStatic builds a static driver.
func NewStatic(opts StaticOptions) *Static {
	collector := colly.NewCollector(colly.AllowURLRevisit())
	if opts.UserAgent != "" {
		collector.UserAgent = opts.UserAgent
	}
	if opts.Timeout > 0 {
		collector.SetRequestTimeout(opts.Timeout)
	}
	collector.IgnoreRobotsTxt = true
	if opts.Transport != nil {
		collector.WithTransport(opts.Transport)
	}

	s := &Static{collector: collector}
	collector.OnResponse(func(r *colly.Response) {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			return
		}
		s.mu.Lock()
		s.doc = doc
		s.current = r.Request.URL
		s.mu.Unlock()
	})
	return s
}

// StaticFactory returns a Factory building a new static driver per call.
func StaticFactory(opts StaticOptions) Factory {
	return func(context.Context) (Driver, error) {
		return NewStatic(opts), nil
	}
}

func (s *Static) Navigate(ctx context.Context, rawURL string) error {
	if err := s.usable(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.doc = nil
	s.mu.Unlock()

	if err := s.collector.Visit(rawURL); err != nil {
		return fmt.Errorf("visit %s: %w", rawURL, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return fmt.Errorf("visit %s: no document parsed", rawURL)
	}
	return nil
}

func (s *Static) Find(ctx context.Context, selector string) (Element, error) {
	doc, err := s.document(ctx)
	if err != nil {
		return nil, err
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, ErrNotFound
	}
	return sel, nil
}

func (s *Static) FindAll(ctx context.Context, selector string) ([]Element, error) {
	doc, err := s.document(ctx)
	if err != nil {
		return nil, err
	}
	matches := doc.Find(selector)
	out := make([]Element, 0, matches.Length())
	for i := 0; i < matches.Length(); i++ {
		out = append(out, matches.Eq(i))
	}
	return out, nil
}

func (s *Static) FindWithin(ctx context.Context, parent Element, selector string) (Element, error) {
	if err := s.usable(ctx); err != nil {
		return nil, err
	}
	p, err := asSelection(parent)
	if err != nil {
		return nil, err
	}
	sel := p.Find(selector).First()
	if sel.Length() == 0 {
		return nil, ErrNotFound
	}
	return sel, nil
}

// Click follows the element's link: its own href, a descendant anchor, or an
// enclosing anchor. Elements without a link are accepted as no-ops.
func (s *Static) Click(ctx context.Context, el Element) error {
	if err := s.usable(ctx); err != nil {
		return err
	}
	sel, err := asSelection(el)
	if err != nil {
		return err
	}
	href, ok := sel.Attr("href")
	if !ok {
		href, ok = sel.Find("a[href]").First().Attr("href")
	}
	if !ok {
		href, ok = sel.Closest("a[href]").Attr("href")
	}
	if !ok {
		return nil
	}
	target, err := s.resolve(href)
	if err != nil {
		return err
	}
	return s.Navigate(ctx, target)
}

func (s *Static) Text(ctx context.Context, el Element) (string, error) {
	if err := s.usable(ctx); err != nil {
		return "", err
	}
	sel, err := asSelection(el)
	if err != nil {
		return "", err
	}
	return sel.Text(), nil
}

func (s *Static) Attribute(ctx context.Context, el Element, name string) (string, error) {
	if err := s.usable(ctx); err != nil {
		return "", err
	}
	sel, err := asSelection(el)
	if err != nil {
		return "", err
	}
	value, ok := sel.Attr(name)
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *Static) CurrentURL(ctx context.Context) (string, error) {
	if err := s.usable(ctx); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return "", errors.New("driver: no page loaded")
	}
	return s.current.String(), nil
}

func (s *Static) ScrollToBottom(ctx context.Context, el Element) error {
	if err := s.usable(ctx); err != nil {
		return err
	}
	_, err := asSelection(el)
	return err
}

// Type submits the input's enclosing form as a GET request with the input's
// name set to text.
func (s *Static) Type(ctx context.Context, el Element, text string) error {
	if err := s.usable(ctx); err != nil {
		return err
	}
	sel, err := asSelection(el)
	if err != nil {
		return err
	}
	form := sel.Closest("form")
	if form.Length() == 0 {
		return errors.New("driver: input is not inside a form")
	}
	action, _ := form.Attr("action")
	target, err := s.resolve(action)
	if err != nil {
		return err
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("parse form action: %w", err)
	}
	name, ok := sel.Attr("name")
	if !ok || name == "" {
		name = "q"
	}
	query := u.Query()
	query.Set(name, strings.TrimSpace(text))
	u.RawQuery = query.Encode()
	return s.Navigate(ctx, u.String())
}

func (s *Static) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.doc = nil
	return nil
}

func (s *Static) usable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Static) document(ctx context.Context) (*goquery.Document, error) {
	if err := s.usable(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, errors.New("driver: no page loaded")
	}
	return s.doc, nil
}

func (s *Static) resolve(ref string) (string, error) {
	s.mu.Lock()
	base := s.current
	s.mu.Unlock()
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", ref, err)
	}
	if base == nil {
		return parsed.String(), nil
	}
	return base.ResolveReference(parsed).String(), nil
}

func asSelection(el Element) (*goquery.Selection, error) {
	sel, ok := el.(*goquery.Selection)
	if !ok || sel == nil {
		return nil, fmt.Errorf("driver: unexpected element %T", el)
	}
	return sel, nil
}
