package driver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// ChromeOptions configures the headless browser.
type ChromeOptions struct {
	Headless     bool
	ExecPath     string
	UserAgent    string
	QueryTimeout time.Duration
	PageTimeout  time.Duration
}

// Chrome drives a real Chrome instance through the DevTools protocol.
type Chrome struct {
	ctx          context.Context
	cancel       context.CancelFunc
	allocCancel  context.CancelFunc
	queryTimeout time.Duration
	pageTimeout  time.Duration

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewChrome launches a browser. The browser lives until Close is called or
// parent is cancelled.
func NewChrome(parent context.Context, opts ChromeOptions) (*Chrome, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(1920, 1080),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser so launch failures surface here.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	c := &Chrome{
		ctx:          ctx,
		cancel:       cancel,
		allocCancel:  allocCancel,
		queryTimeout: opts.QueryTimeout,
		pageTimeout:  opts.PageTimeout,
	}
	if c.queryTimeout <= 0 {
		c.queryTimeout = 5 * time.Second
	}
	if c.pageTimeout <= 0 {
		c.pageTimeout = 30 * time.Second
	}
	return c, nil
}

// ChromeFactory returns a Factory launching a new browser per call.
func ChromeFactory(opts ChromeOptions) Factory {
	return func(ctx context.Context) (Driver, error) {
		return NewChrome(ctx, opts)
	}
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, c.pageTimeout, chromedp.Navigate(url))
}

func (c *Chrome) Find(ctx context.Context, selector string) (Element, error) {
	nodes, err := c.nodes(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, ErrNotFound
	}
	return nodes[0], nil
}

func (c *Chrome) FindAll(ctx context.Context, selector string) ([]Element, error) {
	nodes, err := c.nodes(ctx, selector)
	if err != nil {
		return nil, err
	}
	out := make([]Element, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out, nil
}

func (c *Chrome) FindWithin(ctx context.Context, parent Element, selector string) (Element, error) {
	p, err := asNode(parent)
	if err != nil {
		return nil, err
	}
	nodes, err := c.nodes(ctx, selector, chromedp.FromNode(p))
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, ErrNotFound
	}
	return nodes[0], nil
}

func (c *Chrome) Click(ctx context.Context, el Element) error {
	n, err := asNode(el)
	if err != nil {
		return err
	}
	return c.run(ctx, c.queryTimeout, chromedp.Click([]cdp.NodeID{n.NodeID}, chromedp.ByNodeID))
}

func (c *Chrome) Text(ctx context.Context, el Element) (string, error) {
	n, err := asNode(el)
	if err != nil {
		return "", err
	}
	var text string
	if err := c.run(ctx, c.queryTimeout, chromedp.Text([]cdp.NodeID{n.NodeID}, &text, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return text, nil
}

func (c *Chrome) Attribute(ctx context.Context, el Element, name string) (string, error) {
	n, err := asNode(el)
	if err != nil {
		return "", err
	}
	var (
		value string
		ok    bool
	)
	if err := c.run(ctx, c.queryTimeout, chromedp.AttributeValue([]cdp.NodeID{n.NodeID}, name, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var location string
	if err := c.run(ctx, c.queryTimeout, chromedp.Location(&location)); err != nil {
		return "", err
	}
	return location, nil
}

const scrollScript = `(function(xpath) {
	const el = document.evaluate(xpath, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	if (!el) { return false; }
	el.scrollTop = el.scrollHeight;
	return true;
})(%q)`

func (c *Chrome) ScrollToBottom(ctx context.Context, el Element) error {
	n, err := asNode(el)
	if err != nil {
		return err
	}
	var scrolled bool
	if err := c.run(ctx, c.queryTimeout, chromedp.Evaluate(fmt.Sprintf(scrollScript, n.FullXPath()), &scrolled)); err != nil {
		return err
	}
	if !scrolled {
		return ErrNotFound
	}
	return nil
}

func (c *Chrome) Type(ctx context.Context, el Element, text string) error {
	n, err := asNode(el)
	if err != nil {
		return err
	}
	ids := []cdp.NodeID{n.NodeID}
	return c.run(ctx, c.queryTimeout,
		chromedp.Clear(ids, chromedp.ByNodeID),
		chromedp.SendKeys(ids, strings.TrimSpace(text)+kb.Enter, chromedp.ByNodeID),
	)
}

// Close shuts the browser down. It is safe to call more than once.
func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = chromedp.Cancel(c.ctx)
		c.cancel()
		c.allocCancel()
	})
	return c.closeErr
}

func (c *Chrome) nodes(ctx context.Context, selector string, opts ...chromedp.QueryOption) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	opts = append([]chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}, opts...)
	if err := c.run(ctx, c.queryTimeout, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		return nil, err
	}
	return nodes, nil
}

// run executes actions on the browser tab, bounded by timeout and by the
// caller's context.
func (c *Chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if c.closed.Load() {
		return ErrClosed
	}
	runCtx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func asNode(el Element) (*cdp.Node, error) {
	n, ok := el.(*cdp.Node)
	if !ok || n == nil {
		return nil, fmt.Errorf("driver: unexpected element %T", el)
	}
	return n, nil
}
