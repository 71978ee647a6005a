// Package htmldoc is a static dom.Page over parsed HTML. It backs the
// `check` command, which replays lookups against saved page snapshots, and it
// is the scripted page used by the flow tests.
package htmldoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"stripedl/internal/dom"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// ErrDetached is returned when an element from a replaced tree is used.
var ErrDetached = errors.New("element is detached from the document")

// ErrNoDownload is returned by the download watcher when no download was
// scripted with SetDownload.
var ErrNoDownload = errors.New("no download started")

// EventKind classifies recorded page interactions.
type EventKind string

const (
	EventClick    EventKind = "click"
	EventInput    EventKind = "input"
	EventNavigate EventKind = "navigate"
	EventReload   EventKind = "reload"
	EventNotify   EventKind = "notify"
)

// Event is one recorded interaction.
type Event struct {
	Kind   EventKind
	Target string
	Value  string
}

type clickHook struct {
	selector string
	fn       func(*Document)
}

// Document is a mutable in-memory page.
type Document struct {
	mu       sync.Mutex
	url      string
	root     *html.Node
	doc      *goquery.Document
	gen      int
	queries  int
	events   []Event
	download string

	clickHooks []clickHook
	onReload   func(*Document)
	onNavigate func(*Document, string)
}

// New parses src as the page at url.
func New(url, src string) (*Document, error) {
	d := &Document{url: url}
	if err := d.SetHTML(src); err != nil {
		return nil, err
	}
	return d, nil
}

// Load reads an HTML snapshot from disk.
func Load(path, url string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return New(url, string(data))
}

// SetHTML replaces the whole tree. Elements obtained earlier become detached.
func (d *Document) SetHTML(src string) error {
	root, err := htmlquery.Parse(strings.NewReader(src))
	if err != nil {
		return fmt.Errorf("failed to parse html: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.root = root
	d.doc = goquery.NewDocumentFromNode(root)
	d.gen++
	return nil
}

// OnClick runs fn after any element matching selector is clicked.
func (d *Document) OnClick(selector string, fn func(*Document)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clickHooks = append(d.clickHooks, clickHook{selector: selector, fn: fn})
}

// OnReload runs fn after every Reload.
func (d *Document) OnReload(fn func(*Document)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onReload = fn
}

// OnNavigate runs fn after every Navigate with the new URL.
func (d *Document) OnNavigate(fn func(*Document, string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onNavigate = fn
}

// SetDownload makes the next download watcher report path.
func (d *Document) SetDownload(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.download = path
}

// Events returns a copy of the recorded interactions.
func (d *Document) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}

// EventsOf returns the recorded interactions of one kind.
func (d *Document) EventsOf(kind EventKind) []Event {
	var out []Event
	for _, e := range d.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Queries returns how many probes were answered.
func (d *Document) Queries() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queries
}

func (d *Document) record(kind EventKind, target, value string) {
	d.events = append(d.events, Event{Kind: kind, Target: target, Value: value})
}

// Query implements dom.Document.
func (d *Document) Query(ctx context.Context, s dom.Strategy) (dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries++
	node, err := d.find(s)
	if err != nil || node == nil {
		return nil, err
	}
	return &element{d: d, node: node, gen: d.gen}, nil
}

func (d *Document) find(s dom.Strategy) (*html.Node, error) {
	switch s.Kind {
	case dom.KindAny:
		// A failing alternative falls through to the next one. The first
		// error is reported only when nothing matched.
		var first error
		for _, sub := range s.Any {
			n, err := d.find(sub)
			if err != nil {
				if first == nil {
					first = err
				}
				continue
			}
			if n != nil {
				return n, nil
			}
		}
		return nil, first
	case dom.KindXPath:
		n, err := htmlquery.Query(d.root, s.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid xpath %q: %w", s.Value, err)
		}
		if n == nil || !visible(n) {
			return nil, nil
		}
		return n, nil
	}

	sel := s.CandidateSelector()
	if sel == "" {
		return nil, fmt.Errorf("unsupported strategy kind %q", s.Kind)
	}
	var found *html.Node
	d.doc.Find(sel).EachWithBreak(func(_ int, c *goquery.Selection) bool {
		info := describe(c)
		if info.Visible && s.Accepts(info) {
			found = c.Get(0)
			return false
		}
		return true
	})
	return found, nil
}

// URL implements dom.Page.
func (d *Document) URL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

// Navigate implements dom.Page.
func (d *Document) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	d.url = url
	d.record(EventNavigate, url, "")
	hook := d.onNavigate
	d.mu.Unlock()
	if hook != nil {
		hook(d, url)
	}
	return nil
}

// WaitLoad implements dom.Page. A static page is always loaded.
func (d *Document) WaitLoad(ctx context.Context) error {
	return ctx.Err()
}

// Reload implements dom.Page.
func (d *Document) Reload(ctx context.Context) error {
	d.mu.Lock()
	d.record(EventReload, d.url, "")
	hook := d.onReload
	d.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return nil
}

// Reloads returns how many times the page was reloaded.
func (d *Document) Reloads() int {
	return len(d.EventsOf(EventReload))
}

// Notify implements dom.Page.
func (d *Document) Notify(ctx context.Context, message string, kind dom.NoticeKind) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(EventNotify, string(kind), message)
	return nil
}

// HTML implements dom.Page.
func (d *Document) HTML(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("failed to render html: %w", err)
	}
	return buf.String(), nil
}

// Clickables implements dom.Page.
func (d *Document) Clickables(ctx context.Context) ([]dom.ElementInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []dom.ElementInfo
	d.doc.Find(`button, a, [role="button"]`).Each(func(_ int, c *goquery.Selection) {
		out = append(out, describe(c))
	})
	return out, nil
}

// ExpectDownload implements dom.Downloader.
func (d *Document) ExpectDownload(ctx context.Context) (func(context.Context) (string, error), error) {
	return func(ctx context.Context) (string, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.download == "" {
			return "", ErrNoDownload
		}
		return d.download, nil
	}, nil
}

func (d *Document) runClickHooks(n *html.Node) {
	d.mu.Lock()
	var fns []func(*Document)
	for _, h := range d.clickHooks {
		for _, m := range d.doc.Find(h.selector).Nodes {
			if m == n {
				fns = append(fns, h.fn)
				break
			}
		}
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn(d)
	}
}

type element struct {
	d    *Document
	node *html.Node
	gen  int
}

func (e *element) Info() dom.ElementInfo {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return describe(e.d.doc.FindNodes(e.node))
}

func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.d.mu.Lock()
	if e.gen != e.d.gen {
		e.d.mu.Unlock()
		return ErrDetached
	}
	info := describe(e.d.doc.FindNodes(e.node))
	e.d.record(EventClick, label(e.node, info), "")
	e.d.mu.Unlock()

	e.d.runClickHooks(e.node)
	return nil
}

func (e *element) Input(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if e.gen != e.d.gen {
		return ErrDetached
	}
	setAttr(e.node, "value", text)
	e.d.record(EventInput, label(e.node, describe(e.d.doc.FindNodes(e.node))), text)
	return nil
}

// label names an element in recorded events: its id, data-testid or name
// when present, else its text.
func label(n *html.Node, info dom.ElementInfo) string {
	for _, key := range []string{"id", "data-testid", "name"} {
		if v, ok := attr(n, key); ok && v != "" {
			return v
		}
	}
	return strings.TrimSpace(info.Text)
}
