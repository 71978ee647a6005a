package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"stripedl/internal/dom"
	"stripedl/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const clickTimeout = 5 * time.Second

// Page is a live tab. It implements dom.Page and dom.Downloader.
type Page struct {
	b    *Browser
	page *rod.Page
	log  *logging.Logger
}

func newPage(b *Browser, page *rod.Page, log *logging.Logger) *Page {
	return &Page{b: b, page: page, log: log}
}

// ID is the DevTools target id of the tab.
func (p *Page) ID() string {
	return string(p.page.TargetID)
}

// Rod exposes the underlying page.
func (p *Page) Rod() *rod.Page {
	return p.page
}

func (p *Page) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to read page info: %w", err)
	}
	return info.URL, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	return nil
}

func (p *Page) WaitLoad(ctx context.Context) error {
	if err := p.page.Context(ctx).WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	return nil
}

func (p *Page) Reload(ctx context.Context) error {
	if err := p.page.Context(ctx).Reload(); err != nil {
		return fmt.Errorf("failed to reload: %w", err)
	}
	return nil
}

func (p *Page) Notify(ctx context.Context, message string, kind dom.NoticeKind) error {
	_, err := p.page.Context(ctx).Eval(notifyScript, message, string(kind))
	return err
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *Page) Clickables(ctx context.Context) ([]dom.ElementInfo, error) {
	res, err := p.page.Context(ctx).Eval(clickablesScript)
	if err != nil {
		return nil, fmt.Errorf("failed to list clickables: %w", err)
	}
	var raw []jsElement
	if err := decode(res, &raw); err != nil {
		return nil, err
	}
	out := make([]dom.ElementInfo, len(raw))
	for i, r := range raw {
		out[i] = r.info()
	}
	return out, nil
}

// Query implements dom.Document. Only visible elements are returned.
func (p *Page) Query(ctx context.Context, s dom.Strategy) (dom.Element, error) {
	page := p.page.Context(ctx).Sleeper(rod.NotFoundSleeper)
	switch s.Kind {
	case dom.KindAny:
		var first error
		for _, sub := range s.Any {
			el, err := p.Query(ctx, sub)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				p.log.Debugf("%s failed, trying next: %v", sub, err)
				if first == nil {
					first = err
				}
				continue
			}
			if el != nil {
				return el, nil
			}
		}
		return nil, first
	case dom.KindXPath:
		e, err := page.ElementX(s.Value)
		if err != nil {
			var nf *rod.ElementNotFoundError
			if errors.As(err, &nf) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to evaluate xpath: %w", err)
		}
		el, err := p.describe(ctx, e)
		if err != nil || !el.info.Visible {
			_ = e.Release()
			return nil, err
		}
		return el, nil
	}

	sel := s.CandidateSelector()
	if sel == "" {
		return nil, fmt.Errorf("unsupported strategy kind %q", s.Kind)
	}
	res, err := page.Eval(candidatesScript, sel)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", sel, err)
	}
	var raw []jsElement
	if err := decode(res, &raw); err != nil {
		return nil, err
	}
	for i, r := range raw {
		info := r.info()
		if !info.Visible || !s.Accepts(info) {
			continue
		}
		e, err := page.ElementByJS(rod.Eval(nthScript, sel, i))
		if err != nil {
			var nf *rod.ElementNotFoundError
			if errors.As(err, &nf) {
				// The node went away between the scan and the lookup.
				p.log.Debugf("candidate %d of %s is gone", i, sel)
				return nil, nil
			}
			return nil, fmt.Errorf("failed to resolve %s: %w", sel, err)
		}
		return &element{el: e, info: info, log: p.log}, nil
	}
	return nil, nil
}

func (p *Page) describe(ctx context.Context, e *rod.Element) (*element, error) {
	res, err := e.Context(ctx).Eval(describeScript)
	if err != nil {
		return nil, fmt.Errorf("failed to describe element: %w", err)
	}
	var raw jsElement
	if err := decode(res, &raw); err != nil {
		return nil, err
	}
	return &element{el: e, info: raw.info(), log: p.log}, nil
}

// ExpectDownload implements dom.Downloader. The returned function blocks
// until the next download in the browser completes and must be called once
// to release the event listener.
func (p *Page) ExpectDownload(ctx context.Context) (func(context.Context) (string, error), error) {
	dir, err := filepath.Abs(p.b.cfg.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve download directory: %w", err)
	}
	wctx, cancel := context.WithCancel(ctx)
	done := make(chan *proto.PageDownloadWillBegin, 1)
	wait := p.b.browser.Context(wctx).WaitDownload(dir)
	go func() { done <- wait() }()

	return func(ctx context.Context) (string, error) {
		defer cancel()
		select {
		case info := <-done:
			if info == nil {
				return "", errors.New("download did not complete")
			}
			p.log.Debugf("downloaded %s (%s)", info.SuggestedFilename, info.GUID)
			return filepath.Join(dir, info.GUID), nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}, nil
}

type jsElement struct {
	Tag       string `json:"tag"`
	Text      string `json:"text"`
	ClassName string `json:"className"`
	Role      string `json:"role"`
	Visible   bool   `json:"visible"`
}

func (j jsElement) info() dom.ElementInfo {
	return dom.ElementInfo{Tag: j.Tag, Text: j.Text, Class: j.ClassName, Role: j.Role, Visible: j.Visible}
}

func decode(res *proto.RuntimeRemoteObject, v interface{}) error {
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to read script result: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse script result: %w", err)
	}
	return nil
}

type element struct {
	el   *rod.Element
	info dom.ElementInfo
	log  *logging.Logger
}

func (e *element) Info() dom.ElementInfo {
	return e.info
}

// Click tries a real mouse click and falls back to a scripted one.
func (e *element) Click(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, clickTimeout)
	defer cancel()
	err := e.el.Context(cctx).Click(proto.InputMouseButtonLeft, 1)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	e.log.Debugf("mouse click failed (%v), using script click", err)
	if _, jsErr := e.el.Context(ctx).Eval(forceClickScript); jsErr != nil {
		return fmt.Errorf("failed to click element: %w", jsErr)
	}
	return nil
}

func (e *element) Input(ctx context.Context, text string) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		e.log.Debugf("failed to select text: %v", err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("failed to input text: %w", err)
	}
	return nil
}
