// Package browser drives a Chrome instance through go-rod and exposes its
// tabs as dom.Page values.
package browser

import (
	"context"
	"fmt"
	"sync"

	"stripedl/internal/controller"
	"stripedl/internal/dom"
	"stripedl/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// Config controls how Chrome is launched.
type Config struct {
	Headless    bool
	ProxyURL    string
	UserDataDir string
	// DownloadDir is where downloads land before they are renamed.
	DownloadDir string
	Stealth     bool
}

// Browser wraps a rod.Browser and tracks the tab the user works in.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      Config
	log      *logging.Logger

	mu     sync.Mutex
	active *Page
	pages  map[string]*Page
}

// New launches Chrome and connects to it.
func New(cfg Config, log *logging.Logger) (*Browser, error) {
	if log == nil {
		log = logging.Discard()
	}
	l := launcher.New().
		Leakless(true).
		Headless(cfg.Headless)
	if cfg.ProxyURL != "" {
		l = l.Proxy(cfg.ProxyURL)
	}
	if cfg.UserDataDir != "" {
		l = l.UserDataDir(cfg.UserDataDir)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	log.Debugf("connected to %s (headless=%v, proxy=%q)", url, cfg.Headless, cfg.ProxyURL)

	return &Browser{
		browser:  browser,
		launcher: l,
		cfg:      cfg,
		log:      log,
		pages:    make(map[string]*Page),
	}, nil
}

func (b *Browser) ProxyURL() string {
	return b.cfg.ProxyURL
}

// NewPage opens a tab and makes it the active one.
func (b *Browser) NewPage(ctx context.Context) (*Page, error) {
	var (
		page *rod.Page
		err  error
	)
	if b.cfg.Stealth {
		page, err = stealth.Page(b.browser)
	} else {
		page, err = b.browser.Page(proto.TargetCreateTarget{})
		if err == nil {
			_, err = page.EvalOnNewDocument(hideWebdriver)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	p := newPage(b, page, b.log.With("page"))
	b.mu.Lock()
	b.pages[p.ID()] = p
	b.active = p
	b.mu.Unlock()
	return p, nil
}

// Open creates a tab and navigates it to url.
func (b *Browser) Open(ctx context.Context, url string) (*Page, error) {
	p, err := b.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.Navigate(ctx, url); err != nil {
		return nil, err
	}
	if err := p.WaitLoad(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// ActiveTab implements controller.TabProvider.
func (b *Browser) ActiveTab(ctx context.Context) (*controller.Tab, error) {
	b.mu.Lock()
	p := b.active
	b.mu.Unlock()
	if p == nil {
		return nil, nil
	}
	url, err := p.URL(ctx)
	if err != nil {
		return nil, err
	}
	return &controller.Tab{ID: p.ID(), URL: url}, nil
}

func (b *Browser) Page(ctx context.Context, id string) (dom.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pages[id]; ok {
		return p, nil
	}
	page, err := b.browser.Context(ctx).PageFromTarget(proto.TargetTargetID(id))
	if err != nil {
		return nil, fmt.Errorf("failed to attach to tab %s: %w", id, err)
	}
	p := newPage(b, page, b.log.With("page"))
	b.pages[id] = p
	return p, nil
}

// WatchLoads calls fn each time a tracked tab finishes loading, until ctx is
// done.
func (b *Browser) WatchLoads(ctx context.Context, p *Page, fn func(controller.Tab)) {
	wait := p.page.Context(ctx).EachEvent(func(e *proto.PageLoadEventFired) {
		url, err := p.URL(ctx)
		if err != nil {
			return
		}
		fn(controller.Tab{ID: p.ID(), URL: url})
	})
	go wait()
}

func (b *Browser) Close() error {
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			return err
		}
	}
	if b.launcher != nil {
		b.launcher.Kill()
	}
	return nil
}
