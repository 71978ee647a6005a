// Package controller owns the page agents. It attaches an agent to the
// active dashboard tab on request and to dashboard tabs that finish loading.
package controller

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"stripedl/internal/dom"
	"stripedl/internal/logging"
	"stripedl/internal/messaging"
)

// The texts below are shown to the user verbatim by the trigger UI.
var (
	ErrNoActiveTab  = errors.New("No active tab found")
	ErrInvalidTab   = errors.New("Invalid tab")
	ErrWrongSite    = errors.New("Not on Stripe.com")
	ErrInjectFailed = errors.New("Failed to inject content script")
)

// Tab is a snapshot of one browser tab.
type Tab struct {
	ID  string
	URL string
}

// TabProvider exposes the browser's tabs.
type TabProvider interface {
	// ActiveTab returns the focused tab, or nil when there is none.
	ActiveTab(ctx context.Context) (*Tab, error)
	// Page returns the automation handle of tab id.
	Page(ctx context.Context, id string) (dom.Page, error)
}

// AgentFactory builds the page agent attached to a tab.
type AgentFactory func(page dom.Page, tab Tab) messaging.Handler

// Controller answers ensureContentScript and tracks attached agents.
type Controller struct {
	tabs    TabProvider
	bus     *messaging.Bus
	factory AgentFactory
	domain  string
	log     *logging.Logger

	mu       sync.Mutex
	attached map[string]func()
}

// New creates a Controller for pages on domain.
func New(tabs TabProvider, bus *messaging.Bus, domain string, factory AgentFactory, log *logging.Logger) *Controller {
	if log == nil {
		log = logging.Discard()
	}
	return &Controller{
		tabs:     tabs,
		bus:      bus,
		factory:  factory,
		domain:   domain,
		log:      log,
		attached: make(map[string]func()),
	}
}

// Start registers the controller on the bus. The returned function
// unregisters it and detaches every agent.
func (c *Controller) Start() func() {
	unregister := c.bus.Register(messaging.Controller, c)
	return func() {
		unregister()
		c.mu.Lock()
		defer c.mu.Unlock()
		for id, detach := range c.attached {
			detach()
			delete(c.attached, id)
		}
	}
}

// Handle implements messaging.Handler.
func (c *Controller) Handle(ctx context.Context, msg messaging.Message) *messaging.Response {
	switch msg.Action {
	case messaging.ActionEnsureContentScript:
		if err := c.EnsureContentScript(ctx); err != nil {
			c.log.Errorf("error in ensureContentScript: %v", err)
			return messaging.Fail(err)
		}
		return &messaging.Response{Success: true}
	case messaging.ActionDownloadStarted:
		c.log.Infof("Invoice download started")
	}
	return nil
}

// EnsureContentScript validates the active tab and makes sure an agent is
// attached to it.
func (c *Controller) EnsureContentScript(ctx context.Context) error {
	tab, err := c.tabs.ActiveTab(ctx)
	if err != nil {
		return fmt.Errorf("failed to query tabs: %w", err)
	}
	if tab == nil {
		return ErrNoActiveTab
	}
	if tab.ID == "" {
		return ErrInvalidTab
	}
	if !MatchesDomain(tab.URL, c.domain) {
		return ErrWrongSite
	}
	return c.inject(ctx, *tab)
}

// TabUpdated attaches an agent to a tab on the target domain once it has
// finished loading. Failures are logged only.
func (c *Controller) TabUpdated(ctx context.Context, tab Tab, complete bool) {
	if !complete || tab.ID == "" || !MatchesDomain(tab.URL, c.domain) {
		return
	}
	if err := c.inject(ctx, tab); err != nil {
		c.log.Warnf("tab %s: %v", tab.ID, err)
	}
}

func (c *Controller) TabClosed(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if detach, ok := c.attached[id]; ok {
		detach()
		delete(c.attached, id)
		c.log.Debugf("detached agent from tab %s", id)
	}
}

func (c *Controller) Attached(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.attached[id]
	return ok
}

// inject attaches an agent to tab unless one is already attached, so a run in
// flight keeps its agent.
func (c *Controller) inject(ctx context.Context, tab Tab) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.attached[tab.ID]; ok {
		return nil
	}

	page, err := c.tabs.Page(ctx, tab.ID)
	if err != nil {
		c.log.Errorf("failed to inject content script: %v", err)
		return fmt.Errorf("%w: %v", ErrInjectFailed, err)
	}
	c.attached[tab.ID] = c.bus.Register(messaging.Tab(tab.ID), c.factory(page, tab))
	c.log.Infof("content script injected into tab %s", tab.ID)
	return nil
}

// MatchesDomain reports whether rawURL is served from domain or one of its
// subdomains.
func MatchesDomain(rawURL, domain string) bool {
	if rawURL == "" || domain == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
