// Package trigger is the logic behind the download button: it checks the
// active tab, asks the controller for an agent and starts the export.
package trigger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"stripedl/internal/clock"
	"stripedl/internal/controller"
	"stripedl/internal/dom"
	"stripedl/internal/logging"
	"stripedl/internal/messaging"
)

// Status texts.
const (
	StatusReady       = "Ready to download invoices"
	StatusWrongSite   = "Please navigate to Stripe.com to use this extension"
	StatusStarting    = "Starting download process..."
	StatusCancelled   = "Navigation cancelled"
	ConfirmNavigation = "You need to be on the invoices page to download invoices.\n\nClick OK to navigate to the invoices page, or Cancel to stay here."
)

var (
	// ErrDisabled is returned by Click while the button is disabled or busy.
	ErrDisabled = errors.New("trigger is disabled")
	// ErrCancelled is returned when the user declines to leave the page.
	ErrCancelled = errors.New(StatusCancelled)

	errInitFailed = errors.New("Could not initialize extension")
	errNoResponse = errors.New("No response from content script")
)

// State is what the UI renders.
type State struct {
	Enabled bool
	Busy    bool
	Status  string
	Kind    dom.NoticeKind
}

// Options configures a Trigger.
type Options struct {
	Domain       string
	InvoicesPath string
	// ReadyDelay is how long a success message stays before the button is
	// re-armed.
	ReadyDelay time.Duration
}

// ConfirmFunc asks the user a yes/no question.
type ConfirmFunc func(question string) bool

// Trigger holds the button state.
type Trigger struct {
	tabs  controller.TabProvider
	bus   *messaging.Bus
	clock clock.Clock
	opts  Options
	log   *logging.Logger

	mu       sync.Mutex
	state    State
	onChange func(State)
}

// New creates a disabled Trigger. Call Init before Click.
func New(tabs controller.TabProvider, bus *messaging.Bus, c clock.Clock, opts Options, log *logging.Logger) *Trigger {
	if log == nil {
		log = logging.Discard()
	}
	return &Trigger{tabs: tabs, bus: bus, clock: c, opts: opts, log: log, state: State{Kind: dom.NoticeInfo}}
}

// OnChange registers fn to be called after every state change.
func (t *Trigger) OnChange(fn func(State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// State returns the current state.
func (t *Trigger) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Listen registers the trigger for progress messages from page agents.
func (t *Trigger) Listen() func() {
	return t.bus.Register(messaging.Popup, messaging.HandlerFunc(t.handle))
}

func (t *Trigger) handle(ctx context.Context, msg messaging.Message) *messaging.Response {
	if msg.Action == messaging.ActionUpdateStatus {
		kind := dom.NoticeKind(msg.Type)
		if kind == "" {
			kind = dom.NoticeInfo
		}
		t.update(func(s *State) {
			s.Status = msg.Message
			s.Kind = kind
		})
	}
	return nil
}

// Init checks the active tab and makes sure an agent is attached. Nothing is
// sent when the tab is not on the target domain.
func (t *Trigger) Init(ctx context.Context) State {
	tab, err := t.tabs.ActiveTab(ctx)
	if err != nil || tab == nil {
		t.fail("Error: " + controller.ErrNoActiveTab.Error())
		return t.State()
	}
	if !controller.MatchesDomain(tab.URL, t.opts.Domain) {
		t.fail(StatusWrongSite)
		return t.State()
	}

	resp, err := t.bus.Send(ctx, messaging.Controller, messaging.Message{Action: messaging.ActionEnsureContentScript})
	if err != nil || resp == nil || !resp.Success {
		if err != nil {
			t.log.Warnf("ensureContentScript failed: %v", err)
		}
		t.fail("Error: " + errInitFailed.Error())
		return t.State()
	}
	t.set(State{Enabled: true, Status: StatusReady, Kind: dom.NoticeSuccess})
	return t.State()
}

// NeedsNavigation reports whether the active tab is off the invoices page.
func (t *Trigger) NeedsNavigation(ctx context.Context) bool {
	tab, err := t.tabs.ActiveTab(ctx)
	if err != nil || tab == nil {
		return false
	}
	return !strings.Contains(tab.URL, t.opts.InvoicesPath)
}

// Click runs one export and returns the agent's response. confirm is asked
// before leaving a non-invoices page; a nil confirm accepts. The returned
// error is what the status line shows.
func (t *Trigger) Click(ctx context.Context, confirm ConfirmFunc) (*messaging.Response, error) {
	if s := t.State(); !s.Enabled || s.Busy {
		return nil, ErrDisabled
	}

	tab, err := t.tabs.ActiveTab(ctx)
	if err != nil || tab == nil || tab.ID == "" {
		return nil, t.failAndEnable(controller.ErrNoActiveTab)
	}

	if !strings.Contains(tab.URL, t.opts.InvoicesPath) && confirm != nil && !confirm(ConfirmNavigation) {
		t.update(func(s *State) {
			s.Status = StatusCancelled
			s.Kind = dom.NoticeError
		})
		return nil, ErrCancelled
	}

	t.set(State{Busy: true, Status: StatusStarting, Kind: dom.NoticeInfo})

	resp, err := t.bus.Send(ctx, messaging.Controller, messaging.Message{Action: messaging.ActionEnsureContentScript})
	if err != nil || resp == nil || !resp.Success {
		return nil, t.failAndEnable(errInitFailed)
	}

	t.log.Infof("sending download message to tab %s", tab.ID)
	resp, err = t.bus.Send(ctx, messaging.Tab(tab.ID), messaging.Message{Action: messaging.ActionDownloadInvoices})
	if err != nil {
		return nil, t.failAndEnable(err)
	}
	if resp == nil {
		return nil, t.failAndEnable(errNoResponse)
	}
	t.log.Debugf("received response: %+v", *resp)
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "Unknown error"
		}
		return resp, t.failAndEnable(errors.New(msg))
	}

	msg := resp.Message
	if msg == "" {
		msg = "Download started!"
	}
	t.set(State{Busy: true, Status: msg, Kind: dom.NoticeSuccess})
	if err := t.clock.Sleep(ctx, t.opts.ReadyDelay); err != nil {
		t.set(State{Enabled: true, Status: msg, Kind: dom.NoticeSuccess})
		return resp, nil
	}
	t.set(State{Enabled: true, Status: StatusReady, Kind: dom.NoticeSuccess})
	return resp, nil
}

func (t *Trigger) fail(status string) {
	t.set(State{Enabled: false, Status: status, Kind: dom.NoticeError})
}

func (t *Trigger) failAndEnable(err error) error {
	t.log.Errorf("%v", err)
	t.set(State{Enabled: true, Status: "Error: " + err.Error(), Kind: dom.NoticeError})
	return err
}

func (t *Trigger) set(s State) {
	t.update(func(cur *State) { *cur = s })
}

func (t *Trigger) update(fn func(*State)) {
	t.mu.Lock()
	fn(&t.state)
	s := t.state
	cb := t.onChange
	t.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}
