// Package agent is the page agent: it runs the invoice export flow inside one
// browser tab and answers messages addressed to that tab.
package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"stripedl/internal/clock"
	"stripedl/internal/dom"
	"stripedl/internal/locator"
	"stripedl/internal/logging"
	"stripedl/internal/messaging"
	"stripedl/internal/snapshot"
)

// ErrBusy is returned when a flow is already running in the tab.
var ErrBusy = errors.New("a download is already in progress")

// Steps are the lookup strategies of the flow.
type Steps struct {
	Open      dom.Strategy
	Confirm   dom.Strategy
	Close     dom.Strategy
	DateRange dom.Strategy
	AllTime   dom.Strategy
}

// Config drives one page agent.
type Config struct {
	InvoicesURL  string
	InvoicesPath string
	Steps        Steps
	Locator      locator.Options

	OpenAttempts int
	OpenTimeout  time.Duration

	NavigationSettle time.Duration
	Settle           time.Duration
	ModalSettle      time.Duration
	ExportSettle     time.Duration
	CloseSettle      time.Duration
	DownloadDelay    time.Duration
	DownloadTimeout  time.Duration
	ReloadDelay      time.Duration

	AllTime bool
	// DownloadDir enables capturing the exported file when the page
	// implements dom.Downloader.
	DownloadDir string
	// SnapshotDir enables page snapshots on failure.
	SnapshotDir string
}

// Outcome is the result of a run as reported to the trigger UI.
type Outcome struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	File    string `json:"file,omitempty"`
}

// Response converts the outcome to its wire form.
func (o Outcome) Response() *messaging.Response {
	return &messaging.Response{Success: o.Success, Error: o.Error, Message: o.Message, File: o.File}
}

// Agent runs the export flow against a page.
type Agent struct {
	page    dom.Page
	locator *locator.Locator
	clock   clock.Clock
	bus     *messaging.Bus
	cfg     Config
	log     *logging.Logger
	running atomic.Bool
}

// New creates a page agent. bus may be nil when nobody listens for progress.
func New(page dom.Page, cfg Config, c clock.Clock, bus *messaging.Bus, log *logging.Logger) *Agent {
	if log == nil {
		log = logging.Discard()
	}
	return &Agent{
		page:    page,
		locator: locator.New(page, c, log.With("locator"), cfg.Locator),
		clock:   c,
		bus:     bus,
		cfg:     cfg,
		log:     log,
	}
}

// Handle implements messaging.Handler.
func (a *Agent) Handle(ctx context.Context, msg messaging.Message) *messaging.Response {
	a.log.Debugf("received message: %s", msg.Action)
	switch msg.Action {
	case messaging.ActionDownloadInvoices:
		return a.DownloadInvoices(ctx).Response()
	default:
		return &messaging.Response{Success: false, Error: "Unknown action"}
	}
}

// DownloadInvoices runs the flow once. Only one run per agent may be in
// flight.
func (a *Agent) DownloadInvoices(ctx context.Context) Outcome {
	if !a.running.CompareAndSwap(false, true) {
		return Outcome{Success: false, Error: ErrBusy.Error()}
	}
	defer a.running.Store(false)

	file, err := a.run(ctx)
	if err != nil {
		a.log.Errorf("error downloading invoices: %v", err)
		a.notify(ctx, err.Error(), dom.NoticeError)
		a.snapshot(ctx, err)
		return Outcome{Success: false, Error: err.Error()}
	}

	msg := "Download started!"
	if file != "" {
		msg = "Invoices saved to " + file
	}
	return Outcome{Success: true, Message: msg, File: file}
}

func (a *Agent) run(ctx context.Context) (string, error) {
	if err := a.ensureInvoicesPage(ctx); err != nil {
		return "", err
	}

	if err := a.page.WaitLoad(ctx); err != nil {
		return "", fmt.Errorf("failed to wait for page load: %w", err)
	}
	if err := a.clock.Sleep(ctx, a.cfg.Settle); err != nil {
		return "", err
	}

	if a.cfg.AllTime {
		if err := a.selectAllTime(ctx); err != nil {
			return "", err
		}
	}

	a.notify(ctx, "Looking for export button...", dom.NoticeInfo)
	open, err := a.locator.Find(ctx, a.cfg.Steps.Open,
		locator.WithAttempts(a.cfg.OpenAttempts),
		locator.WithTimeout(a.cfg.OpenTimeout))
	if err != nil {
		return "", err
	}

	a.notify(ctx, "Found export button, starting download...", dom.NoticeInfo)
	if err := open.Click(ctx); err != nil {
		return "", fmt.Errorf("failed to click export button: %w", err)
	}

	a.notify(ctx, "Waiting for modal to fully load...", dom.NoticeInfo)
	if err := a.clock.Sleep(ctx, a.cfg.ModalSettle); err != nil {
		return "", err
	}

	collect := a.armDownload(ctx)

	confirm, err := a.locator.Find(ctx, a.cfg.Steps.Confirm)
	if err != nil {
		return "", fmt.Errorf("could not find Export button in modal: %w", err)
	}
	a.log.Infof("export button found: %s", confirm.Info())
	a.notify(ctx, "Found export button, attempting to click...", dom.NoticeInfo)
	if err := confirm.Click(ctx); err != nil {
		return "", fmt.Errorf("failed to click Export button in modal: %w", err)
	}
	if err := a.clock.Sleep(ctx, a.cfg.ExportSettle); err != nil {
		return "", err
	}

	if err := a.closeModal(ctx); err != nil {
		return "", err
	}

	a.notify(ctx, "Waiting for download to start...", dom.NoticeInfo)
	if err := a.clock.Sleep(ctx, a.cfg.DownloadDelay); err != nil {
		return "", err
	}
	if a.bus != nil {
		a.bus.Notify(ctx, messaging.Controller, messaging.Message{Action: messaging.ActionDownloadStarted})
	}
	file := a.collectDownload(ctx, collect)

	a.notify(ctx, "Download started successfully!", dom.NoticeSuccess)
	if err := a.clock.Sleep(ctx, a.cfg.ReloadDelay); err != nil {
		return "", err
	}

	a.notify(ctx, "Refreshing page...", dom.NoticeInfo)
	if err := a.page.Reload(ctx); err != nil {
		return "", fmt.Errorf("failed to reload page: %w", err)
	}
	return file, nil
}

func (a *Agent) ensureInvoicesPage(ctx context.Context) error {
	url, err := a.page.URL(ctx)
	if err != nil {
		return fmt.Errorf("failed to read page url: %w", err)
	}
	if strings.Contains(url, a.cfg.InvoicesPath) {
		return nil
	}

	a.notify(ctx, "Navigating to invoices page...", dom.NoticeInfo)
	if err := a.page.Navigate(ctx, a.cfg.InvoicesURL); err != nil {
		return fmt.Errorf("failed to navigate to invoices page: %w", err)
	}
	if err := a.page.WaitLoad(ctx); err != nil {
		return fmt.Errorf("failed to wait for invoices page: %w", err)
	}
	return a.clock.Sleep(ctx, a.cfg.NavigationSettle)
}

func (a *Agent) selectAllTime(ctx context.Context) error {
	a.notify(ctx, "Setting date range...", dom.NoticeInfo)
	trigger, err := a.locator.Find(ctx, a.cfg.Steps.DateRange)
	if err != nil {
		return fmt.Errorf("failed to find date range control: %w", err)
	}
	if err := trigger.Click(ctx); err != nil {
		return fmt.Errorf("failed to open date range: %w", err)
	}
	option, err := a.locator.Find(ctx, a.cfg.Steps.AllTime)
	if err != nil {
		return fmt.Errorf("failed to find date range option: %w", err)
	}
	if err := option.Click(ctx); err != nil {
		return fmt.Errorf("failed to select date range: %w", err)
	}
	if err := a.page.WaitLoad(ctx); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	return a.clock.Sleep(ctx, a.cfg.Settle)
}

// closeModal clicks the close control when one is showing. Its absence is
// not an error.
func (a *Agent) closeModal(ctx context.Context) error {
	el, err := a.locator.Probe(ctx, a.cfg.Steps.Close)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.log.Warnf("close control lookup failed: %v", err)
		return nil
	}
	if el == nil {
		a.log.Infof("close button/link not found")
		return nil
	}
	a.log.Infof("found close element: %s", el.Info())
	if err := el.Click(ctx); err != nil {
		a.log.Warnf("failed to click close element: %v", err)
		return nil
	}
	return a.clock.Sleep(ctx, a.cfg.CloseSettle)
}

type collector func(ctx context.Context) (string, error)

func (a *Agent) armDownload(ctx context.Context) collector {
	if a.cfg.DownloadDir == "" {
		return nil
	}
	d, ok := a.page.(dom.Downloader)
	if !ok {
		return nil
	}
	wait, err := d.ExpectDownload(ctx)
	if err != nil {
		a.log.Warnf("download capture unavailable: %v", err)
		return nil
	}
	return wait
}

// collectDownload waits for the armed download and moves it to
// stripe_invoices_<timestamp><ext>. Failures are logged: the export itself has
// already been requested.
func (a *Agent) collectDownload(ctx context.Context, collect collector) string {
	if collect == nil {
		return ""
	}
	wctx := ctx
	if a.cfg.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, a.cfg.DownloadTimeout)
		defer cancel()
	}
	src, err := collect(wctx)
	if err != nil {
		a.log.Warnf("download not captured: %v", err)
		return ""
	}

	ext := filepath.Ext(src)
	if ext == "" {
		ext = ".csv"
	}
	name := fmt.Sprintf("stripe_invoices_%s%s", a.clock.Now().Format("20060102_150405"), ext)
	dst := filepath.Join(a.cfg.DownloadDir, name)
	if err := os.MkdirAll(a.cfg.DownloadDir, 0755); err != nil {
		a.log.Warnf("failed to create download directory: %v", err)
		return src
	}
	if err := os.Rename(src, dst); err != nil {
		a.log.Warnf("failed to move download %s: %v", src, err)
		return src
	}
	a.log.Infof("download completed: %s", dst)
	return dst
}

// notify shows progress in the page and forwards it to the trigger UI.
func (a *Agent) notify(ctx context.Context, message string, kind dom.NoticeKind) {
	a.log.Infof("%s", message)
	if err := a.page.Notify(ctx, message, kind); err != nil {
		a.log.Debugf("in-page notification failed: %v", err)
	}
	if a.bus != nil {
		a.bus.Notify(ctx, messaging.Popup, messaging.Message{
			Action:  messaging.ActionUpdateStatus,
			Message: message,
			Type:    string(kind),
		})
	}
}

func (a *Agent) snapshot(ctx context.Context, cause error) {
	if ctx.Err() != nil {
		return
	}
	mdPath, err := snapshot.Save(ctx, a.page, a.cfg.SnapshotDir, cause.Error(), a.clock.Now())
	switch {
	case err != nil:
		a.log.Warnf("failed to save snapshot: %v", err)
	case mdPath != "":
		a.log.Infof("page snapshot written to %s", mdPath)
	}
}
