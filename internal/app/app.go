// Package app wires the message bus, the controller, the trigger and the
// page agents for one browser session.
package app

import (
	"context"
	"errors"
	"fmt"

	"stripedl/internal/agent"
	"stripedl/internal/clock"
	"stripedl/internal/config"
	"stripedl/internal/controller"
	"stripedl/internal/dom"
	"stripedl/internal/logging"
	"stripedl/internal/messaging"
	"stripedl/internal/sites/stripe"
	"stripedl/internal/trigger"
)

// App is a running extension session.
type App struct {
	Bus        *messaging.Bus
	Controller *controller.Controller
	Trigger    *trigger.Trigger

	tabs controller.TabProvider
	stop []func()
}

// New assembles the components and registers them on a fresh bus.
func New(tabs controller.TabProvider, cfg *config.Config, c clock.Clock, log *logging.Logger) *App {
	if log == nil {
		log = logging.Discard()
	}
	bus := messaging.NewBus(log.With("bus"))
	agentCfg := stripe.AgentConfig(cfg)

	factory := func(page dom.Page, tab controller.Tab) messaging.Handler {
		return agent.New(page, agentCfg, c, bus, log.With("agent"))
	}
	ctrl := controller.New(tabs, bus, cfg.Dashboard.Domain, factory, log.With("controller"))
	trig := trigger.New(tabs, bus, c, trigger.Options{
		Domain:       cfg.Dashboard.Domain,
		InvoicesPath: cfg.Dashboard.InvoicesPath,
		ReadyDelay:   cfg.Flow.ReadyDelay,
	}, log.With("trigger"))

	return &App{
		Bus:        bus,
		Controller: ctrl,
		Trigger:    trig,
		tabs:       tabs,
		stop:       []func(){ctrl.Start(), trig.Listen()},
	}
}

func (a *App) Close() {
	for i := len(a.stop) - 1; i >= 0; i-- {
		a.stop[i]()
	}
	a.stop = nil
}

// ActiveURL returns the URL of the active tab, or "" when there is none.
func (a *App) ActiveURL(ctx context.Context) string {
	tab, err := a.tabs.ActiveTab(ctx)
	if err != nil || tab == nil {
		return ""
	}
	return tab.URL
}

// Download opens the trigger and presses it once, accepting navigation to
// the invoices page.
func (a *App) Download(ctx context.Context) (agent.Outcome, error) {
	state := a.Trigger.Init(ctx)
	if !state.Enabled {
		return agent.Outcome{Success: false, Error: state.Status}, fmt.Errorf("trigger unavailable: %s", state.Status)
	}

	resp, err := a.Trigger.Click(ctx, func(string) bool { return true })
	if resp == nil {
		if err == nil {
			err = errors.New("no response")
		}
		return agent.Outcome{Success: false, Error: err.Error()}, err
	}
	out := agent.Outcome{Success: resp.Success, Error: resp.Error, Message: resp.Message, File: resp.File}
	return out, err
}
