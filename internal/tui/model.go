// Package tui is the interactive trigger: one button and a status line.
package tui

import (
	"context"
	"strings"

	"stripedl/internal/dom"
	"stripedl/internal/messaging"
	"stripedl/internal/trigger"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const buttonLabel = "Download Invoices"

// Controls is the trigger behind the button.
type Controls interface {
	Init(ctx context.Context) trigger.State
	State() trigger.State
	NeedsNavigation(ctx context.Context) bool
	Click(ctx context.Context, confirm trigger.ConfirmFunc) (*messaging.Response, error)
}

type stateMsg trigger.State

type clickDoneMsg struct {
	resp *messaging.Response
	err  error
}

type model struct {
	ctx        context.Context
	controls   Controls
	spinner    spinner.Model
	state      trigger.State
	confirming bool
	last       *messaging.Response
	quitting   bool
}

func newModel(ctx context.Context, controls Controls) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = infoStyle
	return model{
		ctx:      ctx,
		controls: controls,
		spinner:  s,
		state:    trigger.State{Status: "Checking active tab...", Kind: dom.NoticeInfo},
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.initCmd())
}

func (m model) initCmd() tea.Cmd {
	return func() tea.Msg {
		return stateMsg(m.controls.Init(m.ctx))
	}
}

func (m model) clickCmd(accept bool) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.controls.Click(m.ctx, func(string) bool { return accept })
		return clickDoneMsg{resp: resp, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case stateMsg:
		m.state = trigger.State(msg)
		return m, nil
	case clickDoneMsg:
		m.state = m.controls.State()
		m.last = msg.resp
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if m.confirming {
		switch key {
		case "y", "Y", "enter":
			m.confirming = false
			m.state.Busy = true
			return m, m.clickCmd(true)
		case "n", "N", "esc":
			m.confirming = false
			return m, m.clickCmd(false)
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	switch key {
	case "q", "esc", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "enter", " ", "d":
		if !m.state.Enabled || m.state.Busy {
			return m, nil
		}
		if m.controls.NeedsNavigation(m.ctx) {
			m.confirming = true
			return m, nil
		}
		m.state.Busy = true
		return m, m.clickCmd(true)
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Stripe Invoice Downloader"))
	b.WriteString("\n\n")

	if m.state.Enabled && !m.state.Busy {
		b.WriteString(buttonStyle.Render(buttonLabel))
	} else {
		b.WriteString(disabledButtonStyle.Render(buttonLabel))
	}
	b.WriteString("\n\n")

	status := statusStyle(m.state.Kind).Render(m.state.Status)
	if m.state.Busy {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(boxStyle.Render(status))
	b.WriteString("\n")

	if m.last != nil && m.last.File != "" {
		b.WriteString(successStyle.Render("Saved: " + m.last.File))
		b.WriteString("\n")
	}

	if m.confirming {
		b.WriteString("\n")
		b.WriteString(promptStyle.Render(strings.ReplaceAll(trigger.ConfirmNavigation, "\n\n", "\n")))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("y: go to invoices • n: stay here"))
	} else {
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter: download • q: quit"))
	}
	return b.String()
}

func statusStyle(kind dom.NoticeKind) lipgloss.Style {
	switch kind {
	case dom.NoticeSuccess:
		return successStyle
	case dom.NoticeError:
		return errorStyle
	default:
		return infoStyle
	}
}
