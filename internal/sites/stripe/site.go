// Package stripe holds everything stripedl knows about the Stripe dashboard:
// where the controls are, how to log in and how to report a run.
package stripe

import (
	"stripedl/internal/agent"
	"stripedl/internal/config"
	"stripedl/internal/dom"
	"stripedl/internal/locator"
)

const (
	// OpenExportSelector is the invoices list toolbar button that opens the
	// export modal.
	OpenExportSelector = `[data-testid="export-modal-button"]`
	// ConfirmExportXPath is the absolute position of the modal's export
	// button in the dashboard layout at the time of writing.
	ConfirmExportXPath = `//*[@id="merch"]/div[5]/div[3]/div/span[2]/div/div/div/div/div[3]/div/div/div/div[2]/div/div[1]/button`

	DateRangeSelector = `button[data-testid="date-range-trigger"]`
)

// Steps returns the lookup strategies of the invoice export flow. The confirm
// control is tried by structural path, then by text inside an open dialog,
// then by any button text, role=button text and finally class name.
func Steps() agent.Steps {
	return agent.Steps{
		Open: dom.Selector(OpenExportSelector),
		Confirm: dom.AnyOf(
			dom.XPath(ConfirmExportXPath),
			dom.Text("export", `[role="dialog"] button`),
			dom.Text("export"),
			dom.RoleText("export"),
			dom.ClassContains("export"),
		),
		Close:     dom.Text("close", "button", "a", `div[role="button"]`),
		DateRange: dom.Selector(DateRangeSelector),
		AllTime:   dom.Text("all time", "button", "li", `[role="option"]`, `[role="menuitem"]`),
	}
}

// DashboardMarkers match elements present on any logged-in dashboard page.
func DashboardMarkers() dom.Strategy {
	return dom.AnyOf(
		dom.Selector(`[data-testid="nav-sidebar"]`),
		dom.Selector(`[data-testid="main-header"]`),
		dom.Selector(".Dashboard"),
		dom.Selector(".dashboard"),
		dom.Selector(".db-NavHeader"),
		dom.Selector(".nav-header"),
	)
}

// LoginErrorBanner matches the login form's credential error.
func LoginErrorBanner() dom.Strategy {
	return dom.AnyOf(
		dom.Text("invalid email or password", `[role="alert"]`, "div", "span", "p"),
		dom.Text("authentication failed", `[role="alert"]`, "div", "span", "p"),
	)
}

// AgentConfig maps the application configuration onto a page agent.
func AgentConfig(cfg *config.Config) agent.Config {
	return agent.Config{
		InvoicesURL:  cfg.Dashboard.InvoicesURL,
		InvoicesPath: cfg.Dashboard.InvoicesPath,
		Steps:        Steps(),
		Locator: locator.Options{
			MaxAttempts: cfg.Locator.MaxAttempts,
			Timeout:     cfg.Locator.Timeout,
			Interval:    cfg.Locator.Interval,
			Backoff:     cfg.Locator.Backoff,
		},
		OpenAttempts:     cfg.Flow.OpenAttempts,
		OpenTimeout:      cfg.Flow.OpenTimeout,
		NavigationSettle: cfg.Flow.NavigationSettle,
		Settle:           cfg.Flow.Settle,
		ModalSettle:      cfg.Flow.ModalSettle,
		ExportSettle:     cfg.Flow.ExportSettle,
		CloseSettle:      cfg.Flow.CloseSettle,
		DownloadDelay:    cfg.Flow.DownloadDelay,
		DownloadTimeout:  cfg.Flow.DownloadTimeout,
		ReloadDelay:      cfg.Flow.ReloadDelay,
		AllTime:          cfg.Flow.AllTime,
		DownloadDir:      cfg.Browser.DownloadDir,
		SnapshotDir:      cfg.Flow.SnapshotDir,
	}
}
