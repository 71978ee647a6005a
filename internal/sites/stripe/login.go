package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stripedl/internal/clock"
	"stripedl/internal/dom"
	"stripedl/internal/locator"
	"stripedl/internal/logging"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTwoFactor          = errors.New("2FA required - please complete the login once with --showui")
	ErrLoginTimeout       = errors.New("timed out waiting for the dashboard")
)

// Credentials for the dashboard login form.
type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) complete() bool {
	return c.Email != "" && c.Password != ""
}

// Login signs into the dashboard in page. With complete credentials it fills
// the form, otherwise it waits for the user to sign in by hand.
type Login struct {
	page     dom.Page
	locator  *locator.Locator
	clock    clock.Clock
	log      *logging.Logger
	loginURL string
	timeout  time.Duration
	interval time.Duration
}

// NewLogin creates a Login helper. timeout bounds the wait for the dashboard.
func NewLogin(page dom.Page, loginURL string, timeout time.Duration, c clock.Clock, log *logging.Logger) *Login {
	if log == nil {
		log = logging.Discard()
	}
	opts := locator.Options{MaxAttempts: 1, Timeout: 10 * time.Second, Interval: 500 * time.Millisecond}
	return &Login{
		page:     page,
		locator:  locator.New(page, c, log.With("locator"), opts),
		clock:    c,
		log:      log,
		loginURL: loginURL,
		timeout:  timeout,
		interval: time.Second,
	}
}

// Run performs the login. It returns nil once a dashboard marker shows.
func (l *Login) Run(ctx context.Context, creds Credentials) error {
	l.log.Infof("navigating to %s", l.loginURL)
	if err := l.page.Navigate(ctx, l.loginURL); err != nil {
		return fmt.Errorf("failed to navigate to login page: %w", err)
	}
	if err := l.page.WaitLoad(ctx); err != nil {
		return fmt.Errorf("failed to wait for login page: %w", err)
	}

	if el, err := l.locator.Probe(ctx, DashboardMarkers()); err == nil && el != nil {
		l.log.Infof("already logged in")
		return nil
	}

	if creds.complete() {
		if err := l.submit(ctx, creds); err != nil {
			return err
		}
	} else {
		l.log.Infof("no credentials configured, waiting up to %s for a manual login", l.timeout)
	}
	return l.waitForDashboard(ctx, creds.complete())
}

func (l *Login) submit(ctx context.Context, creds Credentials) error {
	l.log.Infof("logging in as %s", creds.Email)
	fields := []struct {
		selector string
		value    string
	}{
		{`input[name="email"]`, creds.Email},
		{`input[name="password"]`, creds.Password},
	}
	for _, f := range fields {
		el, err := l.locator.Find(ctx, dom.Selector(f.selector))
		if err != nil {
			return fmt.Errorf("failed to find login field: %w", err)
		}
		if err := el.Click(ctx); err != nil {
			return fmt.Errorf("failed to focus %s: %w", f.selector, err)
		}
		if err := el.Input(ctx, f.value); err != nil {
			return fmt.Errorf("failed to type into %s: %w", f.selector, err)
		}
	}

	submit, err := l.locator.Find(ctx, dom.Selector(`button[type="submit"]`))
	if err != nil {
		return fmt.Errorf("failed to find login button: %w", err)
	}
	if err := submit.Click(ctx); err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}
	return nil
}

func (l *Login) waitForDashboard(ctx context.Context, submitted bool) error {
	deadline := l.clock.Now().Add(l.timeout)
	for {
		if el, err := l.locator.Probe(ctx, DashboardMarkers()); err != nil {
			l.log.Warnf("dashboard probe failed: %v", err)
		} else if el != nil {
			l.log.Infof("dashboard detected")
			return nil
		}

		if submitted {
			if el, err := l.locator.Probe(ctx, LoginErrorBanner()); err == nil && el != nil {
				return ErrInvalidCredentials
			}
			if url, err := l.page.URL(ctx); err == nil && (strings.Contains(url, "2fa") || strings.Contains(url, "mfa")) {
				return ErrTwoFactor
			}
		}

		if !l.clock.Now().Before(deadline) {
			return ErrLoginTimeout
		}
		if err := l.clock.Sleep(ctx, l.interval); err != nil {
			return err
		}
	}
}
