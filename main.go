package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stripedl/internal/app"
	"stripedl/internal/browser"
	"stripedl/internal/clock"
	"stripedl/internal/config"
	"stripedl/internal/controller"
	"stripedl/internal/formatter"
	"stripedl/internal/htmldoc"
	"stripedl/internal/logging"
	"stripedl/internal/sites/stripe"
	"stripedl/internal/snapshot"
	"stripedl/internal/tui"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath   string
	showUI       bool
	proxyURL     string
	debug        bool
	outputFormat string
	outputFile   string
	allTime      bool
	snapshotDir  string
	downloadDir  string
	pageURL      string

	cfg *config.Config
)

func main() {
	var rootCmd = &cobra.Command{
		Use:     "stripedl",
		Short:   "Export the invoice list from the Stripe dashboard",
		Version: version,
		Long: `stripedl drives a Chrome instance through the Stripe dashboard export flow:
it opens the invoices page, presses Export, confirms the export modal and
stores the downloaded CSV. Sign in once with "stripedl login"; the browser
profile is kept in the configured user data directory.`,
		Example: `  # Sign in (opens a browser window when no credentials are configured)
  stripedl login --showui

  # Export invoices and print a JSON report
  stripedl download -f json

  # Export every invoice, not just the default date range
  stripedl download --all-time -o report.md

  # Interactive download button
  stripedl ui --showui

  # Check which controls a saved page exposes
  stripedl check snapshots/snapshot-20240501_090000.html`,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logging.Close()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&showUI, "showui", false, "Show browser UI (disable headless mode)")
	rootCmd.PersistentFlags().StringVarP(&proxyURL, "proxy", "p", os.Getenv("STRIPEDL_PROXY"), "Proxy URL (e.g. http://127.0.0.1:7890), defaults to STRIPEDL_PROXY env var")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Run the invoice export once and report the outcome",
		Args:  cobra.NoArgs,
		RunE:  runDownload,
	}
	downloadCmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format (text, markdown, json)")
	downloadCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (format inferred from extension if -f not specified)")
	downloadCmd.Flags().BoolVar(&allTime, "all-time", false, "Select the \"All time\" date range before exporting")
	downloadCmd.Flags().StringVar(&snapshotDir, "snapshot-dir", "", "Write a page snapshot here when the export fails")
	downloadCmd.Flags().StringVar(&downloadDir, "download-dir", "", "Directory for the exported file")

	uiCmd := &cobra.Command{
		Use:   "ui",
		Short: "Interactive download button",
		Args:  cobra.NoArgs,
		RunE:  runUI,
	}
	uiCmd.Flags().BoolVar(&allTime, "all-time", false, "Select the \"All time\" date range before exporting")

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the dashboard and keep the session in the browser profile",
		Args:  cobra.NoArgs,
		RunE:  runLogin,
	}

	checkCmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Evaluate the export flow's lookups against a saved HTML page",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}
	checkCmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format (text, markdown, json)")
	checkCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path")
	checkCmd.Flags().StringVar(&pageURL, "url", "https://dashboard.stripe.com/invoices", "URL the snapshot was taken from")
	checkCmd.Flags().StringVar(&snapshotDir, "snapshot-dir", "", "Also write a Markdown rendering of the page here")

	rootCmd.AddCommand(downloadCmd, uiCmd, loginCmd, checkCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	if showUI {
		cfg.Browser.Headless = false
	}
	if cmd.Flags().Changed("proxy") || proxyURL != "" {
		cfg.Browser.ProxyURL = proxyURL
	}
	if debug {
		cfg.Log.Debug = true
	}
	if allTime {
		cfg.Flow.AllTime = true
	}
	if snapshotDir != "" {
		cfg.Flow.SnapshotDir = snapshotDir
	}
	if downloadDir != "" {
		cfg.Browser.DownloadDir = downloadDir
	}

	if outputFile != "" && !cmd.Flags().Changed("format") {
		if inferred := formatter.InferFromExtension(outputFile); inferred != "" {
			outputFormat = inferred
		}
	}
	if outputFormat != "" && !formatter.Valid(outputFormat) {
		return fmt.Errorf("invalid output format: %s", outputFormat)
	}

	return logging.Init(logging.Options{Dir: cfg.Log.Dir, Debug: cfg.Log.Debug})
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func launch() (*browser.Browser, error) {
	return browser.New(browser.Config{
		Headless:    cfg.Browser.Headless,
		ProxyURL:    cfg.Browser.ProxyURL,
		UserDataDir: cfg.Browser.UserDataDir,
		DownloadDir: cfg.Browser.DownloadDir,
		Stealth:     cfg.Browser.Stealth,
	}, logging.NewLogger("browser"))
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	log := logging.NewLogger("download")

	b, err := launch()
	if err != nil {
		return err
	}
	defer b.Close()

	started := time.Now()
	if _, err := b.Open(ctx, cfg.Dashboard.InvoicesURL); err != nil {
		return fmt.Errorf("failed to open dashboard: %w", err)
	}

	a := app.New(b, cfg, clock.Real{}, log)
	defer a.Close()

	outcome, runErr := a.Download(ctx)
	report := stripe.NewReport(outcome, a.ActiveURL(ctx), started, time.Now())
	if err := formatter.Write(report, outputFormat, outputFile); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("invoice export failed: %w", runErr)
	}
	return nil
}

func runUI(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	log := logging.NewLogger("ui")

	b, err := launch()
	if err != nil {
		return err
	}
	defer b.Close()

	page, err := b.Open(ctx, cfg.Dashboard.InvoicesURL)
	if err != nil {
		return fmt.Errorf("failed to open dashboard: %w", err)
	}

	a := app.New(b, cfg, clock.Real{}, log)
	defer a.Close()
	b.WatchLoads(ctx, page, func(tab controller.Tab) {
		a.Controller.TabUpdated(ctx, tab, true)
	})

	return tui.Run(ctx, a.Trigger)
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	log := logging.NewLogger("login")

	creds := stripe.Credentials{Email: cfg.Login.Email, Password: cfg.Login.Password}
	if creds.Email == "" || creds.Password == "" {
		// A manual login needs a window.
		cfg.Browser.Headless = false
	}

	b, err := launch()
	if err != nil {
		return err
	}
	defer b.Close()

	page, err := b.NewPage(ctx)
	if err != nil {
		return err
	}

	err = stripe.NewLogin(page, cfg.Dashboard.LoginURL, cfg.Login.Timeout, clock.Real{}, log).Run(ctx, creds)
	switch {
	case errors.Is(err, stripe.ErrTwoFactor), errors.Is(err, stripe.ErrLoginTimeout):
		if md, serr := snapshot.Save(ctx, page, cfg.Flow.SnapshotDir, err.Error(), time.Now()); serr != nil {
			log.Warnf("failed to save snapshot: %v", serr)
		} else if md != "" {
			log.Infof("page snapshot written to %s", md)
		}
		return err
	case err != nil:
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Logged in. Session stored in %s\n", cfg.Browser.UserDataDir)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	doc, err := htmldoc.Load(args[0], pageURL)
	if err != nil {
		return err
	}

	report, err := stripe.Check(ctx, doc, args[0])
	if err != nil {
		return err
	}

	if cfg.Flow.SnapshotDir != "" {
		s, err := snapshot.Capture(ctx, doc, "check "+args[0], time.Now())
		if err != nil {
			return err
		}
		_, md, err := s.Write(cfg.Flow.SnapshotDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Snapshot written to: %s\n", md)
	}

	return formatter.Write(report, outputFormat, outputFile)
}
