// Package main provides the entry point for auto-mudfish.
// auto-mudfish signs in to the Mudfish VPN admin page and starts, stops, or
// reports the VPN connection, launching the Mudfish client when needed.
//
// Features:
//   - Encrypted per-user credential storage
//   - Direct HTTP login with a headless browser fallback
//   - Launcher detection and start-up
//   - Browser driver cache management
//
// Usage:
//
//	auto-mudfish [options]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/yllada/auto-mudfish/cli"
	"github.com/yllada/auto-mudfish/common"
	"github.com/yllada/auto-mudfish/config"
	"github.com/yllada/auto-mudfish/vault"
	"github.com/yllada/auto-mudfish/vpn"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
// Default values are used for local development builds
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

type options struct {
	setup            bool
	useStored        bool
	showCredentials  bool
	clearCredentials bool
	cleanupDrivers   bool
	username         string
	password         string
	adminPage        string
	launcher         string
	router           bool
	verbose          bool
	debug            bool
	showBrowser      bool
	disconnect       bool
	status           bool
	configPath       string
	showVersion      bool
	showHelp         bool
}

func parseFlags(args []string) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet(common.AppName, flag.ContinueOnError)
	fs.Usage = func() { cli.PrintHelp(os.Stderr) }

	fs.BoolVar(&o.setup, "setup", false, "Store credentials")
	fs.BoolVar(&o.useStored, "use-stored", false, "Use stored credentials")
	fs.BoolVar(&o.showCredentials, "show-credentials", false, "Show stored credentials")
	fs.BoolVar(&o.clearCredentials, "clear-credentials", false, "Delete stored credentials")
	fs.BoolVar(&o.cleanupDrivers, "cleanup-chromedriver", false, "Remove superseded cached drivers")
	fs.StringVar(&o.username, "username", "", "Mudfish username")
	fs.StringVar(&o.username, "u", "", "Mudfish username (shorthand)")
	fs.StringVar(&o.password, "password", "", "Mudfish password")
	fs.StringVar(&o.password, "p", "", "Mudfish password (shorthand)")
	fs.StringVar(&o.adminPage, "adminpage", "", "Admin page URL")
	fs.StringVar(&o.adminPage, "a", "", "Admin page URL (shorthand)")
	fs.StringVar(&o.launcher, "launcher", "", "Path to the Mudfish launcher")
	fs.StringVar(&o.launcher, "l", "", "Path to the Mudfish launcher (shorthand)")
	fs.BoolVar(&o.router, "router", false, "Use the router admin page")
	fs.BoolVar(&o.verbose, "verbose", false, "Informational logging")
	fs.BoolVar(&o.verbose, "v", false, "Informational logging (shorthand)")
	fs.BoolVar(&o.debug, "debug", false, "Debug logging")
	fs.BoolVar(&o.showBrowser, "show-browser", false, "Show the browser window")
	fs.BoolVar(&o.disconnect, "disconnect", false, "Stop the VPN")
	fs.BoolVar(&o.status, "status", false, "Report the VPN state")
	fs.StringVar(&o.configPath, "config", "", "Configuration file")
	fs.BoolVar(&o.showVersion, "version", false, "Show version and exit")
	fs.BoolVar(&o.showHelp, "help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if o.disconnect && o.status {
		return nil, fmt.Errorf("--disconnect and --status are mutually exclusive")
	}
	if o.router && o.adminPage != "" {
		return nil, fmt.Errorf("--router and --adminpage are mutually exclusive")
	}
	if o.router {
		o.adminPage = common.DefaultRouterAdminPage
	}
	return o, nil
}

// String masks the password for logging.
func (o *options) String() string {
	return fmt.Sprintf("setup=%v use-stored=%v username=%q password=%s adminpage=%q launcher=%q show-browser=%v disconnect=%v status=%v config=%q",
		o.setup, o.useStored, o.username, common.MaskSecret(o.password), o.adminPage, o.launcher,
		o.showBrowser, o.disconnect, o.status, o.configPath)
}

func (o *options) logLevel() common.LogLevel {
	switch {
	case o.debug:
		return common.LevelDebug
	case o.verbose:
		return common.LevelInfo
	default:
		return common.LevelWarn
	}
}

func (o *options) action() common.Action {
	switch {
	case o.status:
		return common.ActionStatus
	case o.disconnect:
		return common.ActionDisconnect
	default:
		return common.ActionConnect
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args)
	if err == flag.ErrHelp {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	if opts.showHelp {
		cli.PrintHelp(os.Stdout)
		return 0
	}

	if opts.showVersion {
		fmt.Printf("%s v%s\n", common.AppName, appVersion)
		if buildTime != "unknown" {
			fmt.Printf("  Build:  %s\n", buildTime)
			fmt.Printf("  Commit: %s\n", commitSHA)
		}
		return 0
	}

	var cfg *config.Config
	if opts.configPath != "" {
		cfg, err = config.LoadFrom(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		if cfg == nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	level := opts.logLevel()
	if cfg.Verbose && level > common.LevelInfo {
		level = common.LevelInfo
	}
	logger, err := common.NewLogger(common.LogConfig{
		Level:       level,
		EnableFile:  true,
		MaxFileSize: 5 * 1024 * 1024, // 5MB
		MaxBackups:  5,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}
	defer logger.Close()
	logger.Debug("Parsed arguments: %s", opts)

	// Setup graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := vpn.NewManager(cfg, logger, vpn.Dependencies{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	app := cli.New(manager, os.Stdin, os.Stdout, os.Stderr)

	switch {
	case opts.setup:
		return app.ReportError(app.Setup(opts.username, opts.password, opts.adminPage))
	case opts.showCredentials:
		return app.ReportError(app.ShowCredentials())
	case opts.clearCredentials:
		return app.ReportError(app.ClearCredentials())
	case opts.cleanupDrivers:
		return app.ReportError(app.CleanupDrivers())
	}

	if !opts.useStored && (opts.username == "" || opts.password == "") {
		fmt.Fprintln(os.Stderr, "Error: username and password are required unless using --use-stored")
		return 2
	}

	callOpts := vpn.Options{
		AdminPageURL: opts.adminPage,
		LauncherPath: opts.launcher,
	}
	if !opts.useStored {
		callOpts.Credentials = &vault.CredentialRecord{Username: opts.username, Password: opts.password}
	}
	if opts.showBrowser {
		show := true
		callOpts.ShowBrowser = &show
	}

	return app.ReportError(app.Run(ctx, opts.action(), callOpts))
}
