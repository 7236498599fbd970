// Package cli provides the command-line front-end for auto-mudfish.
// It renders results from the vpn package and handles the interactive
// credential setup.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/yllada/auto-mudfish/common"
	"github.com/yllada/auto-mudfish/vault"
	"github.com/yllada/auto-mudfish/vpn"
)

// Engine is the part of vpn.Manager the CLI drives.
type Engine interface {
	SetupCredentials(username, password, adminURL string) error
	ShowCredentialInfo() (vault.CredentialInfo, error)
	ClearCredentials() error
	HasCredentials() bool
	CleanupDrivers() error
	Connect(ctx context.Context, opts vpn.Options) vpn.ConnectionResult
	Disconnect(ctx context.Context, opts vpn.Options) vpn.ConnectionResult
	Status(ctx context.Context, opts vpn.Options) vpn.ConnectionResult
}

var _ Engine = (*vpn.Manager)(nil)

// CLI represents the command-line interface.
type CLI struct {
	engine Engine
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
	// readPassword reads one line without echo.
	readPassword func() (string, error)

	title lipgloss.Style
	ok    lipgloss.Style
	fail  lipgloss.Style
	label lipgloss.Style
	hint  lipgloss.Style
}

// New creates a CLI reading from in and writing to out and errOut.
// Passwords are read without echo when in is a terminal.
func New(engine Engine, in io.Reader, out, errOut io.Writer) *CLI {
	c := &CLI{
		engine: engine,
		in:     bufio.NewReader(in),
		out:    out,
		errOut: errOut,
	}
	c.readPassword = c.readLine
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.readPassword = func() (string, error) {
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(c.out)
			return string(b), err
		}
	}

	r := lipgloss.NewRenderer(out)
	c.title = r.NewStyle().Bold(true).Underline(true)
	c.ok = r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	c.fail = r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	c.label = r.NewStyle().Bold(true).Width(12)
	c.hint = r.NewStyle().Faint(true)
	return c
}

// Setup stores credentials, prompting for any value not given.
func (c *CLI) Setup(username, password, adminURL string) error {
	fmt.Fprintln(c.out, c.title.Render("Mudfish credential setup"))
	fmt.Fprintln(c.out, "Credentials are encrypted for the current user and stored locally.")

	var err error
	if username == "" {
		if username, err = c.prompt("Mudfish username: "); err != nil {
			return err
		}
	}
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("%w: username cannot be empty", common.ErrInvalidConfig)
	}

	if password == "" {
		fmt.Fprint(c.out, "Mudfish password: ")
		if password, err = c.readPassword(); err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
	}
	if password == "" {
		return fmt.Errorf("%w: password cannot be empty", common.ErrInvalidConfig)
	}

	if adminURL == "" {
		if adminURL, err = c.prompt("Admin page URL (Enter for default): "); err != nil {
			return err
		}
	}

	if err := c.engine.SetupCredentials(strings.TrimSpace(username), password, strings.TrimSpace(adminURL)); err != nil {
		return err
	}
	fmt.Fprintln(c.out, c.ok.Render("✓ Credentials stored"))
	return nil
}

// ShowCredentials prints the stored record without its password.
func (c *CLI) ShowCredentials() error {
	if !c.engine.HasCredentials() {
		fmt.Fprintln(c.out, "No credentials stored.")
		return nil
	}

	info, err := c.engine.ShowCredentialInfo()
	if err != nil {
		return err
	}

	adminURL := info.AdminPageURL
	if adminURL == "" {
		adminURL = "Default"
	}
	password := "Not set"
	if info.HasPassword {
		password = "***"
	}

	c.field("Username", info.Username)
	c.field("Admin page", adminURL)
	c.field("Password", password)
	return nil
}

// ClearCredentials deletes the stored record.
func (c *CLI) ClearCredentials() error {
	if err := c.engine.ClearCredentials(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, c.ok.Render("✓ Credentials cleared"))
	return nil
}

// CleanupDrivers prunes the browser driver cache.
func (c *CLI) CleanupDrivers() error {
	if err := c.engine.CleanupDrivers(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, c.ok.Render("✓ Driver cleanup completed"))
	return nil
}

// Run performs action and prints the result. It returns an error when the
// run did not end in the requested state.
func (c *CLI) Run(ctx context.Context, action common.Action, opts vpn.Options) error {
	var res vpn.ConnectionResult
	switch action {
	case common.ActionConnect:
		res = c.engine.Connect(ctx, opts)
	case common.ActionDisconnect:
		res = c.engine.Disconnect(ctx, opts)
	default:
		res = c.engine.Status(ctx, opts)
	}

	c.printResult(res)
	if res.Success {
		return nil
	}
	if res.Err != nil {
		return res.Err
	}
	return errors.New(res.Message)
}

func (c *CLI) printResult(res vpn.ConnectionResult) {
	mark := c.ok.Render("✓")
	if !res.Success {
		mark = c.fail.Render("✗")
	}
	fmt.Fprintf(c.out, "%s %s\n", mark, res.Message)
	c.field("State", res.State.String())
	if res.StrategyUsed != vpn.StrategyNone {
		c.field("Login", res.StrategyUsed.String())
	}
}

// ReportError prints err with a hint for its kind and returns the exit code.
func (c *CLI) ReportError(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(c.errOut, "Error: %v\n", err)
	if h := Hint(common.KindOf(err)); h != "" {
		fmt.Fprintln(c.errOut, c.hint.Render(h))
	}
	return 1
}

// Hint suggests what to do about an error of kind k.
func Hint(k common.ErrorKind) string {
	switch k {
	case common.KindNoCredentials, common.KindVaultNotFound:
		return "Run with --setup to store credentials, or pass -u and -p."
	case common.KindVaultCorrupt:
		return "Stored credentials belong to another user or are damaged. Run --clear-credentials, then --setup."
	case common.KindLauncherNotFound:
		return "Install Mudfish or point -l/--launcher at mudrun."
	case common.KindNotRunning:
		return "Start Mudfish first, or run without --status to launch it."
	case common.KindNetwork:
		return "Check that the admin page is reachable (-a/--adminpage, --router)."
	case common.KindDriverMismatch:
		return "Install or update Google Chrome, or retry with --show-browser."
	case common.KindAuthenticationFailed, common.KindAuthRejected:
		return "Check your username and password; rerun with --debug for details."
	case common.KindInvalidConfig:
		return "Check the admin page URL and the configuration file."
	default:
		return ""
	}
}

func (c *CLI) field(name, value string) {
	fmt.Fprintf(c.out, "  %s%s\n", c.label.Render(name+":"), value)
}

func (c *CLI) prompt(text string) (string, error) {
	fmt.Fprint(c.out, text)
	return c.readLine()
}

func (c *CLI) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// PrintHelp prints CLI usage help.
func PrintHelp(w io.Writer) {
	fmt.Fprint(w, `auto-mudfish - Mudfish VPN login automation

Usage:
  auto-mudfish [OPTIONS]

Credentials:
  --setup                   Store credentials (prompts for missing values)
  --use-stored              Use stored credentials
  --show-credentials        Show stored credentials (password hidden)
  --clear-credentials       Delete stored credentials
  -u, --username NAME       Mudfish username
  -p, --password PASS       Mudfish password

Connection:
  -a, --adminpage URL       Admin page URL (default http://127.0.0.1:8282/signin.html)
  --router                  Use the router admin page http://192.168.1.1:8282/signin.html
  -l, --launcher PATH       Path to mudrun or its Start Menu shortcut
  --disconnect              Stop the VPN instead of starting it
  --status                  Report the VPN state without changing it
  --show-browser            Show the browser window during fallback login

General:
  --cleanup-chromedriver    Remove superseded cached browser drivers
  --config PATH             Configuration file
  -v, --verbose             Informational logging
  --debug                   Debug logging
  --version                 Show version and exit
  --help                    Show this help message

Examples:
  auto-mudfish --setup
  auto-mudfish --use-stored
  auto-mudfish --use-stored --status
  auto-mudfish -u alice -p secret --router --disconnect
`)
}
