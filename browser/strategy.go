// Package browser implements the browser-driven login to the Mudfish admin
// page and keeps a compatible headless browser build cached.
//
// Every attempt owns exactly one browser process, acquired through a
// Launcher and released by a deferred Session.Close on all exit paths,
// including panics raised mid-flow.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/yllada/auto-mudfish/common"
	"github.com/yllada/auto-mudfish/config"
)

// DriverResolver supplies browser binaries for each launch mode.
type DriverResolver interface {
	Resolve(ctx context.Context) (Driver, error)
	DetectBrowser(ctx context.Context) (BrowserInfo, error)
}

// Options configures a Strategy.
type Options struct {
	Waits     config.BrowserConfig
	Endpoints config.EndpointsConfig
	Launcher  Launcher
	// Drivers may be nil, in which case the launcher picks the browser.
	Drivers DriverResolver
	Logger  common.Logger
}

// Strategy signs in by driving a real browser.
type Strategy struct {
	waits     config.BrowserConfig
	endpoints config.EndpointsConfig
	launcher  Launcher
	drivers   DriverResolver
	logger    common.Logger
}

// New creates a browser-driven login strategy.
func New(opts Options) *Strategy {
	def := config.DefaultConfig()
	s := &Strategy{
		waits:     opts.Waits,
		endpoints: opts.Endpoints,
		launcher:  opts.Launcher,
		drivers:   opts.Drivers,
		logger:    opts.Logger,
	}
	if s.waits.LoginWait <= 0 {
		s.waits.LoginWait = def.Browser.LoginWait
	}
	if s.waits.ElementWait <= 0 {
		s.waits.ElementWait = def.Browser.ElementWait
	}
	if s.waits.ActionWait <= 0 {
		s.waits.ActionWait = def.Browser.ActionWait
	}
	if s.waits.PollInterval <= 0 {
		s.waits.PollInterval = def.Browser.PollInterval
	}
	if s.endpoints.StatusPath == "" {
		s.endpoints.StatusPath = def.Endpoints.StatusPath
	}
	if s.logger == nil {
		s.logger = common.NopLogger{}
	}
	if s.launcher == nil {
		s.launcher = ChromeLauncher{Logger: s.logger}
	}
	return s
}

// Name identifies the strategy in logs and errors.
func (s *Strategy) Name() string {
	return "browser"
}

// Attempt runs one browser session for req. Failures are reported through
// SessionResult.Reason; the error return is always nil.
func (s *Strategy) Attempt(ctx context.Context, req common.LoginRequest) (res common.SessionResult, err error) {
	opts, reason := s.launchOptions(ctx, req.ShowBrowser)
	if reason != nil {
		return rejected(reason), nil
	}

	sess, openErr := s.launcher.Open(ctx, opts)
	if openErr != nil {
		return rejected(fmt.Errorf("%w: %v", common.ErrDriverMismatch, openErr)), nil
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			s.logger.Warn("Browser did not close cleanly: %v", cerr)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			res, err = rejected(fmt.Errorf("browser session aborted: %v", r)), nil
		}
	}()

	return s.run(ctx, sess, req), nil
}

func (s *Strategy) launchOptions(ctx context.Context, show bool) (LaunchOptions, error) {
	opts := LaunchOptions{Headless: !show}
	if s.drivers == nil {
		return opts, nil
	}

	if show {
		// Visible mode uses the installed browser itself.
		if info, err := s.drivers.DetectBrowser(ctx); err == nil {
			opts.ExecPath = info.Path
		}
		return opts, nil
	}

	d, err := s.drivers.Resolve(ctx)
	if err != nil {
		return opts, err
	}
	opts.ExecPath = d.Path
	return opts, nil
}

func (s *Strategy) run(ctx context.Context, sess Session, req common.LoginRequest) common.SessionResult {
	if err := s.signIn(ctx, sess, req); err != nil {
		return rejected(err)
	}
	s.logger.Info("Browser login succeeded for %s", req.Username)

	if err := s.showStatusPage(ctx, sess, req.AdminURL); err != nil {
		return common.SessionResult{Authenticated: true, State: common.StateUnknown, Reason: err}
	}

	if req.Action != common.ActionStatus {
		req.Enter(common.PhaseSubmitting)
	}
	switch req.Action {
	case common.ActionConnect:
		s.toggle(ctx, sess, common.SelectorStartButton, common.SelectorStopButton, "connect")
	case common.ActionDisconnect:
		s.toggle(ctx, sess, common.SelectorStopButton, common.SelectorStartButton, "disconnect")
	}

	req.Enter(common.PhaseVerifyingStatus)
	state, err := s.readState(ctx, sess)
	if err != nil {
		s.logger.Warn("Could not read connection state: %v", err)
	}
	return common.SessionResult{Authenticated: true, State: state}
}

func (s *Strategy) signIn(ctx context.Context, sess Session, req common.LoginRequest) error {
	navCtx, cancel := context.WithTimeout(ctx, s.waits.ElementWait)
	defer cancel()

	if err := sess.Navigate(navCtx, req.AdminURL); err != nil {
		return fmt.Errorf("%w: navigate: %v", common.ErrNetwork, err)
	}
	if err := sess.WaitVisible(navCtx, common.SelectorUsername); err != nil {
		return fmt.Errorf("%s: %w", common.SelectorUsername, common.ErrElementNotFound)
	}

	for _, field := range []struct{ selector, value string }{
		{common.SelectorUsername, req.Username},
		{common.SelectorPassword, req.Password},
	} {
		if err := sess.SendKeys(navCtx, field.selector, field.value); err != nil {
			return fmt.Errorf("%s: %w", field.selector, common.ErrElementNotFound)
		}
	}
	if err := sess.Click(navCtx, common.SelectorSubmit); err != nil {
		return fmt.Errorf("%s: %w", common.SelectorSubmit, common.ErrElementNotFound)
	}

	signin, _ := url.Parse(req.AdminURL)
	loggedIn := func(ctx context.Context) bool {
		if s.anyVisible(ctx, sess, common.SelectorStartButton, common.SelectorStopButton) {
			return true
		}
		loc, err := sess.Location(ctx)
		return err == nil && !onPage(loc, signin)
	}
	if !s.poll(ctx, s.waits.LoginWait, loggedIn) {
		return fmt.Errorf("%w after %s", common.ErrLoginTimeout, s.waits.LoginWait)
	}
	return nil
}

// showStatusPage makes sure the VPN buttons are on screen, navigating to
// the status page when the login landed elsewhere.
func (s *Strategy) showStatusPage(ctx context.Context, sess Session, adminURL string) error {
	buttons := func(ctx context.Context) bool {
		return s.anyVisible(ctx, sess, common.SelectorStartButton, common.SelectorStopButton)
	}
	if buttons(ctx) {
		return nil
	}

	base, err := url.Parse(adminURL)
	if err != nil {
		return err
	}
	ref, err := url.Parse(s.endpoints.StatusPath)
	if err != nil {
		return err
	}
	target := base.ResolveReference(ref).String()

	navCtx, cancel := context.WithTimeout(ctx, s.waits.ElementWait)
	defer cancel()
	if err := sess.Navigate(navCtx, target); err != nil {
		return fmt.Errorf("%w: navigate: %v", common.ErrNetwork, err)
	}
	if !s.poll(ctx, s.waits.ElementWait, buttons) {
		return fmt.Errorf("VPN controls: %w", common.ErrElementNotFound)
	}
	return nil
}

// toggle clicks from when it is visible and waits for to appear. When from
// is hidden the VPN is already in the requested state.
func (s *Strategy) toggle(ctx context.Context, sess Session, from, to, name string) {
	visible, err := sess.Visible(ctx, from)
	if err != nil || !visible {
		s.logger.Debug("%s: %s not visible, nothing to click", name, from)
		return
	}
	if err := sess.Click(ctx, from); err != nil {
		s.logger.Warn("%s: click %s failed: %v", name, from, err)
		return
	}
	s.logger.Debug("Clicked %s", from)

	if !s.poll(ctx, s.waits.ActionWait, func(ctx context.Context) bool {
		ok, err := sess.Visible(ctx, to)
		return err == nil && ok
	}) {
		s.logger.Warn("%s: %s did not appear within %s", name, to, s.waits.ActionWait)
	}
}

func (s *Strategy) readState(ctx context.Context, sess Session) (common.State, error) {
	stop, err := sess.Visible(ctx, common.SelectorStopButton)
	if err != nil {
		return common.StateUnknown, err
	}
	start, err := sess.Visible(ctx, common.SelectorStartButton)
	if err != nil {
		return common.StateUnknown, err
	}
	switch {
	case stop && !start:
		return common.StateConnected, nil
	case start && !stop:
		return common.StateDisconnected, nil
	default:
		return common.StateUnknown, nil
	}
}

func (s *Strategy) anyVisible(ctx context.Context, sess Session, selectors ...string) bool {
	for _, sel := range selectors {
		if ok, err := sess.Visible(ctx, sel); err == nil && ok {
			return true
		}
	}
	return false
}

// poll checks cond every PollInterval until it holds or budget runs out.
func (s *Strategy) poll(ctx context.Context, budget time.Duration, cond func(context.Context) bool) bool {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	ticker := time.NewTicker(s.waits.PollInterval)
	defer ticker.Stop()
	for {
		if cond(ctx) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func rejected(reason error) common.SessionResult {
	return common.SessionResult{Authenticated: false, State: common.StateUnknown, Reason: reason}
}

func onPage(loc string, page *url.URL) bool {
	u, err := url.Parse(loc)
	if err != nil || page == nil {
		return true
	}
	return strings.EqualFold(u.Host, page.Host) && path.Clean("/"+u.Path) == path.Clean("/"+page.Path)
}

