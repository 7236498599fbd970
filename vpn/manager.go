package vpn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yllada/auto-mudfish/browser"
	"github.com/yllada/auto-mudfish/common"
	"github.com/yllada/auto-mudfish/config"
	"github.com/yllada/auto-mudfish/direct"
	"github.com/yllada/auto-mudfish/keyring"
	"github.com/yllada/auto-mudfish/process"
	"github.com/yllada/auto-mudfish/vault"
)

// Common errors - re-exported from common package for convenience.
var (
	ErrNoCredentials        = common.ErrNoCredentials
	ErrAuthenticationFailed = common.ErrAuthenticationFailed
	ErrLauncherNotFound     = common.ErrLauncherNotFound
)

// ProcessLocator checks for and starts the Mudfish launcher.
type ProcessLocator interface {
	IsRunning(ctx context.Context) (process.State, error)
	Launch(ctx context.Context, path string) (string, error)
	WaitRunning(ctx context.Context, attempts int, interval time.Duration) (process.State, error)
}

// DriverCleaner prunes cached browser drivers.
type DriverCleaner interface {
	Cleanup() error
}

// Dependencies replaces the collaborators NewManager would build. Nil
// fields get the production implementation.
type Dependencies struct {
	Vault   CredentialStore
	Locator ProcessLocator
	Direct  LoginStrategy
	Browser LoginStrategy
	Drivers DriverCleaner
	Dial    DialFunc
}

// Manager is the entry point for credential management and VPN operations.
type Manager struct {
	cfg     *config.Config
	logger  common.Logger
	vault   CredentialStore
	locator ProcessLocator
	direct  LoginStrategy
	browser LoginStrategy
	drivers DriverCleaner
	dial    DialFunc
}

// NewManager creates a Manager from cfg. A nil cfg uses the defaults and a
// nil logger discards output.
func NewManager(cfg *config.Config, logger common.Logger, deps Dependencies) (*Manager, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = common.NopLogger{}
	}

	m := &Manager{
		cfg:     cfg,
		logger:  logger,
		vault:   deps.Vault,
		locator: deps.Locator,
		direct:  deps.Direct,
		browser: deps.Browser,
		drivers: deps.Drivers,
		dial:    deps.Dial,
	}

	if m.vault == nil {
		path, err := vault.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to locate credential vault: %w", err)
		}
		m.vault = vault.New(path, keyring.NewCodec(keyring.Options{RequireKeyring: cfg.RequireKeyring, Logger: logger}), logger)
	}
	if m.locator == nil {
		m.locator = process.NewLocator(process.Options{Logger: logger})
	}
	if m.direct == nil {
		m.direct = direct.New(direct.Options{
			Timeout:      cfg.Direct.Timeout,
			RequireToken: cfg.Direct.RequireToken,
			Endpoints:    cfg.Endpoints,
			Logger:       logger,
		})
	}
	if m.browser == nil || m.drivers == nil {
		drivers, err := browser.NewDriverManager(browser.DriverOptions{Config: cfg.Driver, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("failed to set up driver cache: %w", err)
		}
		if m.drivers == nil {
			m.drivers = drivers
		}
		if m.browser == nil {
			m.browser = browser.New(browser.Options{
				Waits:     cfg.Browser,
				Endpoints: cfg.Endpoints,
				Drivers:   drivers,
				Logger:    logger,
			})
		}
	}
	return m, nil
}

// SetupCredentials validates and stores credentials, replacing any
// previously stored record. An empty adminURL uses the configured page.
func (m *Manager) SetupCredentials(username, password, adminURL string) error {
	if adminURL == "" {
		adminURL = m.cfg.AdminPageURL
	}
	if err := config.ValidateAdminURL(adminURL); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	return m.vault.Store(vault.CredentialRecord{
		Username:     username,
		Password:     password,
		AdminPageURL: adminURL,
	})
}

// UseStoredCredentials loads the stored record.
func (m *Manager) UseStoredCredentials() (vault.CredentialRecord, error) {
	return m.vault.Load()
}

// ShowCredentialInfo returns the stored record without its password.
func (m *Manager) ShowCredentialInfo() (vault.CredentialInfo, error) {
	return m.vault.Info()
}

// ClearCredentials deletes the stored record.
func (m *Manager) ClearCredentials() error {
	return m.vault.Clear()
}

// HasCredentials reports whether a record is stored, without decrypting it.
func (m *Manager) HasCredentials() bool {
	return m.vault.Exists()
}

// CleanupDrivers removes superseded cached browser drivers.
func (m *Manager) CleanupDrivers() error {
	if m.drivers == nil {
		return nil
	}
	return m.drivers.Cleanup()
}

// Connect signs in and starts the VPN. Success means the admin page
// confirmed the connected state.
func (m *Manager) Connect(ctx context.Context, opts Options) ConnectionResult {
	return m.run(ctx, common.ActionConnect, opts)
}

// Disconnect signs in and stops the VPN.
func (m *Manager) Disconnect(ctx context.Context, opts Options) ConnectionResult {
	return m.run(ctx, common.ActionDisconnect, opts)
}

// Status signs in and reads the VPN state without changing it. It never
// starts the launcher.
func (m *Manager) Status(ctx context.Context, opts Options) ConnectionResult {
	return m.run(ctx, common.ActionStatus, opts)
}

// run is one pass through the connection state machine.
func (m *Manager) run(ctx context.Context, action Action, opts Options) ConnectionResult {
	r := &runLog{id: uuid.NewString()[:8], logger: m.logger}
	r.enter(common.PhaseIdle)
	r.logger.Info("[%s] %s requested", r.id, action)

	creds, err := m.resolveCredentials(opts)
	if err != nil {
		return r.fail(err)
	}
	adminURL := m.resolveAdminURL(opts, creds)
	if err := config.ValidateAdminURL(adminURL); err != nil {
		return r.fail(fmt.Errorf("%w: %v", common.ErrInvalidConfig, err))
	}
	r.logger.Debug("[%s] Using %s", r.id, (common.LoginRequest{AdminURL: adminURL, Username: creds.Username, Password: creds.Password, Action: action}).String())

	if isLoopback(adminURL) {
		r.enter(common.PhaseCheckingProcess)
		if res, stop := m.ensureLauncher(ctx, r, action, adminURL, opts); stop {
			return res
		}
	}

	showBrowser := m.cfg.ShowBrowser
	if opts.ShowBrowser != nil {
		showBrowser = *opts.ShowBrowser
	}
	req := common.LoginRequest{
		AdminURL:    adminURL,
		Username:    creds.Username,
		Password:    creds.Password,
		Action:      action,
		ShowBrowser: showBrowser,
		OnPhase:     r.enter,
	}

	r.enter(common.PhaseAuthenticating)
	session, kind, err := m.authenticate(ctx, r, req)
	if err != nil {
		r.logger.Error("[%s] %v", r.id, err)
		return r.fail(err)
	}
	return r.finish(action, session.State, kind)
}

func (m *Manager) resolveCredentials(opts Options) (vault.CredentialRecord, error) {
	if opts.Credentials != nil {
		if err := opts.Credentials.Validate(); err != nil {
			return vault.CredentialRecord{}, fmt.Errorf("%w: %v", common.ErrNoCredentials, err)
		}
		return *opts.Credentials, nil
	}

	rec, err := m.vault.Load()
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, common.ErrVaultNotFound):
		return vault.CredentialRecord{}, common.ErrNoCredentials
	default:
		return vault.CredentialRecord{}, err
	}
}

// resolveAdminURL picks the first of: call option, credential record,
// configuration, built-in default.
func (m *Manager) resolveAdminURL(opts Options, creds vault.CredentialRecord) string {
	for _, u := range []string{opts.AdminPageURL, creds.AdminPageURL, m.cfg.AdminPageURL} {
		if u != "" {
			return u
		}
	}
	return common.DefaultDesktopAdminPage
}

// ensureLauncher starts Mudfish when it is not running. stop is true when
// the run must end with res.
func (m *Manager) ensureLauncher(ctx context.Context, r *runLog, action Action, adminURL string, opts Options) (res ConnectionResult, stop bool) {
	state, err := m.locator.IsRunning(ctx)
	if err != nil {
		r.logger.Warn("[%s] Could not check for Mudfish: %v", r.id, err)
		return ConnectionResult{}, false
	}
	if state.Running {
		return ConnectionResult{}, false
	}

	if action == common.ActionStatus {
		r.enter(common.PhaseFailed)
		return ConnectionResult{
			Success:      false,
			State:        StateUnknown,
			Message:      "launcher is not running",
			StrategyUsed: StrategyNone,
			Err:          common.ErrNotRunning,
		}, true
	}

	launcherPath := opts.LauncherPath
	if launcherPath == "" {
		launcherPath = m.cfg.LauncherPath
	}
	if _, err := m.locator.Launch(ctx, launcherPath); err != nil {
		return r.fail(err), true
	}
	if _, err := m.locator.WaitRunning(ctx, m.cfg.Launch.PollAttempts, m.cfg.Launch.PollInterval); err != nil {
		return r.fail(err), true
	}

	check := ReachabilityCheck{
		Attempts: m.cfg.Launch.ReachAttempts,
		Backoff:  m.cfg.Launch.ReachBackoff,
		Dial:     m.dial,
		Logger:   r.logger,
	}
	if _, err := check.Wait(ctx, adminURL); err != nil {
		return r.fail(err), true
	}
	return ConnectionResult{}, false
}

// authenticate runs Direct, then Browser. Direct network failures are
// retried with linear backoff; Browser runs at most once.
func (m *Manager) authenticate(ctx context.Context, r *runLog, req common.LoginRequest) (common.SessionResult, StrategyKind, error) {
	tried := make([]string, 0, 2)
	reasons := make([]error, 0, 2)

	res, err := m.attemptDirect(ctx, r, req)
	tried = append(tried, m.direct.Name())
	if err == nil && res.Authenticated {
		return res, StrategyDirect, nil
	}
	reasons = append(reasons, reasonOf(res, err))
	r.logger.Warn("[%s] %s login failed: %v", r.id, m.direct.Name(), reasonOf(res, err))

	if ctxErr := ctx.Err(); ctxErr != nil {
		return common.SessionResult{}, StrategyNone, &common.AuthenticationFailedError{Tried: tried, Reasons: append(reasons, ctxErr)}
	}

	r.logger.Info("[%s] Falling back to %s login", r.id, m.browser.Name())
	res, err = m.browser.Attempt(ctx, req)
	tried = append(tried, m.browser.Name())
	if err == nil && res.Authenticated {
		return res, StrategyBrowser, nil
	}
	reasons = append(reasons, reasonOf(res, err))
	r.logger.Warn("[%s] %s login failed: %v", r.id, m.browser.Name(), reasonOf(res, err))

	return common.SessionResult{}, StrategyNone, &common.AuthenticationFailedError{Tried: tried, Reasons: reasons}
}

func (m *Manager) attemptDirect(ctx context.Context, r *runLog, req common.LoginRequest) (common.SessionResult, error) {
	retries := m.cfg.Direct.Retries
	for attempt := 0; ; attempt++ {
		res, err := m.direct.Attempt(ctx, req)
		if err == nil || !errors.Is(err, common.ErrNetwork) || attempt >= retries {
			return res, err
		}

		wait := time.Duration(attempt+1) * m.cfg.Direct.RetryBackoff
		r.logger.Info("[%s] Admin page not ready (%v), retrying in %v (%d/%d)", r.id, err, wait, attempt+1, retries)
		select {
		case <-ctx.Done():
			return res, err
		case <-time.After(wait):
		}
	}
}

func reasonOf(res common.SessionResult, err error) error {
	switch {
	case err != nil:
		return err
	case res.Reason != nil:
		return res.Reason
	default:
		return common.ErrAuthRejected
	}
}

// runLog tags every line of one run with its id.
type runLog struct {
	id     string
	logger common.Logger
}

func (r *runLog) enter(p Phase) {
	r.logger.Debug("[%s] phase %s", r.id, p)
}

func (r *runLog) fail(err error) ConnectionResult {
	r.enter(common.PhaseFailed)
	return ConnectionResult{
		Success:      false,
		State:        StateUnknown,
		Message:      err.Error(),
		StrategyUsed: StrategyNone,
		Err:          err,
	}
}

// finish turns a verified state into the result for action.
func (r *runLog) finish(action Action, state State, kind StrategyKind) ConnectionResult {
	res := ConnectionResult{State: state, StrategyUsed: kind}

	switch action {
	case common.ActionConnect:
		res.Success = state == StateConnected
	case common.ActionDisconnect:
		res.Success = state == StateDisconnected
	default:
		res.Success = state != StateUnknown
	}

	switch {
	case state == StateUnknown:
		res.Message = "connection state could not be verified"
	case res.Success && action == common.ActionStatus:
		res.Message = "VPN is " + state.String()
	case res.Success:
		res.Message = "VPN " + state.String()
	default:
		res.Message = fmt.Sprintf("%s submitted but VPN reports %s", action, state)
	}

	switch {
	case !res.Success:
		r.enter(common.PhaseFailed)
		r.logger.Warn("[%s] %s via %s: %s", r.id, action, kind, res.Message)
	case state == StateConnected:
		r.enter(common.PhaseConnected)
		r.logger.Info("[%s] %s", r.id, res.Message)
	default:
		r.enter(common.PhaseDisconnected)
		r.logger.Info("[%s] %s", r.id, res.Message)
	}
	return res
}
