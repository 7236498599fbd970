package vpn

import (
	"context"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yllada/auto-mudfish/common"
	"github.com/yllada/auto-mudfish/config"
	"github.com/yllada/auto-mudfish/keyring"
	"github.com/yllada/auto-mudfish/process"
	"github.com/yllada/auto-mudfish/vault"
)

// fakeStrategy replays a fixed sequence of outcomes.
type fakeStrategy struct {
	name    string
	results []common.SessionResult
	errs    []error

	mu    sync.Mutex
	calls []common.LoginRequest
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Attempt(_ context.Context, req common.LoginRequest) (common.SessionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.calls)
	f.calls = append(f.calls, req)
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if req.OnPhase != nil {
		req.OnPhase(common.PhaseSubmitting)
	}
	return f.results[i], err
}

func (f *fakeStrategy) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func succeeds(name string, state common.State) *fakeStrategy {
	return &fakeStrategy{name: name, results: []common.SessionResult{{Authenticated: true, State: state}}}
}

func rejects(name string, reason error) *fakeStrategy {
	return &fakeStrategy{name: name, results: []common.SessionResult{{Reason: reason}}}
}

// fakeLocator starts out running or not and flips on Launch.
type fakeLocator struct {
	running   bool
	launchErr error
	listErr   error

	launched []string
	checks   int
}

func (f *fakeLocator) IsRunning(context.Context) (process.State, error) {
	f.checks++
	if f.listErr != nil {
		return process.State{}, f.listErr
	}
	return process.State{Running: f.running, PID: 42}, nil
}

func (f *fakeLocator) Launch(_ context.Context, path string) (string, error) {
	f.launched = append(f.launched, path)
	if f.launchErr != nil {
		return "", f.launchErr
	}
	f.running = true
	return path, nil
}

func (f *fakeLocator) WaitRunning(context.Context, int, time.Duration) (process.State, error) {
	if !f.running {
		return process.State{}, common.ErrNotRunning
	}
	return process.State{Running: true, PID: 42}, nil
}

type fakeCleaner struct{ calls int }

func (f *fakeCleaner) Cleanup() error {
	f.calls++
	return nil
}

// fixture wires a Manager around fakes and a temp-dir vault.
type fixture struct {
	manager  *Manager
	vault    *vault.Vault
	locator  *fakeLocator
	direct   *fakeStrategy
	browser  *fakeStrategy
	cleaner  *fakeCleaner
	recorder *common.LogRecorder
	dials    []string
}

func newFixture(t *testing.T, direct, browser *fakeStrategy) *fixture {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Direct.RetryBackoff = time.Millisecond
	cfg.Launch.ReachBackoff = time.Millisecond

	f := &fixture{
		vault:    vault.New(filepath.Join(t.TempDir(), "credentials.json"), keyring.NewStaticCodec([]byte("test")), nil),
		locator:  &fakeLocator{running: true},
		direct:   direct,
		browser:  browser,
		cleaner:  &fakeCleaner{},
		recorder: common.NewLogRecorder(nil),
	}

	m, err := NewManager(cfg, f.recorder, Dependencies{
		Vault:   f.vault,
		Locator: f.locator,
		Direct:  direct,
		Browser: browser,
		Drivers: f.cleaner,
		Dial:    f.dial,
	})
	require.NoError(t, err)
	f.manager = m
	return f
}

func (f *fixture) dial(_ context.Context, _, address string) (net.Conn, error) {
	f.dials = append(f.dials, address)
	client, server := net.Pipe()
	server.Close()
	return client, nil
}

func (f *fixture) store(t *testing.T, adminURL string) {
	t.Helper()
	require.NoError(t, f.manager.SetupCredentials("alice", "s3cret", adminURL))
}
