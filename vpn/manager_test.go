package vpn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/auto-mudfish/common"
	"github.com/yllada/auto-mudfish/direct"
	"github.com/yllada/auto-mudfish/vault"
)

func TestStatus_NoCredentials(t *testing.T) {
	f := newFixture(t, succeeds("direct", StateConnected), succeeds("browser", StateConnected))

	res := f.manager.Status(context.Background(), Options{})

	assert.False(t, res.Success)
	assert.Equal(t, StateUnknown, res.State)
	assert.ErrorIs(t, res.Err, ErrNoCredentials)
	assert.Equal(t, common.KindNoCredentials, res.Kind())
	assert.Zero(t, f.direct.count())
	assert.Zero(t, f.browser.count())
}

func TestConnect_LaunchesThenDirect(t *testing.T) {
	f := newFixture(t, succeeds("direct", StateConnected), succeeds("browser", StateConnected))
	f.store(t, "")
	f.locator.running = false

	res := f.manager.Connect(context.Background(), Options{LauncherPath: "/opt/mudfish/mudrun"})

	require.True(t, res.Success, res.String())
	assert.Equal(t, StateConnected, res.State)
	assert.Equal(t, StrategyDirect, res.StrategyUsed)
	assert.NoError(t, res.Err)
	assert.Equal(t, []string{"/opt/mudfish/mudrun"}, f.locator.launched)
	assert.Equal(t, []string{"127.0.0.1:8282"}, f.dials)
	assert.Zero(t, f.browser.count())
}

func TestConnect_FallsBackToBrowser(t *testing.T) {
	f := newFixture(t, rejects("direct", common.ErrElementNotFound), succeeds("browser", StateConnected))
	f.store(t, "")

	res := f.manager.Connect(context.Background(), Options{})

	require.True(t, res.Success, res.String())
	assert.Equal(t, StateConnected, res.State)
	assert.Equal(t, StrategyBrowser, res.StrategyUsed)
	assert.Equal(t, 1, f.direct.count(), "rejections are not retried")
	assert.Equal(t, 1, f.browser.count())
}

func TestConnect_BothStrategiesExhausted(t *testing.T) {
	f := newFixture(t, rejects("direct", common.ErrAuthRejected), rejects("browser", common.ErrLoginTimeout))
	f.store(t, "")

	res := f.manager.Connect(context.Background(), Options{})

	assert.False(t, res.Success)
	assert.Equal(t, StateUnknown, res.State)
	assert.Equal(t, StrategyNone, res.StrategyUsed)

	var authErr *common.AuthenticationFailedError
	require.ErrorAs(t, res.Err, &authErr)
	assert.Equal(t, []string{"direct", "browser"}, authErr.Tried)
	assert.ErrorIs(t, res.Err, common.ErrLoginTimeout)
	assert.Equal(t, common.KindAuthenticationFailed, res.Kind())

	var logged bool
	for _, e := range f.recorder.Entries() {
		if e.Level == common.LevelError && strings.Contains(e.Message, common.ErrAuthenticationFailed.Error()) {
			logged = true
		}
	}
	assert.True(t, logged, "authentication failure should be logged")
}

func TestConnect_RetriesDirectOnNetworkError(t *testing.T) {
	netErr := fmt.Errorf("%w: connection refused", common.ErrNetwork)
	direct := &fakeStrategy{
		name:    "direct",
		results: []common.SessionResult{{}, {}, {Authenticated: true, State: StateConnected}},
		errs:    []error{netErr, netErr},
	}
	f := newFixture(t, direct, succeeds("browser", StateConnected))
	f.store(t, "")

	res := f.manager.Connect(context.Background(), Options{})

	require.True(t, res.Success, res.String())
	assert.Equal(t, StrategyDirect, res.StrategyUsed)
	assert.Equal(t, 3, direct.count())
	assert.Zero(t, f.browser.count())
}

func TestConnect_RetryBudgetExhausted(t *testing.T) {
	netErr := fmt.Errorf("%w: connection refused", common.ErrNetwork)
	direct := &fakeStrategy{name: "direct", results: []common.SessionResult{{}}, errs: []error{netErr, netErr, netErr, netErr}}
	f := newFixture(t, direct, succeeds("browser", StateConnected))
	f.store(t, "")

	res := f.manager.Connect(context.Background(), Options{})

	assert.True(t, res.Success)
	assert.Equal(t, StrategyBrowser, res.StrategyUsed)
	assert.Equal(t, 1+f.manager.cfg.Direct.Retries, direct.count())
	assert.Equal(t, 1, f.browser.count())
}

func TestRun_IdempotentActions(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		state   State
		success bool
	}{
		{"connect when connected", common.ActionConnect, StateConnected, true},
		{"connect reports disconnected", common.ActionConnect, StateDisconnected, false},
		{"disconnect when disconnected", common.ActionDisconnect, StateDisconnected, true},
		{"disconnect reports connected", common.ActionDisconnect, StateConnected, false},
		{"status connected", common.ActionStatus, StateConnected, true},
		{"status disconnected", common.ActionStatus, StateDisconnected, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, succeeds("direct", tt.state), rejects("browser", common.ErrLoginTimeout))
			f.store(t, "")

			res := f.manager.run(context.Background(), tt.action, Options{})

			assert.Equal(t, tt.success, res.Success, res.String())
			assert.Equal(t, tt.state, res.State)
			assert.Equal(t, StrategyDirect, res.StrategyUsed)
			require.Len(t, f.direct.calls, 1)
			assert.Equal(t, tt.action, f.direct.calls[0].Action)
		})
	}
}

func TestRun_UnknownStateIsNotSuccess(t *testing.T) {
	f := newFixture(t, rejects("direct", common.ErrElementNotFound), succeeds("browser", StateUnknown))
	f.store(t, "")

	res := f.manager.Disconnect(context.Background(), Options{})

	assert.False(t, res.Success)
	assert.Equal(t, StateUnknown, res.State)
	assert.Equal(t, StrategyBrowser, res.StrategyUsed)
}

func TestStatus_NeverLaunches(t *testing.T) {
	f := newFixture(t, succeeds("direct", StateConnected), succeeds("browser", StateConnected))
	f.store(t, "")
	f.locator.running = false

	res := f.manager.Status(context.Background(), Options{})

	assert.False(t, res.Success)
	assert.Equal(t, StateUnknown, res.State)
	assert.ErrorIs(t, res.Err, common.ErrNotRunning)
	assert.Equal(t, "launcher is not running", res.Message)
	assert.Empty(t, f.locator.launched)
	assert.Zero(t, f.direct.count())
}

func TestConnect_LauncherFailures(t *testing.T) {
	tests := []struct {
		name      string
		launchErr error
		want      common.ErrorKind
	}{
		{"not found", &common.LauncherNotFoundError{Searched: []string{"/nope/mudrun"}}, common.KindLauncherNotFound},
		{"never starts", nil, common.KindNotRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, succeeds("direct", StateConnected), succeeds("browser", StateConnected))
			f.store(t, "")
			f.locator.running = false
			f.locator.launchErr = tt.launchErr
			if tt.launchErr == nil {
				// Launch succeeds but the process never shows up.
				f.manager.locator = &stuckLocator{fakeLocator: f.locator}
			}

			res := f.manager.Connect(context.Background(), Options{})

			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.Kind())
			assert.Zero(t, f.direct.count())
		})
	}
}

type stuckLocator struct{ *fakeLocator }

func (s *stuckLocator) Launch(ctx context.Context, path string) (string, error) {
	_, err := s.fakeLocator.Launch(ctx, path)
	s.running = false
	return path, err
}

func TestRun_SkipsProcessCheckForRemoteAdminPage(t *testing.T) {
	f := newFixture(t, succeeds("direct", StateConnected), succeeds("browser", StateConnected))
	f.store(t, common.DefaultRouterAdminPage)
	f.locator.running = false

	res := f.manager.Connect(context.Background(), Options{})

	assert.True(t, res.Success, res.String())
	assert.Zero(t, f.locator.checks)
	assert.Empty(t, f.dials)
}

func TestRun_ProcessListingErrorProceeds(t *testing.T) {
	f := newFixture(t, succeeds("direct", StateConnected), succeeds("browser", StateConnected))
	f.store(t, "")
	f.locator.listErr = errors.New("access denied")

	res := f.manager.Connect(context.Background(), Options{})

	assert.True(t, res.Success, res.String())
	assert.Empty(t, f.locator.launched)
}

func TestRun_CredentialResolution(t *testing.T) {
	explicit := &vault.CredentialRecord{Username: "bob", Password: "hunter2", AdminPageURL: "http://127.0.0.1:9000/signin.html"}

	tests := []struct {
		name      string
		stored    bool
		opts      Options
		wantUser  string
		wantAdmin string
	}{
		{"stored record", true, Options{}, "alice", "http://127.0.0.1:8282/signin.html"},
		{"explicit wins over vault", true, Options{Credentials: explicit}, "bob", "http://127.0.0.1:9000/signin.html"},
		{
			"option url wins over record",
			true,
			Options{AdminPageURL: "http://localhost:8383/signin.html"},
			"alice",
			"http://localhost:8383/signin.html",
		},
		{
			"explicit without url uses config",
			false,
			Options{Credentials: &vault.CredentialRecord{Username: "carol", Password: "pw"}},
			"carol",
			common.DefaultDesktopAdminPage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, succeeds("direct", StateConnected), succeeds("browser", StateConnected))
			if tt.stored {
				f.store(t, "")
			}

			res := f.manager.Connect(context.Background(), tt.opts)

			require.True(t, res.Success, res.String())
			require.Len(t, f.direct.calls, 1)
			assert.Equal(t, tt.wantUser, f.direct.calls[0].Username)
			assert.Equal(t, tt.wantAdmin, f.direct.calls[0].AdminURL)
		})
	}
}

func TestRun_InvalidExplicitCredentials(t *testing.T) {
	f := newFixture(t, succeeds("direct", StateConnected), succeeds("browser", StateConnected))
	f.store(t, "")

	res := f.manager.Connect(context.Background(), Options{Credentials: &vault.CredentialRecord{Username: "bob"}})

	assert.ErrorIs(t, res.Err, ErrNoCredentials)
	assert.Zero(t, f.direct.count())
}

func TestRun_ShowBrowserOverride(t *testing.T) {
	f := newFixture(t, rejects("direct", common.ErrElementNotFound), succeeds("browser", StateConnected))
	f.store(t, "")
	show := true

	f.manager.Connect(context.Background(), Options{ShowBrowser: &show})

	require.Len(t, f.browser.calls, 1)
	assert.True(t, f.browser.calls[0].ShowBrowser)
}

func TestRun_NeverLogsPassword(t *testing.T) {
	f := newFixture(t, rejects("direct", common.ErrAuthRejected), rejects("browser", common.ErrLoginTimeout))
	f.store(t, "")

	f.manager.Connect(context.Background(), Options{})
	f.manager.Status(context.Background(), Options{})

	entries := f.recorder.Entries()
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.NotContains(t, e.Message, "s3cret")
	}
}

func TestRun_LogsPhases(t *testing.T) {
	f := newFixture(t, succeeds("direct", StateConnected), succeeds("browser", StateConnected))
	f.store(t, "")

	f.manager.Connect(context.Background(), Options{})

	var phases []string
	for _, e := range f.recorder.Entries() {
		if i := strings.Index(e.Message, "phase "); i >= 0 {
			phases = append(phases, e.Message[i+len("phase "):])
		}
	}
	assert.Equal(t, []string{"Idle", "CheckingProcess", "Authenticating", "Submitting", "Connected"}, phases)
}

func TestCredentialFacade(t *testing.T) {
	f := newFixture(t, succeeds("direct", StateConnected), succeeds("browser", StateConnected))
	m := f.manager

	assert.False(t, m.HasCredentials())
	_, err := m.UseStoredCredentials()
	assert.ErrorIs(t, err, common.ErrVaultNotFound)

	err = m.SetupCredentials("alice", "s3cret", "ftp://router/signin")
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
	assert.False(t, m.HasCredentials())

	require.NoError(t, m.SetupCredentials("alice", "s3cret", common.DefaultRouterAdminPage))
	assert.True(t, m.HasCredentials())

	rec, err := m.UseStoredCredentials()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", rec.Password)

	info, err := m.ShowCredentialInfo()
	require.NoError(t, err)
	assert.Equal(t, vault.CredentialInfo{Username: "alice", AdminPageURL: common.DefaultRouterAdminPage, HasPassword: true}, info)
	assert.NotContains(t, fmt.Sprintf("%+v", info), "s3cret")

	require.NoError(t, m.ClearCredentials())
	require.NoError(t, m.ClearCredentials())
	assert.False(t, m.HasCredentials())

	require.NoError(t, m.CleanupDrivers())
	assert.Equal(t, 1, f.cleaner.calls)
}

func TestStrategyKindString(t *testing.T) {
	tests := []struct {
		kind StrategyKind
		want string
	}{
		{StrategyNone, "None"},
		{StrategyDirect, "Direct"},
		{StrategyBrowser, "Browser"},
		{StrategyKind(99), "None"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("StrategyKind.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConnect_DirectWithoutActionEndpointFallsBack(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/signin.html", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `<html><body><form method="post" action="/signin.html">
<input type="text" id="username" name="username"><input type="password" id="password" name="password">
</form></body></html>`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "s1", Path: "/"})
		http.Redirect(w, r, "/main.html", http.StatusFound)
	})
	mux.HandleFunc("/main.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><button id="mudwd-vpn-start-btn">Start</button>
<button id="mudwd-vpn-stop-btn" style="display: none">Stop</button></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	browserLogin := succeeds("browser", StateConnected)
	f := newFixture(t, &fakeStrategy{name: "unused", results: []common.SessionResult{{}}}, browserLogin)
	f.manager.direct = direct.New(direct.Options{})
	f.store(t, srv.URL+"/signin.html")

	res := f.manager.Connect(context.Background(), Options{})

	require.True(t, res.Success, res.String())
	assert.Equal(t, StrategyBrowser, res.StrategyUsed)
	assert.Equal(t, 1, browserLogin.count())
}
