package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/auto-mudfish/common"
	"github.com/yllada/auto-mudfish/vault"
	"github.com/yllada/auto-mudfish/vpn"
)

type fakeEngine struct {
	stored   *vault.CredentialRecord
	setupErr error
	result   vpn.ConnectionResult
	cleaned  int
	actions  []common.Action
	lastOpts vpn.Options
}

func (f *fakeEngine) SetupCredentials(username, password, adminURL string) error {
	if f.setupErr != nil {
		return f.setupErr
	}
	f.stored = &vault.CredentialRecord{Username: username, Password: password, AdminPageURL: adminURL}
	return nil
}

func (f *fakeEngine) ShowCredentialInfo() (vault.CredentialInfo, error) {
	if f.stored == nil {
		return vault.CredentialInfo{}, common.ErrVaultNotFound
	}
	return f.stored.Info(), nil
}

func (f *fakeEngine) ClearCredentials() error {
	f.stored = nil
	return nil
}

func (f *fakeEngine) HasCredentials() bool { return f.stored != nil }

func (f *fakeEngine) CleanupDrivers() error {
	f.cleaned++
	return nil
}

func (f *fakeEngine) run(a common.Action, opts vpn.Options) vpn.ConnectionResult {
	f.actions = append(f.actions, a)
	f.lastOpts = opts
	return f.result
}

func (f *fakeEngine) Connect(_ context.Context, opts vpn.Options) vpn.ConnectionResult {
	return f.run(common.ActionConnect, opts)
}

func (f *fakeEngine) Disconnect(_ context.Context, opts vpn.Options) vpn.ConnectionResult {
	return f.run(common.ActionDisconnect, opts)
}

func (f *fakeEngine) Status(_ context.Context, opts vpn.Options) vpn.ConnectionResult {
	return f.run(common.ActionStatus, opts)
}

func newTestCLI(engine *fakeEngine, input string) (*CLI, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return New(engine, strings.NewReader(input), &out, &errOut), &out, &errOut
}

func TestSetup_PromptsForMissingValues(t *testing.T) {
	engine := &fakeEngine{}
	c, out, _ := newTestCLI(engine, "alice\ns3cret\n\n")

	require.NoError(t, c.Setup("", "", ""))

	require.NotNil(t, engine.stored)
	assert.Equal(t, vault.CredentialRecord{Username: "alice", Password: "s3cret"}, *engine.stored)
	assert.Contains(t, out.String(), "Credentials stored")
	assert.NotContains(t, out.String(), "s3cret")
}

func TestSetup_UsesFlags(t *testing.T) {
	engine := &fakeEngine{}
	c, _, _ := newTestCLI(engine, "")

	require.NoError(t, c.Setup("bob", "pw", common.DefaultRouterAdminPage))
	assert.Equal(t, common.DefaultRouterAdminPage, engine.stored.AdminPageURL)
}

func TestSetup_RejectsEmptyValues(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty username", "\n"},
		{"empty password", "alice\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{}
			c, _, _ := newTestCLI(engine, tt.input)

			err := c.Setup("", "", "")
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
			assert.Nil(t, engine.stored)
		})
	}
}

func TestShowCredentials(t *testing.T) {
	engine := &fakeEngine{}
	c, out, _ := newTestCLI(engine, "")

	require.NoError(t, c.ShowCredentials())
	assert.Contains(t, out.String(), "No credentials stored.")

	engine.stored = &vault.CredentialRecord{Username: "alice", Password: "s3cret"}
	out.Reset()
	require.NoError(t, c.ShowCredentials())
	assert.Contains(t, out.String(), "alice")
	assert.Contains(t, out.String(), "Default")
	assert.Contains(t, out.String(), "***")
	assert.NotContains(t, out.String(), "s3cret")
}

func TestClearAndCleanup(t *testing.T) {
	engine := &fakeEngine{stored: &vault.CredentialRecord{Username: "alice", Password: "pw"}}
	c, out, _ := newTestCLI(engine, "")

	require.NoError(t, c.ClearCredentials())
	assert.False(t, engine.HasCredentials())
	require.NoError(t, c.CleanupDrivers())
	assert.Equal(t, 1, engine.cleaned)
	assert.Contains(t, out.String(), "Driver cleanup completed")
}

func TestRun(t *testing.T) {
	authErr := &common.AuthenticationFailedError{Tried: []string{"direct", "browser"}, Reasons: []error{common.ErrAuthRejected, common.ErrLoginTimeout}}

	tests := []struct {
		name    string
		action  common.Action
		result  vpn.ConnectionResult
		wantErr error
		wantOut []string
	}{
		{
			"connected via direct",
			common.ActionConnect,
			vpn.ConnectionResult{Success: true, State: vpn.StateConnected, Message: "VPN Connected", StrategyUsed: vpn.StrategyDirect},
			nil,
			[]string{"✓ VPN Connected", "Connected", "Direct"},
		},
		{
			"status disconnected",
			common.ActionStatus,
			vpn.ConnectionResult{Success: true, State: vpn.StateDisconnected, Message: "VPN is Disconnected", StrategyUsed: vpn.StrategyBrowser},
			nil,
			[]string{"VPN is Disconnected", "Browser"},
		},
		{
			"authentication failed",
			common.ActionDisconnect,
			vpn.ConnectionResult{State: vpn.StateUnknown, Message: authErr.Error(), Err: authErr},
			common.ErrAuthenticationFailed,
			[]string{"✗", "Unknown"},
		},
		{
			"wrong state without error",
			common.ActionConnect,
			vpn.ConnectionResult{State: vpn.StateDisconnected, Message: "Connect submitted but VPN reports Disconnected", StrategyUsed: vpn.StrategyDirect},
			nil,
			[]string{"reports Disconnected"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{result: tt.result}
			c, out, _ := newTestCLI(engine, "")

			err := c.Run(context.Background(), tt.action, vpn.Options{AdminPageURL: common.DefaultRouterAdminPage})

			assert.Equal(t, []common.Action{tt.action}, engine.actions)
			assert.Equal(t, common.DefaultRouterAdminPage, engine.lastOpts.AdminPageURL)
			switch {
			case tt.result.Success:
				assert.NoError(t, err)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				assert.EqualError(t, err, tt.result.Message)
			}
			for _, want := range tt.wantOut {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func TestReportError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantHint string
	}{
		{"nil", nil, 0, ""},
		{"no credentials", common.ErrNoCredentials, 1, "--setup"},
		{"launcher", &common.LauncherNotFoundError{Searched: []string{"/opt/mudfish/mudrun"}}, 1, "--launcher"},
		{"corrupt", fmt.Errorf("load: %w", common.ErrVaultCorrupt), 1, "--clear-credentials"},
		{"foreign", errors.New("boom"), 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, errOut := newTestCLI(&fakeEngine{}, "")

			assert.Equal(t, tt.wantCode, c.ReportError(tt.err))
			if tt.err == nil {
				assert.Empty(t, errOut.String())
				return
			}
			assert.Contains(t, errOut.String(), "Error: "+tt.err.Error())
			if tt.wantHint != "" {
				assert.Contains(t, errOut.String(), tt.wantHint)
			}
		})
	}
}

func TestPrintHelp(t *testing.T) {
	var buf bytes.Buffer
	PrintHelp(&buf)

	for _, flag := range []string{"--setup", "--use-stored", "--show-credentials", "--clear-credentials",
		"--cleanup-chromedriver", "--username", "--password", "--adminpage", "--launcher", "--router",
		"--verbose", "--debug", "--show-browser", "--disconnect", "--status", "--config", "--version", "--help"} {
		assert.Contains(t, buf.String(), flag)
	}
}
