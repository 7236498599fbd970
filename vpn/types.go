package vpn

import (
	"context"
	"fmt"

	"github.com/yllada/auto-mudfish/common"
	"github.com/yllada/auto-mudfish/vault"
)

// State is the VPN connection state.
type State = common.State

const (
	StateUnknown      = common.StateUnknown
	StateConnected    = common.StateConnected
	StateDisconnected = common.StateDisconnected
)

// Phase is a step of a connection run.
type Phase = common.Phase

// Action is what a run asks the admin page to do.
type Action = common.Action

// StrategyKind identifies which login path produced a result.
type StrategyKind int

const (
	StrategyNone StrategyKind = iota
	StrategyDirect
	StrategyBrowser
)

// String returns a human-readable representation of the strategy kind.
func (k StrategyKind) String() string {
	switch k {
	case StrategyDirect:
		return "Direct"
	case StrategyBrowser:
		return "Browser"
	default:
		return "None"
	}
}

// ConnectionResult is the outcome of Connect, Disconnect, or Status.
type ConnectionResult struct {
	Success      bool
	State        State
	Message      string
	StrategyUsed StrategyKind
	// Err is set when the run failed for a reason other than the VPN
	// ending up in the wrong state. common.KindOf classifies it.
	Err error
}

// Kind returns the stable error kind of the result.
func (r ConnectionResult) Kind() common.ErrorKind {
	return common.KindOf(r.Err)
}

func (r ConnectionResult) String() string {
	return fmt.Sprintf("success=%v state=%s strategy=%s: %s", r.Success, r.State, r.StrategyUsed, r.Message)
}

// Options are per-call overrides. Zero values fall back to the vault and
// the configuration.
type Options struct {
	Credentials  *vault.CredentialRecord
	AdminPageURL string
	LauncherPath string
	ShowBrowser  *bool
}

// LoginStrategy signs in to the admin page, performs the requested action,
// and reports the verified state. Implementations release every resource
// they acquire before returning.
//
// A returned error means the admin page could not be reached and the
// attempt may be retried. A rejected login is a SessionResult with
// Authenticated false.
type LoginStrategy interface {
	Name() string
	Attempt(ctx context.Context, req common.LoginRequest) (common.SessionResult, error)
}

// CredentialStore persists the single credential record.
type CredentialStore interface {
	Store(rec vault.CredentialRecord) error
	Load() (vault.CredentialRecord, error)
	Clear() error
	Exists() bool
	Info() (vault.CredentialInfo, error)
}

var _ CredentialStore = (*vault.Vault)(nil)
