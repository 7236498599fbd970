// Package common provides shared constants, types, and utilities
// used across the auto-mudfish application.
package common

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for auto-mudfish operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Vault errors.
	ErrVaultNotFound = errors.New("no stored credentials")
	ErrVaultCorrupt  = errors.New("stored credentials could not be decrypted")
	ErrVaultWrite    = errors.New("failed to store credentials")

	// Caller errors.
	ErrNoCredentials = errors.New("no credentials supplied and none stored")
	ErrInvalidConfig = errors.New("invalid configuration")

	// Environment errors.
	ErrLauncherNotFound = errors.New("mudfish launcher not found")
	ErrNotRunning       = errors.New("mudfish launcher is not running")

	// Authentication errors.
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAuthRejected         = errors.New("login rejected by admin page")
	ErrNetwork              = errors.New("admin page unreachable")

	// Browser strategy errors.
	ErrDriverMismatch  = errors.New("no compatible browser driver")
	ErrElementNotFound = errors.New("expected page element not found")
	ErrLoginTimeout    = errors.New("login did not complete in time")
)

// ErrorKind is a stable, machine-readable classification of an error.
type ErrorKind string

const (
	KindNone                 ErrorKind = ""
	KindVaultNotFound        ErrorKind = "vault_not_found"
	KindVaultCorrupt         ErrorKind = "vault_corrupt"
	KindVaultWrite           ErrorKind = "vault_write"
	KindNoCredentials        ErrorKind = "no_credentials"
	KindInvalidConfig        ErrorKind = "invalid_config"
	KindLauncherNotFound     ErrorKind = "launcher_not_found"
	KindNotRunning           ErrorKind = "not_running"
	KindAuthenticationFailed ErrorKind = "authentication_failed"
	KindAuthRejected         ErrorKind = "auth_rejected"
	KindNetwork              ErrorKind = "network"
	KindDriverMismatch       ErrorKind = "driver_mismatch"
	KindElementNotFound      ErrorKind = "element_not_found"
	KindLoginTimeout         ErrorKind = "login_timeout"
	KindInternal             ErrorKind = "internal"
)

var kindTable = []struct {
	err  error
	kind ErrorKind
}{
	// Order matters: AuthenticationFailedError wraps strategy reasons, so the
	// umbrella kind must win over the reasons it carries.
	{ErrAuthenticationFailed, KindAuthenticationFailed},
	{ErrVaultNotFound, KindVaultNotFound},
	{ErrVaultCorrupt, KindVaultCorrupt},
	{ErrVaultWrite, KindVaultWrite},
	{ErrNoCredentials, KindNoCredentials},
	{ErrInvalidConfig, KindInvalidConfig},
	{ErrLauncherNotFound, KindLauncherNotFound},
	{ErrNotRunning, KindNotRunning},
	{ErrDriverMismatch, KindDriverMismatch},
	{ErrElementNotFound, KindElementNotFound},
	{ErrLoginTimeout, KindLoginTimeout},
	{ErrAuthRejected, KindAuthRejected},
	{ErrNetwork, KindNetwork},
}

// KindOf returns the stable kind of err, KindNone for nil and KindInternal
// for errors outside the taxonomy.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, entry := range kindTable {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindInternal
}

// LauncherNotFoundError reports every location that was searched.
type LauncherNotFoundError struct {
	Searched []string
}

func (e *LauncherNotFoundError) Error() string {
	if len(e.Searched) == 0 {
		return ErrLauncherNotFound.Error()
	}
	return fmt.Sprintf("%s (searched: %s)", ErrLauncherNotFound, strings.Join(e.Searched, ", "))
}

func (e *LauncherNotFoundError) Is(target error) bool {
	return target == ErrLauncherNotFound
}

// AuthenticationFailedError is returned when every login strategy was tried
// without producing an authenticated session.
type AuthenticationFailedError struct {
	// Tried lists the strategies in the order they were attempted.
	Tried []string
	// Reasons holds the failure reason of each strategy, index-aligned with Tried.
	Reasons []error
}

func (e *AuthenticationFailedError) Error() string {
	parts := make([]string, 0, len(e.Tried))
	for i, name := range e.Tried {
		reason := "unknown reason"
		if i < len(e.Reasons) && e.Reasons[i] != nil {
			reason = e.Reasons[i].Error()
		}
		parts = append(parts, name+": "+reason)
	}
	if len(parts) == 0 {
		return ErrAuthenticationFailed.Error()
	}
	return fmt.Sprintf("%s (%s)", ErrAuthenticationFailed, strings.Join(parts, "; "))
}

func (e *AuthenticationFailedError) Is(target error) bool {
	return target == ErrAuthenticationFailed
}

// Unwrap exposes the per-strategy reasons to errors.Is and errors.As.
func (e *AuthenticationFailedError) Unwrap() []error {
	return e.Reasons
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
