// Package common provides shared constants, types, and utilities
// used across the auto-mudfish application.
package common

import "time"

// Application metadata.
const (
	// AppName is the display name of the application.
	AppName = "auto-mudfish"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "auto-mudfish"
	// KeyringService is the service name used in the system keyring.
	KeyringService = "auto-mudfish"
)

// File names used by the application.
const (
	ConfigFileName      = "config.yaml"
	CredentialsFileName = "credentials.enc"
	DriverDirName       = "chromedriver"
	LogFileName         = "auto-mudfish.log"
)

// Admin page defaults.
const (
	// DefaultDesktopAdminPage is the sign-in page of a desktop Mudfish install.
	DefaultDesktopAdminPage = "http://127.0.0.1:8282/signin.html"
	// DefaultRouterAdminPage is the sign-in page of a router Mudfish install.
	DefaultRouterAdminPage = "http://192.168.1.1:8282/signin.html"
)

// Default timeouts and intervals.
const (
	// DirectTimeout bounds each HTTP request of the direct login.
	DirectTimeout = 5 * time.Second
	// DirectRetries is how many times a network failure is retried.
	DirectRetries = 2
	// RetryBackoff is the base delay between retries (linear).
	RetryBackoff = 500 * time.Millisecond
	// LoginWait bounds the wait for a post-login marker in the browser.
	LoginWait = 15 * time.Second
	// ElementWait bounds the wait for the sign-in form in the browser.
	ElementWait = 10 * time.Second
	// ActionWait bounds the wait for the page to reflect connect/disconnect.
	ActionWait = 5 * time.Second
	// PollInterval is how often browser conditions are re-checked.
	PollInterval = 250 * time.Millisecond
	// LaunchPollAttempts is how many times the launcher is polled after start.
	LaunchPollAttempts = 10
	// LaunchPollInterval is the delay between launcher polls.
	LaunchPollInterval = 1 * time.Second
	// ReachAttempts is how many times the admin page port is dialed after launch.
	ReachAttempts = 10
	// ReachBackoff is the base delay between reachability dials (linear).
	ReachBackoff = 500 * time.Millisecond
	// DownloadTimeout bounds a driver download.
	DownloadTimeout = 60 * time.Second
)

// Admin page element identifiers.
const (
	SelectorUsername    = "#username"
	SelectorPassword    = "#password"
	SelectorSubmit      = ".btn"
	SelectorStartButton = "#mudwd-vpn-start-btn"
	SelectorStopButton  = "#mudwd-vpn-stop-btn"
)

// Driver cache defaults.
const (
	// DriverKeepVersions is how many cached driver versions are retained.
	DriverKeepVersions = 3
	// DriverReleaseBaseURL serves LATEST_RELEASE_<major> version lookups.
	DriverReleaseBaseURL = "https://googlechromelabs.github.io/chrome-for-testing"
	// DriverDownloadBaseURL serves the versioned driver archives.
	DriverDownloadBaseURL = "https://storage.googleapis.com/chrome-for-testing-public"
)
