package browser

import (
	"context"
)

// LaunchOptions selects how the browser process is started.
type LaunchOptions struct {
	// Headless hides the browser window.
	Headless bool
	// ExecPath is the browser or headless-shell binary; empty lets the
	// launcher search the usual install locations.
	ExecPath string
}

// Session is one live browser page. Every method honors ctx for deadlines.
// Close releases the browser process and is safe to call more than once.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	SendKeys(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	Visible(ctx context.Context, selector string) (bool, error)
	Location(ctx context.Context) (string, error)
	Close() error
}

// Launcher acquires browser sessions.
type Launcher interface {
	Open(ctx context.Context, opts LaunchOptions) (Session, error)
}
