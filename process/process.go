// Package process finds, launches, and waits for the Mudfish launcher.
package process

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/yllada/auto-mudfish/common"
)

// DefaultNames are the executable names the Mudfish client runs under.
var DefaultNames = []string{"mudrun.exe", "mudrun", "mudfish.exe", "mudfish"}

// Info describes one entry of the OS process table.
type Info struct {
	PID  int
	Name string
	Path string
}

// State is the result of a running check. It is recomputed on every query.
type State struct {
	Running        bool
	PID            int
	ExecutablePath string
}

// Lister enumerates running processes.
type Lister func(ctx context.Context) ([]Info, error)

// Starter starts path detached from the calling process.
type Starter func(path string) error

// Options configures a Locator. Zero values select the platform defaults.
type Options struct {
	Names      []string
	Candidates []string
	Lister     Lister
	Starter    Starter
	Logger     common.Logger
}

// Locator checks for and starts the Mudfish launcher.
type Locator struct {
	names      []string
	candidates []string
	list       Lister
	start      Starter
	logger     common.Logger
}

// NewLocator creates a Locator.
func NewLocator(opts Options) *Locator {
	l := &Locator{
		names:      opts.Names,
		candidates: opts.Candidates,
		list:       opts.Lister,
		start:      opts.Starter,
		logger:     opts.Logger,
	}
	if len(l.names) == 0 {
		l.names = DefaultNames
	}
	if l.candidates == nil {
		l.candidates = DefaultCandidates()
	}
	if l.list == nil {
		l.list = listProcesses
	}
	if l.start == nil {
		l.start = startDetached
	}
	if l.logger == nil {
		l.logger = common.NopLogger{}
	}
	return l
}

// IsRunning reports whether a Mudfish process is in the process table.
func (l *Locator) IsRunning(ctx context.Context) (State, error) {
	procs, err := l.list(ctx)
	if err != nil {
		return State{}, fmt.Errorf("failed to list processes: %w", err)
	}

	var matches []Info
	for _, p := range procs {
		if common.StringInSlice(p.Name, l.names) || (p.Path != "" && common.StringInSlice(filepath.Base(p.Path), l.names)) {
			matches = append(matches, p)
		}
	}

	if len(matches) == 0 {
		l.logger.Info("Mudfish is NOT running")
		return State{}, nil
	}
	if len(matches) > 1 {
		l.logger.Warn("Found %d Mudfish processes, using PID %d", len(matches), matches[0].PID)
	}

	l.logger.Info("Mudfish is running (PID %d)", matches[0].PID)
	return State{Running: true, PID: matches[0].PID, ExecutablePath: matches[0].Path}, nil
}

// Launch starts the launcher and returns without waiting for it.
// An explicit path must point to a usable file; an empty path searches the
// candidate locations in order.
func (l *Locator) Launch(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	launcher, err := l.Find(path)
	if err != nil {
		return "", err
	}

	if err := l.start(launcher); err != nil {
		return "", fmt.Errorf("failed to start %s: %w", launcher, err)
	}
	l.logger.Info("Launched Mudfish launcher: %s", launcher)
	return launcher, nil
}

// Find resolves the launcher path without starting it.
func (l *Locator) Find(path string) (string, error) {
	if path != "" {
		if err := checkLauncher(path); err != nil {
			l.logger.Warn("Launcher %s is not usable: %v", path, err)
			return "", &common.LauncherNotFoundError{Searched: []string{path}}
		}
		return path, nil
	}

	for _, candidate := range l.candidates {
		if checkLauncher(candidate) == nil {
			l.logger.Debug("Found launcher at %s", candidate)
			return candidate, nil
		}
	}
	return "", &common.LauncherNotFoundError{Searched: append([]string(nil), l.candidates...)}
}

// WaitRunning polls IsRunning up to attempts times, interval apart.
func (l *Locator) WaitRunning(ctx context.Context, attempts int, interval time.Duration) (State, error) {
	if attempts < 1 {
		attempts = 1
	}

	for i := 1; i <= attempts; i++ {
		state, err := l.IsRunning(ctx)
		if err != nil {
			return State{}, err
		}
		if state.Running {
			return state, nil
		}
		if i == attempts {
			break
		}

		l.logger.Debug("Waiting for Mudfish to start (%d/%d)", i, attempts)
		select {
		case <-ctx.Done():
			return State{}, ctx.Err()
		case <-time.After(interval):
		}
	}
	return State{}, fmt.Errorf("%w after %d checks", common.ErrNotRunning, attempts)
}

func checkLauncher(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}
