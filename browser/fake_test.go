package browser

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/yllada/auto-mudfish/common"
)

// fakeSession imitates the Mudfish admin page in a browser tab.
type fakeSession struct {
	mu sync.Mutex

	user, password string
	landing        string
	noForm         bool
	panicOnClick   string

	loc       string
	typed     map[string]string
	loggedIn  bool
	connected bool
	clicks    []string
	closed    int
}

func newFakeSession() *fakeSession {
	return &fakeSession{user: "alice", password: "pw", landing: "/main.html", typed: map[string]string{}}
}

func (f *fakeSession) path() string {
	u, err := url.Parse(f.loc)
	if err != nil {
		return ""
	}
	return u.Path
}

func (f *fakeSession) Navigate(ctx context.Context, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loc = target
	return ctx.Err()
}

func (f *fakeSession) WaitVisible(ctx context.Context, selector string) error {
	f.mu.Lock()
	ok := selector == common.SelectorUsername && !f.noForm && strings.HasSuffix(f.path(), "signin.html")
	f.mu.Unlock()
	if ok {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeSession) SendKeys(_ context.Context, selector, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed[selector] = text
	return nil
}

func (f *fakeSession) Click(_ context.Context, selector string) error {
	if selector == f.panicOnClick {
		panic("injected failure on " + selector)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, selector)
	switch selector {
	case common.SelectorSubmit:
		if f.typed[common.SelectorUsername] == f.user && f.typed[common.SelectorPassword] == f.password {
			f.loggedIn = true
			u, _ := url.Parse(f.loc)
			u.Path = f.landing
			f.loc = u.String()
		}
	case common.SelectorStartButton:
		f.connected = true
	case common.SelectorStopButton:
		f.connected = false
	}
	return nil
}

func (f *fakeSession) Visible(ctx context.Context, selector string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !f.loggedIn || f.path() != "/main.html" {
		return false, nil
	}
	switch selector {
	case common.SelectorStartButton:
		return !f.connected, nil
	case common.SelectorStopButton:
		return f.connected, nil
	}
	return false, nil
}

func (f *fakeSession) Location(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loc, nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeSession) snapshot() (clicks []string, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.clicks...), f.closed
}

type fakeLauncher struct {
	session *fakeSession
	openErr error
	opened  []LaunchOptions
}

func (l *fakeLauncher) Open(_ context.Context, opts LaunchOptions) (Session, error) {
	l.opened = append(l.opened, opts)
	if l.openErr != nil {
		return nil, l.openErr
	}
	return l.session, nil
}

type fakeDrivers struct {
	resolveErr error
}

func (d fakeDrivers) Resolve(context.Context) (Driver, error) {
	if d.resolveErr != nil {
		return Driver{}, d.resolveErr
	}
	return Driver{Path: "/cache/126.0.6478.126/chrome-headless-shell", Version: "126.0.6478.126"}, nil
}

func (d fakeDrivers) DetectBrowser(context.Context) (BrowserInfo, error) {
	return BrowserInfo{Path: "/usr/bin/google-chrome", Version: "126.0.6478.55"}, nil
}
