package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/yllada/auto-mudfish/common"
)

// closeTimeout bounds the graceful part of shutting a browser down.
var closeTimeout = 5 * time.Second

// ChromeLauncher starts Chrome (or chrome-headless-shell) over the DevTools
// protocol.
type ChromeLauncher struct {
	Logger common.Logger
}

// Open starts a browser process and its first tab. The process is owned by
// the returned Session.
func (l ChromeLauncher) Open(ctx context.Context, opts LaunchOptions) (Session, error) {
	logger := l.Logger
	if logger == nil {
		logger = common.NopLogger{}
	}

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(1280, 900),
	)
	if opts.ExecPath != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ExecPath(opts.ExecPath))
	}

	// The allocator outlives ctx: it is torn down only by Close.
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			logger.Debug("chromedp: "+format, args...)
		}),
	)

	// Startup cancellation and Close may both release the browser.
	browserCancel = sync.OnceFunc(browserCancel)

	s := &chromeSession{
		ctx:             browserCtx,
		browserCancel:   browserCancel,
		allocatorCancel: allocatorCancel,
		logger:          logger,
	}

	// The first Run starts the browser process and ties it to the context it
	// runs on, so it runs on the session context. ctx only bounds startup.
	stop := context.AfterFunc(ctx, browserCancel)
	err := chromedp.Run(browserCtx)
	if !stop() {
		err = ctx.Err()
	}
	if err != nil {
		s.browserCancel()
		s.allocatorCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	logger.Debug("Browser started (headless=%v, exec=%q)", opts.Headless, opts.ExecPath)
	return s, nil
}

type chromeSession struct {
	ctx             context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	logger          common.Logger

	closeOnce sync.Once
	closeErr  error
}

// run executes actions on the browser tab bounded by the caller's ctx.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *chromeSession) WaitVisible(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (s *chromeSession) SendKeys(ctx context.Context, selector, text string) error {
	return s.run(ctx,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (s *chromeSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// Visible reports whether selector matches a rendered, non-hidden element.
// Unlike WaitVisible it returns immediately.
func (s *chromeSession) Visible(ctx context.Context, selector string) (bool, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return false, err
	}
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		const st = window.getComputedStyle(el);
		return st.display !== 'none' && st.visibility !== 'hidden' && el.getClientRects().length > 0;
	})()`, quoted)

	var visible bool
	if err := s.run(ctx, chromedp.Evaluate(script, &visible)); err != nil {
		return false, err
	}
	return visible, nil
}

func (s *chromeSession) Location(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, chromedp.Location(&loc))
	return loc, err
}

// Close clears cookies, closes the browser, and kills the process if it
// does not exit on its own. The allocator cancel waits for the process.
func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		clearCtx, cancel := context.WithTimeout(s.ctx, closeTimeout)
		if err := chromedp.Run(clearCtx, network.ClearBrowserCookies()); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Debug("Failed to clear browser cookies: %v", err)
		}
		cancel()

		// Cancel kills the process once the deadline passes without it exiting.
		cancelCtx, cancel := context.WithTimeout(s.ctx, closeTimeout)
		if err := chromedp.Cancel(cancelCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = err
		}
		cancel()
		s.browserCancel()
		s.allocatorCancel()
		s.logger.Debug("Browser closed")
	})
	return s.closeErr
}
