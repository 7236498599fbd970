// Package direct implements the HTTP-only login to the Mudfish admin page.
// It is tried before the browser because a successful run costs a few
// requests instead of a browser process.
package direct

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/yllada/auto-mudfish/common"
	"github.com/yllada/auto-mudfish/config"
)

// maxBody caps how much of any admin page response is read.
const maxBody = 1 << 20

// Options configures a Strategy.
type Options struct {
	Timeout      time.Duration
	RequireToken bool
	Endpoints    config.EndpointsConfig
	// Transport overrides the HTTP transport; nil uses a fresh one per attempt.
	Transport http.RoundTripper
	Logger    common.Logger
}

// Strategy logs in with plain HTTP requests.
type Strategy struct {
	timeout      time.Duration
	requireToken bool
	endpoints    config.EndpointsConfig
	transport    http.RoundTripper
	logger       common.Logger
}

// New creates a direct login strategy.
func New(opts Options) *Strategy {
	s := &Strategy{
		timeout:      opts.Timeout,
		requireToken: opts.RequireToken,
		endpoints:    opts.Endpoints,
		transport:    opts.Transport,
		logger:       opts.Logger,
	}
	def := config.DefaultConfig()
	if s.timeout <= 0 {
		s.timeout = def.Direct.Timeout
	}
	if s.endpoints.StatusPath == "" {
		s.endpoints.StatusPath = def.Endpoints.StatusPath
	}
	if s.endpoints.ConnectPath == "" {
		s.endpoints.ConnectPath = def.Endpoints.ConnectPath
	}
	if s.endpoints.DisconnectPath == "" {
		s.endpoints.DisconnectPath = def.Endpoints.DisconnectPath
	}
	if s.logger == nil {
		s.logger = common.NopLogger{}
	}
	return s
}

// Name identifies the strategy in logs and errors.
func (s *Strategy) Name() string {
	return "direct"
}

// Attempt signs in, performs req.Action, and reads back the VPN state.
//
// A rejected login or unexpected markup is reported through
// SessionResult.Reason with Authenticated false. The returned error is
// reserved for network failures, which wrap common.ErrNetwork.
func (s *Strategy) Attempt(ctx context.Context, req common.LoginRequest) (common.SessionResult, error) {
	signinURL, err := url.Parse(req.AdminURL)
	if err != nil {
		return rejected(fmt.Errorf("invalid admin page URL: %w", err)), nil
	}

	sess, err := s.newSession()
	if err != nil {
		return common.SessionResult{}, err
	}
	defer sess.close()

	// Sign-in page: cookies and hidden form fields.
	body, resp, err := sess.do(ctx, http.MethodGet, signinURL, nil)
	if err != nil {
		return common.SessionResult{}, err
	}
	if resp.StatusCode >= 500 {
		return common.SessionResult{}, fmt.Errorf("%w: sign-in page returned %s", common.ErrNetwork, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return rejected(fmt.Errorf("sign-in page returned %s: %w", resp.Status, common.ErrElementNotFound)), nil
	}

	form, err := parseSigninForm(body, resp.Request.URL)
	if err != nil {
		return rejected(err), nil
	}
	if s.requireToken && len(form.Hidden) == 0 {
		return rejected(errMissingElement("sign-in token")), nil
	}
	s.logger.Debug("Sign-in form posts to %s with %d hidden field(s)", form.Action, len(form.Hidden))

	before := sess.cookies(signinURL)

	values := url.Values{}
	for k, vs := range form.Hidden {
		values[k] = append([]string(nil), vs...)
	}
	values.Set(form.UsernameField, req.Username)
	values.Set(form.PasswordField, req.Password)
	values.Set("_submit", "1")

	body, resp, err = sess.do(ctx, http.MethodPost, form.Action, values)
	if err != nil {
		return common.SessionResult{}, err
	}
	if resp.StatusCode >= 500 {
		return common.SessionResult{}, fmt.Errorf("%w: login returned %s", common.ErrNetwork, resp.Status)
	}

	verdict := inspectLoginResponse(body)
	final := resp.Request.URL
	onSignin := samePage(final, signinURL) || samePage(final, form.Action)
	newCookie := cookieChanged(before, sess.cookies(signinURL))

	authenticated := !verdict.ErrorMarker && (!onSignin || newCookie || verdict.SuccessMarker)
	if resp.StatusCode >= 400 || !authenticated {
		s.logger.Debug("Login rejected (status %d, error marker %v, on sign-in %v)", resp.StatusCode, verdict.ErrorMarker, onSignin)
		return rejected(common.ErrAuthRejected), nil
	}
	s.logger.Info("Direct login succeeded for %s", req.Username)

	if req.Action != common.ActionStatus {
		req.Enter(common.PhaseSubmitting)
		if err := s.submit(ctx, sess, signinURL, req.Action); err != nil {
			if errors.Is(err, common.ErrNetwork) {
				return common.SessionResult{}, err
			}
			// The page has no usable action endpoint; the browser clicks the button instead.
			return rejected(err), nil
		}
	}

	req.Enter(common.PhaseVerifyingStatus)
	state, err := s.readStatus(ctx, sess, signinURL)
	if err != nil {
		return common.SessionResult{}, err
	}
	if state == common.StateUnknown {
		// Authenticated but unable to confirm anything; let the browser try.
		return rejected(errMissingElement("connection status indicator")), nil
	}
	return common.SessionResult{Authenticated: true, State: state}, nil
}

func (s *Strategy) submit(ctx context.Context, sess *session, base *url.URL, action common.Action) error {
	p := s.endpoints.ConnectPath
	if action == common.ActionDisconnect {
		p = s.endpoints.DisconnectPath
	}
	target := resolve(base, p)

	_, resp, err := sess.do(ctx, http.MethodPost, target, url.Values{})
	if err != nil {
		return err
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %s request returned %s", common.ErrNetwork, action, resp.Status)
	}
	if resp.StatusCode >= 400 {
		s.logger.Warn("%s request to %s returned %s", action, target.Path, resp.Status)
		return fmt.Errorf("%s request returned %s: %w", action, resp.Status, errMissingElement("vpn action endpoint"))
	}
	s.logger.Debug("Submitted %s via %s", action, target.Path)
	return nil
}

func (s *Strategy) readStatus(ctx context.Context, sess *session, base *url.URL) (common.State, error) {
	target := resolve(base, s.endpoints.StatusPath)
	body, resp, err := sess.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return common.StateUnknown, err
	}
	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("Status page %s returned %s", target.Path, resp.Status)
		return common.StateUnknown, nil
	}
	return ParseStatus(body), nil
}

// session is the per-attempt HTTP client and its private cookie jar.
type session struct {
	client *http.Client
	jar    *cookiejar.Jar
}

func (s *Strategy) newSession() (*session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	transport := s.transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	return &session{
		client: &http.Client{Jar: jar, Timeout: s.timeout, Transport: transport},
		jar:    jar,
	}, nil
}

// close drops the cookies and idle connections.
func (sess *session) close() {
	sess.client.CloseIdleConnections()
	sess.client.Jar = nil
	sess.jar = nil
}

func (sess *session) cookies(u *url.URL) map[string]string {
	out := make(map[string]string)
	for _, c := range sess.jar.Cookies(u) {
		out[c.Name] = c.Value
	}
	return out
}

func (sess *session) do(ctx context.Context, method string, target *url.URL, form url.Values) ([]byte, *http.Response, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", common.ErrNetwork, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := sess.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", common.ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading %s: %v", common.ErrNetwork, target.Path, err)
	}
	return data, resp, nil
}

func rejected(reason error) common.SessionResult {
	return common.SessionResult{Authenticated: false, State: common.StateUnknown, Reason: reason}
}

func errMissingElement(what string) error {
	return fmt.Errorf("%s: %w", what, common.ErrElementNotFound)
}

// resolve joins p onto the directory of base, keeping absolute paths as is.
func resolve(base *url.URL, p string) *url.URL {
	ref, err := url.Parse(p)
	if err != nil {
		return base
	}
	return base.ResolveReference(ref)
}

func samePage(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Host, b.Host) && path.Clean("/"+a.Path) == path.Clean("/"+b.Path)
}

func cookieChanged(before, after map[string]string) bool {
	for name, v := range after {
		if old, ok := before[name]; !ok || old != v {
			return true
		}
	}
	return false
}

