package vpn

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/yllada/auto-mudfish/common"
)

// dialTimeout bounds a single reachability dial.
const dialTimeout = 2 * time.Second

// DialFunc opens a network connection.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// ReachabilityCheck waits for the admin page port to accept connections.
type ReachabilityCheck struct {
	// Attempts is the number of dials before giving up.
	Attempts int
	// Backoff is the base delay between dials; the n-th wait is n*Backoff.
	Backoff time.Duration
	Dial    DialFunc
	Logger  common.Logger
}

// Wait dials the host of adminURL until it answers. It returns the latency
// of the successful dial.
func (p ReachabilityCheck) Wait(ctx context.Context, adminURL string) (time.Duration, error) {
	addr, err := hostPort(adminURL)
	if err != nil {
		return 0, err
	}

	dial := p.Dial
	if dial == nil {
		dial = (&net.Dialer{Timeout: dialTimeout}).DialContext
	}
	logger := p.Logger
	if logger == nil {
		logger = common.NopLogger{}
	}
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		start := time.Now()
		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		conn, err := dial(dialCtx, "tcp", addr)
		cancel()
		if err == nil {
			conn.Close()
			latency := time.Since(start)
			logger.Debug("Admin page %s reachable after %d attempt(s) (%v)", addr, i, latency)
			return latency, nil
		}
		lastErr = err
		logger.Debug("Admin page %s not reachable (attempt %d/%d): %v", addr, i, attempts, err)

		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Duration(i) * p.Backoff):
		}
	}
	return 0, fmt.Errorf("%w: %s after %d attempts: %v", common.ErrNetwork, addr, attempts, lastErr)
}

// hostPort returns host:port for an http(s) URL, filling in the scheme's
// default port.
func hostPort(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: admin page URL %q has no host", common.ErrInvalidConfig, raw)
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// isLoopback reports whether the admin page is served by this machine.
func isLoopback(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
