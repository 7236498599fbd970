package browser

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yllada/auto-mudfish/common"
	"github.com/yllada/auto-mudfish/config"
)

const (
	driverName = "chrome-headless-shell"
	// maxArchive caps a driver download.
	maxArchive = 512 << 20
)

var versionPattern = regexp.MustCompile(`\d+\.\d+\.\d+\.\d+`)

// BrowserInfo is an installed browser.
type BrowserInfo struct {
	Path    string
	Version string
}

// Major returns the major version, or 0 when unknown.
func (b BrowserInfo) Major() int {
	return majorOf(b.Version)
}

// Driver is a cached automation binary matched to the installed browser.
type Driver struct {
	Path    string
	Version string
}

// DriverOptions configures a DriverManager.
type DriverOptions struct {
	Config config.DriverConfig
	// HTTPClient is used for version lookups and downloads.
	HTTPClient *http.Client
	// Detect overrides installed browser detection.
	Detect   func(ctx context.Context) (BrowserInfo, error)
	Platform string
	Logger   common.Logger
}

// DriverManager keeps a per-version cache of chrome-headless-shell builds in
// step with the installed Chrome.
//
// Cache layout: <cache>/<version>/chrome-headless-shell-<platform>/<binary>.
type DriverManager struct {
	cacheDir        string
	keep            int
	releaseBaseURL  string
	downloadBaseURL string
	browserPath     string
	client          *http.Client
	detect          func(ctx context.Context) (BrowserInfo, error)
	platform        string
	logger          common.Logger
}

// NewDriverManager creates a driver manager.
func NewDriverManager(opts DriverOptions) (*DriverManager, error) {
	cfg := opts.Config
	def := config.DefaultConfig().Driver

	m := &DriverManager{
		cacheDir:        cfg.CacheDir,
		keep:            cfg.KeepVersions,
		releaseBaseURL:  strings.TrimRight(cfg.ReleaseBaseURL, "/"),
		downloadBaseURL: strings.TrimRight(cfg.DownloadBaseURL, "/"),
		browserPath:     cfg.BrowserPath,
		client:          opts.HTTPClient,
		detect:          opts.Detect,
		platform:        opts.Platform,
		logger:          opts.Logger,
	}
	if m.cacheDir == "" {
		base, err := common.GetCacheDir()
		if err != nil {
			return nil, err
		}
		m.cacheDir = filepath.Join(base, common.DriverDirName)
	}
	if m.keep <= 0 {
		m.keep = def.KeepVersions
	}
	if m.releaseBaseURL == "" {
		m.releaseBaseURL = def.ReleaseBaseURL
	}
	if m.downloadBaseURL == "" {
		m.downloadBaseURL = def.DownloadBaseURL
	}
	if m.client == nil {
		timeout := cfg.DownloadTimeout
		if timeout <= 0 {
			timeout = def.DownloadTimeout
		}
		m.client = &http.Client{Timeout: timeout}
	}
	if m.detect == nil {
		m.detect = m.detectInstalled
	}
	if m.platform == "" {
		m.platform = hostPlatform()
	}
	if m.logger == nil {
		m.logger = common.NopLogger{}
	}
	return m, nil
}

// CacheDir returns the driver cache location.
func (m *DriverManager) CacheDir() string {
	return m.cacheDir
}

// DetectBrowser finds the installed Chrome and its version.
func (m *DriverManager) DetectBrowser(ctx context.Context) (BrowserInfo, error) {
	info, err := m.detect(ctx)
	if err != nil {
		return BrowserInfo{}, fmt.Errorf("%w: %v", common.ErrDriverMismatch, err)
	}
	if info.Major() == 0 {
		return BrowserInfo{}, fmt.Errorf("%w: cannot parse browser version %q", common.ErrDriverMismatch, info.Version)
	}
	m.logger.Info("Detected Chrome version: %s (major: %d)", info.Version, info.Major())
	return info, nil
}

// Resolve returns a driver whose major version matches the installed
// browser, downloading one when the cache has none. Superseded drivers are
// removed afterwards.
func (m *DriverManager) Resolve(ctx context.Context) (Driver, error) {
	info, err := m.DetectBrowser(ctx)
	if err != nil {
		return Driver{}, err
	}
	major := info.Major()

	if d, ok := m.cached(major); ok {
		m.logger.Debug("Using cached driver %s", d.Version)
		m.prune(major)
		return d, nil
	}

	version, err := m.latestRelease(ctx, major)
	if err != nil {
		return Driver{}, fmt.Errorf("%w: no driver release for Chrome %d: %v", common.ErrDriverMismatch, major, err)
	}

	d, err := m.download(ctx, version)
	if err != nil {
		return Driver{}, fmt.Errorf("%w: download %s: %v", common.ErrDriverMismatch, version, err)
	}
	m.logger.Info("Installed driver %s", version)
	m.prune(major)
	return d, nil
}

// Cleanup removes all cached versions except the newest KeepVersions.
func (m *DriverManager) Cleanup() error {
	versions, err := m.versions()
	if err != nil {
		return err
	}

	var firstErr error
	for i, v := range versions {
		if i < m.keep {
			continue
		}
		if err := m.remove(v); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Versions lists cached driver versions, newest first.
func (m *DriverManager) Versions() ([]string, error) {
	return m.versions()
}

func (m *DriverManager) versions() ([]string, error) {
	entries, err := os.ReadDir(m.cacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() && versionPattern.FindString(e.Name()) == e.Name() {
			out = append(out, e.Name())
		}
	}
	sort.Slice(out, func(i, j int) bool { return compareVersions(out[i], out[j]) > 0 })
	return out, nil
}

func (m *DriverManager) cached(major int) (Driver, bool) {
	versions, err := m.versions()
	if err != nil {
		return Driver{}, false
	}
	for _, v := range versions {
		if majorOf(v) != major {
			continue
		}
		path := m.binaryPath(v)
		if common.FileExists(path) {
			return Driver{Path: path, Version: v}, true
		}
	}
	return Driver{}, false
}

// prune drops every version of another major and all but the newest keep.
func (m *DriverManager) prune(major int) {
	versions, err := m.versions()
	if err != nil {
		return
	}
	kept := 0
	for _, v := range versions {
		if majorOf(v) == major && kept < m.keep {
			kept++
			continue
		}
		if err := m.remove(v); err != nil {
			m.logger.Debug("Failed to clean up driver %s: %v", v, err)
		}
	}
}

func (m *DriverManager) remove(version string) error {
	if err := os.RemoveAll(filepath.Join(m.cacheDir, version)); err != nil {
		return err
	}
	m.logger.Debug("Cleaned up old driver version: %s", version)
	return nil
}

func (m *DriverManager) binaryPath(version string) string {
	bin := driverName
	if strings.HasPrefix(m.platform, "win") {
		bin += ".exe"
	}
	return filepath.Join(m.cacheDir, version, driverName+"-"+m.platform, bin)
}

func (m *DriverManager) latestRelease(ctx context.Context, major int) (string, error) {
	u := fmt.Sprintf("%s/LATEST_RELEASE_%d", m.releaseBaseURL, major)
	body, err := m.get(ctx, u, 1024)
	if err != nil {
		return "", err
	}
	version := strings.TrimSpace(string(body))
	if versionPattern.FindString(version) != version || majorOf(version) != major {
		return "", fmt.Errorf("unexpected release %q", version)
	}
	return version, nil
}

func (m *DriverManager) get(ctx context.Context, u string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// download fetches and unpacks version into the cache. The version
// directory appears only once extraction has finished.
func (m *DriverManager) download(ctx context.Context, version string) (Driver, error) {
	if err := os.MkdirAll(m.cacheDir, 0700); err != nil {
		return Driver{}, err
	}

	u := fmt.Sprintf("%s/%s/%s/%s-%s.zip", m.downloadBaseURL, version, m.platform, driverName, m.platform)
	m.logger.Info("Downloading %s", u)

	archive, err := os.CreateTemp(m.cacheDir, ".download-*.zip")
	if err != nil {
		return Driver{}, err
	}
	defer os.Remove(archive.Name())
	defer archive.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Driver{}, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return Driver{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Driver{}, fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	size, err := io.Copy(archive, io.LimitReader(resp.Body, maxArchive))
	if err != nil {
		return Driver{}, err
	}

	staging, err := os.MkdirTemp(m.cacheDir, ".extract-*")
	if err != nil {
		return Driver{}, err
	}
	defer os.RemoveAll(staging)

	if err := unzip(archive, size, staging); err != nil {
		return Driver{}, err
	}

	final := filepath.Join(m.cacheDir, version)
	_ = os.RemoveAll(final)
	if err := os.Rename(staging, final); err != nil {
		return Driver{}, err
	}

	d := Driver{Path: m.binaryPath(version), Version: version}
	if !common.FileExists(d.Path) {
		return Driver{}, fmt.Errorf("archive has no %s", filepath.Base(d.Path))
	}
	return d, nil
}

// unzip extracts r into dir, rejecting entries that escape it.
func unzip(r io.ReaderAt, size int64, dir string) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return err
	}

	root := filepath.Clean(dir) + string(os.PathSeparator)
	for _, f := range zr.File {
		target := filepath.Join(dir, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("illegal path in archive: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, io.LimitReader(src, maxArchive)); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (m *DriverManager) detectInstalled(ctx context.Context) (BrowserInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	candidates := browserCandidates()
	if m.browserPath != "" {
		candidates = []string{m.browserPath}
	}

	for _, path := range candidates {
		if !common.FileExists(path) {
			continue
		}
		version, err := browserVersion(ctx, path)
		if err != nil {
			m.logger.Debug("Could not read version of %s: %v", path, err)
			continue
		}
		return BrowserInfo{Path: path, Version: version}, nil
	}
	return BrowserInfo{}, fmt.Errorf("no Chrome installation found (searched %s)", strings.Join(candidates, ", "))
}

func hostPlatform() string {
	switch runtime.GOOS {
	case "windows":
		if runtime.GOARCH == "386" {
			return "win32"
		}
		return "win64"
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "mac-arm64"
		}
		return "mac-x64"
	default:
		return "linux64"
	}
}

func majorOf(version string) int {
	head, _, _ := strings.Cut(strings.TrimSpace(version), ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return n
}

// compareVersions orders dotted numeric versions.
func compareVersions(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var x, y int
		if i < len(as) {
			x, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			y, _ = strconv.Atoi(bs[i])
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}
