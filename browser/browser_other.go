//go:build !windows

package browser

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

func browserCandidates() []string {
	if runtime.GOOS == "darwin" {
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	}

	var out []string
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			out = append(out, path)
		}
	}
	return append(out, "/usr/bin/google-chrome", "/opt/google/chrome/chrome")
}

// browserVersion parses "Google Chrome 126.0.6478.126" style output.
func browserVersion(ctx context.Context, path string) (string, error) {
	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "", err
	}
	version := versionPattern.FindString(string(out))
	if version == "" {
		return "", fmt.Errorf("unrecognized version output %q", string(out))
	}
	return version, nil
}
