//go:build windows

package browser

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/sys/windows/registry"
)

func browserCandidates() []string {
	var out []string
	for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)", "LOCALAPPDATA"} {
		if dir := os.Getenv(env); dir != "" {
			out = append(out, filepath.Join(dir, "Google", "Chrome", "Application", "chrome.exe"))
		}
	}
	return out
}

// browserVersion reads the version Chrome records in the registry, since
// chrome.exe --version opens a window instead of printing.
func browserVersion(_ context.Context, _ string) (string, error) {
	for _, root := range []registry.Key{registry.CURRENT_USER, registry.LOCAL_MACHINE} {
		k, err := registry.OpenKey(root, `Software\Google\Chrome\BLBeacon`, registry.QUERY_VALUE)
		if err != nil {
			continue
		}
		v, _, err := k.GetStringValue("version")
		k.Close()
		if err == nil {
			if version := versionPattern.FindString(v); version != "" {
				return version, nil
			}
		}
	}
	return "", errors.New("BLBeacon version not found in registry")
}
