//go:build windows

package process

import (
	"os"
	"path/filepath"
)

// DefaultCandidates lists launcher locations in preference order. The
// Start-Menu shortcut comes first because launching mudrun.exe directly can
// leave the admin page returning HTTP 500.
func DefaultCandidates() []string {
	var out []string
	if appData := os.Getenv("APPDATA"); appData != "" {
		out = append(out, filepath.Join(appData, `Microsoft\Windows\Start Menu\Programs\Mudfish Cloud VPN\Mudfish Launcher.lnk`))
	}
	if programData := os.Getenv("ProgramData"); programData != "" {
		out = append(out, filepath.Join(programData, `Microsoft\Windows\Start Menu\Programs\Mudfish Cloud VPN\Mudfish Launcher.lnk`))
	}
	for _, env := range []string{"ProgramFiles(x86)", "ProgramFiles"} {
		if dir := os.Getenv(env); dir != "" {
			out = append(out, filepath.Join(dir, "Mudfish Cloud VPN", "mudrun.exe"))
		}
	}
	out = append(out, `C:\Program Files (x86)\Mudfish Cloud VPN\mudrun.exe`)
	return dedupe(out)
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		key := filepath.Clean(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
