//go:build windows

package process

import (
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// startDetached starts path without a console and in its own process group.
// Shortcuts are handed to the shell.
func startDetached(path string) error {
	var cmd *exec.Cmd
	if strings.EqualFold(filepath.Ext(path), ".lnk") {
		cmd = exec.Command("cmd", "/c", "start", "", path)
	} else {
		cmd = exec.Command(path)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.DETACHED_PROCESS | windows.CREATE_NEW_PROCESS_GROUP,
		HideWindow:    true,
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
