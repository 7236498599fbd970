//go:build unix

package process

import (
	"os/exec"
	"syscall"
)

// startDetached starts path in its own session so it outlives the caller.
func startDetached(path string) error {
	cmd := exec.Command(path)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
