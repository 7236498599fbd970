//go:build !unix && !windows

package process

import (
	"os/exec"
)

func startDetached(path string) error {
	cmd := exec.Command(path)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
