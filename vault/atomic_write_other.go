//go:build !windows

package vault

import "os"

func renameReplace(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}
