//go:build windows

package vault

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// renameReplace moves oldpath over an existing newpath.
func renameReplace(oldpath, newpath string) error {
	from, err := windows.UTF16PtrFromString(oldpath)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", oldpath, err)
	}
	to, err := windows.UTF16PtrFromString(newpath)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", newpath, err)
	}
	if err := windows.MoveFileEx(from, to, windows.MOVEFILE_REPLACE_EXISTING|windows.MOVEFILE_WRITE_THROUGH); err != nil {
		return fmt.Errorf("MoveFileEx: %w", err)
	}
	return nil
}
