//go:build windows

package platform

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

// Host returns the strategies for Windows: symlinks degrade to plain files without
// the create-symlink privilege and chmod permission errors are ignored.
func Host() Capabilities {
	return Capabilities{
		Symlink: FallbackSymlink{Native: NativeSymlink{}, Denied: symlinkDenied},
		Chmod:   TolerantChmod{Native: NativeChmod{}, Unsupported: chmodUnsupported},
		Clone:   hostClone(),
	}
}

func symlinkDenied(err error) bool {
	return errors.Is(err, windows.ERROR_PRIVILEGE_NOT_HELD) || errors.Is(err, os.ErrPermission)
}

func chmodUnsupported(err error) bool {
	return errors.Is(err, os.ErrPermission) || errors.Is(err, windows.ERROR_INVALID_PARAMETER)
}
