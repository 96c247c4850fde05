//go:build !windows

package platform

// Host returns the strategies for POSIX hosts, where symlink and chmod are native.
func Host() Capabilities {
	return Capabilities{
		Symlink: NativeSymlink{},
		Chmod:   NativeChmod{},
		Clone:   hostClone(),
	}
}
