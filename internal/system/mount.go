package system

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Filesystem types mounted at boot.
const (
	FSTypeProc   = "proc"
	FSTypeSys    = "sysfs"
	FSTypeTmp    = "tmpfs"
	FSTypeDevTmp = "devtmpfs"
	FSTypeDevPts = "devpts"
)

// MountOptions describes one mount.
type MountOptions struct {
	FSType string
	Source string
	Flags  uintptr
	Data   string
}

// Mount mounts opts at path, creating the directory if needed. A target that
// is already mounted counts as success.
func Mount(path string, opts MountOptions) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}

	source := opts.Source
	if source == "" {
		source = opts.FSType
	}

	if err := unix.Mount(source, path, opts.FSType, opts.Flags, opts.Data); err != nil {
		if errors.Is(err, unix.EBUSY) {
			return nil
		}
		return fmt.Errorf("mount %s: %w", path, err)
	}
	return nil
}

// Unmount lazily detaches path.
func Unmount(path string) error {
	if err := unix.Unmount(path, unix.MNT_DETACH); err != nil && !errors.Is(err, unix.EINVAL) {
		return fmt.Errorf("umount %s: %w", path, err)
	}
	return nil
}
