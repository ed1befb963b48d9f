// Package units holds the units compiled into the init binary and the
// default database built from them.
package units

import (
	"errors"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"

	"github.com/trly/unitd/internal/system"
)

// Host is the part of the running system baked units act on.
type Host interface {
	Exists(path string) bool
	Mounted(path string) (bool, error)
	Available(fstype string) (bool, error)
	Fstab(path string) (system.MountEntry, bool, error)
	Mount(path string, opts system.MountOptions) error
	MkdirAll(path string, perm fs.FileMode) error
	Symlink(target, link string) error
	ReadFile(path string) ([]byte, error)
	Sethostname(name string) error
}

// Linux is the Host backed by the live kernel.
type Linux struct{}

// Exists reports whether path exists.
func (Linux) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Mounted reports whether something is mounted at path.
func (Linux) Mounted(path string) (bool, error) {
	entries, err := system.ReadMounts(system.ProcMounts)
	if err != nil {
		return false, err
	}
	_, ok := system.Lookup(entries, path)
	return ok, nil
}

// Available reports whether the kernel supports fstype.
func (Linux) Available(fstype string) (bool, error) {
	f, err := os.Open(system.ProcFilesystems)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	types, err := system.ParseFilesystems(f)
	if err != nil {
		return false, err
	}
	return types[fstype], nil
}

// Fstab looks path up in /etc/fstab. A missing fstab has no entries.
func (Linux) Fstab(path string) (system.MountEntry, bool, error) {
	entries, err := system.ReadMounts(system.Fstab)
	if errors.Is(err, fs.ErrNotExist) {
		return system.MountEntry{}, false, nil
	}
	if err != nil {
		return system.MountEntry{}, false, err
	}
	e, ok := system.Lookup(entries, path)
	return e, ok, nil
}

// Mount mounts opts at path.
func (Linux) Mount(path string, opts system.MountOptions) error {
	return system.Mount(path, opts)
}

// MkdirAll creates path.
func (Linux) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Symlink creates link pointing at target.
func (Linux) Symlink(target, link string) error {
	return os.Symlink(target, link)
}

// ReadFile reads path.
func (Linux) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Sethostname sets the kernel hostname.
func (Linux) Sethostname(name string) error {
	return unix.Sethostname([]byte(name))
}
