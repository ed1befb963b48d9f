package units

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/trly/unitd/internal/log"
	"github.com/trly/unitd/internal/system"
	"github.com/trly/unitd/internal/unit"
)

// Names of the baked units.
var (
	ProcFS   = unit.NewName("procfs")
	SysFS    = unit.NewName("sysfs")
	Run      = unit.NewName("run")
	DevFS    = unit.NewName("devfs")
	DevPts   = unit.NewName("devpts")
	Hostname = unit.NewName("hostname")
)

const pseudoFlags = unix.MS_NODEV | unix.MS_NOEXEC | unix.MS_NOSUID

// mount prefers the fstab entry for path over opts.
func mount(h Host, path string, opts system.MountOptions) error {
	entry, ok, err := h.Fstab(path)
	if err != nil {
		return fmt.Errorf("reading fstab: %w", err)
	}
	if ok {
		fstabOpts := entry.MountOptions()
		fstabOpts.Flags |= opts.Flags & unix.MS_REMOUNT
		opts = fstabOpts
	}
	return h.Mount(path, opts)
}

type procFS struct {
	unit.Base
	host   Host
	logger log.Logger
}

func (u *procFS) Name() unit.Name     { return ProcFS }
func (u *procFS) Description() string { return "mount /proc" }

func (u *procFS) Prepare(context.Context) (bool, error) {
	if u.host.Exists(system.ProcMounts) {
		u.logger.Info("procfs already mounted")
		return false, nil
	}
	return true, nil
}

func (u *procFS) Start(context.Context) error {
	u.logger.Info("Mounting /proc")
	err := mount(u.host, "/proc", system.MountOptions{FSType: system.FSTypeProc, Source: "none", Flags: pseudoFlags})
	if err != nil {
		return unit.NewUnrecoverable("mount procfs", err)
	}
	return nil
}

type sysFS struct {
	unit.Base
	host   Host
	logger log.Logger
}

var miscSysFS = []struct{ path, fstype string }{
	{"/sys/kernel/security", "securityfs"},
	{"/sys/kernel/debug", "debugfs"},
	{"/sys/kernel/config", "configfs"},
	{"/sys/fs/fuse/connections", "fusectl"},
	{"/sys/fs/pstore", "pstore"},
}

func (u *sysFS) Name() unit.Name     { return SysFS }
func (u *sysFS) Description() string { return "mount /sys and kernel filesystems" }

func (u *sysFS) Dependencies() unit.Dependencies {
	var d unit.Dependencies
	d.Need(ProcFS)
	return d
}

func (u *sysFS) Start(context.Context) error {
	ok, err := u.host.Available(system.FSTypeSys)
	if err != nil {
		return unit.NewUnrecoverable("mount sysfs", err)
	}
	if !ok {
		return unit.NewUnrecoverable("mount sysfs", errors.New("sysfs not supported by kernel"))
	}

	mounted, err := u.host.Mounted("/sys")
	if err != nil {
		return unit.NewUnrecoverable("mount sysfs", err)
	}
	if !mounted {
		u.logger.Info("Mounting /sys")
		if err := u.host.MkdirAll("/sys", 0o755); err != nil {
			return unit.NewUnrecoverable("mount sysfs", err)
		}
		if err := mount(u.host, "/sys", system.MountOptions{FSType: system.FSTypeSys, Source: "none", Flags: pseudoFlags}); err != nil {
			return unit.NewUnrecoverable("mount sysfs", err)
		}
	}

	var errs []error
	for _, m := range miscSysFS {
		if err := mountOptional(u.host, m.path, m.fstype, system.MountOptions{FSType: m.fstype, Source: "none", Flags: pseudoFlags}); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return unit.NewRecoverable("mount kernel filesystems", err)
	}
	return nil
}

// mountOptional mounts fstype at path when the directory exists, the kernel
// supports it and nothing is mounted there yet.
func mountOptional(h Host, path, fstype string, opts system.MountOptions) error {
	if !h.Exists(path) {
		return nil
	}
	ok, err := h.Available(fstype)
	if err != nil || !ok {
		return err
	}
	mounted, err := h.Mounted(path)
	if err != nil || mounted {
		return err
	}
	return mount(h, path, opts)
}

type runFS struct {
	unit.Base
	host   Host
	logger log.Logger
}

func (u *runFS) Name() unit.Name     { return Run }
func (u *runFS) Description() string { return "mount /run" }

func (u *runFS) Dependencies() unit.Dependencies {
	var d unit.Dependencies
	d.Need(ProcFS)
	return d
}

func (u *runFS) Start(context.Context) error {
	if !u.host.Exists("/run") {
		return unit.NewUnrecoverable("mount run", errors.New("/run does not exist"))
	}

	mounted, err := u.host.Mounted("/run")
	if err != nil {
		return unit.NewUnrecoverable("mount run", err)
	}
	if !mounted {
		u.logger.Info("Mounting /run")
		err := mount(u.host, "/run", system.MountOptions{
			FSType: system.FSTypeTmp,
			Source: "none",
			Flags:  unix.MS_NODEV | unix.MS_STRICTATIME | unix.MS_NOSUID,
			Data:   "mode=0755,nr_inodes=500k,size=10%",
		})
		if err != nil {
			return unit.NewUnrecoverable("mount run", err)
		}
	}

	if err := u.host.MkdirAll("/run/lock", 0o755); err != nil {
		return unit.NewRecoverable("create /run/lock", err)
	}
	return nil
}

type devFS struct {
	unit.Base
	host   Host
	logger log.Logger
}

var devLinks = [][2]string{
	{"/proc/self/fd", "/dev/fd"},
	{"/proc/self/fd/0", "/dev/stdin"},
	{"/proc/self/fd/1", "/dev/stdout"},
	{"/proc/self/fd/2", "/dev/stderr"},
}

func (u *devFS) Name() unit.Name     { return DevFS }
func (u *devFS) Description() string { return "mount and populate /dev" }

func (u *devFS) Start(context.Context) error {
	opts := system.MountOptions{Source: "none", Flags: unix.MS_NOSUID}

	mounted, err := u.host.Mounted("/dev")
	if err != nil {
		return unit.NewUnrecoverable("mount devfs", err)
	}
	if mounted {
		u.logger.Info("Remounting /dev")
		opts.Flags |= unix.MS_REMOUNT
	} else {
		u.logger.Info("Mounting /dev")
	}

	for _, fstype := range []string{system.FSTypeDevTmp, system.FSTypeTmp} {
		ok, err := u.host.Available(fstype)
		if err != nil {
			return unit.NewUnrecoverable("mount devfs", err)
		}
		if ok {
			opts.FSType = fstype
			break
		}
	}
	if opts.FSType == "" {
		return unit.NewRecoverable("mount devfs", errors.New("neither devtmpfs nor tmpfs is available"))
	}

	if err := mount(u.host, "/dev", opts); err != nil {
		return unit.NewUnrecoverable("mount devfs", err)
	}

	for _, l := range devLinks {
		if u.host.Exists(l[1]) {
			continue
		}
		if err := u.host.Symlink(l[0], l[1]); err != nil {
			return unit.NewRecoverable("populate /dev", err)
		}
	}
	return nil
}

type devPts struct {
	unit.Base
	host   Host
	logger log.Logger
}

var devMounts = []struct {
	path string
	opts system.MountOptions
}{
	{"/dev/pts", system.MountOptions{FSType: system.FSTypeDevPts, Source: "none", Flags: unix.MS_NOEXEC | unix.MS_NOSUID, Data: "gid=5,mode=0620"}},
	{"/dev/shm", system.MountOptions{FSType: system.FSTypeTmp, Source: "none", Flags: pseudoFlags}},
	{"/dev/mqueue", system.MountOptions{FSType: "mqueue", Source: "none", Flags: pseudoFlags}},
}

func (u *devPts) Name() unit.Name     { return DevPts }
func (u *devPts) Description() string { return "mount /dev/pts, /dev/shm and /dev/mqueue" }

func (u *devPts) Dependencies() unit.Dependencies {
	var d unit.Dependencies
	d.Need(DevFS)
	return d
}

func (u *devPts) Start(context.Context) error {
	for _, m := range devMounts {
		if err := u.host.MkdirAll(m.path, 0o755); err != nil {
			return unit.NewRecoverable("mount "+m.path, err)
		}
		if err := mountOptional(u.host, m.path, m.opts.FSType, m.opts); err != nil {
			return unit.NewRecoverable("mount "+m.path, err)
		}
	}
	return nil
}
