// Package system wraps the Linux syscalls init needs: power control, process
// signalling, zombie reaping and mounting.
package system

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Verb is a power action.
type Verb string

// Power actions.
const (
	Halt     Verb = "halt"
	Poweroff Verb = "poweroff"
	Reboot   Verb = "reboot"
	Kexec    Verb = "kexec"
)

// ErrUnknownVerb is returned by ParseVerb.
var ErrUnknownVerb = errors.New("unknown power action")

// Verbs lists every power action.
var Verbs = []Verb{Halt, Poweroff, Reboot, Kexec}

// ParseVerb validates s as a power action.
func ParseVerb(s string) (Verb, error) {
	switch v := Verb(s); v {
	case Halt, Poweroff, Reboot, Kexec:
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVerb, s)
}

// Cmd returns the reboot(2) command for v.
func (v Verb) Cmd() int {
	switch v {
	case Halt:
		return unix.LINUX_REBOOT_CMD_HALT
	case Poweroff:
		return unix.LINUX_REBOOT_CMD_POWER_OFF
	case Kexec:
		return unix.LINUX_REBOOT_CMD_KEXEC
	default:
		return unix.LINUX_REBOOT_CMD_RESTART
	}
}

// IsPidOne reports whether this process is init.
func IsPidOne() bool {
	return os.Getpid() == 1
}

// IsRoot reports whether this process runs as uid 0.
func IsRoot() bool {
	return os.Geteuid() == 0
}

// Kernel is the set of process-wide syscalls used while tearing down.
type Kernel interface {
	KillAll(sig unix.Signal) error
	Sync()
	Reboot(v Verb) error
}

// Host issues real syscalls.
type Host struct{}

// KillAll signals every process except init.
func (Host) KillAll(sig unix.Signal) error {
	if err := unix.Kill(-1, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("kill -1 %s: %w", unix.SignalName(sig), err)
	}
	return nil
}

// Sync flushes filesystem buffers.
func (Host) Sync() {
	unix.Sync()
}

// Reboot performs the power action. On success it does not return.
func (Host) Reboot(v Verb) error {
	if err := unix.Reboot(v.Cmd()); err != nil {
		return fmt.Errorf("reboot %s: %w", v, err)
	}
	return nil
}

// DisableCAD makes the kernel send SIGINT to init on Ctrl-Alt-Del instead of
// rebooting immediately.
func DisableCAD() error {
	if err := unix.Reboot(unix.LINUX_REBOOT_CMD_CAD_OFF); err != nil {
		return fmt.Errorf("disabling ctrl-alt-del: %w", err)
	}
	return nil
}
