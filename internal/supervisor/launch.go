package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// ProcessLauncher starts detached supervisor processes running the unitd
// binary at Path.
type ProcessLauncher struct {
	Path string
}

// NewProcessLauncher returns a launcher for path. An empty path means the
// running executable.
func NewProcessLauncher(path string) (*ProcessLauncher, error) {
	if path == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locating own executable: %w", err)
		}
		path = self
	}
	return &ProcessLauncher{Path: path}, nil
}

// Launch starts a supervisor for opts in its own session and returns its pid.
// The process is released; whoever reaps orphans reaps it.
func (l *ProcessLauncher) Launch(_ context.Context, opts Options) (int, error) {
	cmd := exec.Command(l.Path, opts.Argv()...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to spawn supervisor: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("releasing supervisor %d: %w", pid, err)
	}
	return pid, nil
}

// Kill sends SIGKILL to the process group led by pid.
func (l *ProcessLauncher) Kill(_ context.Context, pid int) error {
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil {
		return fmt.Errorf("killing supervisor group %d: %w", pid, err)
	}
	return nil
}
