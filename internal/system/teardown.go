package system

import (
	"context"
	"time"

	"golang.org/x/sys/unix"

	"github.com/trly/unitd/internal/log"
)

// Shutdown brings the machine down after units have been torn down.
type Shutdown struct {
	Kernel Kernel
	Grace  time.Duration
	Logger log.Logger
}

// Run terminates remaining processes, waits out the grace period, kills
// survivors, syncs and performs v. Failures are logged; the sequence always
// reaches the reboot call. The returned error is the reboot failure, if any.
func (s Shutdown) Run(ctx context.Context, v Verb) error {
	s.Logger.Info("Terminating remaining processes")
	if err := s.Kernel.KillAll(unix.SIGTERM); err != nil {
		s.Logger.Error("Failed to terminate processes", "error", err)
	}

	if s.Grace > 0 {
		t := time.NewTimer(s.Grace)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}

	s.Logger.Info("Killing remaining processes")
	if err := s.Kernel.KillAll(unix.SIGKILL); err != nil {
		s.Logger.Error("Failed to kill processes", "error", err)
	}

	s.Kernel.Sync()

	s.Logger.Info("Performing power action", "action", string(v))
	return s.Kernel.Reboot(v)
}
