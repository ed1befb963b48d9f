package initd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trly/unitd/internal/config"
	"github.com/trly/unitd/internal/log"
	"github.com/trly/unitd/internal/system"
)

// Run is the whole life of PID 1. It returns only when not running as PID 1
// or when the final power action fails; boot failures end in the emergency
// shell.
func Run(ctx context.Context, cfg *config.Settings, logger log.Logger) error {
	if !system.IsPidOne() {
		return ErrNotPidOne
	}

	if err := os.Setenv("PATH", cfg.Path); err != nil {
		logger.Warn("Failed to set PATH", "error", err)
	}
	if err := system.DisableCAD(); err != nil {
		logger.Warn("Failed to disable Ctrl-Alt-Del", "error", err)
	}

	sigs := make(chan os.Signal, 16)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGCHLD)
	defer signal.Stop(sigs)

	i := New(cfg, logger)
	if err := i.Boot(ctx); err != nil {
		logger.Error("Boot failed", "error", err)
		hang(cfg, logger)
	}

	verb, err := i.Serve(ctx, sigs)
	if err != nil {
		logger.Error("Event loop failed", "error", err)
		hang(cfg, logger)
	}

	return i.Shutdown(ctx, verb)
}

// hang execs the emergency shell and, if that fails, parks PID 1 forever.
func hang(cfg *config.Settings, logger log.Logger) {
	err := Emergency(cfg.EmergencyShell, logger)
	logger.Error("Failed to start emergency shell", "error", err)
	for {
		time.Sleep(time.Hour)
	}
}
