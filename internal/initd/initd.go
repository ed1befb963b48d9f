// Package initd is the PID 1 program: it boots the system, serves the control
// pipe and brings the machine down.
package initd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/trly/unitd/internal/config"
	"github.com/trly/unitd/internal/controller"
	"github.com/trly/unitd/internal/db"
	"github.com/trly/unitd/internal/event"
	"github.com/trly/unitd/internal/loader"
	"github.com/trly/unitd/internal/log"
	"github.com/trly/unitd/internal/sched"
	"github.com/trly/unitd/internal/supervisor"
	"github.com/trly/unitd/internal/system"
	"github.com/trly/unitd/internal/unit"
	"github.com/trly/unitd/internal/units"
)

// ErrNotPidOne is returned when init is started as an ordinary process.
var ErrNotPidOne = errors.New("init must run as PID 1")

// Init owns the running system.
type Init struct {
	cfg      *config.Settings
	logger   log.Logger
	kernel   system.Kernel
	host     units.Host
	launcher unit.Launcher
	baked    []unit.Unit
	policy   controller.CriticalPolicy

	sched  *sched.Scheduler
	loader *loader.Loader
	ctrl   *controller.Controller
	events *event.Channel
}

// Option customizes an Init.
type Option func(*Init)

// WithKernel replaces the syscalls used at shutdown.
func WithKernel(k system.Kernel) Option {
	return func(i *Init) { i.kernel = k }
}

// WithLauncher replaces the supervisor launcher.
func WithLauncher(l unit.Launcher) Option {
	return func(i *Init) { i.launcher = l }
}

// WithBaked replaces the compiled-in units.
func WithBaked(baked ...unit.Unit) Option {
	return func(i *Init) { i.baked = baked }
}

// WithPolicy sets how unrecoverable boot failures are handled.
func WithPolicy(p controller.CriticalPolicy) Option {
	return func(i *Init) { i.policy = p }
}

// New prepares an Init. Nothing is started until Boot.
func New(cfg *config.Settings, logger log.Logger, opts ...Option) *Init {
	i := &Init{
		cfg:    cfg,
		logger: logger,
		kernel: system.Host{},
		host:   units.Linux{},
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.policy == nil {
		if cfg.Interactive {
			i.policy = controller.Prompt{In: os.Stdin, Out: os.Stdout}
		} else {
			i.policy = controller.Abort{}
		}
	}
	return i
}

// Boot loads the database and starts every level.
func (i *Init) Boot(ctx context.Context) error {
	if i.launcher == nil {
		l, err := supervisor.NewProcessLauncher(i.cfg.SupervisorPath)
		if err != nil {
			return err
		}
		i.launcher = l
	}
	if i.baked == nil {
		i.baked = units.Baked(i.host, i.launcher, i.logger)
	}

	d, defaulted, err := db.Open(i.cfg.DBPath, func() (*db.Database, error) {
		return units.DefaultDatabase(i.baked)
	}, i.logger)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if defaulted {
		i.logger.Info("Using default database", "path", i.cfg.DBPath)
	}

	i.sched = sched.New()
	i.loader = loader.New(i.sched, d, loader.Options{
		Path:      i.cfg.DBPath,
		Baked:     i.baked,
		Launcher:  i.launcher,
		Defaulted: defaulted,
		Logger:    i.logger,
	})
	i.ctrl = controller.New(i.loader, i.policy, i.logger)
	i.events = event.New(i.loader, func() (*db.Database, error) {
		return db.Load(i.cfg.DBPath)
	}, i.logger)

	start := time.Now()
	if err := i.ctrl.Boot(ctx); err != nil {
		return err
	}
	i.logger.Info("Boot complete", "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// Events returns the request channel. It is nil before Boot.
func (i *Init) Events() *event.Channel {
	return i.events
}

// Shutdown tears the units down and performs v. It waits for any running
// event to finish first.
func (i *Init) Shutdown(ctx context.Context, v system.Verb) error {
	if i.loader != nil {
		lock := i.loader.Events()
		if err := lock.Acquire(ctx, 1); err == nil {
			if err := i.ctrl.Teardown(ctx); err != nil {
				i.logger.Error("Teardown failed", "error", err)
			}
			lock.Release(1)
		}
		i.sched.Close()
	}

	s := system.Shutdown{Kernel: i.kernel, Grace: i.cfg.TeardownGrace, Logger: i.logger}
	return s.Run(ctx, v)
}

// Emergency replaces init with the configured shell. It returns only when
// the exec fails.
func Emergency(shell string, logger log.Logger) error {
	logger.Error("Dropping into emergency shell", "shell", shell)
	err := unix.Exec(shell, []string{shell}, os.Environ())
	return fmt.Errorf("exec %s: %w", shell, err)
}
