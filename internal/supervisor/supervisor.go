// Package supervisor runs one child process and relaunches it according to a
// restart policy and attempt budget.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/trly/unitd/internal/log"
)

// Child is a running supervised process.
type Child interface {
	Pid() int
	Kill() error
}

// Spawner starts children.
type Spawner interface {
	Spawn(opts Options) (Child, error)
}

// Event is delivered to the supervision loop.
type Event interface {
	event()
}

// Exited reports that a process was reaped.
type Exited struct {
	Pid     int
	Success bool
}

// Terminate asks the supervisor to kill the current child.
type Terminate struct{}

func (Exited) event()    {}
func (Terminate) event() {}

// Supervisor keeps a child alive.
type Supervisor struct {
	opts     Options
	attempts int
	spawner  Spawner
	logger   log.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a Supervisor for opts.
func New(opts Options, spawner Spawner, logger log.Logger) *Supervisor {
	return &Supervisor{
		opts:     opts,
		attempts: opts.RestartAttempts,
		spawner:  spawner,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// Attempts returns the remaining restart budget.
func (s *Supervisor) Attempts() int {
	return s.attempts
}

// ShouldRestart consumes one attempt and reports true when the policy and the
// budget allow relaunching after an exit with the given outcome.
func (s *Supervisor) ShouldRestart(success bool) bool {
	if !s.opts.RestartPolicy.Allows(success) {
		return false
	}
	if s.attempts == Unlimited {
		return true
	}
	if s.attempts <= 0 {
		return false
	}
	s.attempts--
	return true
}

// refund returns one attempt to the budget.
func (s *Supervisor) refund() {
	if s.attempts != Unlimited {
		s.attempts++
	}
}

// Run spawns the child and services events until the policy says stop.
// Exits of processes other than the current child are ignored.
func (s *Supervisor) Run(ctx context.Context, events <-chan Event) error {
	child, err := s.spawner.Spawn(s.opts)
	if err != nil {
		return fmt.Errorf("spawning %s: %w", s.opts.Cmd, err)
	}
	s.logger.Debug("Spawned child", "cmd", s.opts.Cmd, "pid", child.Pid())

	for {
		var ev Event
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev = <-events:
		}

		switch e := ev.(type) {
		case Exited:
			if e.Pid != child.Pid() {
				continue
			}
			if !s.ShouldRestart(e.Success) {
				s.logger.Debug("Child exited, not restarting",
					"pid", e.Pid, "success", e.Success, "policy", s.opts.RestartPolicy.String())
				return nil
			}
			if err := s.sleep(ctx, s.opts.Delay()); err != nil {
				return err
			}
			child, err = s.spawner.Spawn(s.opts)
			if err != nil {
				return fmt.Errorf("restarting %s: %w", s.opts.Cmd, err)
			}
			s.logger.Debug("Restarted child", "pid", child.Pid(), "attempts", s.attempts)
		case Terminate:
			if err := child.Kill(); err != nil {
				s.logger.Warn("Failed to kill child", "pid", child.Pid(), "error", err)
			}
			s.refund()
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
