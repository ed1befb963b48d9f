package unit

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/trly/unitd/internal/supervisor"
)

// Type distinguishes one-shot tasks from long-running daemons.
type Type string

// Declared unit types.
const (
	Oneshot Type = "oneshot"
	Daemon  Type = "daemon"
)

// ParseType parses a unit type, defaulting to Daemon when s is empty.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case "", Daemon:
		return Daemon, nil
	case Oneshot:
		return Oneshot, nil
	}
	return "", fmt.Errorf("unknown unit type %q", s)
}

// ErrNotRunning is returned when stopping a unit that has no supervisor.
var ErrNotRunning = errors.New("unit is not running")

// Launcher starts and kills detached supervisor processes.
type Launcher interface {
	Launch(ctx context.Context, opts supervisor.Options) (int, error)
	Kill(ctx context.Context, pid int) error
}

// Declared is a unit described by data rather than code. Its process is run
// under a supervisor whose pid is recorded on Start.
type Declared struct {
	ID         Name
	Type       Type
	Desc       string
	Deps       Dependencies
	Supervisor supervisor.Options

	launcher Launcher
	pid      atomic.Int64
}

// Bind returns a runnable copy of d that launches through l.
func (d *Declared) Bind(l Launcher) *Declared {
	return &Declared{
		ID:         d.ID,
		Type:       d.Type,
		Desc:       d.Desc,
		Deps:       d.Deps.Clone(),
		Supervisor: d.Supervisor,
		launcher:   l,
	}
}

// Name implements Unit.
func (d *Declared) Name() Name { return d.ID }

// Description implements Unit.
func (d *Declared) Description() string { return d.Desc }

// Dependencies implements Unit.
func (d *Declared) Dependencies() Dependencies { return d.Deps }

// Prepare implements Unit.
func (d *Declared) Prepare(context.Context) (bool, error) {
	if d.Supervisor.Cmd == "" {
		return false, &Error{Kind: Recoverable, Op: "prepare", Unit: d.ID.String(), Cause: errors.New("no command")}
	}
	return true, nil
}

// Pid returns the recorded supervisor pid, or 0.
func (d *Declared) Pid() int {
	return int(d.pid.Load())
}

// Options returns the supervisor options Start uses. One-shot units are
// relaunched only on failure.
func (d *Declared) Options() supervisor.Options {
	opts := d.Supervisor
	if d.Type == Oneshot {
		opts.RestartPolicy = supervisor.OnFailure
	}
	return opts
}

// Start launches the supervisor and records its pid.
func (d *Declared) Start(ctx context.Context) error {
	if d.launcher == nil {
		return &Error{Kind: Unrecoverable, Op: "start", Unit: d.ID.String(), Cause: errors.New("no launcher bound")}
	}
	pid, err := d.launcher.Launch(ctx, d.Options())
	if pid > 0 {
		d.pid.Store(int64(pid))
	}
	if err != nil {
		return &Error{Kind: Recoverable, Op: "start", Unit: d.ID.String(), Cause: err}
	}
	return nil
}

// Stop kills the supervisor's process group.
func (d *Declared) Stop(ctx context.Context) error {
	pid := d.pid.Load()
	if pid == 0 || d.launcher == nil {
		return &Error{Kind: Recoverable, Op: "stop", Unit: d.ID.String(), Cause: ErrNotRunning}
	}
	if err := d.launcher.Kill(ctx, int(pid)); err != nil {
		return &Error{Kind: Recoverable, Op: "stop", Unit: d.ID.String(), Cause: err}
	}
	d.pid.Store(0)
	return nil
}

// Teardown implements Unit.
func (d *Declared) Teardown(context.Context) error { return nil }

// Info returns the resolver snapshot of d.
func (d *Declared) Info() Info {
	return Info{Name: d.ID, Dependencies: d.Deps.Clone()}
}
