package testutil

import (
	"context"
	"sync"

	"github.com/trly/unitd/internal/supervisor"
	"github.com/trly/unitd/internal/unit"
)

// NullUnit is a unit with scripted hook results that records every call.
type NullUnit struct {
	ID   unit.Name
	Deps unit.Dependencies

	// Skip makes Prepare report false.
	Skip bool

	PrepareErr  error
	StartErr    error
	StopErr     error
	TeardownErr error

	// OnStart and OnStop run inside the hooks before they return.
	OnStart func()
	OnStop  func()

	mu    sync.Mutex
	calls []string
}

// NewNullUnit returns a unit that succeeds at everything.
func NewNullUnit(name string, deps unit.Dependencies) *NullUnit {
	return &NullUnit{ID: unit.NewName(name), Deps: deps}
}

func (u *NullUnit) record(call string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, call)
}

// Calls returns the hooks invoked so far, in order.
func (u *NullUnit) Calls() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.calls...)
}

func (u *NullUnit) Name() unit.Name                 { return u.ID }
func (u *NullUnit) Description() string             { return "null unit " + u.ID.String() }
func (u *NullUnit) Dependencies() unit.Dependencies { return u.Deps }

func (u *NullUnit) Prepare(context.Context) (bool, error) {
	u.record("prepare")
	return !u.Skip, u.PrepareErr
}

func (u *NullUnit) Start(context.Context) error {
	u.record("start")
	if u.OnStart != nil {
		u.OnStart()
	}
	return u.StartErr
}

func (u *NullUnit) Stop(context.Context) error {
	u.record("stop")
	if u.OnStop != nil {
		u.OnStop()
	}
	return u.StopErr
}

func (u *NullUnit) Teardown(context.Context) error {
	u.record("teardown")
	return u.TeardownErr
}

// Infos snapshots units for the database catalogue.
func Infos(units ...unit.Unit) map[unit.Name]unit.Info {
	m := make(map[unit.Name]unit.Info, len(units))
	for _, u := range units {
		m[u.Name()] = unit.InfoOf(u)
	}
	return m
}

// Launcher is a fake unit.Launcher handing out increasing pids.
type Launcher struct {
	mu       sync.Mutex
	next     int
	Launched []string
	Killed   []int
	Err      error
}

// Launch implements unit.Launcher.
func (l *Launcher) Launch(_ context.Context, opts supervisor.Options) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return 0, l.Err
	}
	l.next++
	l.Launched = append(l.Launched, opts.Cmd)
	return 1000 + l.next, nil
}

// Kill implements unit.Launcher.
func (l *Launcher) Kill(_ context.Context, pid int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Killed = append(l.Killed, pid)
	return nil
}
