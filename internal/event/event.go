// Package event applies runtime start, stop and reload requests to a running
// system without a reboot.
package event

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/trly/unitd/internal/controller"
	"github.com/trly/unitd/internal/db"
	"github.com/trly/unitd/internal/loader"
	"github.com/trly/unitd/internal/log"
	"github.com/trly/unitd/internal/unit"
)

// ErrAlreadyInState is returned when a unit is already started or stopped.
var ErrAlreadyInState = errors.New("unit already in requested state")

// Action is the kind of a Request.
type Action int

// Request actions.
const (
	Reload Action = iota
	Start
	Stop
)

func (a Action) String() string {
	switch a {
	case Start:
		return "start"
	case Stop:
		return "stop"
	default:
		return "reload"
	}
}

// Request asks for a change of the running system.
type Request struct {
	Action Action
	Unit   unit.Name
	Level  int
}

// Channel serializes requests against one loader.
type Channel struct {
	loader *loader.Loader
	load   func() (*db.Database, error)
	logger log.Logger
}

// New creates a Channel. load reads the database from disk for reloads.
func New(l *loader.Loader, load func() (*db.Database, error), logger log.Logger) *Channel {
	return &Channel{loader: l, load: load, logger: logger}
}

// Handle applies req while holding the loader's event lock.
func (c *Channel) Handle(ctx context.Context, req Request) error {
	lock := c.loader.Events()
	if err := lock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer lock.Release(1)

	switch req.Action {
	case Reload:
		return c.reload(ctx)
	case Start, Stop:
		return c.modify(ctx, req)
	default:
		return fmt.Errorf("unknown action %d", req.Action)
	}
}

func (c *Channel) reload(ctx context.Context) error {
	d, err := c.load()
	if err != nil {
		return fmt.Errorf("reloading database: %w", err)
	}
	if err := c.loader.Do(ctx, func(l *loader.Loader) { l.Reload(d) }); err != nil {
		return err
	}
	c.logger.Info("Reloaded database", "levels", d.LevelCount())
	return nil
}

// move transfers a running unit's record from one level to another.
type move struct {
	from, to int
}

// plan is the work a start or stop request resolved to.
type plan struct {
	next  *db.Database
	diff  unit.NameSet
	waves [][]unit.Unit
	moves map[unit.Name]move
}

func (c *Channel) modify(ctx context.Context, req Request) error {
	var p plan
	var err error
	if doErr := c.loader.Do(ctx, func(l *loader.Loader) { p, err = c.prepare(l, req) }); doErr != nil {
		return doErr
	}
	if err != nil {
		return err
	}

	if req.Action == Start {
		err = c.apply(ctx, req.Level, p.waves, controller.StartUnit, func(l *loader.Loader, n unit.Name) {
			l.MarkStarted(req.Level, n)
		})
	} else {
		err = c.apply(ctx, req.Level, p.waves, controller.StopUnit, func(l *loader.Loader, n unit.Name) {
			l.MarkStopped(req.Level, n)
		})
	}
	if err != nil {
		return err
	}

	var persistErr error
	if doErr := c.loader.Do(ctx, func(l *loader.Loader) {
		for n, m := range p.moves {
			l.MarkStopped(m.from, n)
			l.MarkStarted(m.to, n)
		}
		l.Commit(p.next)
		persistErr = l.Persist()
	}); doErr != nil {
		return doErr
	}
	if persistErr != nil {
		c.logger.Warn("Failed to write database", "error", persistErr)
	}

	c.logger.Info("Applied request", "action", req.Action.String(), "unit", req.Unit.String(),
		"level", req.Level, "affected", len(p.diff))
	return nil
}

// prepare validates req and computes the affected units without changing the
// loader.
func (c *Channel) prepare(l *loader.Loader, req Request) (plan, error) {
	if req.Level < 0 || req.Level >= l.LevelCount() {
		return plan{}, fmt.Errorf("%w: %d", db.ErrUnknownLevel, req.Level)
	}

	start := req.Action == Start
	if l.IsStarted(req.Level, req.Unit) == start {
		return plan{}, fmt.Errorf("%w: %s %s at level %d", ErrAlreadyInState, req.Action, req.Unit, req.Level)
	}

	current := l.Database()
	next := current.Clone()
	if start {
		if err := next.Enable(req.Level, req.Unit); err != nil {
			return plan{}, err
		}
	} else if err := next.Disable(req.Level, req.Unit); err != nil {
		return plan{}, err
	}
	if err := next.Rebuild(); err != nil {
		return plan{}, err
	}
	if !next.Known(req.Unit) {
		return plan{}, fmt.Errorf("%w: %s", db.ErrUnknownUnit, req.Unit)
	}

	// Rebuild succeeded, so the level exists in both plans.
	started := l.Started(req.Level)
	nextLevel, _ := next.Level(req.Level)
	moves := make(map[unit.Name]move)

	var diff unit.NameSet
	var order db.Level
	if start {
		diff = nextLevel.Names()
		// Units already running keep their handle. Those owned by a higher
		// level now belong to this one, so they are stopped after it.
		for n := range diff {
			if j, ok := l.StartedAt(n); ok {
				diff.Remove(n)
				if j > req.Level {
					moves[n] = move{from: j, to: req.Level}
				}
			}
		}
		order = nextLevel
	} else {
		diff = started.Difference(nextLevel.Names())
		// Units another level still loads keep running and move to it.
		for n := range diff {
			if j, ok := loadedAt(next, req.Level, n); ok {
				diff.Remove(n)
				moves[n] = move{from: req.Level, to: j}
			}
		}
		prev, _ := current.Level(req.Level)
		order = prev.Clone()
		slices.Reverse(order)

		// Running units the old plan does not list are stopped last.
		if extra := diff.Difference(order.Names()); len(extra) > 0 {
			order = append(order, extra.Sorted())
		}
	}

	waves := make([][]unit.Unit, 0, len(order))
	for _, wave := range l.Handles(order) {
		members := make([]unit.Unit, 0, len(wave))
		for _, u := range wave {
			if diff.Has(u.Name()) {
				members = append(members, u)
			}
		}
		if len(members) > 0 {
			waves = append(waves, members)
		}
	}

	return plan{next: next, diff: diff, waves: waves, moves: moves}, nil
}

// loadedAt returns the lowest level other than skip whose plan in d
// contains n.
func loadedAt(d *db.Database, skip int, n unit.Name) (int, bool) {
	for j := 0; j < d.LevelCount(); j++ {
		if j == skip {
			continue
		}
		if l, err := d.Level(j); err == nil && l.Names().Has(n) {
			return j, true
		}
	}
	return 0, false
}

// apply runs fn over each wave, recording successes through mark. The first
// failure ends the walk and is returned.
func (c *Channel) apply(ctx context.Context, level int, waves [][]unit.Unit,
	fn func(context.Context, unit.Unit) controller.Outcome, mark func(*loader.Loader, unit.Name)) error {
	for _, wave := range waves {
		outcomes := controller.RunWave(ctx, wave, fn)

		var errs []error
		if err := c.loader.Do(ctx, func(l *loader.Loader) {
			for _, o := range outcomes {
				switch o.Result {
				case controller.Started, controller.Stopped:
					mark(l, o.Unit)
				case controller.Skipped:
					c.logger.Warn("Failed preparations, skipping unit", "unit", o.Unit.String(), "level", level)
				case controller.Failed:
					errs = append(errs, o.Err)
				}
			}
		}); err != nil {
			return err
		}
		if len(errs) > 0 {
			return errors.Join(errs...)
		}
	}
	return nil
}
