// Package loader joins the enable database to live unit handles and tracks
// which units are running. A Loader is confined to one OS thread.
package loader

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/trly/unitd/internal/db"
	"github.com/trly/unitd/internal/log"
	"github.com/trly/unitd/internal/unit"
)

// ErrForeignThread is the panic value for access from outside the owner thread.
var ErrForeignThread = errors.New("loader accessed from a foreign thread")

// Thread is the OS thread a Loader is confined to.
type Thread interface {
	Owns() bool
	Do(ctx context.Context, fn func()) error
}

// Options configure a Loader.
type Options struct {
	// Path is where the database is persisted.
	Path string
	// Baked are the units compiled into the binary.
	Baked []unit.Unit
	// Launcher starts supervisors for declared units.
	Launcher unit.Launcher
	// Defaulted marks a database that was built instead of loaded.
	Defaulted bool
	Logger    log.Logger
}

// Loader is the runtime context of the init system.
type Loader struct {
	thread    Thread
	path      string
	database  *db.Database
	baked     []unit.Unit
	launcher  unit.Launcher
	units     map[unit.Name]unit.Unit
	started   []unit.NameSet
	defaulted bool
	events    *semaphore.Weighted
	logger    log.Logger
}

// New creates a loader owned by thread.
func New(thread Thread, database *db.Database, opts Options) *Loader {
	l := &Loader{
		thread:    thread,
		path:      opts.Path,
		database:  database,
		baked:     opts.Baked,
		launcher:  opts.Launcher,
		defaulted: opts.Defaulted,
		events:    semaphore.NewWeighted(1),
		logger:    opts.Logger,
	}
	l.units = l.bind(database, nil)
	l.started = make([]unit.NameSet, database.LevelCount())
	for i := range l.started {
		l.started[i] = make(unit.NameSet)
	}
	return l
}

// bind builds the handle map for d. Handles in keep are reused and survive
// even when d no longer declares them.
func (l *Loader) bind(d *db.Database, keep map[unit.Name]unit.Unit) map[unit.Name]unit.Unit {
	units := make(map[unit.Name]unit.Unit, len(l.baked)+len(d.Units))
	for _, u := range l.baked {
		units[u.Name()] = u
	}
	for n, decl := range d.Units {
		if h, ok := keep[n]; ok {
			units[n] = h
			continue
		}
		units[n] = decl.Bind(l.launcher)
	}
	for n, h := range keep {
		if _, ok := units[n]; !ok {
			units[n] = h
		}
	}
	return units
}

func (l *Loader) check() {
	if !l.thread.Owns() {
		panic(ErrForeignThread)
	}
}

// Do runs fn on the loader's thread.
func (l *Loader) Do(ctx context.Context, fn func(l *Loader)) error {
	return l.thread.Do(ctx, func() { fn(l) })
}

// Events returns the lock serializing runtime start, stop and reload
// requests. It can be taken from any goroutine.
func (l *Loader) Events() *semaphore.Weighted {
	return l.events
}

// Database returns the active database.
func (l *Loader) Database() *db.Database {
	l.check()
	return l.database
}

// Commit replaces the active database. Declared units new to d are bound;
// existing handles are kept.
func (l *Loader) Commit(d *db.Database) {
	l.check()
	keep := l.running()
	for n := range d.Units {
		if h, ok := l.units[n]; ok {
			keep[n] = h
		}
	}
	l.units = l.bind(d, keep)
	l.database = d
	l.resize()
}

// Reload replaces the database with d. Handles of units that are running
// survive, including units d dropped; all others are rebound from d.
func (l *Loader) Reload(d *db.Database) {
	l.check()
	l.units = l.bind(d, l.running())
	l.database = d
	l.resize()
}

// running returns the handles of every started unit.
func (l *Loader) running() map[unit.Name]unit.Unit {
	keep := make(map[unit.Name]unit.Unit)
	for _, s := range l.started {
		for n := range s {
			if h, ok := l.units[n]; ok {
				keep[n] = h
			}
		}
	}
	return keep
}

func (l *Loader) resize() {
	count := l.database.LevelCount()
	for len(l.started) < count {
		l.started = append(l.started, make(unit.NameSet))
	}
	l.started = l.started[:count]
}

// Unit returns the handle for n.
func (l *Loader) Unit(n unit.Name) (unit.Unit, bool) {
	l.check()
	u, ok := l.units[n]
	return u, ok
}

// LevelCount returns the number of levels.
func (l *Loader) LevelCount() int {
	l.check()
	return l.database.LevelCount()
}

// Waves returns the handles of level i in start order. Names without a
// handle are skipped.
func (l *Loader) Waves(i int) ([][]unit.Unit, error) {
	l.check()
	level, err := l.database.Level(i)
	if err != nil {
		return nil, err
	}
	return l.handles(level), nil
}

// Handles maps a plan to unit handles, skipping unknown names.
func (l *Loader) Handles(level db.Level) [][]unit.Unit {
	l.check()
	return l.handles(level)
}

func (l *Loader) handles(level db.Level) [][]unit.Unit {
	waves := make([][]unit.Unit, 0, len(level))
	for _, names := range level {
		wave := make([]unit.Unit, 0, len(names))
		for _, n := range names {
			if u, ok := l.units[n]; ok {
				wave = append(wave, u)
			} else {
				l.logger.Warn("No handle for unit", "unit", n.String())
			}
		}
		waves = append(waves, wave)
	}
	return waves
}

// Started returns a copy of the units running at level i.
func (l *Loader) Started(i int) unit.NameSet {
	l.check()
	if i < 0 || i >= len(l.started) {
		return make(unit.NameSet)
	}
	return l.started[i].Clone()
}

// IsStarted reports whether n is running at level i.
func (l *Loader) IsStarted(i int, n unit.Name) bool {
	l.check()
	return i >= 0 && i < len(l.started) && l.started[i].Has(n)
}

// StartedAt returns the level n is recorded as running at.
func (l *Loader) StartedAt(n unit.Name) (int, bool) {
	l.check()
	for i, s := range l.started {
		if s.Has(n) {
			return i, true
		}
	}
	return 0, false
}

// MarkStarted records n as running at level i.
func (l *Loader) MarkStarted(i int, n unit.Name) {
	l.check()
	if i >= 0 && i < len(l.started) {
		l.started[i].Add(n)
	}
}

// MarkStopped records n as no longer running at level i.
func (l *Loader) MarkStopped(i int, n unit.Name) {
	l.check()
	if i >= 0 && i < len(l.started) {
		l.started[i].Remove(n)
	}
}

// Defaulted reports whether the database was built rather than loaded and
// has not been persisted yet.
func (l *Loader) Defaulted() bool {
	l.check()
	return l.defaulted
}

// Persist writes the active database to disk.
func (l *Loader) Persist() error {
	l.check()
	if l.path == "" {
		return nil
	}
	if err := db.Save(l.path, l.database, l.logger); err != nil {
		return fmt.Errorf("persisting database: %w", err)
	}
	l.defaulted = false
	return nil
}

// Path returns the database path.
func (l *Loader) Path() string {
	return l.path
}
