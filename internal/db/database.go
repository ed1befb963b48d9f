package db

import (
	"errors"
	"fmt"

	"github.com/trly/unitd/internal/unit"
)

var (
	// ErrUnknownLevel is returned for a level index outside the database.
	ErrUnknownLevel = errors.New("unknown level")
	// ErrUnknownUnit is returned for a unit missing from the catalogue.
	ErrUnknownUnit = errors.New("unknown unit")
)

// Database holds the enabled units of every level, the cached start plans
// derived from them and the catalogue of known units.
type Database struct {
	Enabled []unit.NameSet
	Levels  []Level
	Infos   map[unit.Name]unit.Info
	// Units holds the declared units; baked units only appear in Infos.
	Units map[unit.Name]*unit.Declared
}

// New builds a database from the catalogue and enabled sets, computing every
// level's plan.
func New(infos map[unit.Name]unit.Info, units map[unit.Name]*unit.Declared, enabled []unit.NameSet) (*Database, error) {
	if infos == nil {
		infos = make(map[unit.Name]unit.Info)
	}
	if units == nil {
		units = make(map[unit.Name]*unit.Declared)
	}
	d := &Database{
		Enabled: enabled,
		Infos:   infos,
		Units:   units,
	}
	for _, u := range units {
		d.Infos[u.ID] = u.Info()
	}
	if err := d.Rebuild(); err != nil {
		return nil, err
	}
	return d, nil
}

// Rebuild recomputes the plan of every level. On error the previous plans
// are kept.
func (d *Database) Rebuild() error {
	levels := make([]Level, len(d.Enabled))
	for i, enabled := range d.Enabled {
		l, err := BuildLevel(d.Infos, enabled)
		if err != nil {
			return fmt.Errorf("building level %d: %w", i, err)
		}
		levels[i] = l
	}
	d.Levels = levels
	return nil
}

// LevelCount returns the number of levels.
func (d *Database) LevelCount() int {
	return len(d.Enabled)
}

// Level returns the plan of level i.
func (d *Database) Level(i int) (Level, error) {
	if i < 0 || i >= len(d.Levels) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLevel, i)
	}
	return d.Levels[i], nil
}

// IsEnabled reports whether n is enabled at level i.
func (d *Database) IsEnabled(i int, n unit.Name) bool {
	if i < 0 || i >= len(d.Enabled) {
		return false
	}
	return d.Enabled[i].Has(n)
}

// EnabledAnywhere reports whether n is enabled at any level.
func (d *Database) EnabledAnywhere(n unit.Name) bool {
	for _, s := range d.Enabled {
		if s.Has(n) {
			return true
		}
	}
	return false
}

// Enable adds n to level i. The plans are not rebuilt.
func (d *Database) Enable(i int, n unit.Name) error {
	if i < 0 || i >= len(d.Enabled) {
		return fmt.Errorf("%w: %d", ErrUnknownLevel, i)
	}
	if d.Enabled[i] == nil {
		d.Enabled[i] = make(unit.NameSet)
	}
	d.Enabled[i].Add(n)
	return nil
}

// Disable removes n from level i. The plans are not rebuilt.
func (d *Database) Disable(i int, n unit.Name) error {
	if i < 0 || i >= len(d.Enabled) {
		return fmt.Errorf("%w: %d", ErrUnknownLevel, i)
	}
	d.Enabled[i].Remove(n)
	return nil
}

// AddLevel appends an empty level and returns its index.
func (d *Database) AddLevel() int {
	d.Enabled = append(d.Enabled, make(unit.NameSet))
	d.Levels = append(d.Levels, nil)
	return len(d.Enabled) - 1
}

// Known reports whether n is in the catalogue.
func (d *Database) Known(n unit.Name) bool {
	_, ok := d.Infos[n]
	return ok
}

// Register adds or replaces a declared unit in the catalogue.
func (d *Database) Register(u *unit.Declared) {
	d.Infos[u.ID] = u.Info()
	d.Units[u.ID] = u
}

// Unregister drops a declared unit from the catalogue. Baked units cannot be
// unregistered.
func (d *Database) Unregister(n unit.Name) bool {
	if _, ok := d.Units[n]; !ok {
		return false
	}
	delete(d.Units, n)
	delete(d.Infos, n)
	return true
}

// Clone returns a copy whose enabled sets, plans and catalogue can be changed
// without affecting d. Declared units are shared.
func (d *Database) Clone() *Database {
	c := &Database{
		Enabled: make([]unit.NameSet, len(d.Enabled)),
		Levels:  make([]Level, len(d.Levels)),
		Infos:   make(map[unit.Name]unit.Info, len(d.Infos)),
		Units:   make(map[unit.Name]*unit.Declared, len(d.Units)),
	}
	for i, s := range d.Enabled {
		c.Enabled[i] = s.Clone()
	}
	for i, l := range d.Levels {
		c.Levels[i] = l.Clone()
	}
	for n, info := range d.Infos {
		c.Infos[n] = unit.Info{Name: info.Name, Dependencies: info.Dependencies.Clone()}
	}
	for n, u := range d.Units {
		c.Units[n] = u
	}
	return c
}
