package db

import (
	"fmt"

	"github.com/trly/unitd/internal/resolve"
	"github.com/trly/unitd/internal/unit"
)

// Level is the ordered start plan of one runlevel: waves of units that may
// start concurrently.
type Level [][]unit.Name

// Names returns every unit of the level.
func (l Level) Names() unit.NameSet {
	s := make(unit.NameSet)
	for _, wave := range l {
		for _, n := range wave {
			s.Add(n)
		}
	}
	return s
}

// Clone returns a deep copy.
func (l Level) Clone() Level {
	if l == nil {
		return nil
	}
	c := make(Level, len(l))
	for i, wave := range l {
		c[i] = append([]unit.Name(nil), wave...)
	}
	return c
}

// Closure returns the enabled units present in infos together with
// everything they transitively need or want. Uses, before and after never
// pull a unit in. Enabled names missing from infos are skipped.
func Closure(infos map[unit.Name]unit.Info, enabled unit.NameSet) (unit.NameSet, error) {
	closure := make(unit.NameSet)
	var queue []unit.Name

	for _, n := range enabled.Sorted() {
		if _, ok := infos[n]; ok {
			closure.Add(n)
			queue = append(queue, n)
		}
	}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		deps := infos[n].Dependencies

		for _, need := range deps.Needs {
			if _, ok := infos[need]; !ok {
				return nil, fmt.Errorf("%w: %s needs %s", resolve.ErrMissingDependency, n, need)
			}
			if !closure.Has(need) {
				closure.Add(need)
				queue = append(queue, need)
			}
		}
		for _, want := range deps.Wants {
			if _, ok := infos[want]; ok && !closure.Has(want) {
				closure.Add(want)
				queue = append(queue, want)
			}
		}
	}

	return closure, nil
}

// BuildLevel computes the start plan for the enabled set.
func BuildLevel(infos map[unit.Name]unit.Info, enabled unit.NameSet) (Level, error) {
	closure, err := Closure(infos, enabled)
	if err != nil {
		return nil, err
	}

	selected := make([]unit.Info, 0, len(closure))
	for _, n := range closure.Sorted() {
		selected = append(selected, infos[n])
	}

	waves, err := resolve.Resolve(selected)
	if err != nil {
		return nil, err
	}
	return Level(waves), nil
}
