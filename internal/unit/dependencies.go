package unit

// Dependencies describes how a unit relates to other units.
//
// Edge directions as seen by the resolver:
//
//	A needs B   B -> A
//	A uses B    none
//	A wants B   B -> A, dropped when B is unknown
//	A before B  A -> B
//	A after B   B -> A
type Dependencies struct {
	// Needs must be started before the unit; a missing need fails resolution.
	Needs []Name
	// Uses is informational and never affects ordering or the load set.
	Uses []Name
	// Wants is started before the unit when it exists in the catalogue.
	Wants []Name
	// Before orders the unit ahead of the named units when both are loaded.
	Before []Name
	// After orders the unit behind the named units when both are loaded.
	After []Name
}

// Need appends a hard dependency.
func (d *Dependencies) Need(names ...Name) *Dependencies {
	d.Needs = append(d.Needs, names...)
	return d
}

// Use appends an informational dependency.
func (d *Dependencies) Use(names ...Name) *Dependencies {
	d.Uses = append(d.Uses, names...)
	return d
}

// Want appends a soft dependency.
func (d *Dependencies) Want(names ...Name) *Dependencies {
	d.Wants = append(d.Wants, names...)
	return d
}

// RunBefore appends ordering hints placing the unit ahead of names.
func (d *Dependencies) RunBefore(names ...Name) *Dependencies {
	d.Before = append(d.Before, names...)
	return d
}

// RunAfter appends ordering hints placing the unit behind names.
func (d *Dependencies) RunAfter(names ...Name) *Dependencies {
	d.After = append(d.After, names...)
	return d
}

// Clone returns a deep copy.
func (d Dependencies) Clone() Dependencies {
	return Dependencies{
		Needs:  append([]Name(nil), d.Needs...),
		Uses:   append([]Name(nil), d.Uses...),
		Wants:  append([]Name(nil), d.Wants...),
		Before: append([]Name(nil), d.Before...),
		After:  append([]Name(nil), d.After...),
	}
}

// Info is the snapshot of a unit the resolver works with. It is detached
// from the live unit so plans can be rebuilt without touching running state.
type Info struct {
	Name         Name
	Dependencies Dependencies
}

// InfoOf snapshots u.
func InfoOf(u Unit) Info {
	return Info{Name: u.Name(), Dependencies: u.Dependencies().Clone()}
}
