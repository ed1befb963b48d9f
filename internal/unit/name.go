package unit

import (
	"slices"
	"strings"
	"unique"
)

// Name is an interned unit name. Two names compare equal exactly when they
// were created from the same string, and the comparison is a pointer compare.
type Name struct {
	h unique.Handle[string]
}

// NewName interns s and returns its Name.
func NewName(s string) Name {
	return Name{h: unique.Make(s)}
}

// IsZero reports whether n was never assigned.
func (n Name) IsZero() bool {
	return n == Name{}
}

func (n Name) String() string {
	if n.IsZero() {
		return ""
	}
	return n.h.Value()
}

// MarshalText implements encoding.TextMarshaler.
func (n Name) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *Name) UnmarshalText(text []byte) error {
	*n = NewName(string(text))
	return nil
}

// Names interns every string in ss.
func Names(ss ...string) []Name {
	names := make([]Name, len(ss))
	for i, s := range ss {
		names[i] = NewName(s)
	}
	return names
}

// SortNames sorts names lexically in place.
func SortNames(names []Name) {
	slices.SortFunc(names, func(a, b Name) int {
		return strings.Compare(a.String(), b.String())
	})
}

// NameSet is an unordered set of unit names.
type NameSet map[Name]struct{}

// NewNameSet returns a set holding names.
func NewNameSet(names ...Name) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether n is in the set.
func (s NameSet) Has(n Name) bool {
	_, ok := s[n]
	return ok
}

// Add inserts n.
func (s NameSet) Add(n Name) {
	s[n] = struct{}{}
}

// Remove deletes n.
func (s NameSet) Remove(n Name) {
	delete(s, n)
}

// Clone returns an independent copy of s. A nil set clones to an empty one.
func (s NameSet) Clone() NameSet {
	c := make(NameSet, len(s))
	for n := range s {
		c[n] = struct{}{}
	}
	return c
}

// Difference returns the members of s that are not in other.
func (s NameSet) Difference(other NameSet) NameSet {
	d := make(NameSet)
	for n := range s {
		if !other.Has(n) {
			d[n] = struct{}{}
		}
	}
	return d
}

// Sorted returns the members in lexical order.
func (s NameSet) Sorted() []Name {
	names := make([]Name, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	SortNames(names)
	return names
}
