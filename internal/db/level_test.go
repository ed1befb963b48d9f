package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trly/unitd/internal/resolve"
	"github.com/trly/unitd/internal/unit"
)

func catalogue(infos ...unit.Info) map[unit.Name]unit.Info {
	m := make(map[unit.Name]unit.Info, len(infos))
	for _, i := range infos {
		m[i.Name] = i
	}
	return m
}

func info(name string, deps unit.Dependencies) unit.Info {
	return unit.Info{Name: unit.NewName(name), Dependencies: deps}
}

func TestClosure(t *testing.T) {
	infos := catalogue(
		info("a", unit.Dependencies{Needs: unit.Names("b")}),
		info("b", unit.Dependencies{Needs: unit.Names("c"), Wants: unit.Names("w", "ghost")}),
		info("c", unit.Dependencies{}),
		info("w", unit.Dependencies{}),
		info("u", unit.Dependencies{}),
		info("x", unit.Dependencies{Uses: unit.Names("u"), After: unit.Names("c"), Before: unit.Names("w")}),
	)

	tests := []struct {
		name    string
		enabled []string
		want    []string
	}{
		{"transitive needs and wants", []string{"a"}, []string{"a", "b", "c", "w"}},
		{"uses before after do not pull", []string{"x"}, []string{"x"}},
		{"unknown enabled skipped", []string{"nope", "c"}, []string{"c"}},
		{"empty", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Closure(infos, unit.NewNameSet(unit.Names(tt.enabled...)...))
			require.NoError(t, err)
			assert.Equal(t, unit.Names(tt.want...), got.Sorted())
		})
	}
}

func TestClosureMissingNeed(t *testing.T) {
	infos := catalogue(
		info("a", unit.Dependencies{Needs: unit.Names("b")}),
		info("b", unit.Dependencies{Needs: unit.Names("missing")}),
	)

	_, err := Closure(infos, unit.NewNameSet(unit.NewName("a")))
	assert.ErrorIs(t, err, resolve.ErrMissingDependency)
}

func TestBuildLevel(t *testing.T) {
	infos := catalogue(
		info("a", unit.Dependencies{Needs: unit.Names("b", "c")}),
		info("b", unit.Dependencies{Needs: unit.Names("d")}),
		info("c", unit.Dependencies{}),
		info("d", unit.Dependencies{}),
		info("unrelated", unit.Dependencies{}),
	)

	level, err := BuildLevel(infos, unit.NewNameSet(unit.NewName("a")))
	require.NoError(t, err)
	assert.Equal(t, Level{unit.Names("c", "d"), unit.Names("b"), unit.Names("a")}, level)
	assert.Equal(t, unit.Names("a", "b", "c", "d"), level.Names().Sorted())
}

func TestBuildLevelCycle(t *testing.T) {
	infos := catalogue(
		info("a", unit.Dependencies{Needs: unit.Names("b")}),
		info("b", unit.Dependencies{Wants: unit.Names("a")}),
	)

	_, err := BuildLevel(infos, unit.NewNameSet(unit.NewName("a")))
	assert.ErrorIs(t, err, resolve.ErrCyclicDependency)
}
