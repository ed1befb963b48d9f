package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trly/unitd/internal/unit"
)

func info(name string, deps unit.Dependencies) unit.Info {
	return unit.Info{Name: unit.NewName(name), Dependencies: deps}
}

func needs(names ...string) unit.Dependencies {
	return unit.Dependencies{Needs: unit.Names(names...)}
}

func waves(w ...[]string) [][]unit.Name {
	out := make([][]unit.Name, len(w))
	for i, names := range w {
		out[i] = unit.Names(names...)
	}
	return out
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		infos []unit.Info
		want  [][]unit.Name
	}{
		{
			name: "needs chain with independent leaf",
			infos: []unit.Info{
				info("a", needs("b", "c")),
				info("b", needs("d")),
				info("c", unit.Dependencies{}),
				info("d", unit.Dependencies{}),
			},
			want: waves([]string{"c", "d"}, []string{"b"}, []string{"a"}),
		},
		{
			name: "empty input",
			want: nil,
		},
		{
			name: "independent units share a wave",
			infos: []unit.Info{
				info("sysfs", unit.Dependencies{}),
				info("procfs", unit.Dependencies{}),
				info("run", unit.Dependencies{}),
			},
			want: waves([]string{"procfs", "run", "sysfs"}),
		},
		{
			name: "wanted unit present orders ahead",
			infos: []unit.Info{
				info("getty", unit.Dependencies{Wants: unit.Names("syslog")}),
				info("syslog", unit.Dependencies{}),
			},
			want: waves([]string{"syslog"}, []string{"getty"}),
		},
		{
			name: "wanted unit missing is ignored",
			infos: []unit.Info{
				info("getty", unit.Dependencies{Wants: unit.Names("syslog")}),
			},
			want: waves([]string{"getty"}),
		},
		{
			name: "after orders behind",
			infos: []unit.Info{
				info("hostname", unit.Dependencies{After: unit.Names("procfs")}),
				info("procfs", unit.Dependencies{}),
			},
			want: waves([]string{"procfs"}, []string{"hostname"}),
		},
		{
			name: "before orders ahead",
			infos: []unit.Info{
				info("devfs", unit.Dependencies{Before: unit.Names("devpts")}),
				info("devpts", unit.Dependencies{}),
			},
			want: waves([]string{"devfs"}, []string{"devpts"}),
		},
		{
			name: "before and after on missing targets are ignored",
			infos: []unit.Info{
				info("a", unit.Dependencies{Before: unit.Names("x"), After: unit.Names("y")}),
			},
			want: waves([]string{"a"}),
		},
		{
			name: "uses does not order",
			infos: []unit.Info{
				info("a", unit.Dependencies{Uses: unit.Names("b")}),
				info("b", unit.Dependencies{}),
			},
			want: waves([]string{"a", "b"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.infos)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveMissingNeed(t *testing.T) {
	_, err := Resolve([]unit.Info{info("a", needs("b"))})
	assert.ErrorIs(t, err, ErrMissingDependency)
	assert.ErrorContains(t, err, "a needs b")
}

func TestResolveCycle(t *testing.T) {
	tests := []struct {
		name  string
		infos []unit.Info
	}{
		{"two units", []unit.Info{info("a", needs("b")), info("b", needs("a"))}},
		{"self", []unit.Info{info("a", needs("a"))}},
		{"before against needs", []unit.Info{
			info("a", needs("b")),
			info("b", unit.Dependencies{After: unit.Names("a")}),
		}},
		{"cycle behind a free unit", []unit.Info{
			info("free", unit.Dependencies{}),
			info("x", needs("y")),
			info("y", needs("z")),
			info("z", needs("x")),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.infos)
			assert.ErrorIs(t, err, ErrCyclicDependency)
			assert.Nil(t, got)
		})
	}
}

// Every input unit appears exactly once and never before one of its needs.
func TestResolveProperties(t *testing.T) {
	infos := []unit.Info{
		info("5", needs("11")),
		info("7", needs("11", "8")),
		info("3", needs("8", "10")),
		info("11", needs("2", "9", "10")),
		info("8", needs("9")),
		info("2", unit.Dependencies{}),
		info("9", unit.Dependencies{}),
		info("10", unit.Dependencies{}),
	}

	got, err := Resolve(infos)
	require.NoError(t, err)

	position := make(map[unit.Name]int)
	for i, wave := range got {
		for _, n := range wave {
			_, dup := position[n]
			require.False(t, dup, "%s scheduled twice", n)
			position[n] = i
		}
	}
	require.Len(t, position, len(infos))

	for _, in := range infos {
		for _, dep := range in.Dependencies.Needs {
			assert.Less(t, position[dep], position[in.Name], "%s must precede %s", dep, in.Name)
		}
	}
}

func TestEdges(t *testing.T) {
	edges, err := Edges([]unit.Info{
		info("a", unit.Dependencies{Needs: unit.Names("b"), After: unit.Names("b"), Before: unit.Names("c")}),
		info("b", unit.Dependencies{}),
		info("c", unit.Dependencies{}),
	})
	require.NoError(t, err)

	assert.Equal(t, []Edge{
		{From: unit.NewName("a"), To: unit.NewName("c")},
		{From: unit.NewName("b"), To: unit.NewName("a")},
	}, edges)
}
