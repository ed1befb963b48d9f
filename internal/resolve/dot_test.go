package resolve

import (
	"bytes"
	"testing"

	"github.com/dominikbraun/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trly/unitd/internal/unit"
)

func TestGraphAgreesWithResolve(t *testing.T) {
	infos := []unit.Info{
		info("web", needs("db", "net")),
		info("db", needs("net")),
		info("net", unit.Dependencies{}),
		info("cron", unit.Dependencies{After: unit.Names("web")}),
	}

	g, err := Graph(infos)
	require.NoError(t, err)

	order, err := graph.StableTopologicalSort(g, func(a, b string) bool { return a < b })
	require.NoError(t, err)
	assert.Equal(t, []string{"net", "db", "web", "cron"}, order)

	w, err := Resolve(infos)
	require.NoError(t, err)
	assert.Equal(t, waves([]string{"net"}, []string{"db"}, []string{"web"}, []string{"cron"}), w)
}

func TestGraphCycle(t *testing.T) {
	_, err := Graph([]unit.Info{
		info("a", unit.Dependencies{After: unit.Names("b")}),
		info("b", unit.Dependencies{After: unit.Names("a")}),
	})
	assert.ErrorIs(t, err, ErrCyclicDependency)
}

func TestGraphMissingNeed(t *testing.T) {
	_, err := Graph([]unit.Info{info("a", needs("ghost"))})
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestWriteDOT(t *testing.T) {
	var buf bytes.Buffer
	err := WriteDOT(&buf, []unit.Info{
		info("b", needs("a")),
		info("a", unit.Dependencies{}),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "digraph")
	assert.Contains(t, out, `"a" -> "b"`)
	assert.Contains(t, out, `"b"`)
}
