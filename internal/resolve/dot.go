package resolve

import (
	"errors"
	"io"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"

	"github.com/trly/unitd/internal/unit"
)

// Graph builds a directed graph of infos keyed by unit name, with one edge per
// ordering constraint. Needs that fail to resolve are reported the same way
// Resolve reports them.
func Graph(infos []unit.Info) (graph.Graph[string, string], error) {
	edges, err := Edges(infos)
	if err != nil {
		return nil, err
	}

	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	for _, info := range infos {
		if err := g.AddVertex(info.Name.String(), graph.VertexAttribute("shape", "box")); err != nil &&
			!errors.Is(err, graph.ErrVertexAlreadyExists) {
			return nil, err
		}
	}
	for _, e := range edges {
		if err := g.AddEdge(e.From.String(), e.To.String()); err != nil {
			if errors.Is(err, graph.ErrEdgeCreatesCycle) {
				return nil, ErrCyclicDependency
			}
			if !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return nil, err
			}
		}
	}
	return g, nil
}

// WriteDOT renders the ordering graph of infos in Graphviz DOT format.
func WriteDOT(w io.Writer, infos []unit.Info) error {
	g, err := Graph(infos)
	if err != nil {
		return err
	}
	return draw.DOT(g, w)
}
