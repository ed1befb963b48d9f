// Package resolve turns unit dependency declarations into waves of units that
// can be started concurrently.
package resolve

import (
	"errors"
	"fmt"

	"github.com/trly/unitd/internal/unit"
)

var (
	// ErrMissingDependency is returned when a needed unit is not part of the input.
	ErrMissingDependency = errors.New("missing dependency")
	// ErrCyclicDependency is returned when the ordering constraints form a cycle.
	ErrCyclicDependency = errors.New("cyclic dependency detected")
)

// Edge orders From ahead of To.
type Edge struct {
	From unit.Name
	To   unit.Name
}

type edge struct {
	from, to int
	deleted  bool
}

type node struct {
	info    unit.Info
	in, out []int // indices into the edge arena
	done    bool
}

type arena struct {
	nodes []node
	edges []edge
	index map[unit.Name]int
}

func newArena(infos []unit.Info) (*arena, error) {
	g := &arena{
		nodes: make([]node, 0, len(infos)),
		index: make(map[unit.Name]int, len(infos)),
	}
	for _, info := range infos {
		if _, dup := g.index[info.Name]; dup {
			continue
		}
		g.index[info.Name] = len(g.nodes)
		g.nodes = append(g.nodes, node{info: info})
	}

	for i := range g.nodes {
		deps := g.nodes[i].info.Dependencies

		for _, dep := range deps.Needs {
			j, ok := g.index[dep]
			if !ok {
				return nil, fmt.Errorf("%w: %s needs %s", ErrMissingDependency, g.nodes[i].info.Name, dep)
			}
			g.link(j, i)
		}
		for _, dep := range deps.Wants {
			if j, ok := g.index[dep]; ok {
				g.link(j, i)
			}
		}
		for _, dep := range deps.After {
			if j, ok := g.index[dep]; ok {
				g.link(j, i)
			}
		}
		for _, dep := range deps.Before {
			if j, ok := g.index[dep]; ok {
				g.link(i, j)
			}
		}
	}
	return g, nil
}

func (g *arena) link(from, to int) {
	id := len(g.edges)
	g.edges = append(g.edges, edge{from: from, to: to})
	g.nodes[from].out = append(g.nodes[from].out, id)
	g.nodes[to].in = append(g.nodes[to].in, id)
}

func (g *arena) ready(i int) bool {
	for _, id := range g.nodes[i].in {
		if !g.edges[id].deleted {
			return false
		}
	}
	return true
}

// Resolve orders infos into waves. Every unit of a wave only depends on units
// of earlier waves; members of a wave are sorted by name.
//
// A needed unit missing from infos fails with ErrMissingDependency. Wanted
// units and before/after targets that are missing are ignored. A cycle fails
// with ErrCyclicDependency and no waves.
func Resolve(infos []unit.Info) ([][]unit.Name, error) {
	g, err := newArena(infos)
	if err != nil {
		return nil, err
	}

	var waves [][]unit.Name
	remaining := len(g.nodes)

	for remaining > 0 {
		var round []int
		for i := range g.nodes {
			if !g.nodes[i].done && g.ready(i) {
				round = append(round, i)
			}
		}
		if len(round) == 0 {
			return nil, fmt.Errorf("%w among %d units", ErrCyclicDependency, remaining)
		}

		wave := make([]unit.Name, 0, len(round))
		for _, i := range round {
			g.nodes[i].done = true
			for _, id := range g.nodes[i].out {
				g.edges[id].deleted = true
			}
			wave = append(wave, g.nodes[i].info.Name)
		}
		unit.SortNames(wave)

		waves = append(waves, wave)
		remaining -= len(round)
	}

	return waves, nil
}

// Edges returns the ordering constraints Resolve would apply to infos,
// sorted by source then target.
func Edges(infos []unit.Info) ([]Edge, error) {
	g, err := newArena(infos)
	if err != nil {
		return nil, err
	}

	edges := make([]Edge, 0, len(g.edges))
	seen := make(map[Edge]struct{}, len(g.edges))
	for _, e := range g.edges {
		out := Edge{From: g.nodes[e.from].info.Name, To: g.nodes[e.to].info.Name}
		if _, dup := seen[out]; dup {
			continue
		}
		seen[out] = struct{}{}
		edges = append(edges, out)
	}

	sortEdges(edges)
	return edges, nil
}
