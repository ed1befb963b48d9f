package resolve

import (
	"cmp"
	"slices"
)

func sortEdges(edges []Edge) {
	slices.SortFunc(edges, func(a, b Edge) int {
		if c := cmp.Compare(a.From.String(), b.From.String()); c != 0 {
			return c
		}
		return cmp.Compare(a.To.String(), b.To.String())
	})
}
