package graph

import (
	"slices"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Components returns the strongly connected components of the road graph.
// Each component lists intersection ids ascending; components are ordered
// by size, largest first, then by smallest id.
func (n *Network) Components() [][]int {
	g := simple.NewDirectedGraph()
	for _, in := range n.Intersections() {
		g.AddNode(simple.Node(in.ID))
	}
	for _, r := range n.Roads() {
		from, to := simple.Node(r.Source), simple.Node(r.Dest)
		if g.HasEdgeFromTo(from.ID(), to.ID()) {
			continue
		}
		g.SetEdge(g.NewEdge(from, to))
	}

	var out [][]int
	for _, scc := range topo.TarjanSCC(g) {
		ids := make([]int, 0, len(scc))
		for _, node := range scc {
			ids = append(ids, int(node.ID()))
		}
		slices.Sort(ids)
		out = append(out, ids)
	}
	slices.SortFunc(out, func(a, b []int) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return a[0] - b[0]
	})
	return out
}

// ComponentIndex maps each intersection id to its index in Components().
func (n *Network) ComponentIndex() map[int]int {
	idx := make(map[int]int, len(n.intersections))
	for i, comp := range n.Components() {
		for _, id := range comp {
			idx[id] = i
		}
	}
	return idx
}
