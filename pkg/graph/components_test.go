package graph

import (
	"slices"
	"testing"

	"github.com/ardalan-sia/trafficsim/pkg/geom"
)

func TestComponents(t *testing.T) {
	n := New()
	a := n.AddIntersection(geom.Pt(0, 0))
	b := n.AddIntersection(geom.Pt(1, 0))
	c := n.AddIntersection(geom.Pt(2, 0))
	d := n.AddIntersection(geom.Pt(3, 0))
	for _, e := range [][2]int{{a.ID, b.ID}, {b.ID, a.ID}, {b.ID, c.ID}, {c.ID, b.ID}, {c.ID, d.ID}} {
		if _, err := n.AddRoad(e[0], e[1], 1, 1); err != nil {
			t.Fatal(err)
		}
	}
	comps := n.Components()
	if len(comps) != 2 {
		t.Fatalf("components = %v", comps)
	}
	if !slices.Equal(comps[0], []int{a.ID, b.ID, c.ID}) || !slices.Equal(comps[1], []int{d.ID}) {
		t.Fatalf("components = %v", comps)
	}
	idx := n.ComponentIndex()
	if idx[a.ID] != idx[c.ID] || idx[a.ID] == idx[d.ID] {
		t.Fatalf("index = %v", idx)
	}
}
