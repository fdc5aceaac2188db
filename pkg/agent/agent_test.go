package agent

import (
	"testing"

	"github.com/ardalan-sia/trafficsim/pkg/geom"
)

func TestVehicleWalksItsPlan(t *testing.T) {
	plan := []int{4, 7, 2}
	v := New(1, geom.Pt(0, 0), geom.Pt(5, 5), plan, 3)
	plan[0] = 99
	if v.Road != NoRoad || v.Location != v.Source {
		t.Fatalf("fresh vehicle: road=%d loc=%+v", v.Road, v.Location)
	}
	if next, ok := v.NextRoad(); !ok || next != 4 {
		t.Fatalf("first road = %d, %v", next, ok)
	}
	for i, want := range []int{4, 7, 2} {
		if got := v.Enter(float64(i + 1)); got != want {
			t.Fatalf("entered %d, want %d", got, want)
		}
	}
	if v.HasNextRoad() || v.Remaining() != 0 {
		t.Fatalf("HasNextRoad=%v remaining=%d", v.HasNextRoad(), v.Remaining())
	}
	if _, ok := v.NextRoad(); ok {
		t.Fatal("NextRoad past the end")
	}
	if v.Speed != 3 {
		t.Fatalf("speed = %v", v.Speed)
	}
	v.Leave()
	if v.Road != NoRoad {
		t.Fatal("Leave kept the road")
	}
}
