package traffic

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/ardalan-sia/trafficsim/pkg/geom"
	"github.com/ardalan-sia/trafficsim/pkg/graph"
)

func TestFactorEndpoints(t *testing.T) {
	if f := Factor(0, 10); math.Abs(f-1) > 1e-12 {
		t.Fatalf("factor at zero flow = %v", f)
	}
	if f := Factor(10, 10); math.Abs(f-0.1115) > 1e-3 {
		t.Fatalf("factor at capacity = %v", f)
	}
}

func TestFactorMonotone(t *testing.T) {
	const capacity = 40
	prev := Factor(0, capacity)
	for flow := 1; flow <= capacity; flow++ {
		f := Factor(flow, capacity)
		if f > prev {
			t.Fatalf("factor rose from %v to %v at flow %d", prev, f, flow)
		}
		prev = f
	}
}

func testRoad(t *testing.T, capacity int) *graph.Road {
	t.Helper()
	n := graph.New()
	a := n.AddIntersection(geom.Pt(0, 0))
	b := n.AddIntersection(geom.Pt(20, 0))
	r, err := n.AddRoad(a.ID, b.ID, 10, capacity)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestSampleWithoutJitterIsProjected(t *testing.T) {
	r := testRoad(t, 4)
	m := NewSpeedModel(rand.New(rand.NewPCG(1, 2)), 0, DefaultMinSpeed)
	if v := m.Sample(r, 0); v != 10 {
		t.Fatalf("speed = %v, want 10", v)
	}
	if v, want := m.Sample(r, 2), Projected(r, 2); v != want {
		t.Fatalf("speed = %v, want %v", v, want)
	}
}

func TestSampleFloorAndSpread(t *testing.T) {
	r := testRoad(t, 4)
	m := NewSpeedModel(rand.New(rand.NewPCG(3, 4)), DefaultJitter, 9)
	for i := 0; i < 1000; i++ {
		if v := m.Sample(r, 3); v < 9 {
			t.Fatalf("sample %v below floor", v)
		}
	}

	m = NewSpeedModel(rand.New(rand.NewPCG(5, 6)), DefaultJitter, 0)
	var sum float64
	const n = 20000
	for i := 0; i < n; i++ {
		sum += m.Sample(r, 0)
	}
	if mean := sum / n; math.Abs(mean-10) > 0.1 {
		t.Fatalf("mean speed = %v, want ~10", mean)
	}
}

func TestLoadHelpers(t *testing.T) {
	r := testRoad(t, 4)
	for _, id := range []int{1, 2} {
		_ = r.Reserve(id)
		_ = r.Admit(id)
	}
	if u := Utilization(r); u != 0.5 {
		t.Fatalf("utilization = %v", u)
	}
	if d := Density(r); d != 0.1 {
		t.Fatalf("density = %v", d)
	}
	empty := testRoad(t, 4)
	if l := Load([]*graph.Road{r, empty}); l != 0.25 {
		t.Fatalf("load = %v", l)
	}
	if l := Load(nil); l != 0 {
		t.Fatalf("load of nothing = %v", l)
	}
}
