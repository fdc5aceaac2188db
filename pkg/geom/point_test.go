package geom

import (
	"math"
	"testing"
)

func TestDistanceAndAngle(t *testing.T) {
	p, q := Pt(0, 0), Pt(3, 4)
	if d := p.DistanceTo(q); math.Abs(d-5) > 1e-9 {
		t.Fatalf("distance = %v, want 5", d)
	}
	if a := Pt(0, 0).AngleTo(Pt(0, 1)); math.Abs(a-math.Pi/2) > 1e-9 {
		t.Fatalf("angle = %v, want pi/2", a)
	}
}

func TestTowardStopsAtTarget(t *testing.T) {
	got := Pt(0, 0).Toward(Pt(10, 0), 4)
	if math.Abs(got.X-4) > 1e-9 || math.Abs(got.Y) > 1e-9 {
		t.Fatalf("Toward = %+v, want (4,0)", got)
	}
	if got := Pt(0, 0).Toward(Pt(10, 0), 25); got != Pt(10, 0) {
		t.Fatalf("overshoot: got %+v", got)
	}
}

func TestAlong(t *testing.T) {
	got := Along(Pt(1, 1), Pt(1, 11), 2.5)
	if math.Abs(got.X-1) > 1e-9 || math.Abs(got.Y-3.5) > 1e-9 {
		t.Fatalf("Along = %+v", got)
	}
}
