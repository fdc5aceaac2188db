package graph

import (
	"errors"
	"slices"
	"testing"

	"github.com/ardalan-sia/trafficsim/pkg/geom"
)

func twoNodeRoad(t *testing.T, capacity int) (*Network, *Road) {
	t.Helper()
	n := New()
	a := n.AddIntersection(geom.Pt(0, 0))
	b := n.AddIntersection(geom.Pt(3, 4))
	r, err := n.AddRoad(a.ID, b.ID, 2.5, capacity)
	if err != nil {
		t.Fatalf("AddRoad: %v", err)
	}
	return n, r
}

func TestRoadGeometry(t *testing.T) {
	_, r := twoNodeRoad(t, 2)
	if r.Length != 5 {
		t.Fatalf("length = %v, want 5", r.Length)
	}
	if r.ExpectedTime() != 2 {
		t.Fatalf("expected time = %v, want 2", r.ExpectedTime())
	}
}

func TestAdmitRequiresReservation(t *testing.T) {
	_, r := twoNodeRoad(t, 2)
	if err := r.Admit(7); !errors.Is(err, ErrNotReserved) {
		t.Fatalf("Admit without reservation: err = %v", err)
	}
	if err := r.Reserve(7); err != nil {
		t.Fatal(err)
	}
	if err := r.Reserve(7); !errors.Is(err, ErrAlreadyReserved) {
		t.Fatalf("double reserve: err = %v", err)
	}
	if err := r.Admit(7); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if r.Flow() != 1 || r.IsReserved(7) || !r.Has(7) {
		t.Fatalf("after admit: flow=%d reserved=%v has=%v", r.Flow(), r.IsReserved(7), r.Has(7))
	}
}

func TestAdmitNeverExceedsCapacity(t *testing.T) {
	_, r := twoNodeRoad(t, 1)
	for _, id := range []int{1, 2} {
		if err := r.Reserve(id); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Admit(1); err != nil {
		t.Fatal(err)
	}
	if err := r.Admit(2); !errors.Is(err, ErrAtCapacity) {
		t.Fatalf("admit beyond capacity: err = %v", err)
	}
	if r.Flow() != 1 || r.Spare() != 0 {
		t.Fatalf("flow = %d spare = %d", r.Flow(), r.Spare())
	}
}

func TestReleaseRules(t *testing.T) {
	_, r := twoNodeRoad(t, 3)
	if err := r.Release(1); !errors.Is(err, ErrNotOnRoad) {
		t.Fatalf("release absent: err = %v", err)
	}
	_ = r.Reserve(1)
	_ = r.Admit(1)
	if ok, err := r.Enqueue(1); !ok || err != nil {
		t.Fatalf("Enqueue = %v, %v", ok, err)
	}
	if err := r.Release(1); !errors.Is(err, ErrQueued) {
		t.Fatalf("release queued: err = %v", err)
	}
	if id, ok := r.DequeueHead(4.5); !ok || id != 1 {
		t.Fatalf("DequeueHead = %d, %v", id, ok)
	}
	if r.LastRelease() != 4.5 {
		t.Fatalf("last release = %v", r.LastRelease())
	}
	if err := r.Release(1); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if r.Flow() != 0 {
		t.Fatalf("flow = %d", r.Flow())
	}
}

func TestQueueIsFIFO(t *testing.T) {
	_, r := twoNodeRoad(t, 5)
	for _, id := range []int{4, 2, 9} {
		_ = r.Reserve(id)
		_ = r.Admit(id)
		if _, err := r.Enqueue(id); err != nil {
			t.Fatal(err)
		}
	}
	if ok, _ := r.Enqueue(2); ok {
		t.Fatal("vehicle 2 queued twice")
	}
	if _, err := r.Enqueue(99); !errors.Is(err, ErrNotOnRoad) {
		t.Fatalf("enqueue stranger: err = %v", err)
	}
	if tail, _ := r.QueueTail(); tail != 9 {
		t.Fatalf("tail = %d", tail)
	}
	var got []int
	for r.QueueLen() > 0 {
		id, _ := r.DequeueHead(0)
		got = append(got, id)
	}
	if !slices.Equal(got, []int{4, 2, 9}) {
		t.Fatalf("dequeue order = %v", got)
	}
	if !slices.Equal(r.Occupants(), []int{2, 4, 9}) {
		t.Fatalf("occupants = %v", r.Occupants())
	}
}

func TestAddRoadValidation(t *testing.T) {
	n := New()
	a := n.AddIntersection(geom.Pt(0, 0))
	b := n.AddIntersection(geom.Pt(1, 0))
	twin := n.AddIntersection(geom.Pt(1, 0))
	cases := []struct {
		name     string
		src, dst int
		speed    float64
		capacity int
		want     error
	}{
		{"unknown source", 9, b.ID, 1, 1, ErrUnknownIntersection},
		{"unknown destination", a.ID, 9, 1, 1, ErrUnknownIntersection},
		{"loop", a.ID, a.ID, 1, 1, ErrInvalidRoad},
		{"zero speed", a.ID, b.ID, 0, 1, ErrInvalidRoad},
		{"negative capacity", a.ID, b.ID, 1, -1, ErrInvalidRoad},
		{"zero length", b.ID, twin.ID, 1, 1, ErrInvalidRoad},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := n.AddRoad(tc.src, tc.dst, tc.speed, tc.capacity); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}
