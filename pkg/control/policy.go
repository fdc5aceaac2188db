package control

import (
	"github.com/samber/lo"

	"github.com/ardalan-sia/trafficsim/pkg/graph"
	"github.com/ardalan-sia/trafficsim/pkg/traffic"
)

// Phase describes the transition an intersection just made.
type Phase struct {
	Intersection *graph.Intersection
	At           float64
	EnteredLeft  bool // a left sub-phase just started
	AfterLeft    bool // a primary phase just followed a left sub-phase
}

// Policy times the phase that a transition started.
type Policy interface {
	Duration(net *graph.Network, ph Phase) float64
}

// Pretimed gives fixed durations. A primary phase that follows a left
// sub-phase is shortened by the left duration so the pair lasts as long
// as a plain primary phase.
type Pretimed struct {
	Left     float64
	Straight float64
}

func DefaultPretimed() Pretimed { return Pretimed{Left: 10, Straight: 30} }

func (p Pretimed) Duration(_ *graph.Network, ph Phase) float64 {
	switch {
	case ph.EnteredLeft:
		return p.Left
	case ph.AfterLeft:
		return p.Straight - p.Left
	default:
		return p.Straight
	}
}

// Adaptive stretches primary phases with the load on the roads that were
// just given green: an idle approach gets Min, a full one Max.
type Adaptive struct {
	Left float64
	Min  float64
	Max  float64
}

func DefaultAdaptive() Adaptive { return Adaptive{Left: 10, Min: 5, Max: 50} }

func (a Adaptive) Duration(net *graph.Network, ph Phase) float64 {
	if ph.EnteredLeft {
		return a.Left
	}
	var roads []*graph.Road
	for _, id := range ph.Intersection.GreenInbound() {
		if r, ok := net.Road(id); ok {
			roads = append(roads, r)
		}
	}
	d := a.Min + (a.Max-a.Min)*traffic.Load(roads)
	if ph.AfterLeft {
		d -= a.Left
	}
	return lo.Clamp(d, a.Min, a.Max)
}
