package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/ardalan-sia/trafficsim/pkg/geom"
)

var (
	ErrUnknownIntersection = errors.New("unknown intersection")
	ErrUnknownRoad         = errors.New("unknown road")
	ErrInvalidRoad         = errors.New("invalid road")
	ErrRoadInUse           = errors.New("road still carries vehicles")
)

// Network owns every intersection and road. Everything else refers to
// them by id.
type Network struct {
	intersections map[int]*Intersection
	roads         map[int]*Road

	nextIntersection int
	nextRoad         int
	nextSignal       int
}

// New returns an empty network. Id sequences start at zero.
func New() *Network {
	return &Network{
		intersections: make(map[int]*Intersection),
		roads:         make(map[int]*Road),
	}
}

// AddIntersection creates an intersection at loc.
func (n *Network) AddIntersection(loc geom.Point) *Intersection {
	in := newIntersection(n.nextIntersection, loc)
	n.nextIntersection++
	n.intersections[in.ID] = in
	return in
}

// AddRoad inserts a directed road from src to dst. Its length is the
// distance between the two intersections.
func (n *Network) AddRoad(src, dst int, speedLimit float64, capacity int) (*Road, error) {
	from, ok := n.intersections[src]
	if !ok {
		return nil, fmt.Errorf("road source %d: %w", src, ErrUnknownIntersection)
	}
	to, ok := n.intersections[dst]
	if !ok {
		return nil, fmt.Errorf("road destination %d: %w", dst, ErrUnknownIntersection)
	}
	if src == dst {
		return nil, fmt.Errorf("%w: road %d->%d is a loop", ErrInvalidRoad, src, dst)
	}
	if !(speedLimit > 0) {
		return nil, fmt.Errorf("%w: speed limit %v must be positive", ErrInvalidRoad, speedLimit)
	}
	if capacity < 0 {
		return nil, fmt.Errorf("%w: capacity %d must not be negative", ErrInvalidRoad, capacity)
	}
	length := from.Location.DistanceTo(to.Location)
	if length == 0 {
		return nil, fmt.Errorf("%w: intersections %d and %d coincide", ErrInvalidRoad, src, dst)
	}
	r := newRoad(n.nextRoad, src, dst, length, speedLimit, capacity)
	n.nextRoad++
	n.roads[r.ID] = r
	from.attach(r)
	to.attach(r)
	return r, nil
}

// Connect creates the signal for the movement from road `from` to road
// `to` through intersection at.
func (n *Network) Connect(at, from, to int, turn Turn) (*Signal, error) {
	in, ok := n.intersections[at]
	if !ok {
		return nil, fmt.Errorf("connect: intersection %d: %w", at, ErrUnknownIntersection)
	}
	if !turn.Valid() {
		return nil, fmt.Errorf("connect: intersection %d: invalid %s", at, turn)
	}
	s := newSignal(n.nextSignal, from, to, turn)
	if err := in.connect(s); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	n.nextSignal++
	return s, nil
}

// Link ties signal b to primary signal a at intersection at.
func (n *Network) Link(at, a, b int) error {
	in, ok := n.intersections[at]
	if !ok {
		return fmt.Errorf("link: intersection %d: %w", at, ErrUnknownIntersection)
	}
	if err := in.Link(a, b); err != nil {
		return fmt.Errorf("link: %w", err)
	}
	return nil
}

// RemoveRoad detaches an empty road from both of its intersections and
// destroys the signals that use it.
func (n *Network) RemoveRoad(id int) error {
	r, ok := n.roads[id]
	if !ok {
		return fmt.Errorf("remove road %d: %w", id, ErrUnknownRoad)
	}
	if !r.empty() {
		return fmt.Errorf("remove road %d (flow %d): %w", id, r.flow, ErrRoadInUse)
	}
	n.intersections[r.Source].detach(id)
	n.intersections[r.Dest].detach(id)
	delete(n.roads, id)
	return nil
}

func (n *Network) Intersection(id int) (*Intersection, bool) {
	in, ok := n.intersections[id]
	return in, ok
}

func (n *Network) Road(id int) (*Road, bool) {
	r, ok := n.roads[id]
	return r, ok
}

// Intersections returns every intersection by ascending id.
func (n *Network) Intersections() []*Intersection {
	out := lo.Values(n.intersections)
	slices.SortFunc(out, func(a, b *Intersection) int { return a.ID - b.ID })
	return out
}

// Roads returns every road by ascending id. The tick relies on this order.
func (n *Network) Roads() []*Road {
	out := lo.Values(n.roads)
	slices.SortFunc(out, func(a, b *Road) int { return a.ID - b.ID })
	return out
}

// Neighbors returns the roads leaving intersection id, ascending.
func (n *Network) Neighbors(id int) []*Road {
	in, ok := n.intersections[id]
	if !ok {
		return nil
	}
	return lo.Map(in.Outbound(), func(rid int, _ int) *Road { return n.roads[rid] })
}

// SignalBetween returns the signal at the end of road from that leads onto road to.
func (n *Network) SignalBetween(from, to int) (*Signal, bool) {
	r, ok := n.roads[from]
	if !ok {
		return nil, false
	}
	return n.intersections[r.Dest].SignalBetween(from, to)
}

func (n *Network) CountIntersections() int { return len(n.intersections) }
func (n *Network) CountRoads() int         { return len(n.roads) }
