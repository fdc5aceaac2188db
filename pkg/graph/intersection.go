package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/ardalan-sia/trafficsim/pkg/geom"
)

var (
	ErrNotIncident      = errors.New("road is not incident to the intersection")
	ErrAlreadyConnected = errors.New("roads are already connected")
	ErrUnknownSignal    = errors.New("unknown signal")
	ErrNotStraight      = errors.New("primary signal must be a straight turn")
	ErrAlreadyLinked    = errors.New("signal is already linked to another primary")
)

type roadPair struct{ from, to int }

// Intersection is a network node. It owns the signals between its inbound
// and outbound roads and the phase groups that decide which of them are
// green together.
//
// Straight signals are primaries: each belongs to exactly one phase group.
// Left and right signals may be slaved to a primary. Groups live in a dense
// slice; removing or merging a group moves the last one into the hole.
type Intersection struct {
	ID       int
	Location geom.Point

	inbound  map[int]struct{}
	outbound map[int]struct{}

	signals map[roadPair]*Signal
	byID    map[int]*Signal

	lefts   map[int][]int // primary -> slaved left signals
	rights  map[int][]int // primary -> slaved right signals
	primary map[int]int   // slave -> primary

	groups    [][]int
	groupOf   map[int]int
	current   int
	leftPhase bool
}

func newIntersection(id int, loc geom.Point) *Intersection {
	return &Intersection{
		ID:       id,
		Location: loc,
		inbound:  make(map[int]struct{}),
		outbound: make(map[int]struct{}),
		signals:  make(map[roadPair]*Signal),
		byID:     make(map[int]*Signal),
		lefts:    make(map[int][]int),
		rights:   make(map[int][]int),
		primary:  make(map[int]int),
		groupOf:  make(map[int]int),
	}
}

// Inbound returns the ids of the roads ending here, ascending.
func (in *Intersection) Inbound() []int { return sortedKeys(in.inbound) }

// Outbound returns the ids of the roads starting here, ascending.
func (in *Intersection) Outbound() []int { return sortedKeys(in.outbound) }

func (in *Intersection) connect(s *Signal) error {
	if _, ok := in.inbound[s.From]; !ok {
		return fmt.Errorf("intersection %d, inbound road %d: %w", in.ID, s.From, ErrNotIncident)
	}
	if _, ok := in.outbound[s.To]; !ok {
		return fmt.Errorf("intersection %d, outbound road %d: %w", in.ID, s.To, ErrNotIncident)
	}
	key := roadPair{s.From, s.To}
	if _, ok := in.signals[key]; ok {
		return fmt.Errorf("intersection %d, roads %d->%d: %w", in.ID, s.From, s.To, ErrAlreadyConnected)
	}
	in.signals[key] = s
	in.byID[s.ID] = s
	if s.Turn == TurnStraight {
		in.groupOf[s.ID] = len(in.groups)
		in.groups = append(in.groups, []int{s.ID})
	}
	return nil
}

// Link ties signal b to primary a. A left or right b becomes a slave of a;
// a straight b has its phase group merged with a's.
func (in *Intersection) Link(a, b int) error {
	sa, ok := in.byID[a]
	if !ok {
		return fmt.Errorf("intersection %d, signal %d: %w", in.ID, a, ErrUnknownSignal)
	}
	sb, ok := in.byID[b]
	if !ok {
		return fmt.Errorf("intersection %d, signal %d: %w", in.ID, b, ErrUnknownSignal)
	}
	if sa.Turn != TurnStraight {
		return fmt.Errorf("intersection %d, signal %d is %s: %w", in.ID, a, sa.Turn, ErrNotStraight)
	}
	switch sb.Turn {
	case TurnLeft, TurnRight:
		if p, ok := in.primary[b]; ok {
			if p == a {
				return nil
			}
			return fmt.Errorf("intersection %d, signal %d (primary %d): %w", in.ID, b, p, ErrAlreadyLinked)
		}
		in.primary[b] = a
		if sb.Turn == TurnLeft {
			in.lefts[a] = insertSorted(in.lefts[a], b)
		} else {
			in.rights[a] = insertSorted(in.rights[a], b)
		}
	case TurnStraight:
		in.merge(in.groupOf[a], in.groupOf[b])
	}
	return nil
}

func (in *Intersection) merge(g, h int) {
	if g == h {
		return
	}
	keep, drop := min(g, h), max(g, h)
	for _, id := range in.groups[drop] {
		in.groupOf[id] = keep
	}
	in.groups[keep] = append(in.groups[keep], in.groups[drop]...)
	slices.Sort(in.groups[keep])
	in.groups[drop] = nil
	if in.current == drop {
		in.current = keep
	}
	in.compact(drop)
}

// compact fills the empty group slot g with the last group.
func (in *Intersection) compact(g int) {
	last := len(in.groups) - 1
	if g != last {
		in.groups[g] = in.groups[last]
		for _, id := range in.groups[g] {
			in.groupOf[id] = g
		}
		if in.current == last {
			in.current = g
		}
	}
	in.groups = in.groups[:last]
	if in.current >= len(in.groups) {
		in.current = 0
	}
}

// Cycle advances the signal phase. A group with slaved left signals takes
// two calls: the first turns the lefts green, the second the primaries.
func (in *Intersection) Cycle() {
	n := len(in.groups)
	if n == 0 {
		return
	}
	for _, id := range in.groups[(in.current+n-1)%n] {
		in.byID[id].State = Red
		for _, l := range in.lefts[id] {
			in.byID[l].State = Red
		}
	}
	greens := in.groups[in.current]
	var lefts []int
	if !in.leftPhase {
		for _, id := range greens {
			lefts = append(lefts, in.lefts[id]...)
		}
	}
	if len(lefts) == 0 {
		in.leftPhase = false
		for _, id := range greens {
			in.byID[id].State = Green
		}
		in.current = (in.current + 1) % n
		return
	}
	in.leftPhase = true
	for _, id := range lefts {
		in.byID[id].State = Green
	}
}

// CurrentGroup is the index of the group the next Cycle will serve.
func (in *Intersection) CurrentGroup() int { return in.current }

// InLeftPhase reports whether the last Cycle started a left sub-phase.
func (in *Intersection) InLeftPhase() bool { return in.leftPhase }

// Groups returns a copy of the phase groups.
func (in *Intersection) Groups() [][]int {
	out := make([][]int, len(in.groups))
	for i, g := range in.groups {
		out[i] = slices.Clone(g)
	}
	return out
}

// GroupOf returns the phase group of a primary signal.
func (in *Intersection) GroupOf(signal int) (int, bool) {
	g, ok := in.groupOf[signal]
	return g, ok
}

// PrimaryOf returns the primary a slave signal is linked to.
func (in *Intersection) PrimaryOf(signal int) (int, bool) {
	p, ok := in.primary[signal]
	return p, ok
}

// Slaves returns the left and right signals linked to a primary.
func (in *Intersection) Slaves(primary int) (lefts, rights []int) {
	return slices.Clone(in.lefts[primary]), slices.Clone(in.rights[primary])
}

func (in *Intersection) Signal(id int) (*Signal, bool) {
	s, ok := in.byID[id]
	return s, ok
}

// SignalBetween returns the signal controlling inbound road from to outbound road to.
func (in *Intersection) SignalBetween(from, to int) (*Signal, bool) {
	s, ok := in.signals[roadPair{from, to}]
	return s, ok
}

// Signals returns every signal of the intersection by ascending id.
func (in *Intersection) Signals() []*Signal {
	out := lo.Values(in.byID)
	slices.SortFunc(out, func(a, b *Signal) int { return a.ID - b.ID })
	return out
}

// GreenInbound returns the inbound roads with at least one green
// straight or left signal, ascending.
func (in *Intersection) GreenInbound() []int {
	roads := make(map[int]struct{})
	for _, s := range in.byID {
		if s.State == Green && s.Turn != TurnRight {
			roads[s.From] = struct{}{}
		}
	}
	return sortedKeys(roads)
}

func (in *Intersection) attach(r *Road) {
	if r.Dest == in.ID {
		in.inbound[r.ID] = struct{}{}
	}
	if r.Source == in.ID {
		in.outbound[r.ID] = struct{}{}
	}
}

// detach drops a road and destroys every signal that uses it.
func (in *Intersection) detach(road int) {
	delete(in.inbound, road)
	delete(in.outbound, road)
	for _, s := range in.Signals() {
		if s.From == road || s.To == road {
			in.removeSignal(s)
		}
	}
}

func (in *Intersection) removeSignal(s *Signal) {
	if p, ok := in.primary[s.ID]; ok {
		in.lefts[p] = slices.DeleteFunc(in.lefts[p], func(id int) bool { return id == s.ID })
		in.rights[p] = slices.DeleteFunc(in.rights[p], func(id int) bool { return id == s.ID })
		delete(in.primary, s.ID)
	}
	for _, slave := range append(in.lefts[s.ID], in.rights[s.ID]...) {
		delete(in.primary, slave)
	}
	delete(in.lefts, s.ID)
	delete(in.rights, s.ID)
	if g, ok := in.groupOf[s.ID]; ok {
		in.groups[g] = slices.DeleteFunc(in.groups[g], func(id int) bool { return id == s.ID })
		delete(in.groupOf, s.ID)
		if len(in.groups[g]) == 0 {
			in.compact(g)
		}
	}
	delete(in.byID, s.ID)
	delete(in.signals, roadPair{s.From, s.To})
}

func insertSorted(ids []int, id int) []int {
	i, found := slices.BinarySearch(ids, id)
	if found {
		return ids
	}
	return slices.Insert(ids, i, id)
}

func sortedKeys(m map[int]struct{}) []int {
	ids := lo.Keys(m)
	slices.Sort(ids)
	return ids
}
