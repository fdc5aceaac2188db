package control

import (
	"container/heap"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ardalan-sia/trafficsim/pkg/graph"
)

var (
	ErrUnknownIntersection = errors.New("event for unknown intersection")
	ErrBadDuration         = errors.New("phase duration must be positive")
)

// Controller decides when intersections change phase.
type Controller interface {
	AddEvent(at float64, intersection int)
	HasDueEvent(now float64) bool
	RunEvents(now float64) error
}

var _ Controller = (*Scheduler)(nil)

// Event is a pending phase change.
type Event struct {
	At           float64
	Intersection int
	seq          int
}

// Scheduler is a Controller driven by a priority queue of phase events.
// Events fire in due-time order, ties in the order they were added. Each
// processed event cycles its intersection and schedules exactly one
// follow-up, timed by the Policy.
type Scheduler struct {
	net    *graph.Network
	policy Policy
	events eventQueue
	seq    int
	lg     *slog.Logger
}

func NewScheduler(net *graph.Network, policy Policy, lg *slog.Logger) *Scheduler {
	if lg == nil {
		lg = slog.Default()
	}
	s := &Scheduler{net: net, policy: policy, lg: lg}
	heap.Init(&s.events)
	return s
}

func (s *Scheduler) AddEvent(at float64, intersection int) {
	heap.Push(&s.events, &Event{At: at, Intersection: intersection, seq: s.seq})
	s.seq++
}

func (s *Scheduler) HasDueEvent(now float64) bool {
	return len(s.events) > 0 && s.events[0].At <= now
}

// RunEvents processes every event due at or before now.
func (s *Scheduler) RunEvents(now float64) error {
	for s.HasDueEvent(now) {
		ev := heap.Pop(&s.events).(*Event)
		in, ok := s.net.Intersection(ev.Intersection)
		if !ok {
			return fmt.Errorf("event at %.3f: intersection %d: %w", ev.At, ev.Intersection, ErrUnknownIntersection)
		}
		wasLeft := in.InLeftPhase()
		in.Cycle()
		ph := Phase{
			Intersection: in,
			At:           ev.At,
			EnteredLeft:  in.InLeftPhase(),
			AfterLeft:    wasLeft && !in.InLeftPhase(),
		}
		d := s.policy.Duration(s.net, ph)
		if !(d > 0) {
			return fmt.Errorf("intersection %d at %.3f: duration %v: %w", in.ID, ev.At, d, ErrBadDuration)
		}
		s.lg.Debug("phase change",
			slog.Int("intersection", in.ID),
			slog.Int("group", in.CurrentGroup()),
			slog.Bool("left", ph.EnteredLeft),
			slog.Float64("next", ev.At+d))
		s.AddEvent(ev.At+d, in.ID)
	}
	return nil
}

// Pending returns the queued events in firing order.
func (s *Scheduler) Pending() []Event {
	cp := make(eventQueue, len(s.events))
	copy(cp, s.events)
	out := make([]Event, 0, len(cp))
	for cp.Len() > 0 {
		out = append(out, *heap.Pop(&cp).(*Event))
	}
	return out
}

type eventQueue []*Event

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].At != q[j].At {
		return q[i].At < q[j].At
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x interface{}) { *q = append(*q, x.(*Event)) }
func (q *eventQueue) Pop() interface{} {
	old := *q
	n := len(old)
	ev := old[n-1]
	*q = old[:n-1]
	return ev
}
