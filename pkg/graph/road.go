package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"
)

var (
	ErrNotReserved     = errors.New("vehicle is not reserved on road")
	ErrAlreadyReserved = errors.New("vehicle is already reserved on road")
	ErrAtCapacity      = errors.New("road is at capacity")
	ErrAlreadyOnRoad   = errors.New("vehicle is already on road")
	ErrNotOnRoad       = errors.New("vehicle is not on road")
	ErrQueued          = errors.New("vehicle is stopped in the wait queue")
)

// Road is a directed, capacity-limited edge between two intersections.
// Vehicles are referenced by id; the simulation owns them.
type Road struct {
	ID         int
	Source     int
	Dest       int
	Length     float64
	SpeedLimit float64
	Capacity   int

	flow        int
	occupants   map[int]struct{}
	incoming    map[int]struct{}
	queue       []int
	queued      map[int]struct{}
	lastRelease float64
}

func newRoad(id, src, dst int, length, speedLimit float64, capacity int) *Road {
	return &Road{
		ID:         id,
		Source:     src,
		Dest:       dst,
		Length:     length,
		SpeedLimit: speedLimit,
		Capacity:   capacity,
		occupants:  make(map[int]struct{}),
		incoming:   make(map[int]struct{}),
		queued:     make(map[int]struct{}),
	}
}

// Flow is the number of vehicles currently on the road.
func (r *Road) Flow() int { return r.flow }

// Spare is the number of vehicles the road can still take.
func (r *Road) Spare() int { return r.Capacity - r.flow }

// ExpectedTime is the free-flow traversal time, used as the static routing weight.
func (r *Road) ExpectedTime() float64 { return r.Length / r.SpeedLimit }

// Reserve marks vehicle id as committed to enter this road next.
func (r *Road) Reserve(id int) error {
	if _, ok := r.incoming[id]; ok {
		return fmt.Errorf("road %d, vehicle %d: %w", r.ID, id, ErrAlreadyReserved)
	}
	r.incoming[id] = struct{}{}
	return nil
}

// CancelReservation drops a reservation if one exists.
func (r *Road) CancelReservation(id int) { delete(r.incoming, id) }

func (r *Road) IsReserved(id int) bool {
	_, ok := r.incoming[id]
	return ok
}

// Admit moves a reserved vehicle onto the road.
func (r *Road) Admit(id int) error {
	if _, ok := r.incoming[id]; !ok {
		return fmt.Errorf("road %d, vehicle %d: %w", r.ID, id, ErrNotReserved)
	}
	if _, ok := r.occupants[id]; ok {
		return fmt.Errorf("road %d, vehicle %d: %w", r.ID, id, ErrAlreadyOnRoad)
	}
	if r.flow >= r.Capacity {
		return fmt.Errorf("road %d (flow %d/%d): %w", r.ID, r.flow, r.Capacity, ErrAtCapacity)
	}
	r.flow++
	r.occupants[id] = struct{}{}
	delete(r.incoming, id)
	return nil
}

// Release takes a vehicle off the road. It must not be waiting in the queue.
func (r *Road) Release(id int) error {
	if _, ok := r.occupants[id]; !ok {
		return fmt.Errorf("road %d, vehicle %d: %w", r.ID, id, ErrNotOnRoad)
	}
	if _, ok := r.queued[id]; ok {
		return fmt.Errorf("road %d, vehicle %d: %w", r.ID, id, ErrQueued)
	}
	r.flow--
	delete(r.occupants, id)
	return nil
}

// Has reports whether vehicle id is on the road.
func (r *Road) Has(id int) bool {
	_, ok := r.occupants[id]
	return ok
}

// Occupants returns the ids of the vehicles on the road in ascending order.
func (r *Road) Occupants() []int {
	ids := lo.Keys(r.occupants)
	slices.Sort(ids)
	return ids
}

// Enqueue stops an occupant at the end of the wait queue. It reports
// false if the vehicle was already queued.
func (r *Road) Enqueue(id int) (bool, error) {
	if _, ok := r.occupants[id]; !ok {
		return false, fmt.Errorf("road %d, vehicle %d: %w", r.ID, id, ErrNotOnRoad)
	}
	if _, ok := r.queued[id]; ok {
		return false, nil
	}
	r.queue = append(r.queue, id)
	r.queued[id] = struct{}{}
	return true, nil
}

// DequeueHead pops the head of the wait queue and records now as the
// latest release time.
func (r *Road) DequeueHead(now float64) (int, bool) {
	if len(r.queue) == 0 {
		return 0, false
	}
	id := r.queue[0]
	r.queue = r.queue[1:]
	delete(r.queued, id)
	r.lastRelease = now
	return id, true
}

func (r *Road) QueueLen() int { return len(r.queue) }

func (r *Road) QueueHead() (int, bool) {
	if len(r.queue) == 0 {
		return 0, false
	}
	return r.queue[0], true
}

func (r *Road) QueueTail() (int, bool) {
	if len(r.queue) == 0 {
		return 0, false
	}
	return r.queue[len(r.queue)-1], true
}

// Queue returns a copy of the wait queue, head first.
func (r *Road) Queue() []int { return slices.Clone(r.queue) }

func (r *Road) IsQueued(id int) bool {
	_, ok := r.queued[id]
	return ok
}

// LastRelease is the time the queue head was last popped.
func (r *Road) LastRelease() float64 { return r.lastRelease }

func (r *Road) empty() bool {
	return r.flow == 0 && len(r.incoming) == 0
}
