package simulation

import (
	"fmt"
	"log/slog"

	"github.com/ardalan-sia/trafficsim/pkg/agent"
	"github.com/ardalan-sia/trafficsim/pkg/geom"
	"github.com/ardalan-sia/trafficsim/pkg/graph"
)

type outcome int

const (
	tripComplete outcome = iota
	transferPending
)

type mark struct {
	vehicle int
	outcome outcome
}

// Tick advances the clock by dt, fires due phase changes and then moves
// every road in ascending id order. A vehicle is handled at most once per
// tick, even when it changes road.
func (s *Simulator) Tick(dt float64) error {
	if !(dt > 0) {
		return fmt.Errorf("tick %v: %w", dt, ErrBadStep)
	}
	s.now += dt
	if err := s.Controller.RunEvents(s.now); err != nil {
		return fmt.Errorf("%w: %w", ErrInvariant, err)
	}
	handled := make(map[int]struct{})
	for _, r := range s.Network.Roads() {
		if err := s.stepRoad(r, dt, handled); err != nil {
			return fmt.Errorf("tick %d, road %d: %w", s.ticks, r.ID, err)
		}
	}
	s.ticks++
	return nil
}

func (s *Simulator) stepRoad(r *graph.Road, dt float64, handled map[int]struct{}) error {
	end := s.location(r.Dest)

	if r.QueueLen() > 0 && s.releaseDue(r) {
		id, _ := r.DequeueHead(s.now)
		handled[id] = struct{}{}
		s.stats.Released++
		v, ok := s.vehicles[id]
		if !ok {
			return fmt.Errorf("%w: queued vehicle %d does not exist", ErrInvariant, id)
		}
		if s.mayLeave(r, v) {
			if err := s.handOff(r, v, end); err != nil {
				return err
			}
		}
	}

	tol := dt * r.SpeedLimit * s.opts.ArrivalFraction
	var marks []mark
	for _, id := range r.Occupants() {
		if _, ok := handled[id]; ok || r.IsQueued(id) {
			continue
		}
		handled[id] = struct{}{}
		v, ok := s.vehicles[id]
		if !ok {
			return fmt.Errorf("%w: road carries unknown vehicle %d", ErrInvariant, id)
		}
		v.Location = v.Location.Toward(end, v.Speed*dt)

		switch {
		case v.Location.DistanceTo(v.Destination) <= tol:
			marks = append(marks, mark{id, tripComplete})
		case r.QueueLen() > 0 && s.behindTail(r, v, tol):
			if err := s.enqueue(r, v); err != nil {
				return err
			}
		case v.Location.DistanceTo(end) <= tol:
			if s.hasRoom(v) {
				marks = append(marks, mark{id, transferPending})
			} else if err := s.enqueue(r, v); err != nil {
				return err
			}
		}
	}

	for _, m := range marks {
		v := s.vehicles[m.vehicle]
		if m.outcome == tripComplete {
			if err := r.Release(v.ID); err != nil {
				return fmt.Errorf("%w: %w", ErrInvariant, err)
			}
			v.Leave()
			s.destroy(v)
			continue
		}
		// an earlier mark may have used the room
		if !s.hasRoom(v) {
			continue
		}
		if err := s.handOff(r, v, end); err != nil {
			return err
		}
	}
	return nil
}

// releaseDue applies the reaction time rule to the queue of r.
func (s *Simulator) releaseDue(r *graph.Road) bool {
	since := s.now - r.LastRelease()
	if s.opts.Release == ReleaseWithinReaction {
		return since <= s.opts.ReactionTime
	}
	return since >= s.opts.ReactionTime
}

// mayLeave reports whether the queue head v can cross into its next road.
// A movement without a signal is uncontrolled.
func (s *Simulator) mayLeave(r *graph.Road, v *agent.Vehicle) bool {
	next, ok := v.NextRoad()
	if !ok {
		return true
	}
	if sig, ok := s.Network.SignalBetween(r.ID, next); ok && sig.State != graph.Green {
		return false
	}
	return s.hasRoom(v)
}

func (s *Simulator) hasRoom(v *agent.Vehicle) bool {
	next, ok := v.NextRoad()
	if !ok {
		return true
	}
	nr, ok := s.Network.Road(next)
	return ok && nr.Spare() > 0
}

func (s *Simulator) behindTail(r *graph.Road, v *agent.Vehicle, tol float64) bool {
	tail, ok := r.QueueTail()
	if !ok {
		return false
	}
	tv, ok := s.vehicles[tail]
	return ok && v.Location.DistanceTo(tv.Location) <= tol
}

func (s *Simulator) enqueue(r *graph.Road, v *agent.Vehicle) error {
	added, err := r.Enqueue(v.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvariant, err)
	}
	if added {
		s.stats.Queued++
	}
	return nil
}

// handOff moves v off r at its terminal and onto the next planned road,
// or ends the trip when r was the last one.
func (s *Simulator) handOff(r *graph.Road, v *agent.Vehicle, end geom.Point) error {
	if err := r.Release(v.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvariant, err)
	}
	v.Leave()
	v.Location = end
	next, ok := v.NextRoad()
	if !ok {
		s.destroy(v)
		return nil
	}
	nr, ok := s.Network.Road(next)
	if !ok {
		return fmt.Errorf("%w: vehicle %d plans missing road %d", ErrInvariant, v.ID, next)
	}
	if err := s.admit(nr, v); err != nil {
		return err
	}
	s.stats.Transfers++
	s.lg.Debug("transfer",
		slog.Int("vehicle", v.ID),
		slog.Int("from", r.ID),
		slog.Int("to", nr.ID),
		slog.Float64("speed", v.Speed))
	return nil
}
