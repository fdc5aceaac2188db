package simulation

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/ardalan-sia/trafficsim/pkg/agent"
	"github.com/ardalan-sia/trafficsim/pkg/geom"
	"github.com/ardalan-sia/trafficsim/pkg/graph"
	"github.com/ardalan-sia/trafficsim/pkg/routing"
)

// randomAttempts bounds how many source/destination pairs SpawnRandom
// draws before giving up.
const randomAttempts = 32

// Trip asks for a vehicle driving from Source to Destination. Source must
// lie on one of SourceRoads and Destination on one of DestinationRoads.
type Trip struct {
	Source           geom.Point
	Destination      geom.Point
	SourceRoads      []int
	DestinationRoads []int
}

// Spawn creates a vehicle for trip and puts it on the best entry road.
// Only entry roads with spare capacity are considered.
func (s *Simulator) Spawn(trip Trip) (*agent.Vehicle, error) {
	if len(trip.SourceRoads) == 0 || len(trip.DestinationRoads) == 0 {
		return nil, fmt.Errorf("%w: need at least one source and one destination road", ErrBadTrip)
	}
	var entries []routing.Entry
	for _, id := range trip.SourceRoads {
		r, ok := s.Network.Road(id)
		if !ok {
			return nil, fmt.Errorf("%w: source road %d: %w", ErrBadTrip, id, graph.ErrUnknownRoad)
		}
		if r.Spare() < 1 {
			continue
		}
		end := s.location(r.Dest)
		entries = append(entries, routing.Entry{
			Road:   id,
			Offset: end.DistanceTo(trip.Source) / r.Length * r.ExpectedTime(),
		})
	}
	exits := make([]routing.Exit, 0, len(trip.DestinationRoads))
	for _, id := range trip.DestinationRoads {
		r, ok := s.Network.Road(id)
		if !ok {
			return nil, fmt.Errorf("%w: destination road %d: %w", ErrBadTrip, id, graph.ErrUnknownRoad)
		}
		start := s.location(r.Source)
		exits = append(exits, routing.Exit{
			Road:   id,
			Offset: start.DistanceTo(trip.Destination) / r.Length * r.ExpectedTime(),
		})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("roads %v: %w", trip.SourceRoads, ErrNoCapacity)
	}

	plan, err := s.router.Route(entries, exits)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadTrip, err)
	}
	if !plan.Reachable {
		return nil, fmt.Errorf("roads %v to %v: %w", trip.SourceRoads, trip.DestinationRoads, ErrNoRoute)
	}

	v := agent.New(s.nextVehicle, trip.Source, trip.Destination, plan.Roads, s.now)
	entry, _ := s.Network.Road(plan.EntryRoad)
	if err := entry.Reserve(v.ID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvariant, err)
	}
	if err := s.admit(entry, v); err != nil {
		entry.CancelReservation(v.ID)
		return nil, err
	}
	s.nextVehicle++
	s.vehicles[v.ID] = v
	s.stats.Spawned++
	s.lg.Debug("spawned",
		slog.Int("vehicle", v.ID),
		slog.Any("plan", v.Plan),
		slog.Float64("cost", plan.Cost),
		slog.Float64("speed", v.Speed))
	return v, nil
}

// SpawnRandom creates a vehicle between two random points of the network.
// Both roads are drawn from the same strongly connected component so a
// route exists; a pair of adjacent roads is never chosen.
func (s *Simulator) SpawnRandom() (*agent.Vehicle, error) {
	roads := s.Network.Roads()
	open := lo.Filter(roads, func(r *graph.Road, _ int) bool { return r.Spare() > 0 })
	if len(open) == 0 {
		return nil, fmt.Errorf("random trip: %w", ErrNoCapacity)
	}
	comp := s.components()
	for range randomAttempts {
		src := open[s.rng.IntN(len(open))]
		dst := roads[s.rng.IntN(len(roads))]
		if src.ID == dst.ID || src.Dest == dst.Source || src.Source == dst.Dest {
			continue
		}
		if comp[src.Dest] != comp[dst.Source] {
			continue
		}
		trip := Trip{
			Source:           s.pointOn(src),
			Destination:      s.pointOn(dst),
			SourceRoads:      []int{src.ID},
			DestinationRoads: []int{dst.ID},
		}
		v, err := s.Spawn(trip)
		if errors.Is(err, ErrNoRoute) {
			continue
		}
		return v, err
	}
	return nil, fmt.Errorf("random trip after %d attempts: %w", randomAttempts, ErrNoRoute)
}

func (s *Simulator) pointOn(r *graph.Road) geom.Point {
	return geom.Along(s.location(r.Source), s.location(r.Dest), s.rng.Float64()*r.Length)
}

func (s *Simulator) location(intersection int) geom.Point {
	in, _ := s.Network.Intersection(intersection)
	return in.Location
}

// components caches the component index until the network changes size.
func (s *Simulator) components() map[int]int {
	size := [2]int{s.Network.CountIntersections(), s.Network.CountRoads()}
	if s.comps == nil || size != s.compsSize {
		s.comps = s.Network.ComponentIndex()
		s.compsSize = size
	}
	return s.comps
}
