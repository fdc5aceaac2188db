package simulation

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/samber/lo"

	"github.com/ardalan-sia/trafficsim/pkg/agent"
	"github.com/ardalan-sia/trafficsim/pkg/control"
	"github.com/ardalan-sia/trafficsim/pkg/graph"
	"github.com/ardalan-sia/trafficsim/pkg/routing"
	"github.com/ardalan-sia/trafficsim/pkg/traffic"
)

var (
	// ErrInvariant marks a broken internal invariant. Callers should stop
	// the run when they see it.
	ErrInvariant  = errors.New("simulation invariant violated")
	ErrNoRoute    = errors.New("no route between source and destination")
	ErrNoCapacity = errors.New("no spare capacity on entry road")
	ErrBadTrip    = errors.New("invalid trip")
	ErrBadStep    = errors.New("tick length must be positive")
)

// ReleaseRule decides when the head of a wait queue may be released,
// measured from the previous release on the same road.
type ReleaseRule int

const (
	// ReleaseAfterReaction waits at least the reaction time.
	ReleaseAfterReaction ReleaseRule = iota
	// ReleaseWithinReaction only releases while still within the reaction
	// time. Kept for reproducing older runs.
	ReleaseWithinReaction
)

// Options tune a Simulator. A zero ReactionTime, ArrivalFraction or
// MinSpeed takes the default; a zero Jitter disables speed noise.
type Options struct {
	ReactionTime float64
	Release      ReleaseRule
	// ArrivalFraction scales dt × speed limit into the arrival tolerance.
	ArrivalFraction float64
	Jitter          float64
	MinSpeed        float64
	Seed            uint64
	Logger          *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		ReactionTime:    1,
		Release:         ReleaseAfterReaction,
		ArrivalFraction: 0.51,
		Jitter:          traffic.DefaultJitter,
		MinSpeed:        traffic.DefaultMinSpeed,
		Seed:            1,
	}
}

// Stats counts what happened since the simulator was created.
type Stats struct {
	Spawned   int `json:"spawned" msgpack:"spawned"`
	Completed int `json:"completed" msgpack:"completed"`
	Transfers int `json:"transfers" msgpack:"transfers"`
	Queued    int `json:"queued" msgpack:"queued"`
	Released  int `json:"released" msgpack:"released"`
}

// Simulator advances vehicles over a road network in discrete ticks. It
// is single-threaded: callers must not use it from more than one
// goroutine.
type Simulator struct {
	Network    *graph.Network
	Controller control.Controller

	router *routing.Router
	speeds *traffic.SpeedModel
	rng    *rand.Rand
	opts   Options
	lg     *slog.Logger

	vehicles    map[int]*agent.Vehicle
	nextVehicle int
	now         float64
	ticks       int
	stats       Stats

	comps     map[int]int
	compsSize [2]int
}

func NewSimulator(net *graph.Network, ctrl control.Controller, opts Options) *Simulator {
	def := DefaultOptions()
	if opts.ReactionTime <= 0 {
		opts.ReactionTime = def.ReactionTime
	}
	if opts.ArrivalFraction <= 0 {
		opts.ArrivalFraction = def.ArrivalFraction
	}
	if opts.MinSpeed <= 0 {
		opts.MinSpeed = def.MinSpeed
	}
	if opts.Jitter < 0 {
		opts.Jitter = 0
	}
	lg := opts.Logger
	if lg == nil {
		lg = slog.Default()
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	return &Simulator{
		Network:    net,
		Controller: ctrl,
		router:     routing.New(net),
		speeds:     traffic.NewSpeedModel(rng, opts.Jitter, opts.MinSpeed),
		rng:        rng,
		opts:       opts,
		lg:         lg.With(slog.String("component", "simulation")),
		vehicles:   make(map[int]*agent.Vehicle),
	}
}

func (s *Simulator) Now() float64 { return s.now }
func (s *Simulator) Ticks() int   { return s.ticks }
func (s *Simulator) Stats() Stats { return s.stats }

func (s *Simulator) Vehicle(id int) (*agent.Vehicle, bool) {
	v, ok := s.vehicles[id]
	return v, ok
}

// Vehicles returns every live vehicle by ascending id.
func (s *Simulator) Vehicles() []*agent.Vehicle {
	out := lo.Values(s.vehicles)
	slices.SortFunc(out, func(a, b *agent.Vehicle) int { return a.ID - b.ID })
	return out
}

func (s *Simulator) CountVehicles() int { return len(s.vehicles) }

// admit puts a vehicle that holds a reservation on r onto it. The speed
// is drawn from the load the vehicle finds when it enters.
func (s *Simulator) admit(r *graph.Road, v *agent.Vehicle) error {
	next, ok := v.NextRoad()
	if !ok || next != r.ID {
		return fmt.Errorf("%w: vehicle %d admitted to road %d, planned %d", ErrInvariant, v.ID, r.ID, next)
	}
	flow := r.Flow()
	if err := r.Admit(v.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvariant, err)
	}
	v.Enter(s.speeds.Sample(r, flow))
	if after, ok := v.NextRoad(); ok {
		nr, ok := s.Network.Road(after)
		if !ok {
			return fmt.Errorf("%w: vehicle %d plans missing road %d", ErrInvariant, v.ID, after)
		}
		if err := nr.Reserve(v.ID); err != nil {
			return fmt.Errorf("%w: %w", ErrInvariant, err)
		}
	}
	return nil
}

// destroy removes a vehicle that has already left its road.
func (s *Simulator) destroy(v *agent.Vehicle) {
	if next, ok := v.NextRoad(); ok {
		if nr, ok := s.Network.Road(next); ok {
			nr.CancelReservation(v.ID)
		}
	}
	delete(s.vehicles, v.ID)
	s.stats.Completed++
	s.lg.Debug("trip complete",
		slog.Int("vehicle", v.ID),
		slog.Float64("duration", s.now-v.SpawnedAt))
}

// CheckInvariants walks every road and vehicle and reports the first
// inconsistency found.
func (s *Simulator) CheckInvariants() error {
	seen := make(map[int]int)
	for _, r := range s.Network.Roads() {
		if r.Flow() < 0 || r.Flow() > r.Capacity {
			return fmt.Errorf("%w: road %d flow %d outside [0, %d]", ErrInvariant, r.ID, r.Flow(), r.Capacity)
		}
		occ := r.Occupants()
		if len(occ) != r.Flow() {
			return fmt.Errorf("%w: road %d flow %d but %d occupants", ErrInvariant, r.ID, r.Flow(), len(occ))
		}
		for _, id := range occ {
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("%w: vehicle %d on roads %d and %d", ErrInvariant, id, prev, r.ID)
			}
			seen[id] = r.ID
			v, ok := s.vehicles[id]
			if !ok {
				return fmt.Errorf("%w: road %d carries unknown vehicle %d", ErrInvariant, r.ID, id)
			}
			if v.Road != r.ID {
				return fmt.Errorf("%w: vehicle %d thinks it is on road %d, found on %d", ErrInvariant, id, v.Road, r.ID)
			}
		}
		for _, id := range r.Queue() {
			if !r.Has(id) {
				return fmt.Errorf("%w: road %d queues vehicle %d that is not on it", ErrInvariant, r.ID, id)
			}
		}
	}
	if len(seen) != len(s.vehicles) {
		return fmt.Errorf("%w: %d vehicles alive, %d on roads", ErrInvariant, len(s.vehicles), len(seen))
	}
	return nil
}
