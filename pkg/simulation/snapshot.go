package simulation

import (
	"github.com/samber/lo"

	"github.com/ardalan-sia/trafficsim/pkg/agent"
	"github.com/ardalan-sia/trafficsim/pkg/geom"
	"github.com/ardalan-sia/trafficsim/pkg/graph"
	"github.com/ardalan-sia/trafficsim/pkg/traffic"
)

// Snapshot is a read-only copy of the simulation state taken between
// ticks. It shares nothing with the live simulator.
type Snapshot struct {
	Time          float64            `json:"time" msgpack:"time"`
	Tick          int                `json:"tick" msgpack:"tick"`
	Intersections []IntersectionView `json:"intersections" msgpack:"intersections"`
	Roads         []RoadView         `json:"roads" msgpack:"roads"`
	Vehicles      []VehicleView      `json:"vehicles" msgpack:"vehicles"`
	Stats         Stats              `json:"stats" msgpack:"stats"`
}

type IntersectionView struct {
	ID       int          `json:"id" msgpack:"id"`
	Location geom.Point   `json:"location" msgpack:"location"`
	Group    int          `json:"group" msgpack:"group"`
	Left     bool         `json:"left" msgpack:"left"`
	Signals  []SignalView `json:"signals" msgpack:"signals"`
}

type SignalView struct {
	ID    int    `json:"id" msgpack:"id"`
	From  int    `json:"from" msgpack:"from"`
	To    int    `json:"to" msgpack:"to"`
	Turn  string `json:"turn" msgpack:"turn"`
	State string `json:"state" msgpack:"state"`
}

type RoadView struct {
	ID          int        `json:"id" msgpack:"id"`
	From        geom.Point `json:"from" msgpack:"from"`
	To          geom.Point `json:"to" msgpack:"to"`
	SpeedLimit  float64    `json:"speedLimit" msgpack:"speedLimit"`
	Capacity    int        `json:"capacity" msgpack:"capacity"`
	Flow        int        `json:"flow" msgpack:"flow"`
	Utilization float64    `json:"utilization" msgpack:"utilization"`
	Queue       []int      `json:"queue" msgpack:"queue"`
}

type VehicleView struct {
	ID       int        `json:"id" msgpack:"id"`
	Road     int        `json:"road" msgpack:"road"`
	Location geom.Point `json:"location" msgpack:"location"`
	Speed    float64    `json:"speed" msgpack:"speed"`
	Queued   bool       `json:"queued" msgpack:"queued"`
}

// Snapshot copies the current state for renderers.
func (s *Simulator) Snapshot() Snapshot {
	snap := Snapshot{
		Time:  s.now,
		Tick:  s.ticks,
		Stats: s.stats,
	}
	for _, in := range s.Network.Intersections() {
		snap.Intersections = append(snap.Intersections, IntersectionView{
			ID:       in.ID,
			Location: in.Location,
			Group:    in.CurrentGroup(),
			Left:     in.InLeftPhase(),
			Signals: lo.Map(in.Signals(), func(sg *graph.Signal, _ int) SignalView {
				return SignalView{ID: sg.ID, From: sg.From, To: sg.To, Turn: sg.Turn.String(), State: sg.State.String()}
			}),
		})
	}
	for _, r := range s.Network.Roads() {
		snap.Roads = append(snap.Roads, RoadView{
			ID:          r.ID,
			From:        s.location(r.Source),
			To:          s.location(r.Dest),
			SpeedLimit:  r.SpeedLimit,
			Capacity:    r.Capacity,
			Flow:        r.Flow(),
			Utilization: traffic.Utilization(r),
			Queue:       r.Queue(),
		})
	}
	snap.Vehicles = lo.Map(s.Vehicles(), func(v *agent.Vehicle, _ int) VehicleView {
		vv := VehicleView{ID: v.ID, Road: v.Road, Location: v.Location, Speed: v.Speed}
		if r, ok := s.Network.Road(v.Road); ok {
			vv.Queued = r.IsQueued(v.ID)
		}
		return vv
	})
	return snap
}
