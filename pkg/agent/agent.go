package agent

import (
	"slices"

	"github.com/ardalan-sia/trafficsim/pkg/geom"
)

// NoRoad marks a vehicle that is not on any road.
const NoRoad = -1

// Vehicle models one trip. Its plan is fixed when it is created and never
// recomputed.
type Vehicle struct {
	ID int

	Source      geom.Point
	Destination geom.Point
	Location    geom.Point
	Speed       float64

	Road   int
	Plan   []int
	cursor int

	SpawnedAt float64
}

// New returns a vehicle positioned at src that will drive plan.
func New(id int, src, dst geom.Point, plan []int, now float64) *Vehicle {
	return &Vehicle{
		ID:          id,
		Source:      src,
		Destination: dst,
		Location:    src,
		Road:        NoRoad,
		Plan:        slices.Clone(plan),
		cursor:      -1,
		SpawnedAt:   now,
	}
}

// HasNextRoad reports whether another road follows the current one.
func (v *Vehicle) HasNextRoad() bool { return v.cursor+1 < len(v.Plan) }

// NextRoad returns the next planned road.
func (v *Vehicle) NextRoad() (int, bool) {
	if !v.HasNextRoad() {
		return NoRoad, false
	}
	return v.Plan[v.cursor+1], true
}

// Enter moves the vehicle onto its next planned road at the given speed.
func (v *Vehicle) Enter(speed float64) int {
	v.cursor++
	v.Road = v.Plan[v.cursor]
	v.Speed = speed
	return v.Road
}

// Leave takes the vehicle off its current road.
func (v *Vehicle) Leave() { v.Road = NoRoad }

// Remaining is how many planned roads are left after the current one.
func (v *Vehicle) Remaining() int { return len(v.Plan) - v.cursor - 1 }
