package traffic

import (
	"math"
	"math/rand/v2"

	"github.com/samber/lo"

	"github.com/ardalan-sia/trafficsim/pkg/graph"
)

const (
	// DefaultJitter is the standard deviation of a sampled speed as a
	// fraction of the projected speed.
	DefaultJitter = 0.2
	// DefaultMinSpeed floors every sampled speed.
	DefaultMinSpeed = 0.5
)

// SpeedModel assigns speeds to vehicles entering a road.
type SpeedModel struct {
	Jitter   float64
	MinSpeed float64
	rng      *rand.Rand
}

// NewSpeedModel returns a model drawing from rng.
func NewSpeedModel(rng *rand.Rand, jitter, minSpeed float64) *SpeedModel {
	return &SpeedModel{Jitter: jitter, MinSpeed: minSpeed, rng: rng}
}

// Factor is the projected fraction of the speed limit at the given load:
// 2 - cosh(1.25 * flow/capacity). It is 1 on an empty road and about
// 0.1115 on a full one.
func Factor(flow, capacity int) float64 {
	if capacity <= 0 {
		return 1
	}
	load := lo.Clamp(float64(flow)/float64(capacity), 0, 1)
	return 2 - math.Cosh(1.25*load)
}

// Projected is the expected speed on r when it carries flow vehicles.
func Projected(r *graph.Road, flow int) float64 {
	return Factor(flow, r.Capacity) * r.SpeedLimit
}

// Sample draws a speed for a vehicle entering r while it carries flow
// vehicles: normal around the projected speed, floored at MinSpeed.
func (m *SpeedModel) Sample(r *graph.Road, flow int) float64 {
	proj := Projected(r, flow)
	v := proj
	if m.Jitter > 0 {
		v += m.rng.NormFloat64() * proj * m.Jitter
	}
	return math.Max(m.MinSpeed, v)
}

// Utilization is flow over capacity; a road without capacity counts as full.
func Utilization(r *graph.Road) float64 {
	if r.Capacity <= 0 {
		return 1
	}
	return float64(r.Flow()) / float64(r.Capacity)
}

// Density is vehicles per unit length.
func Density(r *graph.Road) float64 {
	if r.Length == 0 {
		return 0
	}
	return float64(r.Flow()) / r.Length
}

// Load is the pooled utilization of a set of roads.
func Load(roads []*graph.Road) float64 {
	capacity := lo.SumBy(roads, func(r *graph.Road) int { return r.Capacity })
	if capacity == 0 {
		return 0
	}
	return float64(lo.SumBy(roads, func(r *graph.Road) int { return r.Flow() })) / float64(capacity)
}
