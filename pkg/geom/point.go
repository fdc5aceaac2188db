package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Point is a location in the 2-D plane.
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

func (p Point) orb() orb.Point { return orb.Point{p.X, p.Y} }

// DistanceTo returns the euclidean distance between p and q.
func (p Point) DistanceTo(q Point) float64 { return planar.Distance(p.orb(), q.orb()) }

// AngleTo returns the bearing from p to q in radians.
func (p Point) AngleTo(q Point) float64 { return math.Atan2(q.Y-p.Y, q.X-p.X) }

// Toward moves p by step along the bearing to target, stopping at target.
func (p Point) Toward(target Point, step float64) Point {
	d := p.DistanceTo(target)
	if step >= d {
		return target
	}
	a := p.AngleTo(target)
	return Point{X: p.X + step*math.Cos(a), Y: p.Y + step*math.Sin(a)}
}

// Along returns the point at distance d from `from` on the segment toward `to`.
func Along(from, to Point, d float64) Point {
	a := from.AngleTo(to)
	return Point{X: from.X + d*math.Cos(a), Y: from.Y + d*math.Sin(a)}
}
