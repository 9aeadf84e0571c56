package geom

import "math"

// Vec is a 2D point or vector in field coordinates (meters).
type Vec struct {
	X float64
	Y float64
}

func (v Vec) Add(o Vec) Vec      { return Vec{v.X + o.X, v.Y + o.Y} }
func (v Vec) Sub(o Vec) Vec      { return Vec{v.X - o.X, v.Y - o.Y} }
func (v Vec) Scale(s float64) Vec { return Vec{v.X * s, v.Y * s} }

func (v Vec) Dot(o Vec) float64   { return v.X*o.X + v.Y*o.Y }
func (v Vec) Cross(o Vec) float64 { return v.X*o.Y - v.Y*o.X }

func (v Vec) Len() float64   { return math.Hypot(v.X, v.Y) }
func (v Vec) LenSq() float64 { return v.X*v.X + v.Y*v.Y }

func (v Vec) Dist(o Vec) float64   { return v.Sub(o).Len() }
func (v Vec) DistSq(o Vec) float64 { return v.Sub(o).LenSq() }

// Angle returns the angle of the vector in radians.
func (v Vec) Angle() float64 { return math.Atan2(v.Y, v.X) }

// AngleBetween returns the unsigned angle between two vectors in [0, pi].
// Zero vectors yield 0.
func AngleBetween(a, b Vec) float64 {
	la, lb := a.Len(), b.Len()
	if la == 0 || lb == 0 {
		return 0
	}
	c := a.Dot(b) / (la * lb)
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return math.Acos(c)
}

// Lerp interpolates linearly between a and b; t in [0, 1].
func Lerp(a, b Vec, t float64) Vec {
	return Vec{a.X + (b.X-a.X)*t, a.Y + (b.Y-a.Y)*t}
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
