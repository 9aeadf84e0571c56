// Package obstacle models the static field geometry the planner must stay
// clear of. Shapes are a closed set of variants resolved by switching on
// Kind; Buffered produces the clearance-expanded view used for meshing and
// corridor fitting.
package obstacle

import (
	"fmt"
	"math"

	"fieldline.dev/internal/sim/geom"
)

type Kind int

const (
	KindCircle Kind = iota + 1
	KindRect
	KindPolygon
)

func (k Kind) String() string {
	switch k {
	case KindCircle:
		return "circle"
	case KindRect:
		return "rect"
	case KindPolygon:
		return "polygon"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Obstacle is an immutable named boundary. Buffer is the clearance margin
// added around the base shape by Buffered; all predicates honor it.
type Obstacle struct {
	Name string
	Kind Kind

	// KindCircle.
	Center geom.Vec
	Radius float64

	// KindRect.
	Rect geom.Rect

	// KindPolygon: simple polygon, no closing repeat of the first vertex.
	Poly []geom.Vec

	Buffer float64

	// Optional height interval for 3D filtering.
	HasHeight bool
	ZMin      float64
	ZMax      float64
}

func Circle(name string, center geom.Vec, radius float64) Obstacle {
	return Obstacle{Name: name, Kind: KindCircle, Center: center, Radius: radius}
}

func Rectangle(name string, r geom.Rect) Obstacle {
	return Obstacle{Name: name, Kind: KindRect, Rect: r}
}

func Polygon(name string, pts []geom.Vec) Obstacle {
	poly := make([]geom.Vec, len(pts))
	copy(poly, pts)
	return Obstacle{Name: name, Kind: KindPolygon, Poly: poly}
}

// WithHeight tags the obstacle with a z interval.
func (o Obstacle) WithHeight(zMin, zMax float64) Obstacle {
	o.HasHeight = true
	o.ZMin = zMin
	o.ZMax = zMax
	return o
}

// Buffered returns a copy expanded outward by radius (Minkowski sum with a
// disc, tracked as an exact margin rather than re-discretized geometry).
func (o Obstacle) Buffered(radius float64) Obstacle {
	o.Buffer += radius
	return o
}

// BoundingRect returns the axis-aligned bounding box including the buffer.
func (o Obstacle) BoundingRect() geom.Rect {
	var r geom.Rect
	switch o.Kind {
	case KindCircle:
		r = geom.Rect{
			MinX: o.Center.X - o.Radius, MinY: o.Center.Y - o.Radius,
			MaxX: o.Center.X + o.Radius, MaxY: o.Center.Y + o.Radius,
		}
	case KindRect:
		r = o.Rect
	case KindPolygon:
		r = geom.Rect{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
		for _, p := range o.Poly {
			if p.X < r.MinX {
				r.MinX = p.X
			}
			if p.Y < r.MinY {
				r.MinY = p.Y
			}
			if p.X > r.MaxX {
				r.MaxX = p.X
			}
			if p.Y > r.MaxY {
				r.MaxY = p.Y
			}
		}
	}
	return r.Expand(o.Buffer)
}

// ContainsPoint reports whether p lies inside the buffered shape.
func (o Obstacle) ContainsPoint(p geom.Vec) bool {
	switch o.Kind {
	case KindCircle:
		r := o.Radius + o.Buffer
		return p.DistSq(o.Center) <= r*r
	case KindRect:
		return o.Rect.DistToPoint(p) <= o.Buffer
	case KindPolygon:
		return geom.DistPointPolygon(p, o.Poly) <= o.Buffer
	}
	return false
}

// IntersectsSegment reports whether segment a-b touches the buffered shape.
func (o Obstacle) IntersectsSegment(a, b geom.Vec) bool {
	switch o.Kind {
	case KindCircle:
		return geom.DistPointSegment(o.Center, a, b) <= o.Radius+o.Buffer
	case KindRect:
		return geom.SegmentIntersectsRect(a, b, o.Rect.Expand(o.Buffer)) &&
			o.distSegmentToRect(a, b) <= o.Buffer
	case KindPolygon:
		return geom.DistSegmentPolygon(a, b, o.Poly) <= o.Buffer
	}
	return false
}

func (o Obstacle) distSegmentToRect(a, b geom.Vec) float64 {
	if geom.SegmentIntersectsRect(a, b, o.Rect) {
		return 0
	}
	vs := o.Rect.Vertices()
	d := math.Inf(1)
	for i := range vs {
		if v := geom.DistSegments(a, b, vs[i], vs[(i+1)%len(vs)]); v < d {
			d = v
		}
	}
	return d
}

// IntersectsRect reports whether rectangle r touches the buffered shape.
func (o Obstacle) IntersectsRect(r geom.Rect) bool {
	switch o.Kind {
	case KindCircle:
		return r.DistToPoint(o.Center) <= o.Radius+o.Buffer
	case KindRect:
		if o.Buffer == 0 {
			return o.Rect.Overlaps(r)
		}
		return rectRectDist(o.Rect, r) <= o.Buffer
	case KindPolygon:
		return geom.DistRectPolygon(r, o.Poly) <= o.Buffer
	}
	return false
}

func rectRectDist(a, b geom.Rect) float64 {
	dx := max(0, max(a.MinX-b.MaxX, b.MinX-a.MaxX))
	dy := max(0, max(a.MinY-b.MaxY, b.MinY-a.MaxY))
	return math.Hypot(dx, dy)
}

// Discretize returns the boundary of the base shape as a vertex loop.
// segments controls how many chords approximate each curved quarter.
func (o Obstacle) Discretize(segments int) []geom.Vec {
	if segments < 1 {
		segments = 1
	}
	switch o.Kind {
	case KindCircle:
		n := 4 * segments
		out := make([]geom.Vec, 0, n)
		for i := 0; i < n; i++ {
			a := 2 * math.Pi * float64(i) / float64(n)
			out = append(out, geom.Vec{
				X: o.Center.X + o.Radius*math.Cos(a),
				Y: o.Center.Y + o.Radius*math.Sin(a),
			})
		}
		return out
	case KindRect:
		return o.Rect.Vertices()
	case KindPolygon:
		out := make([]geom.Vec, len(o.Poly))
		copy(out, o.Poly)
		return out
	}
	return nil
}
