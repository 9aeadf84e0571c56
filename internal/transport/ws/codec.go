package ws

import (
	"fmt"

	"fieldline.dev/internal/protocol"
	"fieldline.dev/internal/sim/geom"
	"fieldline.dev/internal/sim/obstacle"
)

// DecodeObstacle converts a wire obstacle spec into a domain obstacle.
func DecodeObstacle(spec protocol.ObstacleSpec) (obstacle.Obstacle, error) {
	var o obstacle.Obstacle
	switch spec.Kind {
	case "circle":
		if spec.Center == nil || spec.Radius <= 0 {
			return o, fmt.Errorf("circle obstacle needs center and radius")
		}
		o = obstacle.Circle(spec.Name, geom.Vec{X: spec.Center[0], Y: spec.Center[1]}, spec.Radius)
	case "rect":
		if spec.Min == nil || spec.Max == nil {
			return o, fmt.Errorf("rect obstacle needs min and max")
		}
		o = obstacle.Rectangle(spec.Name, geom.NewRect(spec.Min[0], spec.Min[1], spec.Max[0], spec.Max[1]))
	case "polygon":
		if len(spec.Points) < 3 {
			return o, fmt.Errorf("polygon obstacle needs at least 3 points")
		}
		pts := make([]geom.Vec, len(spec.Points))
		for i, p := range spec.Points {
			pts[i] = geom.Vec{X: p[0], Y: p[1]}
		}
		o = obstacle.Polygon(spec.Name, pts)
	default:
		return o, fmt.Errorf("unknown obstacle kind %q", spec.Kind)
	}
	if spec.ZMin != nil && spec.ZMax != nil {
		o = o.WithHeight(*spec.ZMin, *spec.ZMax)
	}
	return o, nil
}

// EncodeObstacle is the inverse of DecodeObstacle, used by clients and
// tests.
func EncodeObstacle(o obstacle.Obstacle) protocol.ObstacleSpec {
	spec := protocol.ObstacleSpec{Name: o.Name}
	switch o.Kind {
	case obstacle.KindCircle:
		spec.Kind = "circle"
		spec.Center = &[2]float64{o.Center.X, o.Center.Y}
		spec.Radius = o.Radius
	case obstacle.KindRect:
		spec.Kind = "rect"
		spec.Min = &[2]float64{o.Rect.MinX, o.Rect.MinY}
		spec.Max = &[2]float64{o.Rect.MaxX, o.Rect.MaxY}
	case obstacle.KindPolygon:
		spec.Kind = "polygon"
		for _, p := range o.Poly {
			spec.Points = append(spec.Points, [2]float64{p.X, p.Y})
		}
	}
	if o.HasHeight {
		zmin, zmax := o.ZMin, o.ZMax
		spec.ZMin, spec.ZMax = &zmin, &zmax
	}
	return spec
}
