// Package pathfind runs A* over a navigation mesh and post-processes the
// result into a clean geometric path.
package pathfind

import (
	"fieldline.dev/internal/sim/geom"
	"fieldline.dev/internal/sim/obstacle"
)

// Path is an ordered sequence of field coordinates. Shortcut may remove
// points in place; nothing adds or reorders them.
type Path struct {
	Points []geom.Vec
}

// Length returns the summed segment length.
func (p Path) Length() float64 {
	total := 0.0
	for i := 1; i < len(p.Points); i++ {
		total += p.Points[i].Dist(p.Points[i-1])
	}
	return total
}

// Shortcut removes geometrically redundant waypoints: scanning forward from
// the last retained point, as soon as the straight segment to the candidate
// would cross any obstacle the immediately preceding point is retained and
// the scan restarts there. The cleared path keeps the clearance guarantee of
// the original. Idempotent.
func Shortcut(p Path, obs []obstacle.Obstacle) Path {
	pts := p.Points
	if len(pts) <= 2 {
		return p
	}
	out := []geom.Vec{pts[0]}
	anchor := 0
	for j := anchor + 2; j < len(pts); j++ {
		if obstacle.AnyIntersectsSegment(obs, pts[anchor], pts[j]) {
			out = append(out, pts[j-1])
			anchor = j - 1
		}
	}
	out = append(out, pts[len(pts)-1])
	return Path{Points: out}
}

// Dissect re-densifies the path at a fixed sample spacing, keeping original
// waypoints. Spacing <= 0 returns the path unchanged.
func Dissect(p Path, spacing float64) Path {
	if spacing <= 0 || len(p.Points) < 2 {
		return p
	}
	out := []geom.Vec{p.Points[0]}
	for i := 1; i < len(p.Points); i++ {
		a, b := p.Points[i-1], p.Points[i]
		d := a.Dist(b)
		n := int(d / spacing)
		for k := 1; k <= n; k++ {
			q := geom.Lerp(a, b, float64(k)*spacing/d)
			if q.DistSq(b) > 1e-12 {
				out = append(out, q)
			}
		}
		out = append(out, b)
	}
	return Path{Points: out}
}

// SpeedZone is a named polygon region scaling allowed speed. The pathfinder
// scales affected edge weights by the inverse multiplier; the trajectory
// layer scales its velocity limit by the multiplier inside the zone.
type SpeedZone struct {
	Name       string
	Poly       []geom.Vec
	Multiplier float64
}

func (z SpeedZone) Contains(p geom.Vec) bool {
	return geom.PointInPolygon(p, z.Poly)
}

// ZoneMultiplier returns the multiplier of the first zone containing p, or 1.
func ZoneMultiplier(zones []SpeedZone, p geom.Vec) float64 {
	for _, z := range zones {
		if z.Multiplier > 0 && z.Contains(p) {
			return z.Multiplier
		}
	}
	return 1
}
