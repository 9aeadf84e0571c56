package obstacle

import "fieldline.dev/internal/sim/geom"

// ExpandAll returns every obstacle buffered by radius. The input is not
// modified.
func ExpandAll(obs []Obstacle, radius float64) []Obstacle {
	out := make([]Obstacle, len(obs))
	for i, o := range obs {
		out[i] = o.Buffered(radius)
	}
	return out
}

func AnyContains(obs []Obstacle, p geom.Vec) bool {
	for i := range obs {
		if obs[i].ContainsPoint(p) {
			return true
		}
	}
	return false
}

func AnyIntersectsSegment(obs []Obstacle, a, b geom.Vec) bool {
	for i := range obs {
		if obs[i].IntersectsSegment(a, b) {
			return true
		}
	}
	return false
}

func AnyIntersectsRect(obs []Obstacle, r geom.Rect) bool {
	for i := range obs {
		if obs[i].IntersectsRect(r) {
			return true
		}
	}
	return false
}
