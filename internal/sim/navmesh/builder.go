package navmesh

import (
	"math"

	"fieldline.dev/internal/sim/geom"
	"fieldline.dev/internal/sim/obstacle"
)

// Build tiles [0, fieldW] x [0, fieldH] with an equilateral-triangle lattice
// of the given edge length, discards corners that fall inside an expanded
// obstacle or outside the field, and fully connects the surviving corners of
// every lattice triangle. Obstacles are expected to be clearance-expanded
// already. Edges stay within their own lattice triangle, so no edge crosses
// a cell whose corners were all excluded.
func Build(obs []obstacle.Obstacle, edge, fieldW, fieldH float64) *Mesh {
	m := New()
	if edge <= 0 || fieldW <= 0 || fieldH <= 0 {
		return m
	}

	rowH := edge * math.Sqrt(3) / 2
	rows := int(fieldH/rowH) + 1
	cols := int(fieldW/edge) + 1

	vertex := func(r, c int) geom.Vec {
		x := float64(c) * edge
		if r%2 == 1 {
			x += edge / 2
		}
		return geom.Vec{X: x, Y: float64(r) * rowH}
	}

	valid := func(p geom.Vec) bool {
		if p.X < 0 || p.X > fieldW || p.Y < 0 || p.Y > fieldH {
			return false
		}
		return !obstacle.AnyContains(obs, p)
	}

	connectTriangle := func(corners [3]geom.Vec) {
		var keep []geom.Vec
		for _, p := range corners {
			if valid(p) {
				keep = append(keep, p)
			}
		}
		for i := 0; i < len(keep); i++ {
			for j := i + 1; j < len(keep); j++ {
				m.Connect(keep[i], keep[j])
			}
		}
	}

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if r%2 == 0 {
				connectTriangle([3]geom.Vec{vertex(r, c), vertex(r, c+1), vertex(r+1, c)})
				connectTriangle([3]geom.Vec{vertex(r, c+1), vertex(r+1, c), vertex(r+1, c+1)})
			} else {
				connectTriangle([3]geom.Vec{vertex(r, c), vertex(r, c+1), vertex(r+1, c+1)})
				connectTriangle([3]geom.Vec{vertex(r, c), vertex(r+1, c), vertex(r+1, c+1)})
			}
		}
	}
	return m
}
