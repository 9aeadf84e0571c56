// Package corridor converts a dense geometric path into an ordered sequence
// of axis-aligned free-space rectangles that cover it end to end. The boxes
// become hard containment constraints for the trajectory optimizer.
package corridor

import (
	"errors"
	"fmt"
	"math"

	"fieldline.dev/internal/sim/diag"
	"fieldline.dev/internal/sim/geom"
	"fieldline.dev/internal/sim/obstacle"
)

// ErrSeedUnresolved is returned when a corridor seed lies inside an
// obstacle and no clear point exists within the bounded nudge search.
var ErrSeedUnresolved = errors.New("corridor: seed unresolved")

type Config struct {
	// Interval emits one corridor every N path points (plus one at the
	// final point).
	Interval int
	// InitialStep is the box growth step before binary refinement.
	InitialStep float64
	// RefinePasses is the number of grow/shrink-by-half passes per side.
	RefinePasses int
	// SeedSearchRadius bounds the outward search when a seed point lies
	// inside an obstacle.
	SeedSearchRadius float64
	// SeedStep is the nudge search grid spacing.
	SeedStep float64
	// Bounds clamps corridors to the field. Required: growth stops at the
	// field edge where no obstacle would.
	Bounds geom.Rect
	// MaxBridgePasses bounds gap repair.
	MaxBridgePasses int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 8
	}
	if c.InitialStep <= 0 {
		c.InitialStep = 1
	}
	if c.RefinePasses <= 0 {
		c.RefinePasses = 4
	}
	if c.SeedSearchRadius <= 0 {
		c.SeedSearchRadius = 1
	}
	if c.SeedStep <= 0 {
		c.SeedStep = 0.05
	}
	if c.MaxBridgePasses <= 0 {
		c.MaxBridgePasses = 8
	}
	return c
}

// Sequence is the generated corridor list plus the path-index mapping.
// Invariant after Generate: every path index maps to exactly one box, and
// every consecutive pair of boxes overlaps.
type Sequence struct {
	Boxes    []geom.Rect
	PointBox []int
}

// BoxFor returns the corridor assigned to path index i.
func (s Sequence) BoxFor(i int) geom.Rect {
	return s.Boxes[s.PointBox[i]]
}

// Generate fits one corridor every cfg.Interval path points plus one at the
// final point, maps every path index to the nearest-by-index corridor
// (ties to the earlier one), and bridges any gap between consecutive
// corridors. Obstacles are expected to be clearance-expanded already.
func Generate(path []geom.Vec, obs []obstacle.Obstacle, cfg Config, robot string, dc *diag.Collector) (Sequence, error) {
	cfg = cfg.withDefaults()
	if len(path) == 0 {
		return Sequence{}, nil
	}

	var seedIdx []int
	for i := 0; i < len(path); i += cfg.Interval {
		seedIdx = append(seedIdx, i)
	}
	if last := len(path) - 1; seedIdx[len(seedIdx)-1] != last {
		seedIdx = append(seedIdx, last)
	}

	seq := Sequence{}
	for _, i := range seedIdx {
		seed, ok := resolveSeed(path[i], obs, cfg, robot, dc)
		if !ok {
			return Sequence{}, fmt.Errorf("%w: path index %d at (%.3f,%.3f)",
				ErrSeedUnresolved, i, path[i].X, path[i].Y)
		}
		seq.Boxes = append(seq.Boxes, fitBox(seed, obs, cfg))
	}

	// Nearest-by-index assignment.
	seq.PointBox = make([]int, len(path))
	for i := range path {
		best, bestDist := 0, math.MaxInt
		for k, si := range seedIdx {
			d := si - i
			if d < 0 {
				d = -d
			}
			if d < bestDist {
				best, bestDist = k, d
			}
		}
		seq.PointBox[i] = best
	}

	bridgeGaps(&seq, obs, cfg, robot, dc)
	return seq, nil
}

// resolveSeed nudges a seed that lies inside an obstacle to the nearest
// clear point on a small grid, searching outward in rings. Nudges are
// recorded as diagnostics; an exhausted search reports ok=false.
func resolveSeed(p geom.Vec, obs []obstacle.Obstacle, cfg Config, robot string, dc *diag.Collector) (geom.Vec, bool) {
	if !obstacle.AnyContains(obs, p) {
		return p, true
	}
	rings := int(cfg.SeedSearchRadius / cfg.SeedStep)
	for ring := 1; ring <= rings; ring++ {
		r := float64(ring) * cfg.SeedStep
		steps := 8 * ring
		for s := 0; s < steps; s++ {
			a := 2 * math.Pi * float64(s) / float64(steps)
			q := geom.Vec{X: p.X + r*math.Cos(a), Y: p.Y + r*math.Sin(a)}
			if cfg.Bounds.Width() > 0 && !cfg.Bounds.ContainsPoint(q) {
				continue
			}
			if !obstacle.AnyContains(obs, q) {
				dc.Record(diag.Event{
					Kind: diag.KindSeedNudged, Robot: robot,
					Detail: fmt.Sprintf("(%.3f,%.3f)->(%.3f,%.3f)", p.X, p.Y, q.X, q.Y),
					Value:  r,
				})
				return q, true
			}
		}
	}
	dc.Record(diag.Event{
		Kind: diag.KindSeedUnresolved, Robot: robot,
		Detail: fmt.Sprintf("(%.3f,%.3f)", p.X, p.Y),
		Value:  cfg.SeedSearchRadius,
	})
	return p, false
}

// Side indices for box fitting: 0 = minX, 1 = minY, 2 = maxX, 3 = maxY.
// Expansion runs in the fixed order maxY, maxX, minY, minX.
var expansionOrder = [4]int{3, 2, 1, 0}

func fitBox(seed geom.Vec, obs []obstacle.Obstacle, cfg Config) geom.Rect {
	const eps = 1e-5
	sides := [4]float64{seed.X, seed.Y, seed.X + eps, seed.Y + eps}
	limits := [4]float64{math.Inf(-1), math.Inf(-1), math.Inf(1), math.Inf(1)}
	if cfg.Bounds.Width() > 0 {
		limits = [4]float64{cfg.Bounds.MinX, cfg.Bounds.MinY, cfg.Bounds.MaxX, cfg.Bounds.MaxY}
	}

	rect := func() geom.Rect {
		return geom.Rect{MinX: sides[0], MinY: sides[1], MaxX: sides[2], MaxY: sides[3]}
	}
	blocked := func() bool { return obstacle.AnyIntersectsRect(obs, rect()) }
	atLimit := func(i int) bool {
		if i < 2 {
			return sides[i] <= limits[i]
		}
		return sides[i] >= limits[i]
	}
	clampSide := func(i int) {
		if i < 2 {
			sides[i] = max(sides[i], limits[i])
		} else {
			sides[i] = min(sides[i], limits[i])
		}
	}

	if blocked() {
		// Bridge midpoints can land inside an obstacle; a degenerate box
		// here lets the caller fall back rather than loop forever.
		return rect()
	}

	for _, i := range expansionOrder {
		step := cfg.InitialStep
		if i < 2 {
			step = -step
		}

		grow := func() bool { // returns true when growth stopped on an obstacle
			for !atLimit(i) {
				sides[i] += step
				clampSide(i)
				if blocked() {
					return true
				}
			}
			return false
		}

		if !grow() {
			continue // side ran out to the field limit, nothing to refine
		}
		for pass := 0; pass < cfg.RefinePasses; pass++ {
			// Shrink back in halved steps until clear again.
			for blocked() {
				step /= 2
				if math.Abs(step) < 1e-9 {
					if i < 2 {
						sides[i] += 1e-6
					} else {
						sides[i] -= 1e-6
					}
					continue
				}
				sides[i] -= step
			}
			if pass == cfg.RefinePasses-1 {
				break
			}
			// Grow again at the finer step to converge on the obstacle.
			if !grow() {
				break
			}
		}
	}
	return rect()
}

// bridgeGaps inserts a box between every pair of consecutive
// non-overlapping corridors, repeating until the sequence overlaps end to
// end. Bridges are fitted boxes while the pass budget lasts; once it is
// spent, or when fitting degenerates, the bounding box of the two centers
// is used instead. The fallback always restores overlap because each
// center lies inside its own corridor, so the loop terminates with the
// gap-free invariant intact no matter how many gaps the path produced.
func bridgeGaps(seq *Sequence, obs []obstacle.Obstacle, cfg Config, robot string, dc *diag.Collector) {
	fitted := 0
	for {
		gap := -1
		for i := 0; i+1 < len(seq.Boxes); i++ {
			if !seq.Boxes[i].Overlaps(seq.Boxes[i+1]) {
				gap = i
				break
			}
		}
		if gap < 0 {
			return
		}

		a, b := seq.Boxes[gap], seq.Boxes[gap+1]
		detail := fmt.Sprintf("between %d and %d", gap, gap+1)
		fallback := fitted >= cfg.MaxBridgePasses
		var bridge geom.Rect
		if !fallback {
			mid := geom.Lerp(a.Center(), b.Center(), 0.5)
			bridge = fitBox(mid, obs, cfg)
			fitted++
			if bridge.Width() < 1e-3 {
				fallback = true
			}
		}
		if fallback {
			bridge = geom.NewRect(a.Center().X, a.Center().Y, b.Center().X, b.Center().Y)
			detail += " (fallback)"
		}
		seq.insertBox(gap+1, bridge)
		dc.Record(diag.Event{
			Kind: diag.KindCorridorBridged, Robot: robot,
			Detail: detail,
		})
	}
}

func (s *Sequence) insertBox(at int, box geom.Rect) {
	s.Boxes = append(s.Boxes, geom.Rect{})
	copy(s.Boxes[at+1:], s.Boxes[at:])
	s.Boxes[at] = box
	for i, b := range s.PointBox {
		if b >= at {
			s.PointBox[i] = b + 1
		}
	}
}

// Merge coalesces adjacent corridors into their bounding box whenever the
// union still avoids every obstacle, reducing corridor count for the solver
// at the cost of looser containment.
func Merge(seq Sequence, obs []obstacle.Obstacle, robot string, dc *diag.Collector) Sequence {
	if len(seq.Boxes) < 2 {
		return seq
	}
	out := Sequence{PointBox: make([]int, len(seq.PointBox))}
	remap := make([]int, len(seq.Boxes))

	cur := seq.Boxes[0]
	curIdx := 0
	remap[0] = 0
	for i := 1; i < len(seq.Boxes); i++ {
		union := cur.Union(seq.Boxes[i])
		if !obstacle.AnyIntersectsRect(obs, union) {
			cur = union
			dc.Record(diag.Event{Kind: diag.KindCorridorMerged, Robot: robot})
		} else {
			out.Boxes = append(out.Boxes, cur)
			cur = seq.Boxes[i]
			curIdx++
		}
		remap[i] = curIdx
	}
	out.Boxes = append(out.Boxes, cur)

	for i, b := range seq.PointBox {
		out.PointBox[i] = remap[b]
	}
	return out
}
