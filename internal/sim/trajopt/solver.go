package trajopt

import (
	"errors"
	"math"
	"sort"

	"fieldline.dev/internal/sim/diag"
	"fieldline.dev/internal/sim/geom"
)

var (
	// ErrInfeasible means the solver converged but a constraint is still
	// violated beyond tolerance.
	ErrInfeasible = errors.New("trajopt: problem infeasible")
	// ErrTimeout means the iteration budget ran out before convergence.
	ErrTimeout = errors.New("trajopt: iteration budget exhausted")
	// ErrUnsupportedObjective means the solver does not implement the
	// requested minimization strategy.
	ErrUnsupportedObjective = errors.New("trajopt: unsupported objective")
)

// Budget bounds a solve.
type Budget struct {
	MaxIterations int
	Tolerance     float64
}

func (b Budget) withDefaults() Budget {
	if b.MaxIterations <= 0 {
		b.MaxIterations = 200
	}
	if b.Tolerance <= 0 {
		b.Tolerance = 1e-3
	}
	return b
}

// Solver turns a Problem into a Trajectory. Implementations must return
// ErrInfeasible, ErrTimeout or ErrUnsupportedObjective (possibly wrapped)
// on the corresponding failures.
type Solver interface {
	Solve(p *Problem, budget Budget) (*Trajectory, error)
}

// BuiltinSolver is a deterministic projection solver: it clamps the sample
// positions into their corridors, runs a forward/backward velocity profile
// under the robot and drivetrain limits, then resolves dynamic-obstacle
// conflicts by nudging within the corridor or delaying in place.
type BuiltinSolver struct {
	Diag *diag.Collector
}

func (s *BuiltinSolver) Solve(p *Problem, budget Budget) (*Trajectory, error) {
	budget = budget.withDefaults()

	switch p.Config.Strategy {
	case MinimizeTime, MinimizeDistance:
	default:
		return nil, ErrUnsupportedObjective
	}

	pts := make([]geom.Vec, len(p.Initial))
	copy(pts, p.Initial)
	for i := range pts {
		if box, ok := p.BoxFor(i); ok {
			pts[i] = box.ClampPoint(pts[i])
		}
	}
	if p.Config.Strategy == MinimizeDistance {
		s.smooth(p, pts)
	}

	headings := s.interpolateHeadings(p, pts)

	accel := p.Robot.EffectiveMaxAcceleration()
	iters := 0
	var states []State
	var adjusted []Interval
	for {
		states = s.profile(p, pts, headings, accel)
		iters++
		if iters >= budget.MaxIterations {
			s.Diag.Record(diag.Event{Kind: diag.KindSolverIterations, Value: float64(iters)})
			return nil, ErrTimeout
		}
		if v := s.worstModuleForce(p, states); v > budget.Tolerance {
			accel *= 0.9
			continue
		}
		var err error
		adjusted, err = s.avoid(p, pts, headings, &states, accel, budget, &iters)
		if err != nil {
			return nil, err
		}
		// Nudges reshape the path; confirm forces still fit before
		// accepting the solution.
		if v := s.worstModuleForce(p, states); v > budget.Tolerance {
			accel *= 0.9
			continue
		}
		break
	}

	s.Diag.Record(diag.Event{Kind: diag.KindSolverIterations, Value: float64(iters)})

	if v := p.MaxViolation(states); v > budget.Tolerance {
		return nil, ErrInfeasible
	}
	return NewTrajectory(states, adjusted), nil
}

// smooth runs corridor-clamped averaging passes over the interior samples,
// shortening the path without leaving the corridors.
func (s *BuiltinSolver) smooth(p *Problem, pts []geom.Vec) {
	for pass := 0; pass < 8; pass++ {
		moved := false
		for i := 1; i < len(pts)-1; i++ {
			mid := pts[i-1].Add(pts[i+1]).Scale(0.5)
			cand := geom.Lerp(pts[i], mid, 0.5)
			if box, ok := p.BoxFor(i); ok {
				cand = box.ClampPoint(cand)
			}
			if cand.DistSq(pts[i]) > 1e-12 {
				pts[i] = cand
				moved = true
			}
		}
		if !moved {
			return
		}
	}
}

// interpolateHeadings fills per-sample headings from the pinned control
// points, interpolating by arc length between pins. With no pins at all the
// heading follows the travel direction.
func (s *BuiltinSolver) interpolateHeadings(p *Problem, pts []geom.Vec) []float64 {
	n := len(pts)
	out := make([]float64, n)
	if len(p.PinnedHeading) == 0 {
		for i := 0; i < n; i++ {
			j := i
			if j == n-1 {
				j = n - 2
			}
			d := pts[j+1].Sub(pts[j])
			if d.LenSq() > 1e-12 {
				out[i] = d.Angle()
			} else if i > 0 {
				out[i] = out[i-1]
			}
		}
		return out
	}

	arc := make([]float64, n)
	for i := 1; i < n; i++ {
		arc[i] = arc[i-1] + pts[i].Dist(pts[i-1])
	}
	pins := make([]int, 0, len(p.PinnedHeading))
	for idx := range p.PinnedHeading {
		pins = append(pins, idx)
	}
	sort.Ints(pins)

	for i := 0; i < n; i++ {
		switch {
		case i <= pins[0]:
			out[i] = p.PinnedHeading[pins[0]]
		case i >= pins[len(pins)-1]:
			out[i] = p.PinnedHeading[pins[len(pins)-1]]
		default:
			lo, hi := pins[0], pins[len(pins)-1]
			for _, pi := range pins {
				if pi <= i && pi > lo {
					lo = pi
				}
				if pi >= i && pi < hi {
					hi = pi
				}
			}
			a, b := p.PinnedHeading[lo], p.PinnedHeading[hi]
			span := arc[hi] - arc[lo]
			frac := 0.0
			if span > 1e-12 {
				frac = (arc[i] - arc[lo]) / span
			}
			out[i] = a + angleDiff(b, a)*frac
		}
	}
	return out
}

// profile runs the forward/backward velocity passes and materializes the
// full state sequence. Segment times use the trapezoid convention
// dt = 2*ds/(v_i+v_{i+1}) so positions and velocities agree exactly.
func (s *BuiltinSolver) profile(p *Problem, pts []geom.Vec, headings []float64, accel float64) []State {
	n := len(pts)
	ds := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		ds[i] = pts[i+1].Dist(pts[i])
	}

	maxOff := p.Robot.Drivetrain.MaxOffset()
	caps := make([]float64, n)
	for i := range caps {
		caps[i] = p.VelocityCap(pts[i])
	}
	// Turning consumes module speed budget; cap the segment speed so the
	// implied omega stays within limits.
	for i := 0; i < n-1; i++ {
		dth := math.Abs(angleDiff(headings[i+1], headings[i]))
		if dth < 1e-9 || ds[i] < 1e-9 {
			continue
		}
		segCap := ds[i] * p.Robot.MaxOmega / dth
		if maxOff > 0 {
			// |v_module| <= |v| + |omega|*maxOff = |v|*(1 + dth*maxOff/ds)
			if mc := p.Robot.Drivetrain.MaxModuleSpeed() / (1 + dth*maxOff/ds[i]); mc < segCap {
				segCap = mc
			}
		}
		if segCap < caps[i] {
			caps[i] = segCap
		}
		if segCap < caps[i+1] {
			caps[i+1] = segCap
		}
	}
	// A direction change between segments forces a velocity swing at the
	// corner sample; cap the corner speed so the swing fits the
	// acceleration limit instead of backing off accel globally.
	for i := 1; i < n-1; i++ {
		if ds[i-1] < 1e-9 || ds[i] < 1e-9 {
			continue
		}
		d0 := pts[i].Sub(pts[i-1]).Scale(1 / ds[i-1])
		d1 := pts[i+1].Sub(pts[i]).Scale(1 / ds[i])
		turn := math.Sqrt(math.Max(0, (1-d0.Dot(d1))/2)) // sin of half the turn angle
		if turn < 1e-6 {
			continue
		}
		seg := math.Min(ds[i-1], ds[i])
		if c := math.Sqrt(accel * seg / (4 * turn)); c < caps[i] {
			caps[i] = c
		}
	}

	v := make([]float64, n)
	for i := range v {
		v[i] = caps[i]
	}
	if pv, ok := p.PinnedVel[0]; ok {
		v[0] = pv.Len()
	} else {
		v[0] = 0
	}
	if pv, ok := p.PinnedVel[n-1]; ok {
		v[n-1] = pv.Len()
	} else {
		v[n-1] = 0
	}
	for idx, pv := range p.PinnedVel {
		if idx > 0 && idx < n-1 {
			v[idx] = pv.Len()
		}
	}
	for i := 0; i < n-1; i++ {
		if _, pinned := p.PinnedVel[i+1]; pinned {
			continue
		}
		if lim := math.Sqrt(v[i]*v[i] + 2*accel*ds[i]); lim < v[i+1] {
			v[i+1] = lim
		}
	}
	for i := n - 2; i >= 0; i-- {
		if _, pinned := p.PinnedVel[i]; pinned {
			continue
		}
		if lim := math.Sqrt(v[i+1]*v[i+1] + 2*accel*ds[i]); lim < v[i] {
			v[i] = lim
		}
	}

	states := make([]State, n)
	for i := 0; i < n; i++ {
		st := &states[i]
		st.X, st.Y = pts[i].X, pts[i].Y
		st.Heading = headings[i]

		dir := geom.Vec{}
		if i < n-1 && ds[i] > 1e-9 {
			dir = pts[i+1].Sub(pts[i]).Scale(1 / ds[i])
		} else if i > 0 && ds[i-1] > 1e-9 {
			dir = pts[i].Sub(pts[i-1]).Scale(1 / ds[i-1])
		}
		if pv, ok := p.PinnedVel[i]; ok && pv.LenSq() > 1e-12 {
			st.VX, st.VY = pv.X, pv.Y
		} else {
			st.VX, st.VY = dir.X*v[i], dir.Y*v[i]
		}

		if i < n-1 {
			sum := v[i] + v[i+1]
			if sum > 1e-9 {
				st.DT = 2 * ds[i] / sum
			} else if ds[i] > 1e-9 {
				st.DT = math.Sqrt(2 * ds[i] / math.Max(accel, 1e-9))
			} else {
				st.DT = 1e-3
			}
			dth := angleDiff(headings[i+1], headings[i])
			if p.Robot.MaxOmega > 0 && math.Abs(dth) > 1e-9 {
				if need := math.Abs(dth) / p.Robot.MaxOmega; need > st.DT {
					st.DT = need
				}
			}
			st.Omega = dth / st.DT
		}
	}
	for i := 0; i < n-1; i++ {
		a, b := &states[i], &states[i+1]
		a.AX = (b.VX - a.VX) / a.DT
		a.AY = (b.VY - a.VY) / a.DT
		a.Alpha = (b.Omega - a.Omega) / a.DT
	}
	for i := range states {
		s.fillModules(p, &states[i])
	}
	return states
}

// fillModules derives per-module velocity, force, wheel speed and torque
// from the chassis state.
func (s *BuiltinSolver) fillModules(p *Problem, st *State) {
	d := p.Robot.Drivetrain
	torque := p.Robot.MOI * st.Alpha
	for k := range st.Modules {
		m := &st.Modules[k]
		off := d.Offsets[k]
		m.VX = st.VX - st.Omega*off.Y
		m.VY = st.VY + st.Omega*off.X

		m.FX = p.Robot.Mass * st.AX / 4
		m.FY = p.Robot.Mass * st.AY / 4
		if r2 := off.LenSq(); r2 > 1e-12 {
			share := torque / (4 * r2)
			m.FX += -off.Y * share
			m.FY += off.X * share
		}

		if sp := math.Hypot(m.VX, m.VY); sp > 1e-9 {
			m.Angle = math.Atan2(m.VY, m.VX)
			if d.WheelRadius > 0 {
				m.AngVel = sp / d.WheelRadius
			}
		} else {
			m.Angle = st.Heading
		}
		if d.WheelRadius > 0 {
			m.Torque = math.Hypot(m.FX, m.FY) * d.WheelRadius
		}
	}
}

func (s *BuiltinSolver) worstModuleForce(p *Problem, states []State) float64 {
	fMax := p.Robot.Drivetrain.MaxModuleForce(p.Robot.Mass)
	if fMax <= 0 {
		return 0
	}
	worst := 0.0
	for i := range states {
		for _, m := range states[i].Modules {
			if v := math.Hypot(m.FX, m.FY) - fMax; v > worst {
				worst = v
			}
		}
	}
	return worst
}

// avoid resolves dynamic-obstacle conflicts. A colliding sample is first
// pushed away from the obstacle within its corridor; when the corridor
// leaves no room, the robot is delayed instead by stretching the segment
// before the conflict. Every timing stretch is reported as an adjusted
// interval.
func (s *BuiltinSolver) avoid(p *Problem, pts []geom.Vec, headings []float64, states *[]State, accel float64, budget Budget, iters *int) ([]Interval, error) {
	if len(p.Dynamic) == 0 {
		return nil, nil
	}
	var adjusted []Interval
	for {
		idx, ct, d := s.firstConflict(p, *states)
		if d == nil {
			return adjusted, nil
		}
		*iters++
		if *iters >= budget.MaxIterations {
			return nil, ErrTimeout
		}

		if idx > 0 && idx < len(pts)-1 && s.nudge(p, pts, idx, d, ct) {
			s.Diag.Record(diag.Event{Kind: diag.KindAvoidanceAdjust, Detail: "nudge", Value: float64(idx)})
			*states = s.profile(p, pts, headings, accel)
			continue
		}

		// Delay: stretch time uniformly so the robot reaches the conflict
		// point after the obstacle has passed. Uniform scaling keeps the
		// position/velocity relation exact at every sample.
		if idx == 0 {
			return nil, ErrInfeasible
		}
		const k = 1.5
		elapsed := 0.0
		for i := range *states {
			st := &(*states)[i]
			st.DT *= k
			st.VX /= k
			st.VY /= k
			st.Omega /= k
			st.AX /= k * k
			st.AY /= k * k
			st.Alpha /= k * k
			s.fillModules(p, st)
			if i <= idx {
				elapsed += st.DT
			}
		}
		adjusted = mergeInterval(adjusted, Interval{From: 0, To: elapsed})
		s.Diag.Record(diag.Event{Kind: diag.KindAvoidanceAdjust, Detail: "delay", Value: float64(idx)})
	}
}

// firstConflict scans the trajectory on the fine separation grid so
// crossings between sample instants are caught. It returns the nearest
// sample index, the conflict time and the obstacle, or a nil obstacle when
// the whole trajectory is clear.
func (s *BuiltinSolver) firstConflict(p *Problem, states []State) (int, float64, DynamicObstacle) {
	var (
		hitIdx int
		hitT   float64
		hit    DynamicObstacle
	)
	sweepStates(states, p.StartTime, p.separationStep(), func(idx int, t float64, pos geom.Vec) bool {
		for _, d := range p.Dynamic {
			c, ok := d.CenterAtTime(t)
			if !ok {
				continue
			}
			r := d.CombinedRadius() + p.Config.AvoidanceMargin
			if c.DistSq(pos) < r*r {
				hitIdx, hitT, hit = idx, t, d
				return false
			}
		}
		return true
	})
	return hitIdx, hitT, hit
}

// nudge pushes sample idx sideways, perpendicular to the local path
// direction and away from the obstacle center, far enough to clear the
// inflated radius. The result is clamped into the sample's corridor.
// Returns false when the corridor leaves no clearance.
func (s *BuiltinSolver) nudge(p *Problem, pts []geom.Vec, idx int, d DynamicObstacle, t float64) bool {
	c, ok := d.CenterAtTime(t)
	if !ok {
		return false
	}
	need := (d.CombinedRadius() + p.Config.AvoidanceMargin) * 1.05

	var dir geom.Vec
	if idx+1 < len(pts) {
		dir = pts[idx+1].Sub(pts[idx])
	}
	if dir.LenSq() < 1e-12 && idx > 0 {
		dir = pts[idx].Sub(pts[idx-1])
	}
	var n geom.Vec
	if dir.LenSq() > 1e-12 {
		dir = dir.Scale(1 / dir.Len())
		n = geom.Vec{X: -dir.Y, Y: dir.X}
		if pts[idx].Sub(c).Dot(n) < 0 {
			n = n.Scale(-1)
		}
	} else {
		n = pts[idx].Sub(c)
		if n.LenSq() < 1e-12 {
			n = geom.Vec{X: 1}
		}
		n = n.Scale(1 / n.Len())
	}

	// Shift along n until |pts[idx] - c| reaches the inflated radius.
	rel := pts[idx].Sub(c)
	along := rel.Dot(n)
	perp2 := rel.LenSq() - along*along
	if perp2 >= need*need {
		return false
	}
	shift := math.Sqrt(need*need-perp2) - along
	cand := pts[idx].Add(n.Scale(shift))
	if box, ok := p.BoxFor(idx); ok {
		cand = box.ClampPoint(cand)
	}
	r := d.CombinedRadius() + p.Config.AvoidanceMargin
	if cand.DistSq(c) < r*r {
		return false
	}
	pts[idx] = cand
	return true
}

func mergeInterval(list []Interval, iv Interval) []Interval {
	for i := range list {
		if iv.From <= list[i].To && list[i].From <= iv.To {
			if iv.From < list[i].From {
				list[i].From = iv.From
			}
			if iv.To > list[i].To {
				list[i].To = iv.To
			}
			return list
		}
	}
	return append(list, iv)
}
