package trajopt

import (
	"errors"
	"fmt"
	"math"

	"fieldline.dev/internal/sim/corridor"
	"fieldline.dev/internal/sim/geom"
	"fieldline.dev/internal/sim/pathfind"
)

// DynamicObstacle is a time-varying circular obstacle, typically another
// robot's committed trajectory.
type DynamicObstacle interface {
	// ContainsPointAtTime reports a collision at absolute time t.
	ContainsPointAtTime(x, y, t float64) bool
	// CenterAtTime returns the obstacle center at absolute time t;
	// ok is false before the obstacle becomes active.
	CenterAtTime(t float64) (geom.Vec, bool)
	// CombinedRadius is the collision threshold already including the
	// querying robot's radius.
	CombinedRadius() float64
}

// MinimizationStrategy selects the objective.
type MinimizationStrategy int

const (
	// MinimizeTime minimizes total elapsed time.
	MinimizeTime MinimizationStrategy = iota
	// MinimizeDistance minimizes traveled distance.
	MinimizeDistance
	// MinimizeCustom delegates to BuilderConfig.Custom.
	MinimizeCustom
)

// ObjectiveFunc scores a candidate sample sequence; lower is better.
type ObjectiveFunc func(states []State) float64

// ConstraintKind is the closed set of constraint families the problem
// carries.
type ConstraintKind int

const (
	KindWaypointPin ConstraintKind = iota + 1
	KindKinematics
	KindCorridor
	KindModuleForce
	KindModuleSpeed
	KindRigidBody
	KindSeparation
	KindSpacing
	KindCustomConstraint
)

// Constraint is one scalar residual; Eval returns the violation magnitude
// (zero when satisfied). Structured solvers dispatch on Kind; generic
// solvers can treat every constraint uniformly through Eval.
type Constraint struct {
	Kind  ConstraintKind
	Index int
	Eval  func(states []State) float64
}

// BuilderConfig tunes problem construction.
type BuilderConfig struct {
	// Resolution is the sample spacing along the guide path.
	Resolution float64
	// StretchFactor caps how far apart consecutive samples may drift
	// relative to Resolution.
	StretchFactor float64
	// MinSpacing keeps samples from clumping.
	MinSpacing float64

	Strategy MinimizationStrategy
	Custom   ObjectiveFunc

	// AvoidanceMargin is added to combined radii when separating from
	// dynamic obstacles.
	AvoidanceMargin float64
}

func (c BuilderConfig) withDefaults() BuilderConfig {
	if c.Resolution <= 0 {
		c.Resolution = 0.2
	}
	if c.StretchFactor <= 1 {
		c.StretchFactor = 1.5
	}
	if c.MinSpacing < 0 {
		c.MinSpacing = 0
	}
	if c.AvoidanceMargin <= 0 {
		c.AvoidanceMargin = 0.1
	}
	return c
}

// Builder assembles a Problem from waypoints, a guide path, corridors and
// optional dynamic obstacles.
type Builder struct {
	robot     RobotParams
	waypoints []*Waypoint
	guide     pathfind.Path
	corridors *corridor.Sequence
	zones     []pathfind.SpeedZone
	dynamic   []DynamicObstacle
	startTime float64
}

func NewBuilder(robot RobotParams) *Builder {
	return &Builder{robot: robot}
}

func (b *Builder) Waypoint(w *Waypoint) *Builder {
	b.waypoints = append(b.waypoints, w)
	return b
}

// GuidePath supplies the coarse geometric path between the first and last
// waypoint. The builder densifies it at the configured resolution.
func (b *Builder) GuidePath(p pathfind.Path) *Builder {
	b.guide = p
	return b
}

// Corridors attaches the safety-corridor sequence generated for the
// densified guide path.
func (b *Builder) Corridors(seq corridor.Sequence) *Builder {
	b.corridors = &seq
	return b
}

func (b *Builder) Zones(zones []pathfind.SpeedZone) *Builder {
	b.zones = zones
	return b
}

// Avoid adds dynamic obstacles; startTime anchors the trajectory on the
// absolute time axis the obstacles live on.
func (b *Builder) Avoid(obs []DynamicObstacle, startTime float64) *Builder {
	b.dynamic = append(b.dynamic, obs...)
	b.startTime = startTime
	return b
}

// Problem is the assembled optimization problem: initial sample positions,
// corridor assignment, pinned boundary conditions, limits and objective.
type Problem struct {
	Robot  RobotParams
	Config BuilderConfig

	// Initial per-sample positions (from the densified guide path).
	Initial []geom.Vec
	// Corridor boxes and per-sample assignment; empty Boxes means
	// unconstrained containment.
	Boxes  []geom.Rect
	Assign []int

	PinnedVel     map[int]geom.Vec
	PinnedHeading map[int]float64

	Zones     []pathfind.SpeedZone
	Dynamic   []DynamicObstacle
	StartTime float64
}

var errTooFewWaypoints = errors.New("trajopt: need at least two waypoints")

// Build densifies the guide path, resolves waypoint control points, applies
// waypoint constraint closures and assigns corridors to samples.
func (b *Builder) Build(cfg BuilderConfig) (*Problem, error) {
	cfg = cfg.withDefaults()
	if len(b.waypoints) < 2 {
		return nil, errTooFewWaypoints
	}

	guide := b.guide
	if len(guide.Points) == 0 {
		for _, w := range b.waypoints {
			guide.Points = append(guide.Points, w.Pos)
		}
	}
	dense := pathfind.Dissect(guide, cfg.Resolution)
	if len(dense.Points) < 2 {
		return nil, fmt.Errorf("trajopt: degenerate guide path (%d points)", len(dense.Points))
	}

	p := &Problem{
		Robot:         b.robot,
		Config:        cfg,
		Initial:       dense.Points,
		PinnedVel:     make(map[int]geom.Vec),
		PinnedHeading: make(map[int]float64),
		Zones:         b.zones,
		Dynamic:       b.dynamic,
		StartTime:     b.startTime,
	}

	// Resolve each waypoint to the nearest sample index.
	for _, w := range b.waypoints {
		best, bestD := 0, math.Inf(1)
		for i, pt := range dense.Points {
			if d := pt.DistSq(w.Pos); d < bestD {
				best, bestD = i, d
			}
		}
		w.ControlIndex = best
		for _, c := range w.Constraints {
			c(p, best)
		}
	}

	if b.corridors != nil {
		p.Boxes = b.corridors.Boxes
		p.Assign = assignCorridors(dense.Points, *b.corridors)
	}
	return p, nil
}

// assignCorridors reuses the corridor generator's path-index mapping when
// the sample count matches; otherwise it falls back to the closest box by
// entry distance (ties to the lower corridor index).
func assignCorridors(points []geom.Vec, seq corridor.Sequence) []int {
	out := make([]int, len(points))
	if len(seq.PointBox) == len(points) {
		copy(out, seq.PointBox)
		return out
	}
	for i, pt := range points {
		best, bestD := 0, math.Inf(1)
		for k, box := range seq.Boxes {
			if d := box.DistToPoint(pt); d < bestD {
				best, bestD = k, d
			}
		}
		out[i] = best
	}
	return out
}

// BoxFor returns the containment box for sample i, or ok=false when the
// problem carries no corridors.
func (p *Problem) BoxFor(i int) (geom.Rect, bool) {
	if len(p.Boxes) == 0 || len(p.Assign) != len(p.Initial) {
		return geom.Rect{}, false
	}
	return p.Boxes[p.Assign[i]], true
}

// VelocityCap returns the speed limit at a sample position, folding in
// robot, drivetrain and speed-zone limits.
func (p *Problem) VelocityCap(pos geom.Vec) float64 {
	cap := p.Robot.EffectiveMaxVelocity()
	if len(p.Zones) > 0 {
		cap *= pathfind.ZoneMultiplier(p.Zones, pos)
	}
	return cap
}

// Constraints materializes the uniform closure view of the problem for
// generic solvers and for validation.
func (p *Problem) Constraints() []Constraint {
	var out []Constraint

	for idx, v := range p.PinnedVel {
		i, want := idx, v
		out = append(out, Constraint{Kind: KindWaypointPin, Index: i, Eval: func(st []State) float64 {
			return geom.Vec{X: st[i].VX, Y: st[i].VY}.Dist(want)
		}})
	}
	for idx, h := range p.PinnedHeading {
		i, want := idx, h
		out = append(out, Constraint{Kind: KindWaypointPin, Index: i, Eval: func(st []State) float64 {
			return math.Abs(angleDiff(st[i].Heading, want))
		}})
	}

	for i := 0; i < len(p.Initial)-1; i++ {
		i := i
		out = append(out, Constraint{Kind: KindKinematics, Index: i, Eval: func(st []State) float64 {
			if i+1 >= len(st) {
				return 0
			}
			a, b := st[i], st[i+1]
			ds := b.Pos().Dist(a.Pos()) - (a.Speed()+b.Speed())/2*a.DT
			dth := angleDiff(b.Heading, a.Heading) - a.Omega*a.DT
			return math.Abs(ds) + math.Abs(dth)
		}})
	}

	for i := range p.Initial {
		i := i
		if box, ok := p.BoxFor(i); ok {
			out = append(out, Constraint{Kind: KindCorridor, Index: i, Eval: func(st []State) float64 {
				if i >= len(st) {
					return 0
				}
				return box.DistToPoint(st[i].Pos())
			}})
		}
	}

	fMax := p.Robot.Drivetrain.MaxModuleForce(p.Robot.Mass)
	vMax := p.Robot.Drivetrain.MaxModuleSpeed()
	for i := range p.Initial {
		i := i
		if fMax > 0 {
			out = append(out, Constraint{Kind: KindModuleForce, Index: i, Eval: func(st []State) float64 {
				if i >= len(st) {
					return 0
				}
				worst := 0.0
				for _, m := range st[i].Modules {
					if f := math.Hypot(m.FX, m.FY) - fMax; f > worst {
						worst = f
					}
				}
				return worst
			}})
		}
		if vMax > 0 {
			out = append(out, Constraint{Kind: KindModuleSpeed, Index: i, Eval: func(st []State) float64 {
				if i >= len(st) {
					return 0
				}
				worst := 0.0
				for _, m := range st[i].Modules {
					if v := math.Hypot(m.VX, m.VY) - vMax; v > worst {
						worst = v
					}
				}
				return worst
			}})
		}
	}

	if p.Robot.Mass > 0 {
		for i := 0; i < len(p.Initial)-1; i++ {
			i := i
			out = append(out, Constraint{Kind: KindRigidBody, Index: i, Eval: func(st []State) float64 {
				if i >= len(st) {
					return 0
				}
				var fx, fy float64
				for _, m := range st[i].Modules {
					fx += m.FX
					fy += m.FY
				}
				return math.Hypot(fx/p.Robot.Mass-st[i].AX, fy/p.Robot.Mass-st[i].AY)
			}})
		}
	}

	for oi, d := range p.Dynamic {
		oi, d := oi, d
		out = append(out, Constraint{Kind: KindSeparation, Index: oi, Eval: func(st []State) float64 {
			worst := 0.0
			sweepStates(st, p.StartTime, p.separationStep(), func(_ int, t float64, pos geom.Vec) bool {
				if c, ok := d.CenterAtTime(t); ok {
					if v := d.CombinedRadius() - c.Dist(pos); v > worst {
						worst = v
					}
				}
				return true
			})
			return worst
		}})
	}
	return out
}

// separationStep is the time resolution for separation checks: fine enough
// that the relative motion of two robots between consecutive checks stays
// under the avoidance margin.
func (p *Problem) separationStep() float64 {
	v := p.Robot.EffectiveMaxVelocity()
	if v <= 0 {
		return 0.01
	}
	step := p.Config.AvoidanceMargin / (2 * v)
	if step < 1e-3 {
		step = 1e-3
	}
	return step
}

// sweepStates visits the trajectory on a fine time grid, interpolating
// between samples the same way Trajectory.At does, so separation holds at
// every time and not just at sample instants. fn receives the nearest
// sample index, the absolute time and the interpolated position; returning
// false stops the sweep.
func sweepStates(st []State, startTime, step float64, fn func(idx int, t float64, pos geom.Vec) bool) {
	t := startTime
	for i := 0; i+1 < len(st); i++ {
		a, b := st[i].Pos(), st[i+1].Pos()
		dt := st[i].DT
		n := 1
		if step > 0 && dt > step {
			n = int(math.Ceil(dt / step))
		}
		for k := 0; k < n; k++ {
			frac := float64(k) / float64(n)
			idx := i
			if frac > 0.5 {
				idx = i + 1
			}
			if !fn(idx, t+dt*frac, geom.Lerp(a, b, frac)) {
				return
			}
		}
		t += dt
	}
	if len(st) > 0 {
		fn(len(st)-1, t, st[len(st)-1].Pos())
	}
}

// MaxViolation evaluates every constraint against states and returns the
// largest violation.
func (p *Problem) MaxViolation(states []State) float64 {
	worst := 0.0
	for _, c := range p.Constraints() {
		if v := c.Eval(states); v > worst {
			worst = v
		}
	}
	return worst
}

func angleDiff(a, b float64) float64 {
	d := math.Mod(a-b, 2*math.Pi)
	if d > math.Pi {
		d -= 2 * math.Pi
	} else if d < -math.Pi {
		d += 2 * math.Pi
	}
	return d
}
