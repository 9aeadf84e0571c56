package trajopt

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"fieldline.dev/internal/sim/corridor"
	"fieldline.dev/internal/sim/diag"
	"fieldline.dev/internal/sim/geom"
	"fieldline.dev/internal/sim/pathfind"
)

func testRobot() RobotParams {
	return RobotParams{
		Radius:          0.4,
		Mass:            50,
		MOI:             6,
		MaxVelocity:     3,
		MaxAcceleration: 2,
		MaxOmega:        6,
		MaxAlpha:        20,
		Drivetrain: SwerveConfig{
			Offsets: [4]geom.Vec{
				{X: 0.3, Y: 0.3}, {X: 0.3, Y: -0.3},
				{X: -0.3, Y: 0.3}, {X: -0.3, Y: -0.3},
			},
			MotorTorque:    30,
			MotorFreeSpeed: 100,
			WheelRadius:    0.05,
			Friction:       1.1,
		},
	}
}

func buildProblem(t *testing.T, b *Builder, cfg BuilderConfig) *Problem {
	t.Helper()
	p, err := b.Build(cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}

func TestSolveStraightLine(t *testing.T) {
	b := NewBuilder(testRobot()).
		Waypoint(NewWaypoint(geom.Vec{X: 0, Y: 0}).Given(VelocityEquals(0, 0), HeadingEquals(0))).
		Waypoint(NewWaypoint(geom.Vec{X: 4, Y: 0}).Given(VelocityEquals(0, 0), HeadingEquals(0)))
	p := buildProblem(t, b, BuilderConfig{Resolution: 0.2})

	s := &BuiltinSolver{}
	traj, err := s.Solve(p, Budget{})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	states := traj.States()
	if len(states) < 2 {
		t.Fatalf("too few samples: %d", len(states))
	}
	if states[0].Speed() > 1e-6 || states[len(states)-1].Speed() > 1e-6 {
		t.Fatalf("endpoint velocities not pinned to rest: %v, %v",
			states[0].Speed(), states[len(states)-1].Speed())
	}
	if math.Abs(traj.Length()-4) > 0.05 {
		t.Fatalf("path length = %v, want ~4", traj.Length())
	}
	if traj.MaxVelocity() > 3+1e-6 {
		t.Fatalf("max velocity %v exceeds limit", traj.MaxVelocity())
	}
	if traj.TravelTime() < 2 || traj.TravelTime() > 6 {
		t.Fatalf("travel time %v outside plausible range", traj.TravelTime())
	}
	for i, st := range states[:len(states)-1] {
		if st.DT <= 0 {
			t.Fatalf("sample %d has dt %v", i, st.DT)
		}
	}
	if v := p.MaxViolation(states); v > 1e-3 {
		t.Fatalf("constraint violation %v above tolerance", v)
	}
}

func TestSolveRespectsCorridors(t *testing.T) {
	box := geom.NewRect(-0.5, -0.5, 4.5, 0.5)
	seq := corridor.Sequence{Boxes: []geom.Rect{box}}

	b := NewBuilder(testRobot()).
		Waypoint(NewWaypoint(geom.Vec{X: 0, Y: 0}).Given(VelocityEquals(0, 0), HeadingEquals(0))).
		Waypoint(NewWaypoint(geom.Vec{X: 4, Y: 0}).Given(VelocityEquals(0, 0), HeadingEquals(0))).
		Corridors(seq)
	p := buildProblem(t, b, BuilderConfig{Resolution: 0.2})

	traj, err := (&BuiltinSolver{}).Solve(p, Budget{})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	for i, st := range traj.States() {
		if !box.ContainsPoint(st.Pos()) {
			t.Fatalf("sample %d at %v left the corridor", i, st.Pos())
		}
	}
}

func TestSolveMinimizeDistanceShortens(t *testing.T) {
	zigzag := pathfind.Path{Points: []geom.Vec{
		{X: 0, Y: 0}, {X: 1, Y: 0.5}, {X: 2, Y: 0}, {X: 3, Y: 0.5}, {X: 4, Y: 0},
	}}
	mk := func(strategy MinimizationStrategy) *Trajectory {
		b := NewBuilder(testRobot()).
			Waypoint(NewWaypoint(geom.Vec{X: 0, Y: 0}).Given(VelocityEquals(0, 0), HeadingEquals(0))).
			Waypoint(NewWaypoint(geom.Vec{X: 4, Y: 0}).Given(VelocityEquals(0, 0), HeadingEquals(0))).
			GuidePath(zigzag)
		p := buildProblem(t, b, BuilderConfig{Resolution: 0.2, Strategy: strategy})
		traj, err := (&BuiltinSolver{}).Solve(p, Budget{})
		if err != nil {
			t.Fatalf("Solve(%v): %v", strategy, err)
		}
		return traj
	}

	byTime := mk(MinimizeTime)
	byDist := mk(MinimizeDistance)
	if byDist.Length() > byTime.Length()+1e-9 {
		t.Fatalf("distance objective produced longer path: %v > %v",
			byDist.Length(), byTime.Length())
	}
}

func TestSolveUnsupportedObjective(t *testing.T) {
	b := NewBuilder(testRobot()).
		Waypoint(NewWaypoint(geom.Vec{X: 0, Y: 0})).
		Waypoint(NewWaypoint(geom.Vec{X: 2, Y: 0}))
	p := buildProblem(t, b, BuilderConfig{Strategy: MinimizeCustom})

	_, err := (&BuiltinSolver{}).Solve(p, Budget{})
	if !errors.Is(err, ErrUnsupportedObjective) {
		t.Fatalf("err = %v, want ErrUnsupportedObjective", err)
	}
}

func TestSolveTimeout(t *testing.T) {
	b := NewBuilder(testRobot()).
		Waypoint(NewWaypoint(geom.Vec{X: 0, Y: 0})).
		Waypoint(NewWaypoint(geom.Vec{X: 4, Y: 0}))
	p := buildProblem(t, b, BuilderConfig{})

	_, err := (&BuiltinSolver{}).Solve(p, Budget{MaxIterations: 1})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestSolveSpeedZone(t *testing.T) {
	zones := []pathfind.SpeedZone{{
		Name:       "slow",
		Poly:       []geom.Vec{{X: -1, Y: -1}, {X: 5, Y: -1}, {X: 5, Y: 1}, {X: -1, Y: 1}},
		Multiplier: 0.5,
	}}
	b := NewBuilder(testRobot()).
		Waypoint(NewWaypoint(geom.Vec{X: 0, Y: 0}).Given(VelocityEquals(0, 0), HeadingEquals(0))).
		Waypoint(NewWaypoint(geom.Vec{X: 4, Y: 0}).Given(VelocityEquals(0, 0), HeadingEquals(0))).
		Zones(zones)
	p := buildProblem(t, b, BuilderConfig{Resolution: 0.2})

	traj, err := (&BuiltinSolver{}).Solve(p, Budget{})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if traj.MaxVelocity() > 1.5+1e-6 {
		t.Fatalf("max velocity %v exceeds zone-scaled limit 1.5", traj.MaxVelocity())
	}
}

// staticDyn is a stationary dynamic obstacle for avoidance tests.
type staticDyn struct {
	c geom.Vec
	r float64
}

func (d staticDyn) ContainsPointAtTime(x, y, t float64) bool {
	return d.c.Dist(geom.Vec{X: x, Y: y}) <= d.r
}
func (d staticDyn) CenterAtTime(t float64) (geom.Vec, bool) { return d.c, true }
func (d staticDyn) CombinedRadius() float64                 { return d.r }

func TestSolveAvoidsDynamicObstacle(t *testing.T) {
	dc := &diag.Collector{}
	obs := staticDyn{c: geom.Vec{X: 2, Y: 0}, r: 0.6}

	b := NewBuilder(testRobot()).
		Waypoint(NewWaypoint(geom.Vec{X: 0, Y: 0}).Given(VelocityEquals(0, 0), HeadingEquals(0))).
		Waypoint(NewWaypoint(geom.Vec{X: 4, Y: 0}).Given(VelocityEquals(0, 0), HeadingEquals(0))).
		Avoid([]DynamicObstacle{obs}, 0)
	p := buildProblem(t, b, BuilderConfig{Resolution: 0.2})

	traj, err := (&BuiltinSolver{Diag: dc}).Solve(p, Budget{})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	elapsed := 0.0
	for i, st := range traj.States() {
		if c, ok := obs.CenterAtTime(elapsed); ok {
			if d := c.Dist(st.Pos()); d < obs.r-1e-3 {
				t.Fatalf("sample %d at %v only %v from obstacle", i, st.Pos(), d)
			}
		}
		elapsed += st.DT
	}
	if dc.Count(diag.KindAvoidanceAdjust) == 0 {
		t.Fatalf("expected avoidance adjustments to be recorded")
	}
}

// windowDyn is only present during [from, to]; outside that window it
// reports no position at all.
type windowDyn struct {
	c        geom.Vec
	r        float64
	from, to float64
}

func (d windowDyn) ContainsPointAtTime(x, y, t float64) bool {
	if t < d.from || t > d.to {
		return false
	}
	return d.c.Dist(geom.Vec{X: x, Y: y}) <= d.r
}

func (d windowDyn) CenterAtTime(t float64) (geom.Vec, bool) {
	if t < d.from || t > d.to {
		return geom.Vec{}, false
	}
	return d.c, true
}

func (d windowDyn) CombinedRadius() float64 { return d.r }

func TestConflictBetweenSamples(t *testing.T) {
	// The obstacle sits on the path but only exists between t=0.9 and
	// t=1.1, strictly inside the single two-second segment. Checking
	// the sample instants alone would never see it.
	obs := windowDyn{c: geom.Vec{X: 1, Y: 0}, r: 0.5, from: 0.9, to: 1.1}
	p := &Problem{
		Robot:   testRobot(),
		Config:  BuilderConfig{}.withDefaults(),
		Initial: []geom.Vec{{X: 0, Y: 0}, {X: 2, Y: 0}},
		Dynamic: []DynamicObstacle{obs},
	}
	states := []State{
		{X: 0, VX: 1, DT: 2},
		{X: 2, VX: 1},
	}

	_, ct, hit := (&BuiltinSolver{}).firstConflict(p, states)
	if hit == nil {
		t.Fatalf("conflict between samples not detected")
	}
	if ct < obs.from-0.1 || ct > obs.to+0.1 {
		t.Fatalf("conflict time %v outside obstacle window [%v, %v]", ct, obs.from, obs.to)
	}

	var sep Constraint
	found := false
	for _, c := range p.Constraints() {
		if c.Kind == KindSeparation {
			sep, found = c, true
			break
		}
	}
	if !found {
		t.Fatalf("no separation constraint built")
	}
	if v := sep.Eval(states); v < 0.4 {
		t.Fatalf("separation violation %v, want the full penetration depth", v)
	}
}

func TestBuildRequiresTwoWaypoints(t *testing.T) {
	_, err := NewBuilder(testRobot()).
		Waypoint(NewWaypoint(geom.Vec{X: 0, Y: 0})).
		Build(BuilderConfig{})
	if err == nil {
		t.Fatalf("expected an error for a single waypoint")
	}
}

func TestBuildAppliesPointConstraints(t *testing.T) {
	b := NewBuilder(testRobot()).
		Waypoint(NewWaypoint(geom.Vec{X: 0, Y: 0}).Given(VelocityEquals(1, 0), HeadingEquals(math.Pi/2))).
		Waypoint(NewWaypoint(geom.Vec{X: 4, Y: 0}).Given(VelocityEquals(0, 0)))
	p := buildProblem(t, b, BuilderConfig{Resolution: 0.2})

	if v, ok := p.PinnedVel[0]; !ok || v != (geom.Vec{X: 1, Y: 0}) {
		t.Fatalf("start velocity pin = %v ok=%v", v, ok)
	}
	if h, ok := p.PinnedHeading[0]; !ok || h != math.Pi/2 {
		t.Fatalf("start heading pin = %v ok=%v", h, ok)
	}
	last := len(p.Initial) - 1
	if v, ok := p.PinnedVel[last]; !ok || v != (geom.Vec{}) {
		t.Fatalf("goal velocity pin = %v ok=%v", v, ok)
	}
}

func TestModuleForcesMatchChassis(t *testing.T) {
	b := NewBuilder(testRobot()).
		Waypoint(NewWaypoint(geom.Vec{X: 0, Y: 0}).Given(VelocityEquals(0, 0), HeadingEquals(0))).
		Waypoint(NewWaypoint(geom.Vec{X: 4, Y: 0}).Given(VelocityEquals(0, 0), HeadingEquals(0)))
	p := buildProblem(t, b, BuilderConfig{Resolution: 0.2})

	traj, err := (&BuiltinSolver{}).Solve(p, Budget{})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	states := traj.States()
	for i := 0; i < len(states)-1; i++ {
		var fx, fy float64
		for _, m := range states[i].Modules {
			fx += m.FX
			fy += m.FY
		}
		ax, ay := fx/p.Robot.Mass, fy/p.Robot.Mass
		if math.Abs(ax-states[i].AX) > 1e-6 || math.Abs(ay-states[i].AY) > 1e-6 {
			t.Fatalf("sample %d: module force sum (%v,%v) vs chassis accel (%v,%v)",
				i, ax, ay, states[i].AX, states[i].AY)
		}
	}
}

func TestRobotLimits(t *testing.T) {
	r := testRobot()
	fMax := r.Drivetrain.MaxModuleForce(r.Mass)
	friction := r.Drivetrain.Friction * r.Mass * gravity / 4
	if math.Abs(fMax-friction) > 1e-9 {
		t.Fatalf("module force = %v, want friction-limited %v", fMax, friction)
	}

	noWheel := r.Drivetrain
	noWheel.WheelRadius = 0
	if got := noWheel.MaxModuleForce(r.Mass); got != 0 {
		t.Fatalf("zero wheel radius force = %v, want 0", got)
	}

	if got := r.EffectiveMaxVelocity(); got != 3 {
		t.Fatalf("effective velocity = %v, want robot cap 3", got)
	}
	if got := r.EffectiveMaxAcceleration(); got != 2 {
		t.Fatalf("effective acceleration = %v, want robot cap 2", got)
	}
}

func TestTrajectoryAt(t *testing.T) {
	states := []State{
		{X: 0, Y: 0, VX: 1, DT: 1},
		{X: 1, Y: 0, VX: 1, DT: 1},
		{X: 2, Y: 0, VX: 1},
	}
	traj := NewTrajectory(states, nil)

	if traj.TravelTime() != 2 {
		t.Fatalf("travel time = %v, want 2", traj.TravelTime())
	}
	if got := traj.At(-1); got.X != 0 {
		t.Fatalf("At(-1).X = %v, want first sample", got.X)
	}
	if got := traj.At(10); got.X != 2 {
		t.Fatalf("At(10).X = %v, want last sample", got.X)
	}
	if got := traj.At(0.5); math.Abs(got.X-0.5) > 1e-9 {
		t.Fatalf("At(0.5).X = %v, want 0.5", got.X)
	}
	if got := traj.At(1.5); math.Abs(got.X-1.5) > 1e-9 {
		t.Fatalf("At(1.5).X = %v, want 1.5", got.X)
	}
}

func TestTrajectoryStatesCopy(t *testing.T) {
	traj := NewTrajectory([]State{{X: 1}, {X: 2}}, nil)
	out := traj.States()
	out[0].X = 99
	if traj.States()[0].X != 1 {
		t.Fatalf("States exposed internal slice")
	}
}

func TestExportJSON(t *testing.T) {
	traj := NewTrajectory([]State{
		{X: 0, VX: 1, DT: 0.5},
		{X: 0.5, VX: 1, DT: 0.5},
		{X: 1, VX: 0},
	}, nil)

	var buf bytes.Buffer
	if err := traj.ExportJSON(&buf); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	var out struct {
		Samples []struct {
			X         float64 `json:"x"`
			Timestamp float64 `json:"timestamp"`
		} `json:"samples"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Samples) != 3 {
		t.Fatalf("%d samples exported, want 3", len(out.Samples))
	}
	for i := 1; i < len(out.Samples); i++ {
		if out.Samples[i].Timestamp <= out.Samples[i-1].Timestamp {
			t.Fatalf("timestamps not increasing at %d", i)
		}
	}
}

func TestMergeInterval(t *testing.T) {
	list := mergeInterval(nil, Interval{From: 0, To: 1})
	list = mergeInterval(list, Interval{From: 0.5, To: 2})
	if len(list) != 1 || list[0].From != 0 || list[0].To != 2 {
		t.Fatalf("overlapping intervals not merged: %+v", list)
	}
	list = mergeInterval(list, Interval{From: 5, To: 6})
	if len(list) != 2 {
		t.Fatalf("disjoint interval merged away: %+v", list)
	}
}

func TestAngleDiff(t *testing.T) {
	if got := angleDiff(0.1, -0.1); math.Abs(got-0.2) > 1e-9 {
		t.Fatalf("angleDiff = %v, want 0.2", got)
	}
	if got := angleDiff(math.Pi-0.1, -math.Pi+0.1); math.Abs(got+0.2) > 1e-9 {
		t.Fatalf("wrap-around angleDiff = %v, want -0.2", got)
	}
}
