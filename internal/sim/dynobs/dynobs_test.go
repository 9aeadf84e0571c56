package dynobs

import (
	"math"
	"testing"

	"fieldline.dev/internal/sim/geom"
	"fieldline.dev/internal/sim/trajopt"
)

func lineTrajectory() *trajopt.Trajectory {
	// Constant 1 m/s along x from (0,0) to (2,0).
	states := []trajopt.State{
		{X: 0, VX: 1, DT: 1},
		{X: 1, VX: 1, DT: 1},
		{X: 2, VX: 1},
	}
	return trajopt.NewTrajectory(states, nil)
}

func TestObstacleInactiveBeforeStart(t *testing.T) {
	o := NewObstacle(lineTrajectory(), 10, 0.5)
	if _, ok := o.CenterAtTime(9.9); ok {
		t.Fatalf("obstacle active before its start time")
	}
	if o.ContainsPointAtTime(0, 0, 5) {
		t.Fatalf("containment before start time")
	}
}

func TestObstacleFollowsTrajectory(t *testing.T) {
	o := NewObstacle(lineTrajectory(), 10, 0.5)
	c, ok := o.CenterAtTime(10.5)
	if !ok || math.Abs(c.X-0.5) > 1e-9 {
		t.Fatalf("center at t=10.5 = %v ok=%v, want x=0.5", c, ok)
	}
	// Past the end it parks at the final pose.
	c, ok = o.CenterAtTime(100)
	if !ok || math.Abs(c.X-2) > 1e-9 {
		t.Fatalf("center past end = %v ok=%v, want x=2", c, ok)
	}
}

func TestObstacleTimeBounds(t *testing.T) {
	o := NewObstacle(lineTrajectory(), 10, 0.5)
	from, to := o.TimeBounds()
	if from != 10 || to != 12 {
		t.Fatalf("time bounds = [%v, %v], want [10, 12]", from, to)
	}
}

func TestWithQueryRadius(t *testing.T) {
	o := NewObstacle(lineTrajectory(), 0, 0.5)
	if o.CombinedRadius() != 0.5 {
		t.Fatalf("unbound combined radius = %v", o.CombinedRadius())
	}
	bound := o.WithQueryRadius(0.4)
	if bound.CombinedRadius() != 0.9 {
		t.Fatalf("bound combined radius = %v", bound.CombinedRadius())
	}
	if o.CombinedRadius() != 0.5 {
		t.Fatalf("WithQueryRadius mutated the original")
	}
	if !bound.ContainsPointAtTime(0.1, 0.8, 0) {
		t.Fatalf("point within combined radius not contained")
	}
}

func TestStationaryCircle(t *testing.T) {
	s := &StationaryCircle{Center: geom.Vec{X: 3, Y: 3}, Radius: 0.5, Start: 5}
	if _, ok := s.CenterAtTime(4); ok {
		t.Fatalf("stationary obstacle active before start")
	}
	c, ok := s.CenterAtTime(6)
	if !ok || c != (geom.Vec{X: 3, Y: 3}) {
		t.Fatalf("center = %v ok=%v", c, ok)
	}
	if !s.WithQueryRadius(0.3).ContainsPointAtTime(3.7, 3, 6) {
		t.Fatalf("point within combined radius not contained")
	}
}

func TestRegistryExcludesSelf(t *testing.T) {
	r := NewRegistry()
	r.Register("a", lineTrajectory(), 0, 0.5)
	r.Register("b", lineTrajectory(), 0, 0.5)

	obs := r.ObstaclesFor("a", 0.4)
	if len(obs) != 1 {
		t.Fatalf("ObstaclesFor returned %d obstacles, want 1", len(obs))
	}
	if obs[0].CombinedRadius() != 0.9 {
		t.Fatalf("query radius not bound: %v", obs[0].CombinedRadius())
	}
}

func TestRegistryReplaceAndClear(t *testing.T) {
	r := NewRegistry()
	r.Register("a", lineTrajectory(), 0, 0.5)
	r.RegisterStationary("a", geom.Vec{X: 1, Y: 1}, 0.5, 0)
	if r.Len() != 1 {
		t.Fatalf("re-registration grew the registry to %d", r.Len())
	}

	obs := r.ObstaclesFor("other", 0)
	c, ok := obs[0].CenterAtTime(0)
	if !ok || c != (geom.Vec{X: 1, Y: 1}) {
		t.Fatalf("replacement did not take effect: %v ok=%v", c, ok)
	}

	r.Clear("a")
	if r.Len() != 0 {
		t.Fatalf("Clear left %d entries", r.Len())
	}

	r.Register("a", lineTrajectory(), 0, 0.5)
	r.Register("b", lineTrajectory(), 0, 0.5)
	r.ClearAll()
	if r.Len() != 0 {
		t.Fatalf("ClearAll left %d entries", r.Len())
	}
}

func TestMinSeparation(t *testing.T) {
	r := NewRegistry()
	r.RegisterStationary("parked", geom.Vec{X: 1, Y: 1}, 0.5, 0)

	// A trajectory passing along y=0; closest approach to (1,1) is 1.
	sep := r.MinSeparation("mover", lineTrajectory(), 0, 0.05)
	if math.Abs(sep-1) > 0.05 {
		t.Fatalf("min separation = %v, want ~1", sep)
	}

	// The robot's own entry is excluded.
	r.Register("mover", lineTrajectory(), 0, 0.5)
	sep = r.MinSeparation("mover", lineTrajectory(), 0, 0.05)
	if math.Abs(sep-1) > 0.05 {
		t.Fatalf("self entry affected separation: %v", sep)
	}
}
