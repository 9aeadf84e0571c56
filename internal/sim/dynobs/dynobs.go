// Package dynobs tracks time-varying obstacles, typically the committed
// trajectories of other robots, so a planning robot can avoid them.
package dynobs

import (
	"math"
	"sync"

	"fieldline.dev/internal/sim/geom"
	"fieldline.dev/internal/sim/trajopt"
)

// Obstacle is a robot following a committed trajectory. Before the start
// time it occupies nothing; after the trajectory ends it sits still at the
// final pose.
type Obstacle struct {
	traj   *trajopt.Trajectory
	start  float64
	radius float64
	query  float64
}

// NewObstacle wraps a trajectory starting at absolute time start. radius is
// the moving robot's own radius; the querying robot binds its radius later
// with WithQueryRadius.
func NewObstacle(traj *trajopt.Trajectory, start, radius float64) *Obstacle {
	return &Obstacle{traj: traj, start: start, radius: radius}
}

// WithQueryRadius returns a copy whose collision threshold includes the
// querying robot's radius.
func (o *Obstacle) WithQueryRadius(r float64) *Obstacle {
	c := *o
	c.query = r
	return &c
}

// TimeBounds returns the absolute interval the obstacle is in motion.
func (o *Obstacle) TimeBounds() (float64, float64) {
	return o.start, o.start + o.traj.TravelTime()
}

func (o *Obstacle) CenterAtTime(t float64) (geom.Vec, bool) {
	if t < o.start {
		return geom.Vec{}, false
	}
	st := o.traj.At(t - o.start)
	return st.Pos(), true
}

func (o *Obstacle) CombinedRadius() float64 {
	return o.radius + o.query
}

func (o *Obstacle) ContainsPointAtTime(x, y, t float64) bool {
	c, ok := o.CenterAtTime(t)
	if !ok {
		return false
	}
	r := o.CombinedRadius()
	dx, dy := x-c.X, y-c.Y
	return dx*dx+dy*dy < r*r
}

// StationaryCircle is a fixed disc active from a start time onward. It
// covers robots that are parked rather than moving.
type StationaryCircle struct {
	Center geom.Vec
	Radius float64
	Start  float64
	query  float64
}

func (s *StationaryCircle) WithQueryRadius(r float64) *StationaryCircle {
	c := *s
	c.query = r
	return &c
}

func (s *StationaryCircle) CenterAtTime(t float64) (geom.Vec, bool) {
	if t < s.Start {
		return geom.Vec{}, false
	}
	return s.Center, true
}

func (s *StationaryCircle) CombinedRadius() float64 { return s.Radius + s.query }

func (s *StationaryCircle) ContainsPointAtTime(x, y, t float64) bool {
	c, ok := s.CenterAtTime(t)
	if !ok {
		return false
	}
	r := s.CombinedRadius()
	dx, dy := x-c.X, y-c.Y
	return dx*dx+dy*dy < r*r
}

type binder interface {
	trajopt.DynamicObstacle
	bind(r float64) trajopt.DynamicObstacle
}

func (o *Obstacle) bind(r float64) trajopt.DynamicObstacle         { return o.WithQueryRadius(r) }
func (s *StationaryCircle) bind(r float64) trajopt.DynamicObstacle { return s.WithQueryRadius(r) }

// Registry holds the current obstacle per robot name. Registering under an
// existing name replaces the previous entry.
type Registry struct {
	mu  sync.RWMutex
	obs map[string]binder
}

func NewRegistry() *Registry {
	return &Registry{obs: make(map[string]binder)}
}

func (r *Registry) Register(name string, traj *trajopt.Trajectory, start, radius float64) {
	r.put(name, NewObstacle(traj, start, radius))
}

func (r *Registry) RegisterStationary(name string, center geom.Vec, radius, start float64) {
	r.put(name, &StationaryCircle{Center: center, Radius: radius, Start: start})
}

func (r *Registry) put(name string, b binder) {
	r.mu.Lock()
	r.obs[name] = b
	r.mu.Unlock()
}

// ObstaclesFor returns every obstacle except the named robot's own, each
// bound to the querying robot's radius.
func (r *Registry) ObstaclesFor(name string, queryRadius float64) []trajopt.DynamicObstacle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []trajopt.DynamicObstacle
	for n, b := range r.obs {
		if n == name {
			continue
		}
		out = append(out, b.bind(queryRadius))
	}
	return out
}

// MinSeparation returns the closest approach between a trajectory starting
// at start and the named set of obstacles, sampled at dt.
func (r *Registry) MinSeparation(name string, traj *trajopt.Trajectory, start, dt float64) float64 {
	obs := r.ObstaclesFor(name, 0)
	best := math.Inf(1)
	end := traj.TravelTime()
	for t := 0.0; t <= end; t += dt {
		st := traj.At(t)
		for _, o := range obs {
			if c, ok := o.CenterAtTime(start + t); ok {
				if d := c.Dist(st.Pos()); d < best {
					best = d
				}
			}
		}
	}
	return best
}

func (r *Registry) Clear(name string) {
	r.mu.Lock()
	delete(r.obs, name)
	r.mu.Unlock()
}

func (r *Registry) ClearAll() {
	r.mu.Lock()
	r.obs = make(map[string]binder)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.obs)
}
