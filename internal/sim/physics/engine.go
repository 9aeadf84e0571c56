// Package physics is the planning facade: it owns the static obstacle set,
// the per-robot traversal spaces and the dynamic-obstacle registry, and
// exposes pathfinding and trajectory generation as single calls.
package physics

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"fieldline.dev/internal/sim/corridor"
	"fieldline.dev/internal/sim/diag"
	"fieldline.dev/internal/sim/dynobs"
	"fieldline.dev/internal/sim/geom"
	"fieldline.dev/internal/sim/navmesh"
	"fieldline.dev/internal/sim/obstacle"
	"fieldline.dev/internal/sim/pathfind"
	"fieldline.dev/internal/sim/trajopt"
	"fieldline.dev/internal/sim/tuning"
)

// ErrUnknownRobot means a query named a robot that was never registered.
var ErrUnknownRobot = errors.New("physics: unknown robot")

// TraversalSpace is the planning view of the field for one robot radius:
// buffered obstacles for exact queries, wider-buffered obstacles for mesh
// construction, and the navigation mesh built against the latter.
type TraversalSpace struct {
	Obstacles     []obstacle.Obstacle
	MeshObstacles []obstacle.Obstacle
	Mesh          *navmesh.Mesh
}

type robotEntry struct {
	params trajopt.RobotParams

	spaceMu sync.Mutex
	space   *TraversalSpace

	mu      sync.Mutex
	cache   map[planKey]*trajopt.Trajectory
	history []*trajopt.Trajectory
}

type planKey struct {
	start, goal geom.Vec
	heading     float64
}

// Engine is safe for concurrent use. Traversal spaces are built lazily and
// cached per robot; trajectory results are cached per robot while no
// avoidance is requested.
type Engine struct {
	tun  tuning.Tuning
	logg *log.Logger
	diag *diag.Collector

	mu     sync.RWMutex
	static []obstacle.Obstacle
	robots map[string]*robotEntry

	Registry *dynobs.Registry
	solver   trajopt.Solver
	zones    []pathfind.SpeedZone
}

func New(tun tuning.Tuning, logg *log.Logger) *Engine {
	d := &diag.Collector{}
	return &Engine{
		tun:      tun,
		logg:     logg,
		diag:     d,
		robots:   make(map[string]*robotEntry),
		Registry: dynobs.NewRegistry(),
		solver:   &trajopt.BuiltinSolver{Diag: d},
	}
}

// SetSolver swaps the trajectory solver. Must be called before planning.
func (e *Engine) SetSolver(s trajopt.Solver) { e.solver = s }

func (e *Engine) Diagnostics() *diag.Collector { return e.diag }

// AddObstacle registers a static obstacle. Spaces built before this call
// are invalidated.
func (e *Engine) AddObstacle(obs ...obstacle.Obstacle) {
	e.mu.Lock()
	e.static = append(e.static, obs...)
	robots := make([]*robotEntry, 0, len(e.robots))
	for _, r := range e.robots {
		robots = append(robots, r)
	}
	e.mu.Unlock()
	for _, r := range robots {
		r.spaceMu.Lock()
		r.space = nil
		r.spaceMu.Unlock()
	}
}

func (e *Engine) SetSpeedZones(zones []pathfind.SpeedZone) {
	e.mu.Lock()
	e.zones = zones
	e.mu.Unlock()
}

// RegisterRobot adds or replaces a robot. Replacing drops its caches.
func (e *Engine) RegisterRobot(name string, params trajopt.RobotParams) {
	e.mu.Lock()
	e.robots[name] = &robotEntry{
		params: params,
		cache:  make(map[planKey]*trajopt.Trajectory),
	}
	e.mu.Unlock()
}

func (e *Engine) robot(name string) (*robotEntry, error) {
	e.mu.RLock()
	r, ok := e.robots[name]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRobot, name)
	}
	return r, nil
}

// PrepareTraversalSpace builds (or returns the cached) traversal space for
// a robot. Concurrent callers share one build.
func (e *Engine) PrepareTraversalSpace(name string) (*TraversalSpace, error) {
	r, err := e.robot(name)
	if err != nil {
		return nil, err
	}
	r.spaceMu.Lock()
	defer r.spaceMu.Unlock()
	if r.space == nil {
		e.mu.RLock()
		static := e.static
		e.mu.RUnlock()

		radius := r.params.Radius
		buffered := obstacle.ExpandAll(static, radius)
		meshObs := obstacle.ExpandAll(static, radius+e.tun.Mesh.ExtraClearance)
		mesh := navmesh.Build(meshObs, e.tun.Mesh.EdgeLength, e.tun.FieldWidth, e.tun.FieldHeight)
		r.space = &TraversalSpace{Obstacles: buffered, MeshObstacles: meshObs, Mesh: mesh}
		e.logg.Printf("traversal space for %s: %d mesh nodes, %d obstacles", name, mesh.Len(), len(buffered))
	}
	return r.space, nil
}

// Pathfind runs A* over the robot's mesh, then shortcuts the result against
// the exact buffered obstacles.
func (e *Engine) Pathfind(name string, start, goal geom.Vec, policy pathfind.ConnectionPolicy, opt pathfind.Options) (pathfind.Path, error) {
	r, err := e.robot(name)
	if err != nil {
		return pathfind.Path{}, err
	}
	space, err := e.PrepareTraversalSpace(name)
	if err != nil {
		return pathfind.Path{}, err
	}
	e.mu.RLock()
	if opt.Zones == nil {
		opt.Zones = e.zones
	}
	e.mu.RUnlock()

	// ConnectToClosest stitches endpoint nodes into the shared mesh.
	r.mu.Lock()
	p, err := pathfind.FindPath(space.Mesh, start, goal, policy, opt)
	r.mu.Unlock()
	if err != nil {
		return pathfind.Path{}, err
	}
	return pathfind.Shortcut(p, space.Obstacles), nil
}

// PlanRequest describes one trajectory request.
type PlanRequest struct {
	Robot   string
	Start   geom.Vec
	Goal    geom.Vec
	Heading float64
	// GoalHeading defaults to Heading.
	GoalHeading *float64
	// StartTime anchors the plan on the shared clock; only meaningful
	// with Avoid.
	StartTime float64
	Avoid     bool
	Strategy  trajopt.MinimizationStrategy
	Policy    pathfind.ConnectionPolicy
	Path      pathfind.Options
}

// GenerateTrajectory plans a full trajectory: geometric path, safety
// corridors, then the constrained solve. Results for avoidance-free
// requests are cached by (start, goal, heading). On failure the robot's
// recorded state is untouched.
func (e *Engine) GenerateTrajectory(req PlanRequest) (*trajopt.Trajectory, error) {
	r, err := e.robot(req.Robot)
	if err != nil {
		return nil, err
	}
	key := planKey{start: req.Start, goal: req.Goal, heading: req.Heading}
	if !req.Avoid {
		r.mu.Lock()
		cached := r.cache[key]
		r.mu.Unlock()
		if cached != nil {
			return cached, nil
		}
	}

	space, err := e.PrepareTraversalSpace(req.Robot)
	if err != nil {
		return nil, err
	}
	path, err := e.Pathfind(req.Robot, req.Start, req.Goal, req.Policy, req.Path)
	if err != nil {
		return nil, err
	}

	dense := pathfind.Dissect(path, e.tun.Solver.Resolution)
	seq, err := corridor.Generate(dense.Points, space.Obstacles, corridor.Config{
		Interval:         e.tun.Corridor.Interval,
		InitialStep:      e.tun.Corridor.InitialStep,
		RefinePasses:     e.tun.Corridor.RefinePasses,
		SeedSearchRadius: e.tun.Corridor.SeedSearchRadius,
		SeedStep:         e.tun.Corridor.SeedStep,
		MaxBridgePasses:  e.tun.Corridor.MaxBridgePasses,
		Bounds:           geom.NewRect(0, 0, e.tun.FieldWidth, e.tun.FieldHeight),
	}, req.Robot, e.diag)
	if err != nil {
		return nil, err
	}

	goalHeading := req.Heading
	if req.GoalHeading != nil {
		goalHeading = *req.GoalHeading
	}
	b := trajopt.NewBuilder(r.params).
		Waypoint(trajopt.NewWaypoint(req.Start).Given(
			trajopt.VelocityEquals(0, 0),
			trajopt.HeadingEquals(req.Heading),
		)).
		Waypoint(trajopt.NewWaypoint(req.Goal).Given(
			trajopt.VelocityEquals(0, 0),
			trajopt.HeadingEquals(goalHeading),
		)).
		GuidePath(dense).
		Corridors(seq)
	e.mu.RLock()
	b.Zones(e.zones)
	e.mu.RUnlock()
	if req.Avoid {
		b.Avoid(e.Registry.ObstaclesFor(req.Robot, r.params.Radius), req.StartTime)
	}

	prob, err := b.Build(trajopt.BuilderConfig{
		Resolution:      e.tun.Solver.Resolution,
		StretchFactor:   e.tun.Solver.StretchFactor,
		AvoidanceMargin: e.tun.Solver.AvoidanceMargin,
		Strategy:        req.Strategy,
	})
	if err != nil {
		return nil, err
	}
	traj, err := e.solver.Solve(prob, trajopt.Budget{
		MaxIterations: e.tun.Solver.MaxIterations,
		Tolerance:     e.tun.Solver.Tolerance,
	})
	if err != nil {
		e.logg.Printf("plan %s (%.2f,%.2f)->(%.2f,%.2f): %v",
			req.Robot, req.Start.X, req.Start.Y, req.Goal.X, req.Goal.Y, err)
		return nil, err
	}

	r.mu.Lock()
	if !req.Avoid {
		r.cache[key] = traj
	}
	r.history = append(r.history, traj)
	if max := e.tun.Physics.TrajectoryHistory; max > 0 && len(r.history) > max {
		r.history = r.history[len(r.history)-max:]
	}
	r.mu.Unlock()
	return traj, nil
}

// LatestTrajectory returns the most recent successful plan for a robot, or
// ok=false when it has none.
func (e *Engine) LatestTrajectory(name string) (*trajopt.Trajectory, bool, error) {
	r, err := e.robot(name)
	if err != nil {
		return nil, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return nil, false, nil
	}
	return r.history[len(r.history)-1], true, nil
}

// History returns the robot's retained plans, oldest first.
func (e *Engine) History(name string) ([]*trajopt.Trajectory, error) {
	r, err := e.robot(name)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*trajopt.Trajectory, len(r.history))
	copy(out, r.history)
	return out, nil
}

// Commit publishes a robot's trajectory to the shared registry so other
// robots avoid it.
func (e *Engine) Commit(name string, traj *trajopt.Trajectory, startTime float64) error {
	r, err := e.robot(name)
	if err != nil {
		return err
	}
	e.Registry.Register(name, traj, startTime, r.params.Radius)
	return nil
}

func (e *Engine) RobotParams(name string) (trajopt.RobotParams, error) {
	r, err := e.robot(name)
	if err != nil {
		return trajopt.RobotParams{}, err
	}
	return r.params, nil
}
