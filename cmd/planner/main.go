// Command planner runs a single plan offline: load a scenario file, plan a
// trajectory for one robot and write the result as sampled JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"fieldline.dev/internal/protocol"
	"fieldline.dev/internal/sim/geom"
	"fieldline.dev/internal/sim/physics"
	"fieldline.dev/internal/sim/trajopt"
	"fieldline.dev/internal/sim/tuning"
	"fieldline.dev/internal/transport/ws"
)

// Scenario is the offline input: robots, static obstacles and the requests
// to run in order. Requests with avoid=true see trajectories committed by
// earlier requests.
type Scenario struct {
	Robots    []protocol.RobotSpec      `json:"robots"`
	Obstacles []protocol.ObstacleSpec   `json:"obstacles"`
	Requests  []protocol.PlanRequestMsg `json:"requests"`
}

func main() {
	var (
		scenarioPath = flag.String("scenario", "", "path to scenario json")
		tuningPath   = flag.String("tuning", "", "path to tuning.yaml (optional)")
		outPath      = flag.String("out", "", "write the last trajectory here (default: stdout)")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[planner] ", log.LstdFlags)

	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "missing -scenario")
		os.Exit(2)
	}
	raw, err := os.ReadFile(*scenarioPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read scenario:", err)
		os.Exit(1)
	}
	var sc Scenario
	if err := json.Unmarshal(raw, &sc); err != nil {
		fmt.Fprintln(os.Stderr, "parse scenario:", err)
		os.Exit(1)
	}

	tune := tuning.Default()
	if tp := strings.TrimSpace(*tuningPath); tp != "" {
		tune, err = tuning.Load(tp)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
	}

	engine := physics.New(tune, logger)
	for _, spec := range sc.Obstacles {
		o, err := ws.DecodeObstacle(spec)
		if err != nil {
			fmt.Fprintln(os.Stderr, "obstacle:", err)
			os.Exit(1)
		}
		engine.AddObstacle(o)
	}
	for _, r := range sc.Robots {
		engine.RegisterRobot(r.Name, robotParams(r))
	}

	var last *trajopt.Trajectory
	for i, req := range sc.Requests {
		strategy := trajopt.MinimizeTime
		if req.Strategy == "distance" {
			strategy = trajopt.MinimizeDistance
		}
		traj, err := engine.GenerateTrajectory(physics.PlanRequest{
			Robot:       req.Robot,
			Start:       geom.Vec{X: req.Start[0], Y: req.Start[1]},
			Goal:        geom.Vec{X: req.Goal[0], Y: req.Goal[1]},
			Heading:     req.Heading,
			GoalHeading: req.GoalHeading,
			StartTime:   req.StartTime,
			Avoid:       req.Avoid,
			Strategy:    strategy,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "request %d (%s): %v\n", i, req.Robot, err)
			os.Exit(1)
		}
		fmt.Printf("request %d: robot=%s time=%.3fs length=%.3fm max_v=%.3fm/s samples=%d\n",
			i, req.Robot, traj.TravelTime(), traj.Length(), traj.MaxVelocity(), traj.Len())
		_ = engine.Commit(req.Robot, traj, req.StartTime)
		last = traj
	}
	if last == nil {
		return
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "create out:", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	if err := last.ExportJSON(out); err != nil {
		fmt.Fprintln(os.Stderr, "export:", err)
		os.Exit(1)
	}
}

func robotParams(r protocol.RobotSpec) trajopt.RobotParams {
	params := trajopt.RobotParams{
		Radius:          r.Radius,
		Mass:            r.Mass,
		MOI:             r.MOI,
		MaxVelocity:     r.MaxVelocity,
		MaxAcceleration: r.MaxAcceleration,
		MaxOmega:        r.MaxOmega,
		MaxAlpha:        r.MaxAlpha,
	}
	if d := r.Drivetrain; d != nil && len(d.ModuleOffsets) == 4 {
		var sc trajopt.SwerveConfig
		for i, off := range d.ModuleOffsets {
			sc.Offsets[i] = geom.Vec{X: off[0], Y: off[1]}
		}
		sc.MotorTorque = d.MotorTorque
		sc.MotorFreeSpeed = d.MotorFreeSpeed
		sc.WheelRadius = d.WheelRadius
		sc.Friction = d.Friction
		params.Drivetrain = sc
	}
	return params
}
