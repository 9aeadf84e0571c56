package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning carries the planner knobs loaded from tuning.yaml. Zero fields are
// replaced by defaults so a partial file stays valid.
type Tuning struct {
	FieldWidth  float64 `yaml:"field_width"`
	FieldHeight float64 `yaml:"field_height"`

	Mesh     Mesh     `yaml:"mesh"`
	Corridor Corridor `yaml:"corridor"`
	Solver   Solver   `yaml:"solver"`
	Physics  Physics  `yaml:"physics"`
}

type Mesh struct {
	EdgeLength float64 `yaml:"edge_length"`
	// ExtraClearance widens static obstacles beyond the robot radius when
	// building the mesh, keeping coarse triangles off obstacle edges.
	ExtraClearance float64 `yaml:"extra_clearance"`
}

type Corridor struct {
	Interval         int     `yaml:"interval"`
	InitialStep      float64 `yaml:"initial_step"`
	RefinePasses     int     `yaml:"refine_passes"`
	SeedSearchRadius float64 `yaml:"seed_search_radius"`
	SeedStep         float64 `yaml:"seed_step"`
	MaxBridgePasses  int     `yaml:"max_bridge_passes"`
}

type Solver struct {
	Resolution      float64 `yaml:"resolution"`
	StretchFactor   float64 `yaml:"stretch_factor"`
	MaxIterations   int     `yaml:"max_iterations"`
	Tolerance       float64 `yaml:"tolerance"`
	AvoidanceMargin float64 `yaml:"avoidance_margin"`
}

type Physics struct {
	// TrajectoryHistory bounds the per-robot trajectory history kept by
	// the engine.
	TrajectoryHistory int `yaml:"trajectory_history"`
}

// Default is the tuning used when no file is given.
func Default() Tuning {
	return Tuning{
		FieldWidth:  16.54,
		FieldHeight: 8.07,
		Mesh:        Mesh{EdgeLength: 0.5, ExtraClearance: 0.05},
		Corridor: Corridor{
			Interval:         8,
			InitialStep:      1,
			RefinePasses:     4,
			SeedSearchRadius: 1,
			SeedStep:         0.05,
			MaxBridgePasses:  8,
		},
		Solver: Solver{
			Resolution:      0.2,
			StretchFactor:   1.5,
			MaxIterations:   200,
			Tolerance:       1e-3,
			AvoidanceMargin: 0.1,
		},
		Physics: Physics{TrajectoryHistory: 32},
	}
}

func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.fillDefaults()
	return t, nil
}

func (t *Tuning) fillDefaults() {
	d := Default()
	if t.FieldWidth <= 0 {
		t.FieldWidth = d.FieldWidth
	}
	if t.FieldHeight <= 0 {
		t.FieldHeight = d.FieldHeight
	}
	if t.Mesh.EdgeLength <= 0 {
		t.Mesh.EdgeLength = d.Mesh.EdgeLength
	}
	if t.Mesh.ExtraClearance < 0 {
		t.Mesh.ExtraClearance = d.Mesh.ExtraClearance
	}
	if t.Corridor.Interval <= 0 {
		t.Corridor.Interval = d.Corridor.Interval
	}
	if t.Corridor.InitialStep <= 0 {
		t.Corridor.InitialStep = d.Corridor.InitialStep
	}
	if t.Corridor.RefinePasses <= 0 {
		t.Corridor.RefinePasses = d.Corridor.RefinePasses
	}
	if t.Corridor.SeedSearchRadius <= 0 {
		t.Corridor.SeedSearchRadius = d.Corridor.SeedSearchRadius
	}
	if t.Corridor.SeedStep <= 0 {
		t.Corridor.SeedStep = d.Corridor.SeedStep
	}
	if t.Corridor.MaxBridgePasses <= 0 {
		t.Corridor.MaxBridgePasses = d.Corridor.MaxBridgePasses
	}
	if t.Solver.Resolution <= 0 {
		t.Solver.Resolution = d.Solver.Resolution
	}
	if t.Solver.StretchFactor <= 1 {
		t.Solver.StretchFactor = d.Solver.StretchFactor
	}
	if t.Solver.MaxIterations <= 0 {
		t.Solver.MaxIterations = d.Solver.MaxIterations
	}
	if t.Solver.Tolerance <= 0 {
		t.Solver.Tolerance = d.Solver.Tolerance
	}
	if t.Solver.AvoidanceMargin <= 0 {
		t.Solver.AvoidanceMargin = d.Solver.AvoidanceMargin
	}
	if t.Physics.TrajectoryHistory <= 0 {
		t.Physics.TrajectoryHistory = d.Physics.TrajectoryHistory
	}
}
