// Package trajopt formulates the constrained trajectory optimization over
// per-sample robot state and per-module wheel force/velocity, and extracts
// solver results into immutable sampled trajectories.
package trajopt

import (
	"encoding/json"
	"io"

	"fieldline.dev/internal/sim/geom"
)

// ModuleState is one swerve module's share of a sample.
type ModuleState struct {
	Angle  float64 `json:"angle"`  // steering angle, rad
	AngVel float64 `json:"angVel"` // wheel angular velocity, rad/s
	Torque float64 `json:"torque"` // applied wheel torque, N*m
	FX     float64 `json:"fx"`     // ground-plane force, N
	FY     float64 `json:"fy"`
	VX     float64 `json:"vx"` // module linear velocity, m/s
	VY     float64 `json:"vy"`
}

// State is one trajectory sample. DT is the duration to the next sample;
// zero on the final sample.
type State struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
	VX      float64 `json:"velocityX"`
	VY      float64 `json:"velocityY"`
	AX      float64 `json:"accelerationX"`
	AY      float64 `json:"accelerationY"`
	Omega   float64 `json:"angularVelocity"`
	Alpha   float64 `json:"angularAcceleration"`

	Modules [4]ModuleState `json:"modules"`

	DT float64 `json:"dt"`
}

func (s State) Pos() geom.Vec { return geom.Vec{X: s.X, Y: s.Y} }

func (s State) Speed() float64 { return geom.Vec{X: s.VX, Y: s.VY}.Len() }

// Interval is a closed time range, in seconds relative to trajectory start.
type Interval struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

// Trajectory is an ordered, immutable sequence of samples with cached
// aggregate stats. Created once by a solver and read many times.
type Trajectory struct {
	states      []State
	travelTime  float64
	pathLength  float64
	maxVelocity float64
	adjusted    []Interval
}

// NewTrajectory takes ownership of states. adjusted lists the time
// intervals the solver slowed or diverted for dynamic-obstacle avoidance.
func NewTrajectory(states []State, adjusted []Interval) *Trajectory {
	t := &Trajectory{states: states, adjusted: adjusted}
	for i := range states {
		if i < len(states)-1 {
			t.travelTime += states[i].DT
			t.pathLength += states[i].Pos().Dist(states[i+1].Pos())
		}
		if v := states[i].Speed(); v > t.maxVelocity {
			t.maxVelocity = v
		}
	}
	return t
}

func (t *Trajectory) Len() int             { return len(t.states) }
func (t *Trajectory) TravelTime() float64  { return t.travelTime }
func (t *Trajectory) Length() float64      { return t.pathLength }
func (t *Trajectory) MaxVelocity() float64 { return t.maxVelocity }

// AvoidanceIntervals reports when the solver deviated from the unconstrained
// plan to avoid other robots.
func (t *Trajectory) AvoidanceIntervals() []Interval {
	out := make([]Interval, len(t.adjusted))
	copy(out, t.adjusted)
	return out
}

// States returns a copy; trajectory samples are never aliased out.
func (t *Trajectory) States() []State {
	out := make([]State, len(t.states))
	copy(out, t.states)
	return out
}

// At samples the trajectory at an elapsed time, interpolating linearly
// inside a step. Times before zero clamp to the first sample; times past
// the travel time clamp to the last.
func (t *Trajectory) At(elapsed float64) State {
	if len(t.states) == 0 {
		return State{}
	}
	if elapsed <= 0 {
		return t.states[0]
	}
	if elapsed >= t.travelTime {
		return t.states[len(t.states)-1]
	}
	acc := 0.0
	for i := 0; i < len(t.states)-1; i++ {
		dt := t.states[i].DT
		if elapsed <= acc+dt {
			f := 0.0
			if dt > 0 {
				f = (elapsed - acc) / dt
			}
			return interpolate(t.states[i], t.states[i+1], f)
		}
		acc += dt
	}
	return t.states[len(t.states)-1]
}

func interpolate(a, b State, f float64) State {
	out := a
	out.X = a.X + (b.X-a.X)*f
	out.Y = a.Y + (b.Y-a.Y)*f
	out.Heading = a.Heading + (b.Heading-a.Heading)*f
	out.VX = a.VX + (b.VX-a.VX)*f
	out.VY = a.VY + (b.VY-a.VY)*f
	out.Omega = a.Omega + (b.Omega-a.Omega)*f
	out.DT = a.DT * (1 - f)
	return out
}

type exportSample struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Heading   float64 `json:"heading"`
	VelocityX float64 `json:"velocityX"`
	VelocityY float64 `json:"velocityY"`
	Omega     float64 `json:"angularVelocity"`
	Timestamp float64 `json:"timestamp"`
}

// ExportJSON writes the Choreo-style sample dump used by external tools.
func (t *Trajectory) ExportJSON(w io.Writer) error {
	samples := make([]exportSample, 0, len(t.states))
	ts := 0.0
	for _, s := range t.states {
		samples = append(samples, exportSample{
			X: s.X, Y: s.Y, Heading: s.Heading,
			VelocityX: s.VX, VelocityY: s.VY,
			Omega: s.Omega, Timestamp: ts,
		})
		ts += s.DT
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Samples []exportSample `json:"samples"`
	}{Samples: samples})
}
