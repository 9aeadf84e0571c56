package trajopt

import "fieldline.dev/internal/sim/geom"

// PointConstraint pins part of the state at a waypoint's control point once
// the waypoint is merged into the sample sequence.
type PointConstraint func(p *Problem, index int)

// VelocityEquals pins the velocity at the waypoint.
func VelocityEquals(vx, vy float64) PointConstraint {
	return func(p *Problem, index int) {
		p.PinnedVel[index] = geom.Vec{X: vx, Y: vy}
	}
}

// HeadingEquals pins the heading at the waypoint.
func HeadingEquals(theta float64) PointConstraint {
	return func(p *Problem, index int) {
		p.PinnedHeading[index] = theta
	}
}

// Waypoint is a position the trajectory must pass through, with optional
// boundary-condition constraints. ControlIndex is resolved when the builder
// merges the waypoint into its sample sequence.
type Waypoint struct {
	Pos          geom.Vec
	Constraints  []PointConstraint
	ControlIndex int
}

func NewWaypoint(pos geom.Vec) *Waypoint {
	return &Waypoint{Pos: pos, ControlIndex: -1}
}

// Given attaches constraints and returns the waypoint for chaining.
func (w *Waypoint) Given(cs ...PointConstraint) *Waypoint {
	w.Constraints = append(w.Constraints, cs...)
	return w
}
