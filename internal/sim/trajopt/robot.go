package trajopt

import "fieldline.dev/internal/sim/geom"

const gravity = 9.81

// SwerveConfig describes a four-module holonomic drivetrain. Torque and
// speed are at the wheel, after gearing.
type SwerveConfig struct {
	// Offsets are the module positions relative to robot center, in the
	// robot frame: front-left, front-right, back-left, back-right.
	Offsets [4]geom.Vec

	MotorTorque    float64 // per module, N*m
	MotorFreeSpeed float64 // rad/s
	WheelRadius    float64 // m
	Friction       float64 // wheel-to-ground friction coefficient
}

// MaxModuleForce is the per-module ground force limit: the lesser of what
// the motor can deliver through the wheel and what friction can transmit.
func (c SwerveConfig) MaxModuleForce(mass float64) float64 {
	if c.WheelRadius <= 0 {
		return 0
	}
	motor := c.MotorTorque / c.WheelRadius
	friction := c.Friction * mass * gravity / 4
	if friction <= 0 {
		return motor
	}
	return min(motor, friction)
}

// MaxModuleSpeed is the per-module linear speed limit from the motor's free
// speed.
func (c SwerveConfig) MaxModuleSpeed() float64 {
	return c.MotorFreeSpeed * c.WheelRadius
}

// MaxOffset returns the largest module offset magnitude.
func (c SwerveConfig) MaxOffset() float64 {
	m := 0.0
	for _, o := range c.Offsets {
		if l := o.Len(); l > m {
			m = l
		}
	}
	return m
}

// RobotParams bundle the physical description consumed by the optimizer.
type RobotParams struct {
	Radius float64 // bounding radius, m
	Mass   float64 // kg
	MOI    float64 // moment of inertia, kg*m^2

	MaxVelocity     float64 // m/s
	MaxAcceleration float64 // m/s^2
	MaxOmega        float64 // rad/s
	MaxAlpha        float64 // rad/s^2

	Drivetrain SwerveConfig
}

// EffectiveMaxAcceleration folds the drivetrain force limit into the
// declared robot cap.
func (r RobotParams) EffectiveMaxAcceleration() float64 {
	if r.Mass <= 0 {
		return r.MaxAcceleration
	}
	fromForce := 4 * r.Drivetrain.MaxModuleForce(r.Mass) / r.Mass
	if fromForce <= 0 {
		return r.MaxAcceleration
	}
	return min(r.MaxAcceleration, fromForce)
}

// EffectiveMaxVelocity folds the drivetrain speed limit into the declared
// robot cap.
func (r RobotParams) EffectiveMaxVelocity() float64 {
	fromSpeed := r.Drivetrain.MaxModuleSpeed()
	if fromSpeed <= 0 {
		return r.MaxVelocity
	}
	return min(r.MaxVelocity, fromSpeed)
}
