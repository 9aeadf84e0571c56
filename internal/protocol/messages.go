package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	FieldParams     FieldParams `json:"field_params"`
}

type FieldParams struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// REGISTER_ROBOT (client -> server)
type RegisterRobotMsg struct {
	Type  string    `json:"type"`
	Robot RobotSpec `json:"robot"`
}

type RobotSpec struct {
	Name            string      `json:"name"`
	Radius          float64     `json:"radius"`
	Mass            float64     `json:"mass"`
	MOI             float64     `json:"moi"`
	MaxVelocity     float64     `json:"max_velocity"`
	MaxAcceleration float64     `json:"max_acceleration"`
	MaxOmega        float64     `json:"max_omega"`
	MaxAlpha        float64     `json:"max_alpha"`
	Drivetrain      *SwerveSpec `json:"drivetrain,omitempty"`
}

type SwerveSpec struct {
	ModuleOffsets  [][2]float64 `json:"module_offsets"`
	MotorTorque    float64      `json:"motor_torque"`
	MotorFreeSpeed float64      `json:"motor_free_speed"`
	WheelRadius    float64      `json:"wheel_radius"`
	Friction       float64      `json:"friction"`
}

// ADD_OBSTACLE (client -> server)
type AddObstacleMsg struct {
	Type     string       `json:"type"`
	Obstacle ObstacleSpec `json:"obstacle"`
}

// ObstacleSpec is a tagged variant: exactly one of the shape groups is set
// according to Kind.
type ObstacleSpec struct {
	Name string `json:"name,omitempty"`
	Kind string `json:"kind"` // "circle", "rect" or "polygon"

	Center *[2]float64 `json:"center,omitempty"`
	Radius float64     `json:"radius,omitempty"`

	Min *[2]float64 `json:"min,omitempty"`
	Max *[2]float64 `json:"max,omitempty"`

	Points [][2]float64 `json:"points,omitempty"`

	ZMin *float64 `json:"z_min,omitempty"`
	ZMax *float64 `json:"z_max,omitempty"`
}

// PLAN_REQUEST (client -> server)
type PlanRequestMsg struct {
	Type        string     `json:"type"`
	RequestID   string     `json:"request_id,omitempty"`
	Robot       string     `json:"robot"`
	Start       [2]float64 `json:"start"`
	Goal        [2]float64 `json:"goal"`
	Heading     float64    `json:"heading"`
	GoalHeading *float64   `json:"goal_heading,omitempty"`
	StartTime   float64    `json:"start_time,omitempty"`
	Avoid       bool       `json:"avoid,omitempty"`
	Strategy    string     `json:"strategy,omitempty"` // "time" (default) or "distance"
}

// PLAN_RESULT (server -> client)
type PlanResultMsg struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Robot     string `json:"robot"`
	OK        bool   `json:"ok"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`

	TravelTime  float64      `json:"travel_time,omitempty"`
	PathLength  float64      `json:"path_length,omitempty"`
	MaxVelocity float64      `json:"max_velocity,omitempty"`
	Samples     []SampleSpec `json:"samples,omitempty"`
	Adjusted    []Interval   `json:"adjusted,omitempty"`
}

type SampleSpec struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Heading   float64 `json:"heading"`
	VX        float64 `json:"velocity_x"`
	VY        float64 `json:"velocity_y"`
	Omega     float64 `json:"angular_velocity"`
	Timestamp float64 `json:"timestamp"`
}

type Interval struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

// COMMIT (client -> server): publish the robot's latest trajectory so other
// robots plan around it.
type CommitMsg struct {
	Type      string  `json:"type"`
	Robot     string  `json:"robot"`
	StartTime float64 `json:"start_time"`
}

// CLEAR (client -> server): drop a robot's committed trajectory, or all of
// them when Robot is empty.
type ClearMsg struct {
	Type  string `json:"type"`
	Robot string `json:"robot,omitempty"`
}

// ERROR (server -> client): protocol-level failure outside a plan request.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}
